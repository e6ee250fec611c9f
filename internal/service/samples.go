package service

import (
	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/llm"
)

// AnswerInputs turns the round's questions into stage-0 inputs.
func AnswerInputs(questions []domain.Question) []domain.StageInput {
	inputs := make([]domain.StageInput, 0, len(questions))
	for _, q := range questions {
		inputs = append(inputs, domain.StageInput{
			QuestionHash: q.Hash(),
			Question:     q.Text,
			Answer:       q.Answer,
			Prompt:       llm.AnswerPrompt(q.Text),
		})
	}
	return inputs
}

// CritiqueInputs builds stage-1 inputs from merged stage-0 answers. Merged
// records without a question are dropped; there is nothing to critique.
func CritiqueInputs(merged []domain.AnswerOutput) ([]domain.StageInput, error) {
	inputs := make([]domain.StageInput, 0, len(merged))
	for _, m := range merged {
		if m.Question == "" {
			continue
		}
		rec, err := m.Record()
		if err != nil {
			return nil, err
		}
		text, prompt := llm.CritiquePrompt(m.Question, m.AgentAnswers)
		inputs = append(inputs, domain.StageInput{
			QuestionHash: domain.QuestionHash(m.Question),
			Question:     m.Question,
			Answer:       m.Answer,
			StagePrompt:  text,
			Prompt:       prompt,
			Merged:       rec,
		})
	}
	return inputs, nil
}

// ConsensusInputs builds stage-2 inputs from merged stage-1 critiques.
func ConsensusInputs(merged []domain.CritiqueOutput) ([]domain.StageInput, error) {
	inputs := make([]domain.StageInput, 0, len(merged))
	for _, m := range merged {
		if m.Question == "" {
			continue
		}
		rec, err := m.Record()
		if err != nil {
			return nil, err
		}
		text, prompt := llm.ConsensusPrompt(m.Stage2Prompt, m.AgentOpinion)
		inputs = append(inputs, domain.StageInput{
			QuestionHash: domain.QuestionHash(m.Question),
			Question:     m.Question,
			Answer:       m.Answer,
			StagePrompt:  text,
			Prompt:       prompt,
			Merged:       rec,
		})
	}
	return inputs, nil
}
