package service

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"go.uber.org/zap"
)

const DefaultNumGenerations = 2

// GeneratorTrainer does a stage's local work by sampling completions from a
// generator and keeping the best scored one per question.
type GeneratorTrainer struct {
	nodeKey        string
	generator      domain.Generator
	scorer         domain.Scorer
	numGenerations int
	logger         *zap.Logger
}

func NewGeneratorTrainer(nodeKey string, generator domain.Generator, scorer domain.Scorer, numGenerations int, logger *zap.Logger) *GeneratorTrainer {
	if numGenerations <= 0 {
		numGenerations = DefaultNumGenerations
	}
	return &GeneratorTrainer{
		nodeKey:        nodeKey,
		generator:      generator,
		scorer:         scorer,
		numGenerations: numGenerations,
		logger:         logger,
	}
}

func (t *GeneratorTrainer) Train(ctx context.Context, batch domain.StageBatch) (domain.StageResult, error) {
	res := domain.StageResult{
		Round:   batch.Round,
		Stage:   batch.Stage,
		Outputs: make(domain.StageOutputs, len(batch.Inputs)),
	}

	for _, in := range batch.Inputs {
		completions, err := t.generator.Generate(ctx, in.Prompt, t.numGenerations)
		if err != nil {
			return domain.StageResult{}, fmt.Errorf("generate for %s: %w", in.QuestionHash, err)
		}
		if len(completions) == 0 {
			t.logger.Warn("generator returned no completions", zap.String("question_hash", in.QuestionHash))
			continue
		}

		breakdowns, err := t.scorer.Score(ctx, domain.ScoringRequest{
			Stage:       batch.Stage,
			Prompt:      in.Prompt,
			Completions: completions,
			Answer:      in.Answer,
		})
		if err != nil {
			return domain.StageResult{}, fmt.Errorf("score %s: %w", in.QuestionHash, err)
		}
		if len(breakdowns) != len(completions) {
			return domain.StageResult{}, fmt.Errorf("score %s: got %d rewards for %d completions", in.QuestionHash, len(breakdowns), len(completions))
		}

		best := bestCompletion(breakdowns)
		rec, err := t.output(batch.Stage, in, completions[best])
		if err != nil {
			return domain.StageResult{}, err
		}
		res.Outputs[in.QuestionHash] = rec
		res.Reward += breakdowns[best].Total()
		res.Breakdown.Merge(breakdowns[best])
	}

	t.logger.Debug("stage trained",
		zap.Int("round", batch.Round),
		zap.String("stage", batch.Stage.String()),
		zap.Int("questions", len(res.Outputs)),
		zap.Float64("reward", res.Reward))
	return res, nil
}

// bestCompletion returns the index with the highest total, the first on ties.
func bestCompletion(breakdowns []domain.RewardBreakdown) int {
	best := 0
	for i := 1; i < len(breakdowns); i++ {
		if breakdowns[i].Total() > breakdowns[best].Total() {
			best = i
		}
	}
	return best
}

func (t *GeneratorTrainer) output(stage domain.Stage, in domain.StageInput, completion string) (domain.Record, error) {
	self := map[string]string{t.nodeKey: completion}
	switch stage {
	case domain.StageAnswer:
		return domain.AnswerOutput{Question: in.Question, Answer: in.Answer, AgentAnswers: self}.Record()
	case domain.StageCritique:
		return domain.CritiqueOutput{Question: in.Question, Answer: in.Answer, Stage2Prompt: in.StagePrompt, AgentOpinion: self}.Record()
	case domain.StageConsensus:
		return domain.DecisionOutput{Question: in.Question, Answer: in.Answer, Stage3Prompt: in.StagePrompt, FinalAgentDecision: self}.Record()
	}
	return nil, fmt.Errorf("no output shape for stage %s", stage)
}
