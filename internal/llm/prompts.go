package llm

import (
	"fmt"
	"strings"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

const answerSystemPrompt = `You are a student working on a math problem with a group of other students.
Think the problem through step by step, then give your final answer.

Respond in the following format:
<think>
...
</think>
<answer>
...
</answer>`

const critiqueSystemPrompt = `You are a teacher reviewing the answers several students gave to a math problem.
Compare the answers, explain which one is correct and why, then identify the student whose answer is best.

Respond in the following format:
<compare>
...
</compare>
<explain>
...
</explain>
<identify>
...
</identify>`

const consensusSystemPrompt = `You are a student reviewing the answers a group gave to a math problem and the feedback their teachers wrote.
Summarize the feedback, name the student most teachers picked, restate the original question, then solve it.

Respond in the following format:
<summarize_feedback>
...
</summarize_feedback>
<majority>
...
</majority>
<question>
...
</question>
<think>
...
</think>
<answer>
...
</answer>`

const questionHeader = "The question we were given is: %s  \n\nThe following answers to this question were suggested:\n\n"

const studentEntry = "<student>%s</student> said \n%s\n\n"

const feedbackHeader = "  \nAfter comparing these answers, the following feedback was given about which answer is best: \n\n"

const consensusInstruction = "Please summarize the feedback, identify the majority opinion, restate the original question, and provide the final correct answer."

// AnswerPrompt builds the stage-0 prompt for a question.
func AnswerPrompt(question string) []domain.Message {
	return []domain.Message{
		{Role: "system", Content: answerSystemPrompt},
		{Role: "user", Content: question},
	}
}

// CritiquePrompt lists every agent's answer in node-key order. The returned
// text is republished as stage2_prompt.
func CritiquePrompt(question string, agentAnswers map[string]string) (string, []domain.Message) {
	var sb strings.Builder
	fmt.Fprintf(&sb, questionHeader, question)
	for _, agent := range domain.SortedKeys(agentAnswers) {
		fmt.Fprintf(&sb, studentEntry, agent, agentAnswers[agent])
	}
	text := strings.TrimRight(sb.String(), "\n")

	return text, []domain.Message{
		{Role: "system", Content: critiqueSystemPrompt},
		{Role: "user", Content: text},
	}
}

// ConsensusPrompt appends the teachers' feedback to the stage-1 prompt. The
// returned text is republished as stage3_prompt.
func ConsensusPrompt(stage2Prompt string, agentOpinion map[string]string) (string, []domain.Message) {
	var sb strings.Builder
	sb.WriteString(stage2Prompt)
	sb.WriteString("\n\n")
	sb.WriteString(feedbackHeader)
	for _, agent := range domain.SortedKeys(agentOpinion) {
		sb.WriteString(agentOpinion[agent])
		sb.WriteString("\n\n")
	}
	sb.WriteString(consensusInstruction)
	text := sb.String()

	return text, []domain.Message{
		{Role: "system", Content: consensusSystemPrompt},
		{Role: "user", Content: text},
	}
}

// StageOf reports which stage a prompt built by this package belongs to.
func StageOf(prompt []domain.Message) (domain.Stage, bool) {
	if len(prompt) == 0 {
		return 0, false
	}
	switch prompt[0].Content {
	case answerSystemPrompt:
		return domain.StageAnswer, true
	case critiqueSystemPrompt:
		return domain.StageCritique, true
	case consensusSystemPrompt:
		return domain.StageConsensus, true
	}
	return 0, false
}
