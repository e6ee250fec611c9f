package reward

import (
	"context"
	"testing"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const critiquePrompt = "The question we were given is: What is 6 times 7?  \n\n" +
	"The following answers to this question were suggested:\n\n" +
	"<student>student1</student> said \n<think>\n6 x 7 = 42\n</think>\n<answer>\n42\n</answer>\n\n" +
	"<student>student2</student> said \n<think>\n6 x 7 = 43\n</think>\n<answer>\n43\n</answer>"

const consensusPrompt = critiquePrompt + "\n\n  \nAfter comparing these answers, the following feedback was given about which answer is best: \n\n" +
	"<compare>\nx\n</compare>\n<explain>\ny\n</explain>\n<identify>\nstudent1\n</identify>\n\n" +
	"<identify>student1</identify> is right\n\n" +
	"<identify>student2</identify> is close\n\n" +
	"Please summarize the feedback, identify the majority opinion, restate the original question, and provide the final correct answer."

func score(t *testing.T, stage domain.Stage, prompt, completion, answer string) domain.RewardBreakdown {
	t.Helper()
	out, err := NewStageScorer().Score(context.Background(), domain.ScoringRequest{
		Stage:       stage,
		Prompt:      []domain.Message{{Role: "user", Content: prompt}},
		Completions: []string{completion},
		Answer:      answer,
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	return out[0]
}

func component(b domain.RewardBreakdown, name string) float64 {
	for _, c := range b.Components {
		if c.Name == name {
			return c.Value
		}
	}
	return -1
}

func TestScoreAnswer(t *testing.T) {
	good := score(t, domain.StageAnswer, "What is 6 times 7?", "<think>\nmultiply\n</think>\n<answer>\n42\n</answer>\n", "42")
	assert.Equal(t, 2.0, component(good, "correctness"))
	assert.Equal(t, 0.5, component(good, "int"))
	assert.Equal(t, 0.5, component(good, "strict_format"))
	assert.Equal(t, 0.5, component(good, "soft_format"))
	assert.InDelta(t, 0.5, component(good, "xml_count"), 1e-9)

	bad := score(t, domain.StageAnswer, "What is 6 times 7?", "I think it is 42.", "42")
	assert.Equal(t, 0.0, component(bad, "correctness"))
	assert.Equal(t, 0.0, bad.Total())
	assert.Greater(t, good.Total(), bad.Total())
}

func TestScoreCritique(t *testing.T) {
	good := score(t, domain.StageCritique, critiquePrompt,
		"<compare>\nlooked\n</compare>\n<explain>\nstudent1 multiplied\n</explain>\n<identify>\nstudent1\n</identify>\n", "42")
	assert.Equal(t, 2.0, component(good, "proper_id"))
	assert.Equal(t, 1.0, component(good, "correct_id"))
	assert.Equal(t, 0.5, component(good, "strict_format"))

	wrong := score(t, domain.StageCritique, critiquePrompt,
		"<compare>\nlooked\n</compare>\n<explain>\nhmm\n</explain>\n<identify>\nstudent2\n</identify>\n", "42")
	assert.Equal(t, 2.0, component(wrong, "proper_id"))
	assert.Equal(t, 0.0, component(wrong, "correct_id"))

	unknown := score(t, domain.StageCritique, critiquePrompt, "<identify>\nstudent9\n</identify>", "42")
	assert.Equal(t, 0.0, component(unknown, "proper_id"))
}

func TestScoreConsensus(t *testing.T) {
	completion := "<summarize_feedback>\nmost chose student1\n</summarize_feedback>\n<majority>\nstudent1\n</majority>\n<question>\nWhat is 6 times 7?\n</question>\n<think>\n6 x 7\n</think>\n<answer>\n42\n</answer>\n"
	b := score(t, domain.StageConsensus, consensusPrompt, completion, "42")
	assert.Equal(t, 2.0, component(b, "consensus"))
	assert.Equal(t, 1.0, component(b, "question_recreation"))
	assert.Equal(t, 2.0, component(b, "final_correctness"))
	assert.Equal(t, 0.5, component(b, "strict_format"))
	assert.Greater(t, b.Total(), 5.0)
}

func TestStudentAnswers(t *testing.T) {
	answers := studentAnswers(critiquePrompt)
	require.Len(t, answers, 2)
	assert.Contains(t, answers["student1"], "42")
	assert.Contains(t, answers["student2"], "43")
	assert.Equal(t, "What is 6 times 7?", originalQuestion(critiquePrompt))
	assert.Equal(t, "student1", swarmMajority(consensusPrompt))
}

func TestCountXML(t *testing.T) {
	good := countXML("<think>\na\n</think>\n<answer>\nb\n</answer>\n", answerTags)
	trailing := countXML("<think>\na\n</think>\n<answer>\nb\n</answer>\nextra words", answerTags)
	assert.InDelta(t, 0.5, good, 1e-9)
	assert.Less(t, trailing, good)
	assert.Equal(t, 0.0, countXML("plain", answerTags))
}

func TestScore_UnknownStage(t *testing.T) {
	_, err := NewStageScorer().Score(context.Background(), domain.ScoringRequest{Stage: domain.Stage(domain.NumStages)})
	assert.Error(t, err)
}
