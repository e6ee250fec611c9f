package domain

import "context"

// RewardComponent is one named term of a scoring pass.
type RewardComponent struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// RewardBreakdown holds the components awarded to a single completion.
type RewardBreakdown struct {
	Components []RewardComponent `json:"components"`
}

func (b RewardBreakdown) Total() float64 {
	var t float64
	for _, c := range b.Components {
		t += c.Value
	}
	return t
}

// Add appends a component to the breakdown.
func (b *RewardBreakdown) Add(name string, value float64) {
	b.Components = append(b.Components, RewardComponent{Name: name, Value: value})
}

// Merge sums the components of other into b by name.
func (b *RewardBreakdown) Merge(other RewardBreakdown) {
	for _, c := range other.Components {
		found := false
		for i := range b.Components {
			if b.Components[i].Name == c.Name {
				b.Components[i].Value += c.Value
				found = true
				break
			}
		}
		if !found {
			b.Add(c.Name, c.Value)
		}
	}
}

// ScoringRequest asks a scorer to rate candidate completions for one prompt.
type ScoringRequest struct {
	Stage       Stage
	Prompt      []Message
	Completions []string
	// Answer is the reference solution, if the question has one.
	Answer string
}

// Scorer turns completions into rewards. One breakdown is returned per
// completion, in the same order.
type Scorer interface {
	Score(ctx context.Context, req ScoringRequest) ([]RewardBreakdown, error)
}

// Generator produces n candidate completions for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt []Message, n int) ([]string, error)
}

// StageInput is one training example for a stage.
type StageInput struct {
	QuestionHash string
	Question     string
	Answer       string
	// StagePrompt is the critique or consensus instruction text that is
	// republished with the output. Empty for stage 0.
	StagePrompt string
	Prompt      []Message
	// Merged is the merged previous-stage record the prompt was built from.
	// Nil for stage 0.
	Merged Record
}

type StageBatch struct {
	Round  int
	Stage  Stage
	Inputs []StageInput
}

// StageResult is what a trainer hands back for one stage: the outputs to
// publish and the reward earned producing them.
type StageResult struct {
	Round     int
	Stage     Stage
	Outputs   StageOutputs
	Reward    float64
	Breakdown RewardBreakdown
}

// Trainer runs the local work of a stage.
type Trainer interface {
	Train(ctx context.Context, batch StageBatch) (StageResult, error)
}

// Question is a dataset entry.
type Question struct {
	Text   string `json:"question"`
	Answer string `json:"answer"`
}

func (q Question) Hash() string { return QuestionHash(q.Text) }

// QuestionSource supplies the questions a round works on.
type QuestionSource interface {
	Questions(ctx context.Context, round int) ([]Question, error)
}

// RoundWinner is a node key with its summed reward for a round.
type RoundWinner struct {
	NodeKey string  `json:"node_key"`
	Reward  float64 `json:"reward"`
}
