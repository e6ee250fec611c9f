package service

import (
	"github.com/Harshitk-cp/swarm/internal/domain"
	"go.uber.org/zap"
)

const (
	PlaceholderNoAnswer   = "No answer received..."
	PlaceholderNoFeedback = "No feedback received..."
)

// Contributions maps node key to that node's record for one question.
type Contributions map[string]domain.Record

// Merger combines several nodes' outputs for one question into the input of
// the next stage. Contributions are visited in node-key order, so the scalar
// fields of the result come from the lexicographically last valid record.
type Merger struct {
	logger   *zap.Logger
	observer Observer
}

func NewMerger(logger *zap.Logger, observer Observer) *Merger {
	return &Merger{logger: logger, observer: observerOrNop(observer)}
}

// MergeAnswers merges stage-0 outputs. Every contributing node appears in
// AgentAnswers; nodes without a valid answer get PlaceholderNoAnswer.
func (m *Merger) MergeAnswers(contribs Contributions) domain.AnswerOutput {
	merged := domain.AnswerOutput{AgentAnswers: make(map[string]string)}

	keys := domain.SortedKeys(contribs)
	for _, nodeKey := range keys {
		out, err := domain.DecodeAnswerOutput(contribs[nodeKey])
		if err != nil {
			m.malformed(domain.StageAnswer, nodeKey, err)
			continue
		}
		merged.Question = out.Question
		merged.Answer = out.Answer
		for agent, answer := range out.AgentAnswers {
			merged.AgentAnswers[agent] = answer
		}
	}

	for _, nodeKey := range keys {
		if _, ok := merged.AgentAnswers[nodeKey]; !ok {
			merged.AgentAnswers[nodeKey] = PlaceholderNoAnswer
		}
	}
	return merged
}

// MergeCritiques merges stage-1 outputs. Every contributing node appears in
// AgentOpinion; nodes without valid feedback get PlaceholderNoFeedback.
func (m *Merger) MergeCritiques(contribs Contributions) domain.CritiqueOutput {
	merged := domain.CritiqueOutput{AgentOpinion: make(map[string]string)}

	keys := domain.SortedKeys(contribs)
	for _, nodeKey := range keys {
		out, err := domain.DecodeCritiqueOutput(contribs[nodeKey])
		if err != nil {
			m.malformed(domain.StageCritique, nodeKey, err)
			continue
		}
		merged.Question = out.Question
		merged.Answer = out.Answer
		merged.Stage2Prompt = out.Stage2Prompt
		for agent, opinion := range out.AgentOpinion {
			merged.AgentOpinion[agent] = opinion
		}
	}

	for _, nodeKey := range keys {
		if _, ok := merged.AgentOpinion[nodeKey]; !ok {
			merged.AgentOpinion[nodeKey] = PlaceholderNoFeedback
		}
	}
	return merged
}

// MergeIdentity keeps the per-node records untouched. Round winner selection
// consumes the raw map.
func MergeIdentity(contribs Contributions) Contributions {
	return contribs
}

func (m *Merger) malformed(stage domain.Stage, nodeKey string, err error) {
	m.observer.IncMalformed(stage)
	m.logger.Warn("skipping malformed stage output",
		zap.String("stage", stage.String()),
		zap.String("node_key", nodeKey),
		zap.Error(err))
}
