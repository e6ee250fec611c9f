package domain

import (
	"fmt"
	"sync"
)

// Stage is one phase of a round.
type Stage int

const (
	StageAnswer    Stage = 0
	StageCritique  Stage = 1
	StageConsensus Stage = 2
)

// NumStages is the number of stages a node trains per round.
const NumStages = 3

func ValidStage(s int) bool {
	return s >= int(StageAnswer) && s <= int(StageConsensus)
}

func (s Stage) String() string {
	switch s {
	case StageAnswer:
		return "answer"
	case StageCritique:
		return "critique"
	case StageConsensus:
		return "consensus"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Progress is a (round, stage) position.
type Progress struct {
	Round int   `json:"round"`
	Stage Stage `json:"stage"`
}

// Next returns the position following p, wrapping to stage 0 of the next round.
func (p Progress) Next() Progress {
	if p.Stage >= StageConsensus {
		return Progress{Round: p.Round + 1, Stage: StageAnswer}
	}
	return Progress{Round: p.Round, Stage: p.Stage + 1}
}

// Before reports whether p precedes other.
func (p Progress) Before(other Progress) bool {
	if p.Round != other.Round {
		return p.Round < other.Round
	}
	return p.Stage < other.Stage
}

// NodeState is the identity and mutable progress of one swarm participant.
// The orchestrator is the only writer; readers such as metrics may run
// concurrently, hence the lock.
type NodeState struct {
	Key string

	mu         sync.RWMutex
	round      int
	stage      Stage
	outputs    map[Progress]StageOutputs
	completed  map[Progress]bool
	lastResult *StageResult
}

func NewNodeState(key string) *NodeState {
	return &NodeState{
		Key:       key,
		outputs:   make(map[Progress]StageOutputs),
		completed: make(map[Progress]bool),
	}
}

func (n *NodeState) Progress() Progress {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Progress{Round: n.round, Stage: n.stage}
}

// SetProgress moves the counters to p, forwards or backwards.
func (n *NodeState) SetProgress(p Progress) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.round = p.Round
	n.stage = p.Stage
}

// AdvanceStage moves to the next stage, rolling into the next round after
// the consensus stage.
func (n *NodeState) AdvanceStage() Progress {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := Progress{Round: n.round, Stage: n.stage}.Next()
	n.round, n.stage = next.Round, next.Stage
	return next
}

// CacheOutputs keeps a copy of the outputs this node published for (round, stage).
func (n *NodeState) CacheOutputs(round int, stage Stage, outputs StageOutputs) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outputs[Progress{Round: round, Stage: stage}] = outputs.Clone()
}

func (n *NodeState) CachedOutputs(round int, stage Stage) (StageOutputs, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	o, ok := n.outputs[Progress{Round: round, Stage: stage}]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// PruneBefore drops cached outputs of rounds older than round.
func (n *NodeState) PruneBefore(round int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for p := range n.outputs {
		if p.Round < round {
			delete(n.outputs, p)
		}
	}
	for p := range n.completed {
		if p.Round < round {
			delete(n.completed, p)
		}
	}
}

func (n *NodeState) MarkCompleted(round int, stage Stage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed[Progress{Round: round, Stage: stage}] = true
}

func (n *NodeState) Completed(round int, stage Stage) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.completed[Progress{Round: round, Stage: stage}]
}

// RecordResult stores the most recent stage result.
func (n *NodeState) RecordResult(res StageResult) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := res
	n.lastResult = &r
}

func (n *NodeState) LastResult() (StageResult, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.lastResult == nil {
		return StageResult{}, false
	}
	return *n.lastResult, true
}
