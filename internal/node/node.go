// Package node assembles a swarm participant from its parts.
package node

import (
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/reward"
	"github.com/Harshitk-cp/swarm/internal/service"
	"github.com/Harshitk-cp/swarm/internal/store"
	"go.uber.org/zap"
)

type Options struct {
	Key               string
	SearchWidth       int
	OutputTTL         time.Duration
	Discovery         service.DiscoveryConfig
	WinnerLimit       int
	NumGenerations    int
	MaxRounds         int
	QuestionsPerRound int
	// Questions defaults to the built-in set.
	Questions []domain.Question
}

type Deps struct {
	DHT       domain.DistributedStore
	Generator domain.Generator
	// Coordinator and Progress are optional.
	Coordinator domain.Coordinator
	Progress    service.ProgressSource
	Observer    service.Observer
}

// Node is a wired participant. Run it through Orchestrator.
type Node struct {
	State        *domain.NodeState
	Outputs      *store.DHTStageOutputStore
	Winners      *service.RoundWinnerSelector
	Orchestrator *service.Orchestrator
}

func New(opts Options, deps Deps, logger *zap.Logger) *Node {
	questions := opts.Questions
	if len(questions) == 0 {
		questions = service.BuiltinQuestions()
	}

	state := domain.NewNodeState(opts.Key)
	outputs := store.NewDHTStageOutputStore(deps.DHT, state, opts.SearchWidth, opts.OutputTTL)
	discovery := service.NewDiscovery(outputs, opts.Key, opts.Discovery, logger, deps.Observer)
	scorer := reward.NewStageScorer()
	winners := service.NewRoundWinnerSelector(discovery, scorer, opts.WinnerLimit, logger, deps.Observer)

	orch := service.NewOrchestrator(service.OrchestratorDeps{
		Node:        state,
		Outputs:     outputs,
		Discovery:   discovery,
		Merger:      service.NewMerger(logger, deps.Observer),
		Winners:     winners,
		Trainer:     service.NewGeneratorTrainer(opts.Key, deps.Generator, scorer, opts.NumGenerations, logger),
		Questions:   service.NewDatasetQuestionSource(questions, opts.QuestionsPerRound),
		Progress:    deps.Progress,
		Coordinator: deps.Coordinator,
		Observer:    deps.Observer,
	}, service.OrchestratorConfig{MaxRounds: opts.MaxRounds}, logger)

	return &Node{
		State:        state,
		Outputs:      outputs,
		Winners:      winners,
		Orchestrator: orch,
	}
}
