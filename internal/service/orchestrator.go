package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"go.uber.org/zap"
)

const DefaultMaxRounds = 100

type OrchestratorConfig struct {
	// MaxRounds is the number of rounds to finish before Run returns.
	// Zero or less runs until ctx is done.
	MaxRounds int
}

// Orchestrator drives one node through stages and rounds. It is
// single-threaded: a stage runs to completion before the next begins.
type Orchestrator struct {
	node        *domain.NodeState
	outputs     domain.StageOutputStore
	discovery   *Discovery
	merger      *Merger
	winners     *RoundWinnerSelector
	trainer     domain.Trainer
	questions   domain.QuestionSource
	progress    ProgressSource
	coordinator domain.Coordinator
	cfg         OrchestratorConfig
	logger      *zap.Logger
	observer    Observer
}

type OrchestratorDeps struct {
	Node      *domain.NodeState
	Outputs   domain.StageOutputStore
	Discovery *Discovery
	Merger    *Merger
	Winners   *RoundWinnerSelector
	Trainer   domain.Trainer
	Questions domain.QuestionSource
	// Progress defaults to LocalProgress.
	Progress ProgressSource
	// Coordinator is optional. When set, stage rewards and round winners are
	// submitted to it.
	Coordinator domain.Coordinator
	Observer    Observer
}

func NewOrchestrator(deps OrchestratorDeps, cfg OrchestratorConfig, logger *zap.Logger) *Orchestrator {
	progress := deps.Progress
	if progress == nil {
		progress = LocalProgress{}
	}
	return &Orchestrator{
		node:        deps.Node,
		outputs:     deps.Outputs,
		discovery:   deps.Discovery,
		merger:      deps.Merger,
		winners:     deps.Winners,
		trainer:     deps.Trainer,
		questions:   deps.Questions,
		progress:    progress,
		coordinator: deps.Coordinator,
		cfg:         cfg,
		logger:      logger.With(zap.String("node_key", deps.Node.Key)),
		observer:    observerOrNop(deps.Observer),
	}
}

// Run loops stage by stage until MaxRounds rounds are finished or ctx ends.
func (o *Orchestrator) Run(ctx context.Context) error {
	finished := 0
	for o.cfg.MaxRounds <= 0 || finished < o.cfg.MaxRounds {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := o.progress.Next(ctx, o.node)
		if err != nil {
			return fmt.Errorf("determine progress: %w", err)
		}

		if _, err := o.RunStage(ctx, p); err != nil {
			return err
		}

		if p.Stage == domain.StageConsensus {
			if _, err := o.FinishRound(ctx, p.Round); err != nil {
				return err
			}
			finished++
		}
		o.progress.Done(o.node, p)
	}
	o.logger.Info("orchestrator finished", zap.Int("rounds", finished))
	return nil
}

// RunStage assembles the stage's inputs, trains, publishes the outputs and
// reports the reward.
func (o *Orchestrator) RunStage(ctx context.Context, p domain.Progress) (domain.StageResult, error) {
	start := time.Now()
	o.observer.SetProgress(p)
	log := o.logger.With(zap.Int("round", p.Round), zap.String("stage", p.Stage.String()))
	log.Info("stage started")

	inputs, err := o.stageInputs(ctx, p)
	if err != nil {
		return domain.StageResult{}, fmt.Errorf("round %d stage %s inputs: %w", p.Round, p.Stage, err)
	}

	res := domain.StageResult{Round: p.Round, Stage: p.Stage, Outputs: domain.StageOutputs{}}
	if len(inputs) == 0 {
		log.Info("no inputs for stage, nothing to train")
	} else {
		res, err = o.trainer.Train(ctx, domain.StageBatch{Round: p.Round, Stage: p.Stage, Inputs: inputs})
		if err != nil {
			return domain.StageResult{}, fmt.Errorf("round %d stage %s train: %w", p.Round, p.Stage, err)
		}
		if err := o.outputs.Publish(ctx, p.Round, p.Stage, o.node.Key, res.Outputs, res.Reward); err != nil {
			log.Error("failed to publish stage outputs", zap.Error(err))
			return domain.StageResult{}, fmt.Errorf("publish: %w", err)
		}
	}

	o.node.RecordResult(res)
	o.observer.SetStageReward(p.Stage, res.Reward)

	if o.coordinator != nil {
		reward := int(res.Reward)
		if reward < 0 {
			reward = 0
		}
		if err := o.coordinator.SubmitReward(ctx, p.Round, p.Stage, reward, o.node.Key); err != nil {
			if !submissionRejected(err) {
				log.Error("failed to submit reward", zap.Error(err))
				return domain.StageResult{}, fmt.Errorf("submit reward: %w", err)
			}
			log.Warn("coordinator rejected reward", zap.Error(err))
		}
	}

	o.node.MarkCompleted(p.Round, p.Stage)
	o.observer.ObserveStageDuration(p.Stage, time.Since(start))
	log.Info("stage finished",
		zap.Int("outputs", len(res.Outputs)),
		zap.Float64("reward", res.Reward),
		zap.Duration("took", time.Since(start)))
	return res, nil
}

func (o *Orchestrator) stageInputs(ctx context.Context, p domain.Progress) ([]domain.StageInput, error) {
	switch p.Stage {
	case domain.StageAnswer:
		qs, err := o.questions.Questions(ctx, p.Round)
		if err != nil {
			return nil, err
		}
		return AnswerInputs(qs), nil

	case domain.StageCritique:
		grouped, err := o.discovery.Collect(ctx, p.Round, domain.StageAnswer)
		if err != nil {
			return nil, err
		}
		return CritiqueInputs(MergeGrouped(grouped, o.merger.MergeAnswers))

	case domain.StageConsensus:
		grouped, err := o.discovery.Collect(ctx, p.Round, domain.StageCritique)
		if err != nil {
			return nil, err
		}
		return ConsensusInputs(MergeGrouped(grouped, o.merger.MergeCritiques))
	}
	return nil, fmt.Errorf("unknown stage %d", int(p.Stage))
}

// FinishRound selects the round's winners, publishes them to the
// leaderboard and, with a coordinator, submits the top one.
func (o *Orchestrator) FinishRound(ctx context.Context, round int) ([]domain.RoundWinner, error) {
	winners, err := o.winners.Select(ctx, round)
	if err != nil {
		return nil, fmt.Errorf("round %d winners: %w", round, err)
	}

	log := o.logger.With(zap.Int("round", round))
	if len(winners) == 0 {
		log.Info("no round winners")
	} else {
		log.Info("round winners selected",
			zap.String("top", winners[0].NodeKey),
			zap.Float64("top_reward", winners[0].Reward),
			zap.Int("count", len(winners)))

		if err := o.outputs.PublishWinners(ctx, round, o.node.Key, winners); err != nil {
			log.Warn("failed to publish leaderboard", zap.Error(err))
		}

		if o.coordinator != nil {
			if err := o.coordinator.SubmitWinners(ctx, round, []string{winners[0].NodeKey}, o.node.Key); err != nil {
				if !submissionRejected(err) {
					log.Error("failed to submit winners", zap.Error(err))
					return nil, fmt.Errorf("submit winners: %w", err)
				}
				log.Warn("coordinator rejected winners", zap.Error(err))
			}
		}
	}

	o.node.PruneBefore(round)
	return winners, nil
}

// submissionRejected reports whether the coordinator refused a submission as
// late or repeated. The node carries on with the next stage in that case.
func submissionRejected(err error) bool {
	return errors.Is(err, domain.ErrSubmissionRejected) ||
		errors.Is(err, ErrStaleRound) ||
		errors.Is(err, ErrDuplicateReward) ||
		errors.Is(err, ErrDuplicateWinners)
}

// IsFatal reports whether err from Run should stop the process rather than
// be retried by a supervisor.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
