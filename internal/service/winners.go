package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const DefaultRoundWinnerLimit = 10

const (
	PlaceholderNoQuestion     = "<no question available>"
	PlaceholderNoStage3Prompt = "<no stage3 prompt available>"
	PlaceholderNoDecision     = "<no final agent decision available>"
)

// finalRecord is a stage-2 record after validation. Missing fields hold
// placeholders and mark the record faulty.
type finalRecord struct {
	Question     string
	Answer       string
	Stage3Prompt string
	Decision     string
	Faulty       bool
}

// RoundWinnerSelector re-scores the swarm's final-stage outputs for a round
// and ranks node keys by summed reward.
type RoundWinnerSelector struct {
	discovery *Discovery
	scorer    domain.Scorer
	limit     int
	logger    *zap.Logger
	observer  Observer
}

func NewRoundWinnerSelector(discovery *Discovery, scorer domain.Scorer, limit int, logger *zap.Logger, observer Observer) *RoundWinnerSelector {
	if limit <= 0 {
		limit = DefaultRoundWinnerLimit
	}
	return &RoundWinnerSelector{
		discovery: discovery,
		scorer:    scorer,
		limit:     limit,
		logger:    logger,
		observer:  observerOrNop(observer),
	}
}

// Select collects and merges the stage-2 outputs of round and returns at
// most limit winners, highest reward first.
func (s *RoundWinnerSelector) Select(ctx context.Context, round int) ([]domain.RoundWinner, error) {
	grouped, err := s.discovery.Collect(ctx, round, domain.StageConsensus)
	if err != nil {
		return nil, fmt.Errorf("collect final stage outputs: %w", err)
	}
	return s.Rank(ctx, grouped)
}

// Rank scores every non-faulty record in grouped. Faulty records add zero.
// Nodes that never produced a scorable record are left out of the ranking as
// long as some node earned a positive reward. Equal rewards are ordered by
// node key.
func (s *RoundWinnerSelector) Rank(ctx context.Context, grouped Grouped) ([]domain.RoundWinner, error) {
	merged := MergeGrouped(grouped, MergeIdentity)

	totals := make(map[string]float64)
	scored := make(map[string]bool)

	for _, contribs := range merged {
		for _, nodeKey := range domain.SortedKeys(contribs) {
			rec := s.validate(nodeKey, contribs[nodeKey])
			if rec.Faulty {
				totals[nodeKey] += 0
				continue
			}

			breakdowns, err := s.scorer.Score(ctx, domain.ScoringRequest{
				Stage: domain.StageConsensus,
				Prompt: []domain.Message{
					{Role: "system", Content: rec.Question},
					{Role: "system", Content: rec.Stage3Prompt},
				},
				Completions: []string{rec.Decision},
				Answer:      rec.Answer,
			})
			if err != nil {
				return nil, fmt.Errorf("score final output of %s: %w", nodeKey, err)
			}
			for _, b := range breakdowns {
				totals[nodeKey] += b.Total()
			}
			scored[nodeKey] = true
		}
	}

	anyPositive := false
	for nodeKey, total := range totals {
		if scored[nodeKey] && total > 0 {
			anyPositive = true
			break
		}
	}

	ranked := make([]domain.RoundWinner, 0, len(totals))
	for nodeKey, total := range totals {
		if anyPositive && !scored[nodeKey] {
			continue
		}
		ranked = append(ranked, domain.RoundWinner{NodeKey: nodeKey, Reward: total})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Reward != ranked[j].Reward {
			return ranked[i].Reward > ranked[j].Reward
		}
		return ranked[i].NodeKey < ranked[j].NodeKey
	})

	if len(ranked) > s.limit {
		ranked = ranked[:s.limit]
	}
	return ranked, nil
}

func (s *RoundWinnerSelector) validate(nodeKey string, rec domain.Record) finalRecord {
	var out finalRecord
	var problems *multierror.Error

	var err error
	if out.Question, err = presentText(rec, domain.FieldQuestion); err != nil {
		problems = multierror.Append(problems, err)
		out.Question = PlaceholderNoQuestion
	}
	if out.Stage3Prompt, err = presentText(rec, domain.FieldStage3Prompt); err != nil {
		problems = multierror.Append(problems, err)
		out.Stage3Prompt = PlaceholderNoStage3Prompt
	}
	decisions, err := rec.StringMap(domain.FieldFinalAgentDecision)
	if err != nil || len(decisions) == 0 {
		problems = multierror.Append(problems, fmt.Errorf("missing %s", domain.FieldFinalAgentDecision))
		out.Decision = PlaceholderNoDecision
	} else {
		out.Decision = decisions[domain.SortedKeys(decisions)[0]]
	}
	out.Answer, _ = rec.String(domain.FieldAnswer)

	if problems != nil {
		out.Faulty = true
		s.observer.IncFaulty()
		s.logger.Warn("faulty final stage output",
			zap.String("node_key", nodeKey),
			zap.Error(problems.ErrorOrNil()))
	}
	return out
}

// presentText requires field to be present; an empty string still counts.
func presentText(rec domain.Record, field string) (string, error) {
	if !rec.Present(field) {
		return "", fmt.Errorf("missing %s", field)
	}
	return rec.String(field)
}
