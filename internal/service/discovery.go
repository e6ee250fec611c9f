package service

import (
	"context"
	"errors"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/store"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const (
	DefaultCheckInterval  = 5 * time.Second
	DefaultWaitTimeout    = 10 * time.Second
	DefaultDHTSampleLimit = 200
)

var errNoRewardSignal = errors.New("no reward signal yet")

type DiscoveryConfig struct {
	CheckInterval  time.Duration
	WaitTimeout    time.Duration
	DHTSampleLimit int
}

func (c DiscoveryConfig) withDefaults() DiscoveryConfig {
	if c.CheckInterval <= 0 {
		c.CheckInterval = DefaultCheckInterval
	}
	if c.WaitTimeout < 0 {
		c.WaitTimeout = 0
	}
	if c.DHTSampleLimit <= 0 {
		c.DHTSampleLimit = DefaultDHTSampleLimit
	}
	return c
}

// Grouped maps question hash to the contributions for that question.
type Grouped map[string]Contributions

// Discovery finds the previous stage's outputs across the swarm.
type Discovery struct {
	outputs  domain.StageOutputStore
	nodeKey  string
	cfg      DiscoveryConfig
	logger   *zap.Logger
	observer Observer
}

func NewDiscovery(outputs domain.StageOutputStore, nodeKey string, cfg DiscoveryConfig, logger *zap.Logger, observer Observer) *Discovery {
	return &Discovery{
		outputs:  outputs,
		nodeKey:  nodeKey,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		observer: observerOrNop(observer),
	}
}

// WaitForRewardSignal polls the reward signal for (round, stage) every
// CheckInterval until it is non-empty or WaitTimeout passes. Running out of
// time is not an error; the result is then nil.
func (d *Discovery) WaitForRewardSignal(ctx context.Context, round int, stage domain.Stage) (map[string]float64, error) {
	start := time.Now()
	defer func() { d.observer.ObserveDiscoveryWait(time.Since(start)) }()

	var signal map[string]float64
	b := retry.WithMaxDuration(d.cfg.WaitTimeout, retry.NewConstant(d.cfg.CheckInterval))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		s, err := d.outputs.FetchRewardSignal(ctx, round, stage)
		if err != nil {
			return err
		}
		if len(s) == 0 {
			return retry.RetryableError(errNoRewardSignal)
		}
		signal = s
		return nil
	})
	if errors.Is(err, errNoRewardSignal) {
		d.logger.Info("discovery wait timed out, proceeding with local outputs",
			zap.Int("round", round),
			zap.String("stage", stage.String()),
			zap.Duration("waited", time.Since(start)))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return signal, nil
}

// Collect gathers the outputs published for (round, stage): this node's own
// first, then peers named in the reward signal in node-key order, until
// DHTSampleLimit remote records have been taken. The result is grouped by
// question hash.
func (d *Discovery) Collect(ctx context.Context, round int, stage domain.Stage) (Grouped, error) {
	signal, err := d.WaitForRewardSignal(ctx, round, stage)
	if err != nil {
		return nil, err
	}

	grouped := make(Grouped)
	add := func(nodeKey, qHash string, rec domain.Record) {
		c, ok := grouped[qHash]
		if !ok {
			c = make(Contributions)
			grouped[qHash] = c
		}
		c[nodeKey] = rec
	}

	local, err := d.outputs.FetchLocal(ctx, round, stage)
	switch {
	case errors.Is(err, store.ErrNotFound):
		d.logger.Debug("no local outputs for previous stage",
			zap.Int("round", round),
			zap.String("stage", stage.String()))
	case err != nil:
		return nil, err
	}
	for _, qHash := range local.QuestionHashes() {
		add(d.nodeKey, qHash, local[qHash])
	}
	d.observer.AddContributions(SourceLocal, len(local))

	taken := 0
	for _, peer := range domain.SortedKeys(signal) {
		if peer == d.nodeKey {
			continue
		}
		if taken >= d.cfg.DHTSampleLimit {
			d.logger.Debug("remote sample limit reached",
				zap.Int("limit", d.cfg.DHTSampleLimit),
				zap.Int("peers", len(signal)))
			break
		}

		outs, err := d.outputs.FetchRemote(ctx, round, stage, peer)
		if errors.Is(err, store.ErrNotFound) {
			d.logger.Debug("peer published a reward but no outputs are visible",
				zap.Int("round", round),
				zap.String("stage", stage.String()),
				zap.String("peer", peer))
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, qHash := range outs.QuestionHashes() {
			if taken >= d.cfg.DHTSampleLimit {
				break
			}
			add(peer, qHash, outs[qHash])
			taken++
		}
	}
	d.observer.AddContributions(SourceRemote, taken)

	return grouped, nil
}

// MergeGrouped applies merge to every question in hash order.
func MergeGrouped[T any](grouped Grouped, merge func(Contributions) T) []T {
	out := make([]T, 0, len(grouped))
	for _, qHash := range domain.SortedKeys(grouped) {
		out = append(out, merge(grouped[qHash]))
	}
	return out
}
