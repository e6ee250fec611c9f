package metrics

import (
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespaceSwarm = "swarm"

const (
	LabelStage   = "stage"
	LabelSource  = "source"
	LabelNodeKey = "node_key"
)

// Collector records one node's orchestrator activity.
type Collector struct {
	stageDuration *prometheus.HistogramVec
	discoveryWait prometheus.Histogram
	contributions *prometheus.CounterVec
	malformed     *prometheus.CounterVec
	faulty        prometheus.Counter
	round         prometheus.Gauge
	stage         prometheus.Gauge
	stageReward   *prometheus.GaugeVec
}

// NewCollector registers the node's metrics with reg. Every series carries
// the node key, so several nodes may share a registry.
func NewCollector(reg prometheus.Registerer, nodeKey string) *Collector {
	constLabels := prometheus.Labels{LabelNodeKey: nodeKey}

	c := &Collector{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespaceSwarm,
			Name:        "stage_duration_seconds",
			Help:        "time spent running one stage, discovery included",
			Buckets:     []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}, []string{LabelStage}),

		discoveryWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespaceSwarm,
			Name:        "discovery_wait_seconds",
			Help:        "time spent waiting for peers to publish the previous stage",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}),

		contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespaceSwarm,
			Name:        "contributions_total",
			Help:        "stage outputs collected for merging, by origin",
			ConstLabels: constLabels,
		}, []string{LabelSource}),

		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespaceSwarm,
			Name:        "malformed_records_total",
			Help:        "peer records skipped by the merger",
			ConstLabels: constLabels,
		}, []string{LabelStage}),

		faulty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespaceSwarm,
			Name:        "faulty_records_total",
			Help:        "final stage records scored as zero during winner selection",
			ConstLabels: constLabels,
		}),

		round: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespaceSwarm,
			Name:        "round",
			Help:        "round the node is working on",
			ConstLabels: constLabels,
		}),

		stage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespaceSwarm,
			Name:        "stage",
			Help:        "stage the node is working on",
			ConstLabels: constLabels,
		}),

		stageReward: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespaceSwarm,
			Name:        "stage_reward",
			Help:        "reward of the node's most recent run of each stage",
			ConstLabels: constLabels,
		}, []string{LabelStage}),
	}

	reg.MustRegister(
		c.stageDuration,
		c.discoveryWait,
		c.contributions,
		c.malformed,
		c.faulty,
		c.round,
		c.stage,
		c.stageReward,
	)
	return c
}

func (c *Collector) ObserveStageDuration(stage domain.Stage, d time.Duration) {
	c.stageDuration.WithLabelValues(stage.String()).Observe(d.Seconds())
}

func (c *Collector) ObserveDiscoveryWait(d time.Duration) {
	c.discoveryWait.Observe(d.Seconds())
}

func (c *Collector) AddContributions(source string, n int) {
	c.contributions.WithLabelValues(source).Add(float64(n))
}

func (c *Collector) IncMalformed(stage domain.Stage) {
	c.malformed.WithLabelValues(stage.String()).Inc()
}

func (c *Collector) IncFaulty() {
	c.faulty.Inc()
}

func (c *Collector) SetProgress(p domain.Progress) {
	c.round.Set(float64(p.Round))
	c.stage.Set(float64(p.Stage))
}

func (c *Collector) SetStageReward(stage domain.Stage, reward float64) {
	c.stageReward.WithLabelValues(stage.String()).Set(reward)
}
