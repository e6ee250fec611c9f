package service

import (
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

// Observer receives protocol measurements. internal/metrics provides the
// Prometheus implementation.
type Observer interface {
	ObserveStageDuration(stage domain.Stage, d time.Duration)
	ObserveDiscoveryWait(d time.Duration)
	AddContributions(source string, n int)
	IncMalformed(stage domain.Stage)
	IncFaulty()
	SetProgress(p domain.Progress)
	SetStageReward(stage domain.Stage, reward float64)
}

const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

type nopObserver struct{}

func (nopObserver) ObserveStageDuration(domain.Stage, time.Duration) {}
func (nopObserver) ObserveDiscoveryWait(time.Duration)               {}
func (nopObserver) AddContributions(string, int)                     {}
func (nopObserver) IncMalformed(domain.Stage)                        {}
func (nopObserver) IncFaulty()                                       {}
func (nopObserver) SetProgress(domain.Progress)                      {}
func (nopObserver) SetStageReward(domain.Stage, float64)             {}

// NopObserver discards all measurements.
func NopObserver() Observer { return nopObserver{} }

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
