package domain

import (
	"time"

	"github.com/google/uuid"
)

// Peer is a node registered with the coordinator.
type Peer struct {
	ID         uuid.UUID `json:"id"`
	NodeKey    string    `json:"node_key"`
	APIKeyHash string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// RoundState is the coordinator's authoritative position.
type RoundState struct {
	Round          int       `json:"round"`
	Stage          Stage     `json:"stage"`
	StageStartedAt time.Time `json:"stage_started_at"`
}

func (s RoundState) Progress() Progress {
	return Progress{Round: s.Round, Stage: s.Stage}
}

type RewardSubmission struct {
	ID          uuid.UUID `json:"id"`
	Round       int       `json:"round"`
	Stage       Stage     `json:"stage"`
	NodeKey     string    `json:"node_key"`
	Reward      int       `json:"reward"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// WinnerVote is one node's winner announcement for a round.
type WinnerVote struct {
	Round     int       `json:"round"`
	VoterKey  string    `json:"voter_key"`
	WinnerKey string    `json:"winner_key"`
	CreatedAt time.Time `json:"created_at"`
}

// WinnerTally counts votes for one winner key.
type WinnerTally struct {
	NodeKey     string `json:"node_key"`
	Votes       int    `json:"votes"`
	TotalReward int    `json:"total_reward"`
}
