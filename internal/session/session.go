// Package session tracks an expert's progress through the comparisons of a
// topic. State is keyed by an opaque id held by the client.
package session

import (
	"context"
	"errors"
	"time"
)

// TotalComparisons is the number of comparisons an expert makes per topic
const TotalComparisons = 8

// Status is the coarse state of a session
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusInProgress    Status = "in_progress"
	StatusComplete      Status = "complete"
)

// ErrNotFound is returned by a Store when no state exists for an id
var ErrNotFound = errors.New("session not found")

// PairRef identifies the two pool hypotheses shown for one comparison
type PairRef struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
}

// State is the server-side record of one session
type State struct {
	ID        string
	Topic     string
	Current   int // stored comparison index, never above TotalComparisons
	Completed []int
	Complete  bool
	Pairs     map[int]PairRef
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Index is the comparison the expert is on. It reads TotalComparisons+1
// once the session is complete.
func (s *State) Index() int {
	if s == nil {
		return 0
	}
	if s.Complete {
		return TotalComparisons + 1
	}
	return s.Current
}

// Status reports where the session is in its lifecycle
func (s *State) Status() Status {
	switch {
	case s == nil || s.Topic == "":
		return StatusUninitialized
	case s.Complete:
		return StatusComplete
	default:
		return StatusInProgress
	}
}

// Expired reports whether the state outlived its TTL at now
func (s *State) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Pair returns the pair remembered for comparison n
func (s *State) Pair(n int) (PairRef, bool) {
	ref, ok := s.Pairs[n]
	return ref, ok
}

func (s *State) advance(n int) {
	if s.Complete {
		return
	}
	s.Completed = append(s.Completed, n)
	if s.Current < TotalComparisons {
		s.Current++
		return
	}
	s.Complete = true
}

func (s *State) clone() *State {
	c := *s
	c.Completed = append([]int(nil), s.Completed...)
	c.Pairs = make(map[int]PairRef, len(s.Pairs))
	for k, v := range s.Pairs {
		c.Pairs[k] = v
	}
	return &c
}

// Store persists session state
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, s *State) error
	Delete(ctx context.Context, id string) error
}
