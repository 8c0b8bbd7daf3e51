package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Tracker drives a session through the comparisons of one topic
type Tracker struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewTracker creates a tracker over the given store
func NewTracker(store Store, ttl time.Duration, logger *zap.Logger) *Tracker {
	return &Tracker{
		store:  store,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Begin binds a session to topic. A missing, expired or differently bound
// session is replaced by a fresh one at comparison 1; issued reports whether
// the caller must hand a new id to the client.
func (t *Tracker) Begin(ctx context.Context, id, topic string) (state *State, issued bool, err error) {
	state, err = t.load(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	if state != nil && state.Topic == topic {
		return state, false, nil
	}

	if state != nil {
		t.logger.Info("Session topic changed, starting over",
			zap.String("session_id", state.ID),
			zap.String("from_topic", state.Topic),
			zap.String("to_topic", topic))
		if err := t.store.Delete(ctx, state.ID); err != nil {
			return nil, false, fmt.Errorf("failed to discard session: %w", err)
		}
	}

	now := t.now().UTC()
	state = &State{
		ID:        t.newID(),
		Topic:     topic,
		Current:   1,
		Pairs:     make(map[int]PairRef),
		CreatedAt: now,
	}
	if err := t.save(ctx, state); err != nil {
		return nil, false, err
	}

	t.logger.Debug("Session started",
		zap.String("session_id", state.ID),
		zap.String("topic", topic))

	return state, true, nil
}

// Current returns the live state for id, or ErrNotFound
func (t *Tracker) Current(ctx context.Context, id string) (*State, error) {
	return t.load(ctx, id)
}

// Advance records comparison n as done and moves to the next one. The stored
// index stops at TotalComparisons; the submission made there completes the
// session.
func (t *Tracker) Advance(ctx context.Context, id string, n int) (*State, error) {
	state, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}

	state.advance(n)
	if err := t.save(ctx, state); err != nil {
		return nil, err
	}

	t.logger.Debug("Session advanced",
		zap.String("session_id", id),
		zap.Int("comparison", n),
		zap.Int("index", state.Index()),
		zap.Bool("complete", state.Complete))

	return state, nil
}

// RememberPair stores the pair shown for comparison n
func (t *Tracker) RememberPair(ctx context.Context, id string, n int, ref PairRef) error {
	state, err := t.load(ctx, id)
	if err != nil {
		return err
	}
	if state.Pairs == nil {
		state.Pairs = make(map[int]PairRef)
	}
	state.Pairs[n] = ref
	return t.save(ctx, state)
}

// Reset clears all state for id
func (t *Tracker) Reset(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := t.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	return nil
}

func (t *Tracker) load(ctx context.Context, id string) (*State, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	state, err := t.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if state.Expired(t.now()) {
		if err := t.store.Delete(ctx, id); err != nil {
			t.logger.Warn("Failed to drop expired session", zap.String("session_id", id), zap.Error(err))
		}
		return nil, ErrNotFound
	}
	return state, nil
}

func (t *Tracker) save(ctx context.Context, state *State) error {
	now := t.now().UTC()
	state.UpdatedAt = now
	state.ExpiresAt = now.Add(t.ttl)
	if err := t.store.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
