package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hypothesis-rating/internal/session"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type sessionRow struct {
	ID        string    `db:"id"`
	Topic     string    `db:"topic_name"`
	Current   int       `db:"current_comparison"`
	Completed string    `db:"completed"`
	Complete  bool      `db:"complete"`
	Pairs     string    `db:"pairs"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	ExpiresAt time.Time `db:"expires_at"`
}

// SessionRepository is the SQL session.Store
type SessionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var _ session.Store = (*SessionRepository)(nil)

// NewSessionRepository creates a new repository
func NewSessionRepository(db *sqlx.DB, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		db:     db,
		logger: logger,
	}
}

// Get loads a session. Expiry is left to the caller.
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.State, error) {
	query := r.db.Rebind(`
		SELECT id, topic_name, current_comparison, completed, complete, pairs,
		       created_at, updated_at, expires_at
		FROM sessions WHERE id = ?
	`)

	var row sessionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	state := &session.State{
		ID:        row.ID,
		Topic:     row.Topic,
		Current:   row.Current,
		Complete:  row.Complete,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
		ExpiresAt: row.ExpiresAt,
	}
	if err := json.Unmarshal([]byte(row.Completed), &state.Completed); err != nil {
		return nil, fmt.Errorf("failed to decode completed comparisons: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Pairs), &state.Pairs); err != nil {
		return nil, fmt.Errorf("failed to decode session pairs: %w", err)
	}
	if state.Pairs == nil {
		state.Pairs = make(map[int]session.PairRef)
	}
	return state, nil
}

// Save upserts a session
func (r *SessionRepository) Save(ctx context.Context, s *session.State) error {
	completed := s.Completed
	if completed == nil {
		completed = []int{}
	}
	completedJSON, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("failed to encode completed comparisons: %w", err)
	}
	pairs := s.Pairs
	if pairs == nil {
		pairs = map[int]session.PairRef{}
	}
	pairsJSON, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("failed to encode session pairs: %w", err)
	}

	query := r.db.Rebind(`
		INSERT INTO sessions (
			id, topic_name, current_comparison, completed, complete, pairs,
			created_at, updated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			topic_name = excluded.topic_name,
			current_comparison = excluded.current_comparison,
			completed = excluded.completed,
			complete = excluded.complete,
			pairs = excluded.pairs,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at
	`)

	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.Topic,
		s.Current,
		string(completedJSON),
		s.Complete,
		string(pairsJSON),
		s.CreatedAt,
		s.UpdatedAt,
		s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown id is not an error.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	query := r.db.Rebind(`DELETE FROM sessions WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes every session that expired before now
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM sessions WHERE expires_at < ?`)
	res, err := r.db.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		r.logger.Info("Deleted expired sessions", zap.Int64("count", n))
	}
	return n, nil
}
