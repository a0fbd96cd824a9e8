package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
)

type LeaderboardStore struct {
	db *pgxpool.Pool
}

func NewLeaderboardStore(db *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{db: db}
}

func (s *LeaderboardStore) InsertLeaderboardEntry(ctx context.Context, e *domain.LeaderboardEntry) error {
	return insertEntry(ctx, s.db, e)
}

func (s *LeaderboardStore) TopN(ctx context.Context, quizRef string, n int) ([]domain.LeaderboardEntry, error) {
	const stmt = `
SELECT id, session_id::text, quiz_ref, player_name, user_id, score, duration_ms, create_time
FROM leaderboard_entries
WHERE quiz_ref = $1
ORDER BY score DESC, duration_ms ASC NULLS LAST, id ASC
LIMIT $2;`

	rows, err := s.db.Query(ctx, stmt, quizRef, n)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.LeaderboardEntry, error) {
		var e domain.LeaderboardEntry
		err := r.Scan(&e.ID, &e.SessionID, &e.QuizRef, &e.PlayerName, &e.UserID, &e.Score, &e.DurationMs, &e.CreateTime)
		return e, err
	})
}

func insertEntry(ctx context.Context, q querier, e *domain.LeaderboardEntry) error {
	const stmt = `
INSERT INTO leaderboard_entries (session_id, quiz_ref, player_name, user_id, score, duration_ms, create_time)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
RETURNING id;`

	err := q.QueryRow(ctx, stmt, e.SessionID, e.QuizRef, e.PlayerName, e.UserID, e.Score, e.DurationMs, e.CreateTime).Scan(&e.ID)
	if isUniqueViolation(err) {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("leaderboard entry already exists: session=%s", e.SessionID),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("insert leaderboard entry: %w", err)
	}

	return nil
}
