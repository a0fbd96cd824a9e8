package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/session"
)

// SessionStore serializes updates of a session with SELECT ... FOR UPDATE inside one transaction.
type SessionStore struct {
	db *pgxpool.Pool
}

func NewSessionStore(db *pgxpool.Pool) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) CreateSession(ctx context.Context, ss *domain.Session) error {
	const stmt = `
INSERT INTO sessions (session_id, quiz_ref, player_name, user_id, question_ids, current_index, score,
	question_armed_at, time_limit_sec, scoring_mode, finished, create_time)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	_, err := s.db.Exec(ctx, stmt,
		ss.SessionID, ss.QuizRef, ss.PlayerName, ss.UserID, ss.QuestionIDs, ss.CurrentIndex, ss.Score,
		ss.QuestionArmedAt, ss.TimeLimitSec, string(ss.ScoringMode), ss.Finished, ss.CreateTime,
	)
	if isUniqueViolation(err) {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("session already exists: %s", ss.SessionID),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

const selectSession = `
SELECT session_id::text, quiz_ref, player_name, user_id, question_ids, current_index, score,
	question_armed_at, time_limit_sec, scoring_mode, finished, create_time
FROM sessions
WHERE session_id = $1::uuid`

func (s *SessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return getSession(ctx, s.db, selectSession, id)
}

func (s *SessionStore) ListAnswerLogs(ctx context.Context, id string) ([]domain.AnswerLog, error) {
	const stmt = `
SELECT session_id::text, question_index, question_id, selected, correct, timed_out, elapsed_ms, awarded, create_time
FROM answer_logs
WHERE session_id = $1::uuid
ORDER BY question_index;`

	rows, err := s.db.Query(ctx, stmt, id)
	if err != nil {
		return nil, fmt.Errorf("query answer logs: %w", err)
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.AnswerLog, error) {
		var l domain.AnswerLog
		err := r.Scan(&l.SessionID, &l.QuestionIndex, &l.QuestionID, &l.Selected, &l.Correct, &l.TimedOut,
			&l.ElapsedMs, &l.Awarded, &l.CreateTime)
		return l, err
	})
}

func (s *SessionStore) Update(ctx context.Context, id string, fn func(ctx context.Context, tx session.Tx) error) (err error) {
	if !validUUID(id) {
		return errors.NotFound("session not found: %s", id)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	ss, err := getSession(ctx, tx, selectSession+" FOR UPDATE", id)
	if err != nil {
		return err
	}

	if err = fn(ctx, &sessionTx{tx: tx, loaded: ss.Clone(), current: ss}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

type sessionTx struct {
	tx      pgx.Tx
	loaded  *domain.Session
	current *domain.Session
}

func (t *sessionTx) Session() *domain.Session {
	return t.current
}

func (t *sessionTx) SaveSession(ctx context.Context, ss *domain.Session) error {
	const stmt = `
UPDATE sessions
SET current_index = $2, score = $3, question_armed_at = $4, finished = $5
WHERE session_id = $1::uuid AND current_index = $6 AND NOT finished;`

	tag, err := t.tx.Exec(ctx, stmt, ss.SessionID, ss.CurrentIndex, ss.Score, ss.QuestionArmedAt, ss.Finished, t.loaded.CurrentIndex)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.Conflict("session %s was modified concurrently", ss.SessionID)
	}

	return nil
}

func (t *sessionTx) AppendAnswerLog(ctx context.Context, l *domain.AnswerLog) error {
	const stmt = `
INSERT INTO answer_logs (session_id, question_index, question_id, selected, correct, timed_out, elapsed_ms, awarded, create_time)
VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9);`

	_, err := t.tx.Exec(ctx, stmt, l.SessionID, l.QuestionIndex, l.QuestionID, l.Selected, l.Correct, l.TimedOut,
		l.ElapsedMs, l.Awarded, l.CreateTime)
	if isUniqueViolation(err) {
		return errors.New(errors.CodeConflict,
			errors.WithMessagef("question %d of session %s is already answered", l.QuestionIndex, l.SessionID),
			errors.WithCause(err))
	}
	if err != nil {
		return fmt.Errorf("insert answer log: %w", err)
	}

	return nil
}

func (t *sessionTx) SumElapsedForSession(ctx context.Context) (int64, error) {
	const stmt = `SELECT COALESCE(SUM(elapsed_ms), 0)::bigint FROM answer_logs WHERE session_id = $1::uuid;`

	var sum int64
	if err := t.tx.QueryRow(ctx, stmt, t.loaded.SessionID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum elapsed: %w", err)
	}
	return sum, nil
}

func (t *sessionTx) InsertLeaderboardEntry(ctx context.Context, e *domain.LeaderboardEntry) error {
	return insertEntry(ctx, t.tx, e)
}

func getSession(ctx context.Context, q querier, stmt, id string) (*domain.Session, error) {
	if !validUUID(id) {
		return nil, errors.NotFound("session not found: %s", id)
	}

	var (
		ss   domain.Session
		mode string
	)
	err := q.QueryRow(ctx, stmt, id).Scan(
		&ss.SessionID, &ss.QuizRef, &ss.PlayerName, &ss.UserID, &ss.QuestionIDs, &ss.CurrentIndex, &ss.Score,
		&ss.QuestionArmedAt, &ss.TimeLimitSec, &mode, &ss.Finished, &ss.CreateTime,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}

	ss.ScoringMode = domain.ScoringMode(mode)
	return &ss, nil
}
