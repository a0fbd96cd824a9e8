package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/session"
)

// SessionStore keeps sessions as JSON documents. Updates run optimistically under WATCH and are
// committed with MULTI/EXEC; losing the race is reported as a Conflict.
type SessionStore struct {
	client redis.UniversalClient
	keys   keyspace
	ttl    time.Duration
}

// NewSessionStore creates a session store. A positive ttl expires abandoned sessions.
func NewSessionStore(client redis.UniversalClient, prefix string, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		keys:   keyspace(prefix),
		ttl:    ttl,
	}
}

func (s *SessionStore) CreateSession(ctx context.Context, ss *domain.Session) error {
	b, err := json.Marshal(ss)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.keys.session(ss.SessionID), b, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("setnx session: %w", err)
	}
	if !ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("session already exists: %s", ss.SessionID))
	}

	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	return getSession(ctx, s.client, s.keys.session(id), id)
}

func (s *SessionStore) ListAnswerLogs(ctx context.Context, id string) ([]domain.AnswerLog, error) {
	return listAnswerLogs(ctx, s.client, s.keys.answers(id))
}

func (s *SessionStore) Update(ctx context.Context, id string, fn func(ctx context.Context, tx session.Tx) error) error {
	sessionKey, answersKey := s.keys.session(id), s.keys.answers(id)

	err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
		ss, err := getSession(ctx, rtx, sessionKey, id)
		if err != nil {
			return err
		}

		tx := &sessionTx{
			store:   s,
			rtx:     rtx,
			loaded:  ss.Clone(),
			current: ss,
		}

		if err := fn(ctx, tx); err != nil {
			return err
		}
		if tx.empty() {
			return nil
		}

		_, err = rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return tx.flush(ctx, pipe)
		})
		return err
	}, sessionKey, answersKey)

	if stderrors.Is(err, redis.TxFailedErr) {
		return errors.New(errors.CodeConflict,
			errors.WithMessagef("session %s was modified concurrently", id),
			errors.WithCause(err),
		)
	}

	return err
}

type sessionTx struct {
	store   *SessionStore
	rtx     *redis.Tx
	loaded  *domain.Session
	current *domain.Session

	save    *domain.Session
	logs    []domain.AnswerLog
	entries []domain.LeaderboardEntry
}

func (t *sessionTx) Session() *domain.Session {
	return t.current
}

func (t *sessionTx) SaveSession(_ context.Context, ss *domain.Session) error {
	if t.loaded.Finished {
		return errors.Conflict("session %s is finished", t.loaded.SessionID)
	}
	t.save = ss.Clone()
	return nil
}

func (t *sessionTx) AppendAnswerLog(ctx context.Context, l *domain.AnswerLog) error {
	n, err := t.rtx.LLen(ctx, t.store.keys.answers(t.loaded.SessionID)).Result()
	if err != nil {
		return fmt.Errorf("llen answers: %w", err)
	}

	if next := int(n) + len(t.logs); l.QuestionIndex != next {
		return errors.Conflict("question %d of session %s is already answered", l.QuestionIndex, t.loaded.SessionID)
	}

	t.logs = append(t.logs, *l)
	return nil
}

func (t *sessionTx) SumElapsedForSession(ctx context.Context) (int64, error) {
	logs, err := listAnswerLogs(ctx, t.rtx, t.store.keys.answers(t.loaded.SessionID))
	if err != nil {
		return 0, err
	}

	var sum int64
	for _, l := range append(logs, t.logs...) {
		sum += l.ElapsedMs
	}
	return sum, nil
}

func (t *sessionTx) InsertLeaderboardEntry(ctx context.Context, e *domain.LeaderboardEntry) error {
	keys := t.store.keys

	exists, err := t.rtx.HExists(ctx, keys.leaderboardSessions(), e.SessionID).Result()
	if err != nil {
		return fmt.Errorf("hexists leaderboard session: %w", err)
	}
	if exists {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("leaderboard entry already exists: session=%s", e.SessionID))
	}

	e.ID, err = t.rtx.Incr(ctx, keys.leaderboardSeq()).Result()
	if err != nil {
		return fmt.Errorf("incr leaderboard seq: %w", err)
	}

	t.entries = append(t.entries, *e)
	return nil
}

func (t *sessionTx) empty() bool {
	return t.save == nil && len(t.logs) == 0 && len(t.entries) == 0
}

func (t *sessionTx) flush(ctx context.Context, pipe redis.Pipeliner) error {
	keys, ttl := t.store.keys, t.store.ttl

	if t.save != nil {
		b, err := json.Marshal(t.save)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}
		pipe.Set(ctx, keys.session(t.save.SessionID), b, ttl)
	}

	for _, l := range t.logs {
		b, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshal answer log: %w", err)
		}
		pipe.RPush(ctx, keys.answers(l.SessionID), b)
	}
	if len(t.logs) > 0 && ttl > 0 {
		pipe.Expire(ctx, keys.answers(t.loaded.SessionID), ttl)
	}

	for i := range t.entries {
		if err := addEntry(ctx, pipe, keys, &t.entries[i]); err != nil {
			return err
		}
	}

	return nil
}

func addEntry(ctx context.Context, pipe redis.Pipeliner, keys keyspace, e *domain.LeaderboardEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal leaderboard entry: %w", err)
	}

	member := entryMember(e)
	pipe.ZAdd(ctx, keys.leaderboard(e.QuizRef), redis.Z{
		Score:  -float64(e.Score),
		Member: member,
	})
	pipe.HSet(ctx, keys.leaderboardEntries(e.QuizRef), member, b)
	pipe.HSet(ctx, keys.leaderboardSessions(), e.SessionID, member)
	return nil
}

// reader is satisfied by both clients and WATCH transactions.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

func getSession(ctx context.Context, c reader, key, id string) (*domain.Session, error) {
	b, err := c.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, errors.NotFound("session not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var ss domain.Session
	if err := json.Unmarshal(b, &ss); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &ss, nil
}

func listAnswerLogs(ctx context.Context, c reader, key string) ([]domain.AnswerLog, error) {
	raw, err := c.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange answers: %w", err)
	}

	logs := make([]domain.AnswerLog, 0, len(raw))
	for _, r := range raw {
		var l domain.AnswerLog
		if err := json.Unmarshal([]byte(r), &l); err != nil {
			return nil, fmt.Errorf("unmarshal answer log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}
