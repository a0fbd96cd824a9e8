package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
)

// LeaderboardStore ranks entries in a sorted set per quiz reference. Entries with equal score
// are ordered by their member, which encodes duration and id.
type LeaderboardStore struct {
	client redis.UniversalClient
	keys   keyspace
	now    func() time.Time
}

func NewLeaderboardStore(client redis.UniversalClient, prefix string) *LeaderboardStore {
	return &LeaderboardStore{
		client: client,
		keys:   keyspace(prefix),
		now:    time.Now,
	}
}

func (s *LeaderboardStore) InsertLeaderboardEntry(ctx context.Context, e *domain.LeaderboardEntry) error {
	id, err := s.client.Incr(ctx, s.keys.leaderboardSeq()).Result()
	if err != nil {
		return fmt.Errorf("incr leaderboard seq: %w", err)
	}

	e.ID = id
	if e.CreateTime.IsZero() {
		e.CreateTime = s.now().UTC()
	}

	ok, err := s.client.HSetNX(ctx, s.keys.leaderboardSessions(), e.SessionID, entryMember(e)).Result()
	if err != nil {
		return fmt.Errorf("hsetnx leaderboard session: %w", err)
	}
	if !ok {
		return errors.New(errors.CodeAlreadyExists, errors.WithMessagef("leaderboard entry already exists: session=%s", e.SessionID))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		return addEntry(ctx, pipe, s.keys, e)
	})
	if err != nil {
		return fmt.Errorf("add leaderboard entry: %w", err)
	}

	return nil
}

func (s *LeaderboardStore) TopN(ctx context.Context, quizRef string, n int) ([]domain.LeaderboardEntry, error) {
	if n <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	members, err := s.client.ZRange(ctx, s.keys.leaderboard(quizRef), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(members))
	if len(members) == 0 {
		return entries, nil
	}

	vals, err := s.client.HMGet(ctx, s.keys.leaderboardEntries(quizRef), members...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget leaderboard entries: %w", err)
	}

	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("leaderboard entry %s of %s is missing", members[i], quizRef)
		}

		var e domain.LeaderboardEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("unmarshal leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}
