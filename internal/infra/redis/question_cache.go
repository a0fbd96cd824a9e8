package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/question"
)

// QuestionCache is a read-through cache in front of a question bank. Questions and quiz question
// lists are cached; topic selections are random per session and always go to the bank.
type QuestionCache struct {
	client redis.UniversalClient
	bank   question.Bank
	keys   keyspace
	ttl    time.Duration
	sf     singleflight.Group
}

var _ question.Bank = (*QuestionCache)(nil)

func NewQuestionCache(client redis.UniversalClient, bank question.Bank, prefix string, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		bank:   bank,
		keys:   keyspace(prefix),
		ttl:    ttl,
	}
}

func (c *QuestionCache) FetchQuestionIDs(ctx context.Context, sel domain.Selector) ([]string, error) {
	if sel.QuizID == "" {
		return c.bank.FetchQuestionIDs(ctx, sel)
	}

	var ids []string
	err := c.readThrough(ctx, c.keys.quizQuestions(sel.QuizID), &ids, func() (any, error) {
		return c.bank.FetchQuestionIDs(ctx, sel)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *QuestionCache) FetchQuestion(ctx context.Context, id string) (*domain.Question, error) {
	var q domain.Question
	err := c.readThrough(ctx, c.keys.question(id), &q, func() (any, error) {
		return c.bank.FetchQuestion(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// readThrough decodes key into dst, loading and storing it on a miss. Concurrent misses of the same
// key share one load. Cache failures fall back to the loader.
func (c *QuestionCache) readThrough(ctx context.Context, key string, dst any, load func() (any, error)) error {
	if ok := c.get(ctx, key, dst); ok {
		return nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}

		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}

		if err := c.client.Set(ctx, key, b, c.ttlWithJitter()).Err(); err != nil {
			slog.WarnContext(ctx, "question cache: set failed", "key", key, "error", err)
		}
		return b, nil
	})
	if err != nil {
		return err
	}

	return json.Unmarshal(v.([]byte), dst)
}

func (c *QuestionCache) get(ctx context.Context, key string, dst any) bool {
	b, err := c.client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		slog.WarnContext(ctx, "question cache: get failed", "key", key, "error", err)
		return false
	}

	if err := json.Unmarshal(b, dst); err != nil {
		slog.WarnContext(ctx, "question cache: corrupt entry", "key", key, "error", err)
		return false
	}
	return true
}

// ttlWithJitter spreads expiry over an extra 10% so entries cached together do not expire together.
func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int64N(jitterMax+1))
}
