package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	redisinfra "github.com/victornm/trivia/internal/infra/redis"
	"github.com/victornm/trivia/internal/question"
)

type countingBank struct {
	question.Bank
	ids       atomic.Int32
	questions atomic.Int32
}

func (b *countingBank) FetchQuestionIDs(ctx context.Context, sel domain.Selector) ([]string, error) {
	b.ids.Add(1)
	return b.Bank.FetchQuestionIDs(ctx, sel)
}

func (b *countingBank) FetchQuestion(ctx context.Context, id string) (*domain.Question, error) {
	b.questions.Add(1)
	return b.Bank.FetchQuestion(ctx, id)
}

func newCountingBank(t *testing.T) *countingBank {
	t.Helper()

	bank, err := question.NewSampleBank()
	require.NoError(t, err)
	return &countingBank{Bank: bank}
}

func TestQuestionCache_FetchQuestion(t *testing.T) {
	ctx := context.Background()
	rs, rc := newRedis(t)
	bank := newCountingBank(t)
	c := redisinfra.NewQuestionCache(rc, bank, "test", time.Minute)

	first, err := c.FetchQuestion(ctx, "music-03")
	require.NoError(t, err)
	second, err := c.FetchQuestion(ctx, "music-03")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), bank.questions.Load(), "second read should be served from redis")

	ttl := rs.TTL("test:question:music-03")
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.LessOrEqual(t, ttl, time.Minute+6*time.Second)

	_, err = c.FetchQuestion(ctx, "music-99")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestQuestionCache_ConcurrentMissesLoadOnce(t *testing.T) {
	ctx := context.Background()
	_, rc := newRedis(t)
	bank := newCountingBank(t)
	c := redisinfra.NewQuestionCache(rc, bank, "test", time.Minute)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids, err := c.FetchQuestionIDs(ctx, domain.Selector{QuizID: "general"})
			assert.NoError(t, err)
			assert.Len(t, ids, 6)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, bank.ids.Load(), int32(20))
	ids, err := c.FetchQuestionIDs(ctx, domain.Selector{QuizID: "general"})
	require.NoError(t, err)
	assert.Equal(t, "general-01", ids[0])

	before := bank.ids.Load()
	_, err = c.FetchQuestionIDs(ctx, domain.Selector{QuizID: "general"})
	require.NoError(t, err)
	assert.Equal(t, before, bank.ids.Load())
}

func TestQuestionCache_TopicSelectionsBypassTheCache(t *testing.T) {
	ctx := context.Background()
	rs, rc := newRedis(t)
	bank := newCountingBank(t)
	c := redisinfra.NewQuestionCache(rc, bank, "test", time.Minute)

	for range 3 {
		_, err := c.FetchQuestionIDs(ctx, domain.Selector{Topic: "Music", Limit: 4})
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), bank.ids.Load())
	assert.Empty(t, rs.Keys())
}

func TestQuestionCache_CorruptEntryFallsBack(t *testing.T) {
	ctx := context.Background()
	rs, rc := newRedis(t)
	bank := newCountingBank(t)
	c := redisinfra.NewQuestionCache(rc, bank, "test", 0)

	require.NoError(t, rs.Set("test:question:music-01", "{not json"))

	q, err := c.FetchQuestion(ctx, "music-01")
	require.NoError(t, err)
	assert.Equal(t, "Who is known as the 'King of Pop'?", q.Prompt)
	assert.Equal(t, int32(1), bank.questions.Load())
}
