package redis_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	redisinfra "github.com/victornm/trivia/internal/infra/redis"
	"github.com/victornm/trivia/internal/session"
)

func newSession(id string) *domain.Session {
	return &domain.Session{
		SessionID:    id,
		QuizRef:      "quiz:1",
		PlayerName:   "roni",
		QuestionIDs:  []string{"q1", "q2"},
		TimeLimitSec: 20,
		ScoringMode:  domain.ScoringModeSpeedBonus,
		CreateTime:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSessionStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	_, rc := newRedis(t)
	s := redisinfra.NewSessionStore(rc, "test", 0)

	_, err := s.GetSession(ctx, "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	ss := newSession("s1")
	require.NoError(t, s.CreateSession(ctx, ss))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, ss, got)

	err = s.CreateSession(ctx, ss)
	assert.True(t, errors.Is(err, errors.CodeAlreadyExists))
}

func TestSessionStore_TTL(t *testing.T) {
	ctx := context.Background()
	rs, rc := newRedis(t)
	s := redisinfra.NewSessionStore(rc, "test", time.Hour)

	require.NoError(t, s.CreateSession(ctx, newSession("s1")))
	assert.Equal(t, time.Hour, rs.TTL("test:session:s1"))

	rs.FastForward(2 * time.Hour)
	_, err := s.GetSession(ctx, "s1")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestSessionStore_Update(t *testing.T) {
	errBoom := stderrors.New("boom")

	type (
		inputs struct {
			fn func(ctx context.Context, tx session.Tx) error
		}

		outputs struct {
			err     error
			session *domain.Session
			logs    []domain.AnswerLog
			top     []domain.LeaderboardEntry
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"committed changes should be visible": {
			arrange: func() inputs {
				return inputs{fn: func(ctx context.Context, tx session.Tx) error {
					ss := tx.Session()
					ss.CurrentIndex = 1
					ss.Score = 150
					if err := tx.AppendAnswerLog(ctx, &domain.AnswerLog{SessionID: "s1", QuestionIndex: 0, QuestionID: "q1", ElapsedMs: 40}); err != nil {
						return err
					}
					return tx.SaveSession(ctx, ss)
				}}
			},

			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.Equal(t, 1, out.session.CurrentIndex)
				assert.Equal(t, int64(150), out.session.Score)
				require.Len(t, out.logs, 1)
				assert.Equal(t, "q1", out.logs[0].QuestionID)
			},
		},

		"an error should discard everything": {
			arrange: func() inputs {
				return inputs{fn: func(ctx context.Context, tx session.Tx) error {
					ss := tx.Session()
					ss.CurrentIndex = 1
					_ = tx.AppendAnswerLog(ctx, &domain.AnswerLog{SessionID: "s1", QuestionIndex: 0})
					_ = tx.SaveSession(ctx, ss)
					return errBoom
				}}
			},

			assert: func(t *testing.T, out outputs) {
				require.ErrorIs(t, out.err, errBoom)
				assert.Equal(t, 0, out.session.CurrentIndex)
				assert.Empty(t, out.logs)
			},
		},

		"answering an index twice should conflict": {
			arrange: func() inputs {
				return inputs{fn: func(ctx context.Context, tx session.Tx) error {
					if err := tx.AppendAnswerLog(ctx, &domain.AnswerLog{SessionID: "s1", QuestionIndex: 0}); err != nil {
						return err
					}
					return tx.AppendAnswerLog(ctx, &domain.AnswerLog{SessionID: "s1", QuestionIndex: 0})
				}}
			},

			assert: func(t *testing.T, out outputs) {
				assert.True(t, errors.Is(out.err, errors.CodeConflict))
				assert.Empty(t, out.logs)
			},
		},

		"finishing should write the session and the leaderboard entry together": {
			arrange: func() inputs {
				return inputs{fn: func(ctx context.Context, tx session.Tx) error {
					for i, ms := range []int64{300, 700} {
						if err := tx.AppendAnswerLog(ctx, &domain.AnswerLog{SessionID: "s1", QuestionIndex: i, ElapsedMs: ms}); err != nil {
							return err
						}
					}

					sum, err := tx.SumElapsedForSession(ctx)
					if err != nil {
						return err
					}

					ss := tx.Session()
					ss.CurrentIndex, ss.Score, ss.Finished = 2, 150, true
					if err := tx.InsertLeaderboardEntry(ctx, &domain.LeaderboardEntry{
						SessionID: "s1", QuizRef: ss.QuizRef, Score: ss.Score, DurationMs: &sum,
					}); err != nil {
						return err
					}
					return tx.SaveSession(ctx, ss)
				}}
			},

			assert: func(t *testing.T, out outputs) {
				require.NoError(t, out.err)
				assert.True(t, out.session.Finished)
				require.Len(t, out.top, 1)
				assert.Equal(t, int64(150), out.top[0].Score)
				assert.Equal(t, int64(1000), *out.top[0].DurationMs)
			},
		},

		"a failed finish should leave no leaderboard entry": {
			arrange: func() inputs {
				return inputs{fn: func(ctx context.Context, tx session.Tx) error {
					if err := tx.InsertLeaderboardEntry(ctx, &domain.LeaderboardEntry{SessionID: "s1", QuizRef: "quiz:1", Score: 10}); err != nil {
						return err
					}
					return errBoom
				}}
			},

			assert: func(t *testing.T, out outputs) {
				require.ErrorIs(t, out.err, errBoom)
				assert.False(t, out.session.Finished)
				assert.Empty(t, out.top)
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			in := tt.arrange()
			_, rc := newRedis(t)
			s := redisinfra.NewSessionStore(rc, "test", 0)
			lb := redisinfra.NewLeaderboardStore(rc, "test")
			require.NoError(t, s.CreateSession(ctx, newSession("s1")))

			out := outputs{err: s.Update(ctx, "s1", in.fn)}

			var err error
			out.session, err = s.GetSession(ctx, "s1")
			require.NoError(t, err)
			out.logs, err = s.ListAnswerLogs(ctx, "s1")
			require.NoError(t, err)
			out.top, err = lb.TopN(ctx, "quiz:1", 10)
			require.NoError(t, err)

			tt.assert(t, out)
		})
	}
}

func TestSessionStore_UpdateMissingSession(t *testing.T) {
	_, rc := newRedis(t)
	s := redisinfra.NewSessionStore(rc, "test", 0)

	called := false
	err := s.Update(context.Background(), "missing", func(context.Context, session.Tx) error {
		called = true
		return nil
	})

	assert.True(t, errors.Is(err, errors.CodeNotFound))
	assert.False(t, called)
}

func TestSessionStore_ConcurrentModificationConflicts(t *testing.T) {
	ctx := context.Background()
	_, rc := newRedis(t)
	s := redisinfra.NewSessionStore(rc, "test", 0)
	require.NoError(t, s.CreateSession(ctx, newSession("s1")))

	err := s.Update(ctx, "s1", func(ctx context.Context, tx session.Tx) error {
		other := newSession("s1")
		other.CurrentIndex = 1
		b, err := json.Marshal(other)
		require.NoError(t, err)
		require.NoError(t, rc.Set(ctx, "test:session:s1", b, 0).Err())

		ss := tx.Session()
		ss.Score = 999
		return tx.SaveSession(ctx, ss)
	})
	assert.True(t, errors.Is(err, errors.CodeConflict))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.CurrentIndex)
	assert.Equal(t, int64(0), got.Score)
}

func TestSessionStore_SaveFinishedSessionConflicts(t *testing.T) {
	ctx := context.Background()
	_, rc := newRedis(t)
	s := redisinfra.NewSessionStore(rc, "test", 0)

	ss := newSession("s1")
	ss.Finished = true
	require.NoError(t, s.CreateSession(ctx, ss))

	err := s.Update(ctx, "s1", func(ctx context.Context, tx session.Tx) error {
		return tx.SaveSession(ctx, tx.Session())
	})
	assert.True(t, errors.Is(err, errors.CodeConflict))
}
