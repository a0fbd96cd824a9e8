package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/trivia/internal/api"
	"github.com/victornm/trivia/internal/event"
	redisinfra "github.com/victornm/trivia/internal/infra/redis"
	"github.com/victornm/trivia/internal/leaderboard"
	"github.com/victornm/trivia/internal/question"
	"github.com/victornm/trivia/internal/session"
)

type response struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type fixture struct {
	engine *gin.Engine
	bank   *question.StaticBank
	redis  redis.UniversalClient
	eb     *event.Bus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})

	bank, err := question.NewSampleBank()
	require.NoError(t, err)

	eb := event.NewBus()
	lb := leaderboard.NewService(leaderboard.Config{
		Store:    redisinfra.NewLeaderboardStore(rc, "test"),
		EventBus: eb,
	})
	ss := session.NewService(session.Config{
		Store:       redisinfra.NewSessionStore(rc, "test", time.Hour),
		Bank:        bank,
		Leaderboard: lb,
		EventBus:    eb,
	})

	e := gin.New()
	api.New(api.Config{
		Router:       e,
		EventBus:     eb,
		Session:      ss,
		Leaderboard:  lb,
		Redis:        rc,
		PubsubPrefix: "test",
	})

	return &fixture{engine: e, bank: bank, redis: rc, eb: eb}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, response) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return w.Code, resp
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestAPI_Errors(t *testing.T) {
	tests := map[string]struct {
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		"missing player name": {
			method:     http.MethodPost,
			path:       "/api/v1/sessions",
			body:       map[string]any{"quiz_id": "general"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		"unknown quiz": {
			method:     http.MethodPost,
			path:       "/api/v1/sessions",
			body:       map[string]any{"quiz_id": "nope", "player_name": "roni"},
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		"unknown scoring mode": {
			method:     http.MethodPost,
			path:       "/api/v1/sessions",
			body:       map[string]any{"quiz_id": "general", "player_name": "roni", "scoring_mode": "fastest"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		"malformed body": {
			method:     http.MethodPost,
			path:       "/api/v1/sessions",
			body:       "not an object",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		"unknown session": {
			method:     http.MethodGet,
			path:       "/api/v1/sessions/missing",
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		"unknown session question": {
			method:     http.MethodGet,
			path:       "/api/v1/sessions/missing/question",
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		"leaderboard without reference": {
			method:     http.MethodGet,
			path:       "/api/v1/leaderboard",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		"leaderboard with bad limit": {
			method:     http.MethodGet,
			path:       "/api/v1/leaderboard?quiz_id=general&limit=abc",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)

			status, resp := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, resp.OK)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestAPI_Game(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	f := newFixture(t)

	sub := f.redis.Subscribe(ctx, "test:leaderboard:quiz:general")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	status, resp := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"quiz_id":     "general",
		"player_name": "roni",
		"user_id":     "u1",
	})
	require.Equal(t, http.StatusCreated, status)
	created := decode[api.CreateSessionResponse](t, resp.Data)
	assert.Equal(t, "quiz:general", created.QuizRef)
	assert.Equal(t, 6, created.Count)
	assert.Equal(t, "speed_bonus", created.ScoringMode)

	base := "/api/v1/sessions/" + created.SessionID

	status, resp = f.do(t, http.MethodPost, base+"/answer", map[string]any{"selected": "x"})
	assert.Equal(t, http.StatusConflict, status, "answering before the question is shown")
	assert.Equal(t, "conflict", resp.Error.Code)

	for i := range created.Count {
		status, resp = f.do(t, http.MethodGet, base+"/question", nil)
		require.Equal(t, http.StatusOK, status)

		view := decode[struct {
			QuestionID string `json:"question_id"`
			Index      int    `json:"index"`
			Armed      bool   `json:"armed"`
			Options    []struct {
				Label string `json:"label"`
				Text  string `json:"text"`
			} `json:"options"`
		}](t, resp.Data)
		assert.Equal(t, i, view.Index)
		assert.True(t, view.Armed)
		assert.Len(t, view.Options, 4)

		q, err := f.bank.FetchQuestion(ctx, view.QuestionID)
		require.NoError(t, err)

		selected := q.Options[q.CorrectIndex]
		if i == 0 {
			selected = "definitely wrong"
		}

		status, resp = f.do(t, http.MethodPost, base+"/answer", map[string]any{
			"selected":    selected,
			"question_id": view.QuestionID,
		})
		require.Equal(t, http.StatusOK, status)

		answer := decode[api.SubmitAnswerResponse](t, resp.Data)
		assert.Equal(t, i > 0, answer.Correct)
		assert.Equal(t, i == created.Count-1, answer.Finished)
	}

	status, resp = f.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)
	st := decode[api.SessionStatus](t, resp.Data)
	assert.True(t, st.Finished)
	assert.Equal(t, 6, st.CurrentIndex)
	assert.Equal(t, 6, st.Total)

	status, resp = f.do(t, http.MethodGet, base+"/answers", nil)
	require.Equal(t, http.StatusOK, status)
	logs := decode[[]struct {
		QuestionIndex int   `json:"question_index"`
		Correct       bool  `json:"correct"`
		Awarded       int64 `json:"awarded"`
	}](t, resp.Data)
	require.Len(t, logs, 6)

	var sum int64
	for i, l := range logs {
		assert.Equal(t, i, l.QuestionIndex)
		sum += l.Awarded
	}
	assert.Equal(t, st.Score, sum)
	assert.False(t, logs[0].Correct)
	assert.Zero(t, logs[0].Awarded)

	status, resp = f.do(t, http.MethodPost, base+"/answer", map[string]any{"selected": "x"})
	assert.Equal(t, http.StatusConflict, status, "answering a finished session")
	assert.Equal(t, "conflict", resp.Error.Code)

	status, resp = f.do(t, http.MethodGet, "/api/v1/leaderboard?quiz_id=general&limit=5", nil)
	require.Equal(t, http.StatusOK, status)
	l := decode[api.Leaderboard](t, resp.Data)
	assert.Equal(t, "quiz:general", l.QuizRef)
	require.Len(t, l.Entries, 1)
	assert.Equal(t, 1, l.Entries[0].Rank)
	assert.Equal(t, "roni", l.Entries[0].PlayerName)
	assert.Equal(t, st.Score, l.Entries[0].Score)
	assert.NotNil(t, l.Entries[0].DurationMs)

	f.eb.Stop()

	select {
	case msg := <-sub.Channel():
		var n struct {
			Event string          `json:"event"`
			Data  api.Leaderboard `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		assert.Equal(t, "leaderboard.updated", n.Event)
		assert.Equal(t, "quiz:general", n.Data.QuizRef)
		require.Len(t, n.Data.Entries, 1)
		assert.Equal(t, "u1", n.Data.Entries[0].UserID)
	case <-ctx.Done():
		t.Fatal("no leaderboard notification received")
	}
}

func TestAPI_LeaderboardByTopic(t *testing.T) {
	f := newFixture(t)

	status, resp := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"topic":       "Music",
		"difficulty":  "hard",
		"limit":       2,
		"player_name": "dani",
	})
	require.Equal(t, http.StatusCreated, status)
	created := decode[api.CreateSessionResponse](t, resp.Data)
	assert.Equal(t, "topic:music:hard", created.QuizRef)
	assert.Equal(t, 2, created.Count)

	status, resp = f.do(t, http.MethodGet, "/api/v1/leaderboard?topic=music&difficulty=Hard", nil)
	require.Equal(t, http.StatusOK, status)
	l := decode[api.Leaderboard](t, resp.Data)
	assert.Equal(t, "topic:music:hard", l.QuizRef)
	assert.Empty(t, l.Entries)

	status, resp = f.do(t, http.MethodGet, "/api/v1/leaderboard?topic=music&difficulty=extreme", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", resp.Error.Code)
}
