package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
	"github.com/victornm/trivia/internal/leaderboard"
	"github.com/victornm/trivia/internal/session"
)

type Config struct {
	Router      gin.IRouter
	EventBus    *event.Bus
	Session     *session.Service
	Leaderboard *leaderboard.Service

	// Redis receives leaderboard notifications. Nil disables publishing.
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ss *session.Service
	ls *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		ss:     c.Session,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	// HTTP APIs
	v1 := c.Router.Group("/api/v1")
	v1.POST("/sessions", a.CreateSession)
	v1.GET("/sessions/:id", a.GetSession)
	v1.GET("/sessions/:id/question", a.GetCurrentQuestion)
	v1.POST("/sessions/:id/answer", a.SubmitAnswer)
	v1.GET("/sessions/:id/answers", a.ListAnswers)
	v1.GET("/leaderboard", a.GetLeaderboard)

	// Register event handlers
	if c.Redis != nil && c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

type (
	envelope struct {
		OK    bool      `json:"ok"`
		Data  any       `json:"data,omitempty"`
		Error *apiError `json:"error,omitempty"`
	}

	apiError struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, envelope{OK: true, Data: data})
}

func fail(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.JSON(e.HTTPStatusCode(), envelope{
		Error: &apiError{Code: e.Kind(), Message: e.Message},
	})
}

type CreateSessionRequest struct {
	QuizID       string `json:"quiz_id"`
	Topic        string `json:"topic"`
	Difficulty   string `json:"difficulty"`
	Limit        int    `json:"limit"`
	PlayerName   string `json:"player_name"`
	UserID       string `json:"user_id"`
	TimeLimitSec int    `json:"time_limit_sec"`
	ScoringMode  string `json:"scoring_mode"`
}

type CreateSessionResponse struct {
	SessionID    string `json:"session_id"`
	QuizRef      string `json:"quiz_ref"`
	Count        int    `json:"count"`
	TimeLimitSec int    `json:"time_limit_sec"`
	ScoringMode  string `json:"scoring_mode"`
}

func (a *API) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.InvalidArgument("invalid request body: %v", err))
		return
	}

	resp, err := a.ss.CreateSession(c.Request.Context(), session.CreateSessionRequest{
		QuizID:       req.QuizID,
		Topic:        req.Topic,
		Difficulty:   req.Difficulty,
		Limit:        req.Limit,
		PlayerName:   req.PlayerName,
		UserID:       req.UserID,
		TimeLimitSec: req.TimeLimitSec,
		ScoringMode:  req.ScoringMode,
	})
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusCreated, CreateSessionResponse{
		SessionID:    resp.SessionID,
		QuizRef:      resp.QuizRef,
		Count:        resp.Count,
		TimeLimitSec: resp.TimeLimitSec,
		ScoringMode:  string(resp.ScoringMode),
	})
}

type SessionStatus struct {
	SessionID        string    `json:"session_id"`
	QuizRef          string    `json:"quiz_ref"`
	PlayerName       string    `json:"player_name"`
	UserID           string    `json:"user_id,omitempty"`
	CurrentIndex     int       `json:"current_index"`
	Total            int       `json:"total"`
	Score            int64     `json:"score"`
	Armed            bool      `json:"armed"`
	SecondsRemaining int       `json:"seconds_remaining"`
	TimeLimitSec     int       `json:"time_limit_sec"`
	ScoringMode      string    `json:"scoring_mode"`
	Finished         bool      `json:"finished"`
	CreateTime       time.Time `json:"create_time"`
}

func (a *API) GetSession(c *gin.Context) {
	resp, err := a.ss.GetSession(c.Request.Context(), session.GetSessionRequest{SessionID: c.Param("id")})
	if err != nil {
		fail(c, err)
		return
	}

	ss := resp.Session
	ok(c, http.StatusOK, SessionStatus{
		SessionID:        ss.SessionID,
		QuizRef:          ss.QuizRef,
		PlayerName:       ss.PlayerName,
		UserID:           ss.UserID,
		CurrentIndex:     ss.CurrentIndex,
		Total:            ss.Total(),
		Score:            ss.Score,
		Armed:            ss.Armed(),
		SecondsRemaining: resp.SecondsRemaining,
		TimeLimitSec:     ss.TimeLimitSec,
		ScoringMode:      string(ss.ScoringMode),
		Finished:         ss.Finished,
		CreateTime:       ss.CreateTime,
	})
}

func (a *API) GetCurrentQuestion(c *gin.Context) {
	view, err := a.ss.GetCurrentQuestion(c.Request.Context(), session.GetCurrentQuestionRequest{SessionID: c.Param("id")})
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, view)
}

type SubmitAnswerRequest struct {
	Selected   string `json:"selected"`
	ElapsedMs  *int64 `json:"elapsed_ms"`
	QuestionID string `json:"question_id"`
}

type SubmitAnswerResponse struct {
	QuestionID string               `json:"question_id"`
	Correct    bool                 `json:"correct"`
	TimedOut   bool                 `json:"timed_out"`
	Awarded    int64                `json:"awarded"`
	Score      int64                `json:"score"`
	Finished   bool                 `json:"finished"`
	Next       *domain.QuestionView `json:"next,omitempty"`
}

func (a *API) SubmitAnswer(c *gin.Context) {
	var req SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.InvalidArgument("invalid request body: %v", err))
		return
	}

	resp, err := a.ss.SubmitAnswer(c.Request.Context(), session.SubmitAnswerRequest{
		SessionID:       c.Param("id"),
		Selected:        req.Selected,
		ClientElapsedMs: req.ElapsedMs,
		QuestionID:      req.QuestionID,
	})
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, SubmitAnswerResponse{
		QuestionID: resp.QuestionID,
		Correct:    resp.Correct,
		TimedOut:   resp.TimedOut,
		Awarded:    resp.Awarded,
		Score:      resp.Score,
		Finished:   resp.Finished,
		Next:       resp.Next,
	})
}

func (a *API) ListAnswers(c *gin.Context) {
	logs, err := a.ss.ListAnswers(c.Request.Context(), session.ListAnswersRequest{SessionID: c.Param("id")})
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, logs)
}

type LeaderboardEntry struct {
	Rank       int    `json:"rank"`
	PlayerName string `json:"player_name"`
	UserID     string `json:"user_id,omitempty"`
	Score      int64  `json:"score"`
	DurationMs *int64 `json:"duration_ms"`
	SessionID  string `json:"session_id"`
}

type Leaderboard struct {
	QuizRef string             `json:"quiz_ref"`
	Entries []LeaderboardEntry `json:"entries"`
}

// GetLeaderboard reads the top entries of ?ref=, or of the quiz named by ?quiz_id=, or of a
// ?topic=&difficulty= selection.
func (a *API) GetLeaderboard(c *gin.Context) {
	ref := strings.TrimSpace(c.Query("ref"))
	if ref == "" {
		sel := domain.Selector{QuizID: strings.TrimSpace(c.Query("quiz_id"))}
		if sel.QuizID == "" && c.Query("topic") != "" {
			difficulty, err := domain.ParseDifficulty(c.Query("difficulty"))
			if err != nil {
				fail(c, errors.InvalidArgument("%v", err))
				return
			}
			sel.Topic, sel.Difficulty = c.Query("topic"), difficulty
		}
		if sel.QuizID != "" || sel.Topic != "" {
			ref = sel.Ref()
		}
	}

	var n int
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			fail(c, errors.InvalidArgument("limit must be a positive integer: %q", s))
			return
		}
		n = v
	}

	l, err := a.ls.TopN(c.Request.Context(), leaderboard.TopNRequest{QuizRef: ref, N: n})
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, toLeaderboard(l))
}

func toLeaderboard(l *domain.Leaderboard) Leaderboard {
	out := Leaderboard{
		QuizRef: l.QuizRef,
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for i, e := range l.Entries {
		out.Entries = append(out.Entries, LeaderboardEntry{
			Rank:       i + 1,
			PlayerName: e.PlayerName,
			UserID:     e.UserID,
			Score:      e.Score,
			DurationMs: e.DurationMs,
			SessionID:  e.SessionID,
		})
	}

	return out
}

// RequestLogger logs one line per request.
func RequestLogger(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		l.InfoContext(c.Request.Context(), "http: request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
