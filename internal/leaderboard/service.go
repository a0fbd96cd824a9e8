package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Writer appends leaderboard entries. During finalization it is the session transaction,
// so the entry lands atomically with the session's finished flag.
type Writer interface {
	// InsertLeaderboardEntry stores e and assigns e.ID. A second entry for the same session
	// must fail.
	InsertLeaderboardEntry(ctx context.Context, e *domain.LeaderboardEntry) error
}

type Store interface {
	Writer
	// TopN returns up to n entries of quizRef ordered by score desc, duration asc (nulls last), id asc.
	TopN(ctx context.Context, quizRef string, n int) ([]domain.LeaderboardEntry, error)
}

type Config struct {
	Store        Store
	EventBus     *event.Bus
	DefaultLimit int
	Now          func() time.Time
}

type Service struct {
	store        Store
	eb           *event.Bus
	defaultLimit int
	now          func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		store:        c.Store,
		eb:           c.EventBus,
		defaultLimit: c.DefaultLimit,
		now:          c.Now,
	}
	if s.defaultLimit <= 0 || s.defaultLimit > MaxLimit {
		s.defaultLimit = DefaultLimit
	}
	if s.now == nil {
		s.now = time.Now
	}

	if s.eb != nil {
		s.eb.Subscribe(domain.EventNameSessionFinished, func(ctx context.Context, e event.Event) error {
			return s.publishLeaderboard(ctx, e.(domain.EventSessionFinished).Entry.QuizRef)
		})
	}

	return s
}

type RecordFinishRequest struct {
	QuizRef    string
	SessionID  string
	PlayerName string
	UserID     string
	Score      int64
	// DurationMs is nil when the session did not track elapsed time.
	DurationMs *int64
}

// RecordFinish appends exactly one entry for a finished session through w.
// Pass nil to write through the leaderboard store itself.
func (s *Service) RecordFinish(ctx context.Context, w Writer, req RecordFinishRequest) (*domain.LeaderboardEntry, error) {
	if strings.TrimSpace(req.QuizRef) == "" {
		return nil, errors.InvalidArgument("quiz reference is required")
	}
	if req.Score < 0 {
		return nil, errors.InvalidArgument("score must not be negative: %d", req.Score)
	}
	if w == nil {
		w = s.store
	}

	e := &domain.LeaderboardEntry{
		SessionID:  req.SessionID,
		QuizRef:    req.QuizRef,
		PlayerName: req.PlayerName,
		UserID:     req.UserID,
		Score:      req.Score,
		DurationMs: req.DurationMs,
		CreateTime: s.now().UTC(),
	}

	if err := w.InsertLeaderboardEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("insert leaderboard entry: %w", err)
	}

	return e, nil
}

type TopNRequest struct {
	QuizRef string
	// N defaults to the configured limit when not positive, and is capped at MaxLimit.
	N int
}

// TopN returns the best entries of a quiz reference. An empty leaderboard is not an error.
func (s *Service) TopN(ctx context.Context, req TopNRequest) (*domain.Leaderboard, error) {
	if strings.TrimSpace(req.QuizRef) == "" {
		return nil, errors.InvalidArgument("quiz reference is required")
	}

	n := req.N
	if n <= 0 {
		n = s.defaultLimit
	}
	n = min(n, MaxLimit)

	entries, err := s.store.TopN(ctx, req.QuizRef, n)
	if err != nil {
		return nil, fmt.Errorf("top %d of %s: %w", n, req.QuizRef, err)
	}

	return &domain.Leaderboard{
		QuizRef: req.QuizRef,
		Entries: entries,
	}, nil
}

func (s *Service) publishLeaderboard(ctx context.Context, quizRef string) error {
	l, err := s.TopN(ctx, TopNRequest{QuizRef: quizRef})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: ref=%s: %w", quizRef, err)
	}

	slog.DebugContext(ctx, "leaderboard: publish", "ref", quizRef, "entries", len(l.Entries))
	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}
