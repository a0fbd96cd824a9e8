package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/event"
	"github.com/victornm/trivia/internal/leaderboard"
	"github.com/victornm/trivia/internal/question"
	"github.com/victornm/trivia/internal/score"
	"github.com/victornm/trivia/internal/telemetry"
)

type Config struct {
	Store       Store
	Bank        question.Bank
	Leaderboard *leaderboard.Service
	EventBus    *event.Bus

	// DefaultTimeLimitSec applies when a session is created without a time limit.
	DefaultTimeLimitSec int
	// DefaultScoringMode applies when a session is created without a scoring mode.
	DefaultScoringMode domain.ScoringMode
	// TopicLimit is the number of questions drawn for a topic selection without a limit.
	TopicLimit int

	Now     func() time.Time
	Shuffle func(n int, swap func(i, j int))
}

type Service struct {
	store Store
	bank  question.Bank
	lb    *leaderboard.Service
	eb    *event.Bus

	timeLimitSec int
	scoringMode  domain.ScoringMode
	topicLimit   int

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
	locks   stripedMutex
}

func NewService(c Config) *Service {
	s := &Service{
		store:        c.Store,
		bank:         c.Bank,
		lb:           c.Leaderboard,
		eb:           c.EventBus,
		timeLimitSec: c.DefaultTimeLimitSec,
		scoringMode:  c.DefaultScoringMode,
		topicLimit:   c.TopicLimit,
		now:          c.Now,
		shuffle:      c.Shuffle,
	}

	if s.timeLimitSec <= 0 {
		s.timeLimitSec = domain.DefaultTimeLimitSec
	}
	if s.scoringMode == "" {
		s.scoringMode = domain.ScoringModeSpeedBonus
	}
	if s.topicLimit <= 0 {
		s.topicLimit = question.DefaultTopicLimit
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.shuffle == nil {
		s.shuffle = rand.Shuffle
	}

	return s
}

// CreateSessionRequest represents a request to start a new game.
// Questions come from QuizID when set, otherwise from the Topic and Difficulty filter.
type CreateSessionRequest struct {
	QuizID     string
	Topic      string
	Difficulty string
	// Limit caps a topic selection. Ignored for quizzes.
	Limit int

	PlayerName string
	UserID     string

	// TimeLimitSec is the per question time limit. Zero uses the service default.
	TimeLimitSec int
	// ScoringMode is speed_bonus or elapsed_decay. Empty uses the service default.
	ScoringMode string
}

type CreateSessionResponse struct {
	SessionID    string
	QuizRef      string
	Count        int
	TimeLimitSec int
	ScoringMode  domain.ScoringMode
}

// CreateSession captures the question list of a new session and stores it unarmed at index 0.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (*CreateSessionResponse, error) {
	player := strings.TrimSpace(req.PlayerName)
	if player == "" {
		return nil, errors.InvalidArgument("player_name is required")
	}
	if req.TimeLimitSec < 0 {
		return nil, errors.InvalidArgument("time_limit_sec must not be negative: %d", req.TimeLimitSec)
	}
	if req.Limit < 0 {
		return nil, errors.InvalidArgument("limit must not be negative: %d", req.Limit)
	}

	difficulty, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%v", err))
	}

	mode, err := score.ParseMode(req.ScoringMode, s.scoringMode)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%v", err))
	}

	sel := domain.Selector{
		QuizID:     strings.TrimSpace(req.QuizID),
		Topic:      strings.TrimSpace(req.Topic),
		Difficulty: difficulty,
		Limit:      req.Limit,
	}
	if sel.QuizID == "" && sel.Limit == 0 {
		sel.Limit = s.topicLimit
	}

	ids, err := s.bank.FetchQuestionIDs(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("fetch question ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, errors.NotFound("no questions for %s", sel.Ref())
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	timeLimit := req.TimeLimitSec
	if timeLimit == 0 {
		timeLimit = s.timeLimitSec
	}

	ss := &domain.Session{
		SessionID:    id.String(),
		QuizRef:      sel.Ref(),
		PlayerName:   player,
		UserID:       strings.TrimSpace(req.UserID),
		QuestionIDs:  ids,
		TimeLimitSec: timeLimit,
		ScoringMode:  mode,
		CreateTime:   s.now().UTC(),
	}

	if err := s.store.CreateSession(ctx, ss); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	telemetry.SessionsCreated.WithLabelValues(string(mode)).Inc()
	s.publish(ctx, domain.EventSessionCreated{Session: *ss.Clone()})

	return &CreateSessionResponse{
		SessionID:    ss.SessionID,
		QuizRef:      ss.QuizRef,
		Count:        ss.Total(),
		TimeLimitSec: ss.TimeLimitSec,
		ScoringMode:  ss.ScoringMode,
	}, nil
}

type GetCurrentQuestionRequest struct {
	SessionID string
}

// GetCurrentQuestion returns the question at the current index, arming its timer on the first call.
// Options are shuffled on every call; their labels stay canonical.
func (s *Service) GetCurrentQuestion(ctx context.Context, req GetCurrentQuestionRequest) (*domain.QuestionView, error) {
	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	var view *domain.QuestionView
	err := s.store.Update(ctx, req.SessionID, func(ctx context.Context, tx Tx) error {
		ss := tx.Session()
		if ss.Finished {
			return errors.Conflict("session %s is finished", ss.SessionID)
		}
		if err := checkIndex(ss); err != nil {
			return err
		}

		q, err := s.bank.FetchQuestion(ctx, ss.CurrentQuestionID())
		if err != nil {
			return fmt.Errorf("fetch question %s: %w", ss.CurrentQuestionID(), err)
		}

		now := s.now()
		if ss.Arm(now) {
			if err := tx.SaveSession(ctx, ss); err != nil {
				return fmt.Errorf("arm question: %w", err)
			}
		}

		view = s.view(ss, q, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

type SubmitAnswerRequest struct {
	SessionID string
	Selected  string
	// ClientElapsedMs replaces the server measured answer time when set.
	ClientElapsedMs *int64
	// QuestionID, when set, must be the current question. It rejects late duplicates.
	QuestionID string
}

type SubmitAnswerResponse struct {
	QuestionID string
	Correct    bool
	TimedOut   bool
	Awarded    int64
	// Score is the score so far, the final score once Finished.
	Score    int64
	Finished bool
	// Next is the following question, unarmed. Nil once Finished.
	Next *domain.QuestionView
}

// SubmitAnswer scores the answer to the armed question and advances the session. Answering the last
// question finishes the session and records its leaderboard entry in the same transaction.
func (s *Service) SubmitAnswer(ctx context.Context, req SubmitAnswerRequest) (*SubmitAnswerResponse, error) {
	if req.ClientElapsedMs != nil && *req.ClientElapsedMs < 0 {
		return nil, errors.InvalidArgument("elapsed_ms must not be negative: %d", *req.ClientElapsedMs)
	}

	unlock := s.locks.Lock(req.SessionID)
	defer unlock()

	var (
		resp     *SubmitAnswerResponse
		mode     domain.ScoringMode
		answer   domain.AnswerLog
		finished *domain.Session
		entry    *domain.LeaderboardEntry
	)

	err := s.store.Update(ctx, req.SessionID, func(ctx context.Context, tx Tx) error {
		ss := tx.Session()
		if ss.Finished {
			return errors.Conflict("session %s is finished", ss.SessionID)
		}
		if err := checkIndex(ss); err != nil {
			return err
		}
		if !ss.Armed() {
			return errors.Conflict("question %d of session %s is not armed, fetch it first", ss.CurrentIndex, ss.SessionID)
		}

		qid := ss.CurrentQuestionID()
		if req.QuestionID != "" && req.QuestionID != qid {
			return errors.Conflict("question %s is not the current question of session %s", req.QuestionID, ss.SessionID)
		}

		q, err := s.bank.FetchQuestion(ctx, qid)
		if err != nil {
			return fmt.Errorf("fetch question %s: %w", qid, err)
		}

		now := s.now()
		remaining := ss.SecondsRemaining(now)
		timedOut := remaining <= 0

		correct := false
		if !timedOut {
			correct, err = q.Match(req.Selected)
			if err != nil {
				return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%v", err), errors.WithCause(err))
			}
		}

		elapsed := ss.Elapsed(now).Milliseconds()
		if req.ClientElapsedMs != nil {
			elapsed = *req.ClientElapsedMs
		}

		mode = ss.ScoringMode
		policy, err := score.PolicyFor(mode)
		if err != nil {
			return errors.Internal(err)
		}

		awarded := policy.Score(score.Input{
			Correct:      correct,
			RemainingSec: remaining,
			TimeLimitSec: ss.TimeLimitSec,
			ElapsedMs:    elapsed,
			Difficulty:   q.Difficulty,
		})

		answer = domain.AnswerLog{
			SessionID:     ss.SessionID,
			QuestionIndex: ss.CurrentIndex,
			QuestionID:    qid,
			Selected:      strings.TrimSpace(req.Selected),
			Correct:       correct,
			TimedOut:      timedOut,
			ElapsedMs:     elapsed,
			Awarded:       awarded,
			CreateTime:    now.UTC(),
		}
		if err := tx.AppendAnswerLog(ctx, &answer); err != nil {
			return fmt.Errorf("append answer log: %w", err)
		}

		ss.Score += awarded
		ss.CurrentIndex++
		ss.QuestionArmedAt = nil

		resp = &SubmitAnswerResponse{
			QuestionID: qid,
			Correct:    correct,
			TimedOut:   timedOut,
			Awarded:    awarded,
			Score:      ss.Score,
		}

		if ss.CurrentIndex >= ss.Total() {
			ss.Finished = true

			total, err := tx.SumElapsedForSession(ctx)
			if err != nil {
				return fmt.Errorf("sum elapsed: %w", err)
			}

			entry, err = s.lb.RecordFinish(ctx, tx, leaderboard.RecordFinishRequest{
				QuizRef:    ss.QuizRef,
				SessionID:  ss.SessionID,
				PlayerName: ss.PlayerName,
				UserID:     ss.UserID,
				Score:      ss.Score,
				DurationMs: &total,
			})
			if err != nil {
				return err
			}

			resp.Finished = true
			finished = ss
		} else {
			next, err := s.bank.FetchQuestion(ctx, ss.CurrentQuestionID())
			if err != nil {
				return fmt.Errorf("fetch question %s: %w", ss.CurrentQuestionID(), err)
			}
			resp.Next = s.view(ss, next, now)
		}

		if err := tx.SaveSession(ctx, ss); err != nil {
			return fmt.Errorf("save session: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.observe(ctx, mode, answer, finished, entry)

	return resp, nil
}

func (s *Service) observe(ctx context.Context, mode domain.ScoringMode, answer domain.AnswerLog, finished *domain.Session, entry *domain.LeaderboardEntry) {
	result := telemetry.ResultIncorrect
	switch {
	case answer.TimedOut:
		result = telemetry.ResultTimeout
	case answer.Correct:
		result = telemetry.ResultCorrect
	}
	telemetry.AnswersSubmitted.WithLabelValues(result).Inc()
	if answer.Correct {
		telemetry.PointsAwarded.WithLabelValues(string(mode)).Observe(float64(answer.Awarded))
	}

	s.publish(ctx, domain.EventAnswerSubmitted{Answer: answer})

	if finished == nil {
		return
	}

	telemetry.SessionsFinished.Inc()

	slog.InfoContext(ctx, "session: finished",
		"session_id", finished.SessionID,
		"quiz_ref", finished.QuizRef,
		"score", finished.Score,
	)

	s.publish(ctx, domain.EventSessionFinished{
		Session: *finished.Clone(),
		Entry:   *entry,
	})
}

type GetSessionRequest struct {
	SessionID string
}

type GetSessionResponse struct {
	Session *domain.Session
	// SecondsRemaining is the time left on the armed question, the full limit when unarmed.
	SecondsRemaining int
}

// GetSession is a read only status query. It never arms a question.
func (s *Service) GetSession(ctx context.Context, req GetSessionRequest) (*GetSessionResponse, error) {
	ss, err := s.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	resp := &GetSessionResponse{Session: ss}
	if !ss.Finished {
		resp.SecondsRemaining = ss.SecondsRemaining(s.now())
	}

	return resp, nil
}

type ListAnswersRequest struct {
	SessionID string
}

// ListAnswers returns the answer history of a session in question order.
func (s *Service) ListAnswers(ctx context.Context, req ListAnswersRequest) ([]domain.AnswerLog, error) {
	if _, err := s.store.GetSession(ctx, req.SessionID); err != nil {
		return nil, err
	}

	logs, err := s.store.ListAnswerLogs(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("list answer logs: %w", err)
	}

	return logs, nil
}

func (s *Service) view(ss *domain.Session, q *domain.Question, now time.Time) *domain.QuestionView {
	opts := make([]domain.Option, len(q.Options))
	for i, o := range q.Options {
		opts[i] = domain.Option{Label: domain.OptionLabels[i], Text: o}
	}
	s.shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })

	return &domain.QuestionView{
		QuestionID:       q.QuestionID,
		Prompt:           q.Prompt,
		Options:          opts,
		Style:            q.Style,
		Difficulty:       q.Difficulty,
		Topic:            q.Topic,
		Index:            ss.CurrentIndex,
		Total:            ss.Total(),
		TimeLimitSec:     ss.TimeLimitSec,
		SecondsRemaining: ss.SecondsRemaining(now),
		Armed:            ss.Armed(),
	}
}

func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.eb != nil {
		s.eb.Publish(ctx, e)
	}
}

var errIndexOutOfRange = stderrors.New("current index out of range")

// checkIndex guards the unfinished session invariant index < total.
func checkIndex(ss *domain.Session) error {
	if ss.CurrentIndex < 0 || ss.CurrentIndex >= ss.Total() {
		return errors.Internal(fmt.Errorf("session %s: %w: %d of %d", ss.SessionID, errIndexOutOfRange, ss.CurrentIndex, ss.Total()))
	}
	return nil
}
