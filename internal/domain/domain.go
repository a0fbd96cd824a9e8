package domain

import (
	"time"
)

const DefaultTimeLimitSec = 20

// ScoringMode selects the scoring policy of a session. It is fixed at session creation.
type ScoringMode string

const (
	ScoringModeSpeedBonus   ScoringMode = "speed_bonus"
	ScoringModeElapsedDecay ScoringMode = "elapsed_decay"
)

// Session represents one player's run through an ordered question list.
type Session struct {
	SessionID  string `json:"session_id"`
	QuizRef    string `json:"quiz_ref"`
	PlayerName string `json:"player_name"`
	UserID     string `json:"user_id,omitempty"`

	// QuestionIDs is captured at creation and never changes afterwards.
	QuestionIDs []string `json:"question_ids"`

	CurrentIndex    int         `json:"current_index"`
	Score           int64       `json:"score"`
	QuestionArmedAt *time.Time  `json:"question_armed_at,omitempty"`
	TimeLimitSec    int         `json:"time_limit_sec"`
	ScoringMode     ScoringMode `json:"scoring_mode"`
	Finished        bool        `json:"finished"`
	CreateTime      time.Time   `json:"create_time"`
}

func (s *Session) Total() int { return len(s.QuestionIDs) }

func (s *Session) Armed() bool { return s.QuestionArmedAt != nil }

// CurrentQuestionID returns the id of the question at the current index.
// It must not be called on a finished session.
func (s *Session) CurrentQuestionID() string {
	return s.QuestionIDs[s.CurrentIndex]
}

// Arm starts the timer of the current question. It reports false if the timer was already armed.
func (s *Session) Arm(now time.Time) bool {
	if s.QuestionArmedAt != nil {
		return false
	}
	at := now.UTC()
	s.QuestionArmedAt = &at
	return true
}

// SecondsRemaining is max(0, limit - (now - armedAt)) floored to whole seconds.
// An unarmed question reports the full time limit.
func (s *Session) SecondsRemaining(now time.Time) int {
	limit := time.Duration(s.TimeLimitSec) * time.Second
	if s.QuestionArmedAt == nil {
		return s.TimeLimitSec
	}
	rem := limit - now.Sub(*s.QuestionArmedAt)
	if rem <= 0 {
		return 0
	}
	return int(rem / time.Second)
}

// Elapsed returns the time since the current question was armed, zero if unarmed.
func (s *Session) Elapsed(now time.Time) time.Duration {
	if s.QuestionArmedAt == nil {
		return 0
	}
	if d := now.Sub(*s.QuestionArmedAt); d > 0 {
		return d
	}
	return 0
}

// Clone returns a deep copy so callers can stage changes without touching the original.
func (s *Session) Clone() *Session {
	c := *s
	c.QuestionIDs = append([]string(nil), s.QuestionIDs...)
	if s.QuestionArmedAt != nil {
		at := *s.QuestionArmedAt
		c.QuestionArmedAt = &at
	}
	return &c
}

// AnswerLog is the immutable record of one submitted answer.
type AnswerLog struct {
	SessionID     string    `json:"session_id"`
	QuestionIndex int       `json:"question_index"`
	QuestionID    string    `json:"question_id"`
	Selected      string    `json:"selected"`
	Correct       bool      `json:"correct"`
	TimedOut      bool      `json:"timed_out"`
	ElapsedMs     int64     `json:"elapsed_ms"`
	Awarded       int64     `json:"awarded"`
	CreateTime    time.Time `json:"create_time"`
}

// LeaderboardEntry is the immutable ranked outcome of a finished session.
type LeaderboardEntry struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	QuizRef    string    `json:"quiz_ref"`
	PlayerName string    `json:"player_name"`
	UserID     string    `json:"user_id,omitempty"`
	Score      int64     `json:"score"`
	DurationMs *int64    `json:"duration_ms,omitempty"`
	CreateTime time.Time `json:"create_time"`
}

// Leaderboard represents the top entries of a quiz reference.
// Entries are sorted by score desc, duration asc (nulls last), id asc.
type Leaderboard struct {
	QuizRef string
	Entries []LeaderboardEntry
}
