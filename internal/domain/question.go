package domain

import (
	"errors"
	"fmt"
	"strings"
)

// OptionCount is the number of answer options every question carries.
const OptionCount = 4

// OptionLabels are the canonical labels of the options, by position.
var OptionLabels = [OptionCount]string{"A", "B", "C", "D"}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// ParseDifficulty parses a difficulty case-insensitively. Empty and "any" yield an empty Difficulty,
// meaning no filter.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return "", nil
	case "easy":
		return DifficultyEasy, nil
	case "medium":
		return DifficultyMedium, nil
	case "hard":
		return DifficultyHard, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// OptionStyle tells how a question expects its answer to be submitted.
type OptionStyle string

const (
	// OptionStyleText questions are answered with the option text.
	OptionStyleText OptionStyle = "text"
	// OptionStyleLabeled questions are answered with the option label A-D.
	OptionStyleLabeled OptionStyle = "labeled"
)

// Question is the engine's single representation of a multiple choice question.
type Question struct {
	QuestionID   string      `json:"question_id"`
	Prompt       string      `json:"prompt"`
	Options      []string    `json:"options"`
	CorrectIndex int         `json:"correct_index"`
	Style        OptionStyle `json:"style"`
	Difficulty   Difficulty  `json:"difficulty"`
	Topic        string      `json:"topic,omitempty"`
}

func (q *Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("question %s: empty prompt", q.QuestionID)
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("question %s: want %d options, got %d", q.QuestionID, OptionCount, len(q.Options))
	}
	for i, o := range q.Options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("question %s: option %s is empty", q.QuestionID, OptionLabels[i])
		}
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= OptionCount {
		return fmt.Errorf("question %s: correct index %d out of range", q.QuestionID, q.CorrectIndex)
	}
	return nil
}

// ErrInvalidLabel is returned by Match when a labeled question receives something other than A-D.
var ErrInvalidLabel = errors.New("selected must be one of A/B/C/D")

// Match reports whether selected is the correct answer. Labeled questions compare the label,
// case-insensitively. Text questions compare the trimmed text, case-insensitively. An empty
// selection is never correct.
func (q *Question) Match(selected string) (bool, error) {
	selected = strings.TrimSpace(selected)
	if selected == "" {
		return false, nil
	}

	if q.Style == OptionStyleLabeled {
		label := strings.ToUpper(selected)
		for _, l := range OptionLabels {
			if l == label {
				return label == OptionLabels[q.CorrectIndex], nil
			}
		}
		return false, ErrInvalidLabel
	}

	return strings.EqualFold(selected, strings.TrimSpace(q.Options[q.CorrectIndex])), nil
}

// Option is one answer choice as shown to a player.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// QuestionView is what a player sees of the current question.
type QuestionView struct {
	QuestionID       string      `json:"question_id"`
	Prompt           string      `json:"prompt"`
	Options          []Option    `json:"options"`
	Style            OptionStyle `json:"style"`
	Difficulty       Difficulty  `json:"difficulty"`
	Topic            string      `json:"topic,omitempty"`
	Index            int         `json:"index"`
	Total            int         `json:"total"`
	TimeLimitSec     int         `json:"time_limit_sec"`
	SecondsRemaining int         `json:"seconds_remaining"`
	Armed            bool        `json:"armed"`
}

// Selector picks the questions of a new session: a quiz by id, or a topic/difficulty filter.
type Selector struct {
	QuizID     string
	Topic      string
	Difficulty Difficulty
	Limit      int
}

// Ref identifies the game a session belongs to; leaderboards are grouped by it.
func (s Selector) Ref() string {
	if s.QuizID != "" {
		return "quiz:" + s.QuizID
	}
	topic := strings.ToLower(strings.TrimSpace(s.Topic))
	if topic == "" {
		topic = "any"
	}
	difficulty := strings.ToLower(string(s.Difficulty))
	if difficulty == "" {
		difficulty = "any"
	}
	return "topic:" + topic + ":" + difficulty
}
