// Package question is the boundary between question storage and the game engine. Whatever shape
// the questions are stored in, they leave this package as domain.Question.
package question

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
)

// DefaultTopicLimit is how many questions a topic selection draws when no limit is given.
const DefaultTopicLimit = 8

// Bank provides the questions sessions are played with.
type Bank interface {
	// FetchQuestionIDs returns the ordered question ids of a selection. The order is fixed once
	// returned; a selection that matches nothing is a NotFound error.
	FetchQuestionIDs(ctx context.Context, sel domain.Selector) ([]string, error)
	// FetchQuestion returns one question by id.
	FetchQuestion(ctx context.Context, id string) (*domain.Question, error)
}

// FromAnswers builds a free text question whose first answer is the correct one.
func FromAnswers(id, prompt string, answers []string, difficulty, topic string) (domain.Question, error) {
	d, err := domain.ParseDifficulty(difficulty)
	if err != nil {
		return domain.Question{}, err
	}
	if d == "" {
		d = domain.DifficultyMedium
	}

	q := domain.Question{
		QuestionID:   id,
		Prompt:       strings.TrimSpace(prompt),
		Options:      trimAll(answers),
		CorrectIndex: 0,
		Style:        domain.OptionStyleText,
		Difficulty:   d,
		Topic:        strings.TrimSpace(topic),
	}
	return q, q.Validate()
}

// FromLabeled builds a question answered by label, from four choices A-D and the correct label.
func FromLabeled(id, prompt string, choices [domain.OptionCount]string, correct, difficulty, topic string) (domain.Question, error) {
	d, err := domain.ParseDifficulty(difficulty)
	if err != nil {
		return domain.Question{}, err
	}
	if d == "" {
		d = domain.DifficultyMedium
	}

	idx := -1
	for i, l := range domain.OptionLabels {
		if strings.EqualFold(strings.TrimSpace(correct), l) {
			idx = i
		}
	}
	if idx < 0 {
		return domain.Question{}, fmt.Errorf("question %s: correct label %q is not one of A-D", id, correct)
	}

	q := domain.Question{
		QuestionID:   id,
		Prompt:       strings.TrimSpace(prompt),
		Options:      trimAll(choices[:]),
		CorrectIndex: idx,
		Style:        domain.OptionStyleLabeled,
		Difficulty:   d,
		Topic:        strings.TrimSpace(topic),
	}
	return q, q.Validate()
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}

// StaticBank is a Bank backed by in-memory quizzes, useful for tests and running without a database.
type StaticBank struct {
	mu        sync.Mutex
	rnd       *rand.Rand
	quizzes   map[string][]string
	questions map[string]domain.Question
	order     []string
}

// NewStaticBank indexes the given quizzes. Every question must be valid and ids must be unique.
func NewStaticBank(quizzes map[string][]domain.Question) (*StaticBank, error) {
	b := &StaticBank{
		rnd:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		quizzes:   make(map[string][]string, len(quizzes)),
		questions: make(map[string]domain.Question),
	}

	quizIDs := make([]string, 0, len(quizzes))
	for id := range quizzes {
		quizIDs = append(quizIDs, id)
	}
	sort.Strings(quizIDs)

	for _, quizID := range quizIDs {
		for _, q := range quizzes[quizID] {
			if err := q.Validate(); err != nil {
				return nil, err
			}
			if _, ok := b.questions[q.QuestionID]; ok {
				return nil, fmt.Errorf("duplicate question id %s", q.QuestionID)
			}
			b.questions[q.QuestionID] = q
			b.order = append(b.order, q.QuestionID)
			b.quizzes[quizID] = append(b.quizzes[quizID], q.QuestionID)
		}
	}

	return b, nil
}

func (b *StaticBank) FetchQuestionIDs(_ context.Context, sel domain.Selector) ([]string, error) {
	if sel.QuizID != "" {
		ids, ok := b.quizzes[sel.QuizID]
		if !ok || len(ids) == 0 {
			return nil, errors.NotFound("quiz not found: %s", sel.QuizID)
		}
		return append([]string(nil), ids...), nil
	}

	var ids []string
	for _, id := range b.order {
		q := b.questions[id]
		if sel.Topic != "" && !strings.EqualFold(q.Topic, strings.TrimSpace(sel.Topic)) {
			continue
		}
		if sel.Difficulty != "" && q.Difficulty != sel.Difficulty {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.NotFound("no questions match topic=%q difficulty=%q", sel.Topic, sel.Difficulty)
	}

	b.mu.Lock()
	b.rnd.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	b.mu.Unlock()

	limit := sel.Limit
	if limit <= 0 {
		limit = DefaultTopicLimit
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (b *StaticBank) FetchQuestion(_ context.Context, id string) (*domain.Question, error) {
	q, ok := b.questions[id]
	if !ok {
		return nil, errors.NotFound("question not found: %s", id)
	}
	q.Options = append([]string(nil), q.Options...)
	return &q, nil
}
