package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/trivia/internal/domain"
	"github.com/victornm/trivia/internal/errors"
	"github.com/victornm/trivia/internal/question"
)

// QuestionBank reads questions and quizzes from the questions, quizzes and quiz_questions tables.
type QuestionBank struct {
	db *pgxpool.Pool
}

var _ question.Bank = (*QuestionBank)(nil)

func NewQuestionBank(db *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{db: db}
}

func (b *QuestionBank) FetchQuestionIDs(ctx context.Context, sel domain.Selector) ([]string, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if sel.QuizID != "" {
		const stmt = `SELECT question_id FROM quiz_questions WHERE quiz_id = $1 ORDER BY position;`
		rows, err = b.db.Query(ctx, stmt, sel.QuizID)
	} else {
		const stmt = `
SELECT question_id
FROM questions
WHERE ($1::text = '' OR lower(topic) = lower($1::text)) AND ($2::text = '' OR difficulty = $2::text)
ORDER BY random()
LIMIT $3;`

		limit := sel.Limit
		if limit <= 0 {
			limit = question.DefaultTopicLimit
		}
		rows, err = b.db.Query(ctx, stmt, strings.TrimSpace(sel.Topic), string(sel.Difficulty), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query question ids: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect question ids: %w", err)
	}

	if len(ids) == 0 {
		if sel.QuizID != "" {
			return nil, errors.NotFound("quiz not found: %s", sel.QuizID)
		}
		return nil, errors.NotFound("no questions match topic=%q difficulty=%q", sel.Topic, sel.Difficulty)
	}

	return ids, nil
}

func (b *QuestionBank) FetchQuestion(ctx context.Context, id string) (*domain.Question, error) {
	const stmt = `
SELECT question_id, prompt, options, correct_index, labeled, difficulty, topic
FROM questions
WHERE question_id = $1;`

	var (
		q          domain.Question
		labeled    bool
		difficulty string
	)
	err := b.db.QueryRow(ctx, stmt, id).Scan(&q.QuestionID, &q.Prompt, &q.Options, &q.CorrectIndex, &labeled, &difficulty, &q.Topic)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("question not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select question: %w", err)
	}

	q.Style = domain.OptionStyleText
	if labeled {
		q.Style = domain.OptionStyleLabeled
	}
	q.Difficulty = domain.Difficulty(difficulty)

	if err := q.Validate(); err != nil {
		return nil, errors.Internal(err)
	}

	return &q, nil
}

// Seed stores quizzes and their questions, replacing existing rows with the same ids.
func Seed(ctx context.Context, db *pgxpool.Pool, quizzes map[string][]domain.Question) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = stderrors.Join(err, tx.Rollback(ctx))
		}
	}()

	const (
		upsertQuizStmt = `
INSERT INTO quizzes (quiz_id, title) VALUES ($1, $1)
ON CONFLICT (quiz_id) DO NOTHING;`

		upsertQuestionStmt = `
INSERT INTO questions (question_id, prompt, options, correct_index, labeled, difficulty, topic)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (question_id) DO UPDATE
SET prompt = EXCLUDED.prompt, options = EXCLUDED.options, correct_index = EXCLUDED.correct_index,
	labeled = EXCLUDED.labeled, difficulty = EXCLUDED.difficulty, topic = EXCLUDED.topic;`

		clearQuizStmt       = `DELETE FROM quiz_questions WHERE quiz_id = $1;`
		insQuizQuestionStmt = `INSERT INTO quiz_questions (quiz_id, position, question_id) VALUES ($1, $2, $3);`
	)

	for quizID, questions := range quizzes {
		batch := &pgx.Batch{}
		batch.Queue(upsertQuizStmt, quizID)
		batch.Queue(clearQuizStmt, quizID)

		for i, q := range questions {
			if err = q.Validate(); err != nil {
				return err
			}

			batch.Queue(upsertQuestionStmt, q.QuestionID, q.Prompt, q.Options, q.CorrectIndex,
				q.Style == domain.OptionStyleLabeled, string(q.Difficulty), q.Topic)
			batch.Queue(insQuizQuestionStmt, quizID, i, q.QuestionID)
		}

		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("seed quiz %s: %w", quizID, err)
		}
	}

	return tx.Commit(ctx)
}
