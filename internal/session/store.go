package session

import (
	"context"

	"github.com/victornm/trivia/internal/domain"
)

// Store persists sessions and their answer logs.
type Store interface {
	CreateSession(ctx context.Context, ss *domain.Session) error
	// GetSession returns a NotFound error when the session does not exist.
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	// ListAnswerLogs returns the answer logs of a session ordered by question index.
	ListAnswerLogs(ctx context.Context, id string) ([]domain.AnswerLog, error)
	// Update runs fn in a transaction scoped to one session. Everything written through tx is
	// committed when fn returns nil and discarded otherwise. A concurrent modification of the
	// session makes Update fail with a Conflict error.
	Update(ctx context.Context, id string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the view of a session inside Store.Update.
type Tx interface {
	// Session is the session as loaded when the transaction began. It may be modified and
	// handed back to SaveSession.
	Session() *domain.Session
	// SaveSession writes ss if the stored session still has the loaded current index and
	// is not finished.
	SaveSession(ctx context.Context, ss *domain.Session) error
	// AppendAnswerLog fails if the session already has a log for l.QuestionIndex.
	AppendAnswerLog(ctx context.Context, l *domain.AnswerLog) error
	// SumElapsedForSession sums ElapsedMs over the session's logs, including those appended in this transaction.
	SumElapsedForSession(ctx context.Context) (int64, error)
	InsertLeaderboardEntry(ctx context.Context, e *domain.LeaderboardEntry) error
}
