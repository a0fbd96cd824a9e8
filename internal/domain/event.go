package domain

const (
	EventNameSessionCreated     = "session.created"
	EventNameAnswerSubmitted    = "answer.submitted"
	EventNameSessionFinished    = "session.finished"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventSessionCreated struct {
	Session Session
}

func (EventSessionCreated) Name() string { return EventNameSessionCreated }

type EventAnswerSubmitted struct {
	Answer AnswerLog
}

func (EventAnswerSubmitted) Name() string { return EventNameAnswerSubmitted }

type EventSessionFinished struct {
	Session Session
	Entry   LeaderboardEntry
}

func (EventSessionFinished) Name() string { return EventNameSessionFinished }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
