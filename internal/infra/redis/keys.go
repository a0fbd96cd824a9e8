// Package redis implements the session store, the leaderboard store and a question cache on Redis.
//
// Key layout, all under a configurable prefix:
//
//	{prefix}:session:{id}                  session JSON
//	{prefix}:session:{id}:answers          list of answer log JSON, in question order
//	{prefix}:leaderboard:{ref}             ZSET, score = -final score, member = duration:id
//	{prefix}:leaderboard:{ref}:entries     hash member -> entry JSON
//	{prefix}:leaderboard:sessions          hash session id -> member, one entry per session
//	{prefix}:leaderboard:seq               entry id sequence
//	{prefix}:question:{id}                 cached question JSON
//	{prefix}:quiz:{id}:questions           cached question ids of a quiz
package redis

import (
	"fmt"
	"math"

	"github.com/victornm/trivia/internal/domain"
)

type keyspace string

func (k keyspace) session(id string) string { return fmt.Sprintf("%s:session:%s", k, id) }

func (k keyspace) answers(id string) string { return fmt.Sprintf("%s:session:%s:answers", k, id) }

func (k keyspace) leaderboard(ref string) string { return fmt.Sprintf("%s:leaderboard:%s", k, ref) }

func (k keyspace) leaderboardEntries(ref string) string {
	return fmt.Sprintf("%s:leaderboard:%s:entries", k, ref)
}

func (k keyspace) leaderboardSessions() string { return fmt.Sprintf("%s:leaderboard:sessions", k) }

func (k keyspace) leaderboardSeq() string { return fmt.Sprintf("%s:leaderboard:seq", k) }

func (k keyspace) question(id string) string { return fmt.Sprintf("%s:question:%s", k, id) }

func (k keyspace) quizQuestions(id string) string { return fmt.Sprintf("%s:quiz:%s:questions", k, id) }

// entryMember orders entries of equal score by duration asc, nulls last, then id asc.
// Both parts are zero padded so lexicographic member order matches numeric order.
func entryMember(e *domain.LeaderboardEntry) string {
	d := int64(math.MaxInt64)
	if e.DurationMs != nil {
		d = max(*e.DurationMs, 0)
	}
	return fmt.Sprintf("%020d:%020d", d, e.ID)
}
