package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/trivia/internal/domain"
)

const maxConcurrent = 100

type Notification struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PublishLeaderboardUpdated sends the new leaderboard to the channel of its quiz reference and to
// the channel of every ranked user with a user id.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	data := toLeaderboard(&e.Leaderboard)

	channels := []string{a.channel("leaderboard", data.QuizRef)}
	seen := make(map[string]bool)
	for _, entry := range data.Entries {
		if entry.UserID == "" || seen[entry.UserID] {
			continue
		}
		seen[entry.UserID] = true
		channels = append(channels, a.channel("user", entry.UserID))
	}

	b, err := json.Marshal(Notification{Event: e.Name(), Data: data})
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %w", e.Name(), err)
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	for _, ch := range channels {
		eg.Go(func() error {
			if err := a.redis.Publish(ctx, ch, b).Err(); err != nil {
				return fmt.Errorf("pubsub: publish %s: %w", ch, err)
			}
			return nil
		})
	}

	return eg.Wait()
}

func (a *API) channel(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", a.prefix, kind, id)
}
