package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/trivia/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Prefix string
		TTL    time.Duration
	}

	Game struct {
		ScoringMode string
	}
}

func defaults() testConfig {
	var c testConfig
	c.HTTP.Port = 8080
	c.Redis.Addrs = []string{"localhost:6379"}
	c.Redis.Prefix = "trivia"
	c.Redis.TTL = time.Hour
	c.Game.ScoringMode = "speed_bonus"
	return c
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T) (file string, opts []config.Option)
		assert  func(t *testing.T, c testConfig, err error)
	}{
		"should keep defaults without file": {
			arrange: func(t *testing.T) (string, []config.Option) {
				return "", nil
			},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.Equal(t, defaults(), c)
			},
		},

		"should override defaults from file": {
			arrange: func(t *testing.T) (string, []config.Option) {
				return writeFile(t, "http:\n  port: 9090\nredis:\n  ttl: 30m\n  addrs: [\"redis:6379\"]\n"), nil
			},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.Equal(t, int32(9090), c.HTTP.Port)
				assert.Equal(t, 30*time.Minute, c.Redis.TTL)
				assert.Equal(t, []string{"redis:6379"}, c.Redis.Addrs)
				assert.Equal(t, "trivia", c.Redis.Prefix, "keys missing from the file keep their default")
			},
		},

		"should override file from environment": {
			arrange: func(t *testing.T) (string, []config.Option) {
				t.Setenv("GAME_SCORINGMODE", "elapsed_decay")
				return writeFile(t, "game:\n  scoringmode: speed_bonus\n"), nil
			},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.Equal(t, "elapsed_decay", c.Game.ScoringMode)
			},
		},

		"should only read prefixed environment": {
			arrange: func(t *testing.T) (string, []config.Option) {
				t.Setenv("HTTP_PORT", "1111")
				t.Setenv("TRIVIA_REDIS_PREFIX", "game")
				return "", []config.Option{config.WithEnvPrefix("TRIVIA")}
			},
			assert: func(t *testing.T, c testConfig, err error) {
				require.NoError(t, err)
				assert.Equal(t, int32(8080), c.HTTP.Port)
				assert.Equal(t, "game", c.Redis.Prefix)
			},
		},

		"should fail on missing file": {
			arrange: func(t *testing.T) (string, []config.Option) {
				return filepath.Join(t.TempDir(), "missing.yaml"), nil
			},
			assert: func(t *testing.T, c testConfig, err error) {
				assert.Error(t, err)
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			file, opts := tt.arrange(t)

			c := defaults()
			err := config.Load(file, &c, opts...)

			tt.assert(t, c, err)
		})
	}
}
