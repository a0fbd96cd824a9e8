// Package score implements the scoring policies a session can be played with.
package score

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/victornm/trivia/internal/domain"
)

// Input is everything a policy may look at when scoring one answer.
type Input struct {
	Correct      bool
	RemainingSec int
	TimeLimitSec int
	ElapsedMs    int64
	Difficulty   domain.Difficulty
}

// Policy maps an answer to awarded points. Implementations never return a negative value.
type Policy interface {
	Score(in Input) int64
}

// DefaultBasePoints are the difficulty tiers of the speed bonus policy.
var DefaultBasePoints = map[domain.Difficulty]int64{
	domain.DifficultyEasy:   50,
	domain.DifficultyMedium: 100,
	domain.DifficultyHard:   200,
}

var (
	one         = decimal.NewFromInt(1)
	maxBonus    = decimal.NewFromFloat(1.5)
	bonusWeight = decimal.NewFromFloat(0.5)
)

// SpeedBonus awards the difficulty base points scaled by 1 + 0.5 * remaining/limit,
// clamped to [1, 1.5] and rounded half away from zero.
type SpeedBonus struct {
	Base map[domain.Difficulty]int64
}

func (p SpeedBonus) Score(in Input) int64 {
	if !in.Correct {
		return 0
	}

	base := p.base(in.Difficulty)

	factor := one
	if in.TimeLimitSec > 0 {
		factor = bonusWeight.
			Mul(decimal.NewFromInt(int64(in.RemainingSec))).
			Div(decimal.NewFromInt(int64(in.TimeLimitSec))).
			Add(one)

		if factor.LessThan(one) {
			factor = one
		}
		if factor.GreaterThan(maxBonus) {
			factor = maxBonus
		}
	}

	awarded := decimal.NewFromInt(base).Mul(factor).Round(0).IntPart()
	if awarded < 0 {
		return 0
	}
	return awarded
}

func (p SpeedBonus) base(d domain.Difficulty) int64 {
	table := p.Base
	if table == nil {
		table = DefaultBasePoints
	}
	if b, ok := table[d]; ok {
		return b
	}
	return table[domain.DifficultyMedium]
}

const (
	decayCeiling = 1000
	decayFloor   = 100
)

// ElapsedDecay awards max(100, 1000 - elapsed_ms/2) regardless of difficulty.
type ElapsedDecay struct{}

func (ElapsedDecay) Score(in Input) int64 {
	if !in.Correct {
		return 0
	}

	elapsed := in.ElapsedMs
	if elapsed < 0 {
		elapsed = 0
	}
	return max(decayFloor, decayCeiling-elapsed/2)
}

// ParseMode validates a scoring mode name. Empty yields the fallback.
func ParseMode(s string, fallback domain.ScoringMode) (domain.ScoringMode, error) {
	switch m := domain.ScoringMode(s); m {
	case "":
		return fallback, nil
	case domain.ScoringModeSpeedBonus, domain.ScoringModeElapsedDecay:
		return m, nil
	}
	return "", fmt.Errorf("unknown scoring mode %q", s)
}

// PolicyFor returns the policy of a scoring mode.
func PolicyFor(m domain.ScoringMode) (Policy, error) {
	switch m {
	case domain.ScoringModeSpeedBonus:
		return SpeedBonus{}, nil
	case domain.ScoringModeElapsedDecay:
		return ElapsedDecay{}, nil
	}
	return nil, fmt.Errorf("unknown scoring mode %q", m)
}
