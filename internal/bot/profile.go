// Package bot decides moves for computer players. Every decision is a pure
// function of a player's view of the round and a caller-supplied RNG, so bots
// go through exactly the same rule checks as people do.
package bot

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Difficulty selects one of the fixed play profiles.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists every difficulty from weakest to strongest.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty accepts a difficulty name in any case. An empty name means Medium.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Medium, nil
	case Easy, Medium, Hard:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Profile holds the tunables of a difficulty. ErrorProbability is the chance
// of withholding an available meld and of discarding a random card instead of
// the weakest one. Aggressiveness raises the bar a discard must clear before
// it is taken. CardMemory is reported but does not change decisions.
type Profile struct {
	ErrorProbability float64       `json:"errorProbability"`
	Aggressiveness   float64       `json:"aggressiveness"`
	CardMemory       float64       `json:"cardMemory"`
	ThinkMin         time.Duration `json:"thinkMin"`
	ThinkMax         time.Duration `json:"thinkMax"`
}

var profiles = map[Difficulty]Profile{
	Easy:   {ErrorProbability: 0.30, Aggressiveness: 0.20, CardMemory: 0.1, ThinkMin: 1 * time.Second, ThinkMax: 3 * time.Second},
	Medium: {ErrorProbability: 0.15, Aggressiveness: 0.50, CardMemory: 0.6, ThinkMin: 2 * time.Second, ThinkMax: 5 * time.Second},
	Hard:   {ErrorProbability: 0.05, Aggressiveness: 0.80, CardMemory: 0.9, ThinkMin: 3 * time.Second, ThinkMax: 8 * time.Second},
}

// Profile returns the tunables for d. Unknown difficulties play as Medium.
func (d Difficulty) Profile() Profile {
	if p, ok := profiles[d]; ok {
		return p
	}
	return profiles[Medium]
}

// DrawThreshold is the utility the discard top must exceed to be drawn.
func (p Profile) DrawThreshold() float64 {
	return 0.3 + p.Aggressiveness*0.4
}

// ThinkTime picks a pause in [ThinkMin, ThinkMax].
func (p Profile) ThinkTime(rng *rand.Rand) time.Duration {
	span := p.ThinkMax - p.ThinkMin
	if span <= 0 {
		return p.ThinkMin
	}
	return p.ThinkMin + time.Duration(rng.Int64N(int64(span)+1))
}

var names = map[Difficulty][]string{
	Easy:   {"Rookie", "Apprentice", "Beginner", "Student", "Novice", "Junior"},
	Medium: {"Strategist", "Calculator", "Tactician", "Analyst", "Competitor", "Veteran"},
	Hard:   {"Master", "Expert", "Champion", "Legend", "Invincible", "Supreme"},
}

// Name picks a display name that hints at the bot's strength.
func Name(rng *rand.Rand, d Difficulty) string {
	pool, ok := names[d]
	if !ok {
		pool = names[Medium]
	}
	return "Bot " + pool[rng.IntN(len(pool))]
}
