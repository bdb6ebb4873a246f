// Package progression derives levels, tiers and display values from stored experience and scores.
// Everything here is pure; values are recomputed on every read and never persisted.
package progression

import (
	"fmt"
	"time"
)

// PointsPerLevel is the width of one experience band.
const PointsPerLevel = 100

// Tier is the qualitative classification of a single test score.
type Tier string

const (
	TierTop  Tier = "top"
	TierMid  Tier = "mid"
	TierPass Tier = "pass"
	TierFail Tier = "fail"
)

// Band maps an inclusive lower score bound to a tier.
type Band struct {
	Min  int
	Tier Tier
}

// Bands is the single tier policy shared by every read path, ordered from the highest bound down.
var Bands = []Band{
	{Min: 85, Tier: TierTop},
	{Min: 65, Tier: TierMid},
	{Min: 51, Tier: TierPass},
}

// Level returns the 1-based level for an experience balance.
func Level(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return experience/PointsPerLevel + 1
}

// ProgressPercent returns how far into the current level the balance is, truncated to an integer.
func ProgressPercent(experience int) int {
	if experience < 0 {
		return 0
	}
	into := experience % PointsPerLevel
	return into * 100 / PointsPerLevel
}

// TierFor classifies a score against Bands.
func TierFor(score int) Tier {
	for _, band := range Bands {
		if score >= band.Min {
			return band.Tier
		}
	}
	return TierFail
}

// Rank orders tiers so callers can compare them; higher is better.
func (t Tier) Rank() int {
	switch t {
	case TierTop:
		return 3
	case TierMid:
		return 2
	case TierPass:
		return 1
	default:
		return 0
	}
}

// FormatDuration renders whole seconds as MM:SS. Minutes are not wrapped into hours.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// AgeOn returns the number of full years elapsed between dob and day.
// A birthday that has not yet occurred in day's year does not count.
func AgeOn(dob, day time.Time) int {
	years := day.Year() - dob.Year()
	if day.Month() < dob.Month() || (day.Month() == dob.Month() && day.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// Snapshot is the derived view of a user's progression.
type Snapshot struct {
	Experience      int
	Level           int
	ProgressPercent int
	LatestScore     *int
	Tier            Tier
	// Label is the external grade when the scoring authority supplied one, otherwise the local tier.
	Label string
}

// Derive builds a Snapshot from an experience balance and the latest submission, if any.
func Derive(experience int, latestScore *int, grade string) Snapshot {
	snap := Snapshot{
		Experience:      experience,
		Level:           Level(experience),
		ProgressPercent: ProgressPercent(experience),
		Tier:            TierFail,
	}
	if latestScore != nil {
		score := *latestScore
		snap.LatestScore = &score
		snap.Tier = TierFor(score)
	}
	snap.Label = string(snap.Tier)
	if latestScore != nil && grade != "" {
		snap.Label = grade
	}
	return snap
}

// ParseDuration reads an MM:SS string back into whole seconds.
func ParseDuration(value string) (int, error) {
	var minutes, seconds int
	var rest string
	n, _ := fmt.Sscanf(value, "%d:%d%s", &minutes, &seconds, &rest)
	if n != 2 || minutes < 0 || seconds < 0 || seconds > 59 {
		return 0, fmt.Errorf("invalid duration %q: want MM:SS", value)
	}
	return minutes*60 + seconds, nil
}
