package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLevelAndPercent(t *testing.T) {
	cases := []struct {
		xp      int
		level   int
		percent int
	}{
		{0, 1, 0},
		{72, 1, 72},
		{99, 1, 99},
		{100, 2, 0},
		{250, 3, 50},
		{1099, 11, 99},
	}
	for _, tc := range cases {
		require.Equal(t, tc.level, Level(tc.xp), "level for %d", tc.xp)
		require.Equal(t, tc.percent, ProgressPercent(tc.xp), "percent for %d", tc.xp)
	}
}

func TestLevelInvariantsHoldAcrossRange(t *testing.T) {
	for xp := 0; xp <= 5000; xp += 7 {
		require.Equal(t, xp/100+1, Level(xp))
		p := ProgressPercent(xp)
		require.GreaterOrEqual(t, p, 0)
		require.Less(t, p, 100)
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := map[int]Tier{
		100: TierTop,
		85:  TierTop,
		84:  TierMid,
		72:  TierMid,
		65:  TierMid,
		64:  TierPass,
		51:  TierPass,
		50:  TierFail,
		0:   TierFail,
		-3:  TierFail,
	}
	for score, want := range cases {
		require.Equal(t, want, TierFor(score), "score %d", score)
	}
}

func TestTierIsMonotonic(t *testing.T) {
	prev := TierFor(-10)
	for score := -9; score <= 120; score++ {
		next := TierFor(score)
		require.GreaterOrEqual(t, next.Rank(), prev.Rank(), "score %d", score)
		prev = next
	}
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "11:00", FormatDuration(660))
	require.Equal(t, "00:09", FormatDuration(9))
	require.Equal(t, "09:05", FormatDuration(545))
	require.Equal(t, "75:30", FormatDuration(4530))
	require.Equal(t, "00:00", FormatDuration(-5))
}

func TestAgeOnCountsOnlyCompletedYears(t *testing.T) {
	dob := time.Date(2004, time.March, 15, 0, 0, 0, 0, time.UTC)

	require.Equal(t, 22, AgeOn(dob, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 21, AgeOn(dob, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 22, AgeOn(dob, time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 0, AgeOn(dob, time.Date(2003, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDeriveWithoutSubmissionUsesBaseline(t *testing.T) {
	snap := Derive(0, nil, "")
	require.Equal(t, 1, snap.Level)
	require.Equal(t, 0, snap.ProgressPercent)
	require.Equal(t, TierFail, snap.Tier)
	require.Equal(t, "fail", snap.Label)
	require.Nil(t, snap.LatestScore)
}

func TestDerivePrefersExternalGrade(t *testing.T) {
	score := 72
	snap := Derive(72, &score, "")
	require.Equal(t, TierMid, snap.Tier)
	require.Equal(t, "mid", snap.Label)

	graded := Derive(172, &score, "Silver")
	require.Equal(t, TierMid, graded.Tier)
	require.Equal(t, "Silver", graded.Label)
	require.Equal(t, 2, graded.Level)
	require.Equal(t, 72, graded.ProgressPercent)
}

func TestParseDuration(t *testing.T) {
	secs, err := ParseDuration("11:00")
	require.NoError(t, err)
	require.Equal(t, 660, secs)

	secs, err = ParseDuration("125:07")
	require.NoError(t, err)
	require.Equal(t, 7507, secs)
	require.Equal(t, "125:07", FormatDuration(secs))

	for _, bad := range []string{"", "11", "11:60", "-1:30", "11:00extra", "ab:cd"} {
		_, err := ParseDuration(bad)
		require.Error(t, err, bad)
	}
}
