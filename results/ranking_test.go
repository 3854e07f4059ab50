package results

import (
	"testing"

	"github.com/mkalens/speedbracket/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func timed(teamID, seconds int) ParticipantResult {
	return ParticipantResult{TeamID: teamID, FinalTime: &seconds, FinalTimeRaw: FormatFinalTime(seconds)}
}

func nonFinisher(teamID int, status models.ResultStatus) ParticipantResult {
	return ParticipantResult{TeamID: teamID, Status: &status, FinalTimeRaw: string(status)}
}

func TestRankOrdersTimedThenOthers(t *testing.T) {
	ranked := Rank([]ParticipantResult{
		nonFinisher(4, models.StatusDQ),
		timed(1, 720),
		nonFinisher(5, models.StatusDNF),
		timed(2, 600),
		timed(3, 660),
	})

	require.Len(t, ranked, 5)

	order := make([]int, len(ranked))
	for i, r := range ranked {
		order[i] = r.TeamID
		assert.Equal(t, i+1, r.Position)
	}
	// Timed ascending, then DQ/DNF in submission order.
	assert.Equal(t, []int{2, 3, 1, 4, 5}, order)

	assert.True(t, ranked[0].IsWinner)
	for _, r := range ranked[1:] {
		assert.False(t, r.IsWinner, "team %d", r.TeamID)
	}
}

func TestRankTieForFirstHasNoWinner(t *testing.T) {
	ranked := Rank([]ParticipantResult{
		timed(1, 600),
		timed(2, 600),
		timed(3, 900),
	})

	for _, r := range ranked {
		assert.False(t, r.IsWinner, "team %d must not win on a tie for first", r.TeamID)
	}
}

func TestRankTieBelowFirstStillHasWinner(t *testing.T) {
	ranked := Rank([]ParticipantResult{
		timed(1, 600),
		timed(2, 660),
		timed(3, 660),
	})

	assert.True(t, ranked[0].IsWinner)
	assert.Equal(t, 1, ranked[0].TeamID)
}

func TestRankStableForEqualTimes(t *testing.T) {
	ranked := Rank([]ParticipantResult{
		timed(7, 600),
		timed(8, 600),
	})

	assert.Equal(t, 7, ranked[0].TeamID)
	assert.Equal(t, 8, ranked[1].TeamID)
	assert.False(t, ranked[0].IsWinner)
	assert.False(t, ranked[1].IsWinner)
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}
