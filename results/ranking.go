package results

import (
	"sort"

	"github.com/mkalens/speedbracket/models"
)

// ParticipantResult is one team's parsed entry for a match, in submission
// order.
type ParticipantResult struct {
	TeamID       int
	FinalTimeRaw string
	FinalTime    *int
	Status       *models.ResultStatus
}

// RankedResult carries the computed position and winner flag for one
// participant.
type RankedResult struct {
	ParticipantResult
	Position int
	IsWinner bool
}

// Rank orders the participants of one match: timed finishes ascending,
// then DNF/DQ entries in their submission order. Positions are 1-based.
// The participant at position 1 is the match winner unless two or more
// participants share the minimal time, in which case nobody wins and the
// series has to be settled by another match.
func Rank(participants []ParticipantResult) []RankedResult {
	timed := make([]ParticipantResult, 0, len(participants))
	others := make([]ParticipantResult, 0)
	for _, p := range participants {
		if p.FinalTime != nil {
			timed = append(timed, p)
		} else {
			others = append(others, p)
		}
	}

	sort.SliceStable(timed, func(i, j int) bool {
		return *timed[i].FinalTime < *timed[j].FinalTime
	})

	ordered := append(timed, others...)

	tieForFirst := false
	if len(timed) > 1 && *timed[0].FinalTime == *timed[1].FinalTime {
		tieForFirst = true
	}

	ranked := make([]RankedResult, len(ordered))
	for i, p := range ordered {
		ranked[i] = RankedResult{
			ParticipantResult: p,
			Position:          i + 1,
			IsWinner:          i == 0 && !tieForFirst,
		}
	}
	return ranked
}
