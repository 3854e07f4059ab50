package results

import "github.com/mkalens/speedbracket/models"

// SeriesState is the (team1, team2, winner) triple propagation decisions
// are made from. Retraction evaluates the snapshot taken before a series
// update, propagation the state after it.
type SeriesState struct {
	Team1ID      *int
	Team2ID      *int
	WinnerTeamID *int
}

// ResolveSource returns the team a source series feeds into a dependent
// slot, or nil when it cannot be determined: no winner yet, an incomplete
// series for a loser source, or an unknown source type. Propagation never
// fabricates a team from incomplete information.
func ResolveSource(state SeriesState, sourceType models.SourceType) *int {
	if state.WinnerTeamID == nil {
		return nil
	}

	switch sourceType {
	case models.SourceWinner:
		return state.WinnerTeamID
	case models.SourceLoser:
		if state.Team1ID == nil || state.Team2ID == nil {
			return nil
		}
		if *state.WinnerTeamID == *state.Team1ID {
			return state.Team2ID
		}
		return state.Team1ID
	}

	return nil
}
