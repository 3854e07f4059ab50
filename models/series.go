package models

import "time"

// SourceType says which side of a source series feeds a slot.
type SourceType string

const (
	SourceWinner SourceType = "winner"
	SourceLoser  SourceType = "loser"
)

func (t SourceType) Valid() bool {
	return t == SourceWinner || t == SourceLoser
}

// Series is a best-of-N confrontation between two team slots. A slot is
// either assigned manually or declares a source series it is filled from
// once that series resolves. Unresolved slots stay NULL.
type Series struct {
	ID           int  `json:"id" db:"id"`
	TournamentID int  `json:"tournament_id" db:"tournament_id"`
	PhaseID      *int `json:"phase_id,omitempty" db:"phase_id"`

	Team1ID      *int `json:"team1_id,omitempty" db:"team1_id"`
	Team2ID      *int `json:"team2_id,omitempty" db:"team2_id"`
	BestOf       int  `json:"best_of" db:"best_of"`
	WinnerTeamID *int `json:"winner_team_id,omitempty" db:"winner_team_id"`

	SourceTeam1SeriesID *int        `json:"source_team1_series_id,omitempty" db:"source_team1_series_id"`
	SourceTeam1Type     *SourceType `json:"source_team1_type,omitempty" db:"source_team1_type"`
	SourceTeam2SeriesID *int        `json:"source_team2_series_id,omitempty" db:"source_team2_series_id"`
	SourceTeam2Type     *SourceType `json:"source_team2_type,omitempty" db:"source_team2_type"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	Team1  *Team `json:"team1,omitempty" db:"-"`
	Team2  *Team `json:"team2,omitempty" db:"-"`
	Winner *Team `json:"winner,omitempty" db:"-"`

	// Completed-match win counts, populated by list queries.
	Team1Wins int `json:"team1_wins" db:"-"`
	Team2Wins int `json:"team2_wins" db:"-"`
}

// WinsNeeded is the number of completed match wins that decides the series.
func (s *Series) WinsNeeded() int {
	return (s.BestOf + 1) / 2
}
