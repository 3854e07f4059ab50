package models

import "time"

// ResultStatus is a terminal non-finish outcome for one participant.
type ResultStatus string

const (
	StatusDNF ResultStatus = "DNF"
	StatusDQ  ResultStatus = "DQ"
)

// Match is one game inside a series, or a standalone tie-break when
// SeriesID is NULL. IsCompleted flips once, when a ranking is persisted.
type Match struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	SeriesID     *int       `json:"series_id,omitempty" db:"series_id"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty" db:"scheduled_at"`
	IsCompleted  bool       `json:"is_completed" db:"is_completed"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`

	Participants []MatchParticipant `json:"participants,omitempty" db:"-"`
}

type MatchParticipant struct {
	MatchID int `json:"match_id" db:"match_id"`
	TeamID  int `json:"team_id" db:"team_id"`

	FinalTimeRaw *string       `json:"final_time_raw,omitempty" db:"final_time_raw"`
	FinalTime    *int          `json:"final_time,omitempty" db:"final_time"`
	ResultStatus *ResultStatus `json:"result_status,omitempty" db:"result_status"`
	Position     *int          `json:"position,omitempty" db:"position"`
	IsWinner     bool          `json:"is_winner" db:"is_winner"`

	Team *Team `json:"team,omitempty" db:"-"`
}
