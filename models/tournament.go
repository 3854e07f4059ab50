package models

import "time"

type PhaseType string

const (
	PhaseTypeGroups  PhaseType = "groups"
	PhaseTypeBracket PhaseType = "bracket"
)

type Tournament struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Game      *string   `json:"game,omitempty" db:"game"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Phases []Phase `json:"phases,omitempty" db:"-"`
}

// Phase groups the series of one stage of a tournament (a group stage,
// a playoff bracket). Position orders phases within the tournament.
type Phase struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Position     int       `json:"position" db:"position"`
	Type         PhaseType `json:"type" db:"type"`
}
