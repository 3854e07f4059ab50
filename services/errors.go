package services

import "errors"

// Shared sentinel errors, mapped to HTTP statuses in the handlers package.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrValidationFailed       = errors.New("validation failed")
	ErrPasswordTooShort       = errors.New("password is too short")
	ErrTeamNameRequired       = errors.New("team name is required")
	ErrTournamentNameRequired = errors.New("tournament name is required")
	ErrPhaseNameRequired      = errors.New("phase name is required")
	ErrPhaseTypeInvalid       = errors.New("phase type must be groups or bracket")
	ErrBestOfInvalid          = errors.New("best_of must be an odd number of at least 1")
	ErrSlotConflict           = errors.New("a slot declares either a team or a source, not both")
	ErrSameTeamBothSlots      = errors.New("a series cannot oppose a team to itself")
	ErrSourceTypeInvalid      = errors.New("source type must be winner or loser")
	ErrSourceSelfReference    = errors.New("a series cannot declare itself as a source")
	ErrSourcePhaseMismatch    = errors.New("source series must belong to the same tournament and phase")
	ErrSeriesLocked           = errors.New("series already has matches, slots and sources are locked")
	ErrSeriesHasMatches       = errors.New("cannot delete a series that has matches")
	ErrMatchNoParticipants    = errors.New("match has no participants")
	ErrMatchNeedsTeams        = errors.New("a match requires at least two teams")

	// Conflicts
	ErrUserEmailConflict      = errors.New("email address is already in use")
	ErrTeamNameConflict       = errors.New("team name is already in use")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrParticipantConflict    = errors.New("team is already entered in this match")

	// Authentication / authorization
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	// Entity-specific not-found errors, more context than the generic one
	ErrUserNotFound       = errors.New("user not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrPhaseNotFound      = errors.New("phase not found")
	ErrSeriesNotFound     = errors.New("series not found")
	ErrMatchNotFound      = errors.New("match not found")
)
