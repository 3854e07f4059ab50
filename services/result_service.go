package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkalens/speedbracket/models"
	"github.com/mkalens/speedbracket/repositories"
	"github.com/mkalens/speedbracket/results"
)

// TransactionRunner executes a function inside one database transaction.
// Implemented by db.TxRunner.
type TransactionRunner interface {
	RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

// SeriesNotifier pushes series state changes to live listeners after a
// successful commit. Implemented by brackets.Hub.
type SeriesNotifier interface {
	NotifySeriesUpdated(tournamentID int, payload interface{})
}

// ResultEntry is one team's raw result string as submitted.
type ResultEntry struct {
	TeamID int    `json:"team_id"`
	Result string `json:"result"`
}

// ResultValidationError reports one participant whose entry failed to
// parse. The whole submission is rejected when any entry fails.
type ResultValidationError struct {
	TeamID   int    `json:"team_id"`
	TeamName string `json:"team_name"`
	Reason   string `json:"reason"`
}

type ResultValidationErrors []ResultValidationError

func (e ResultValidationErrors) Error() string {
	names := make([]string, len(e))
	for i, v := range e {
		names[i] = fmt.Sprintf("%s: %s", v.TeamName, v.Reason)
	}
	return "invalid match results: " + strings.Join(names, "; ")
}

// SeriesUpdate describes how a series' resolved winner changed during one
// result submission or match deletion.
type SeriesUpdate struct {
	SeriesID        int  `json:"series_id"`
	TournamentID    int  `json:"tournament_id"`
	OldWinnerTeamID *int `json:"old_winner_team_id,omitempty"`
	NewWinnerTeamID *int `json:"new_winner_team_id,omitempty"`
}

type ResultService interface {
	// SubmitMatchResults parses, ranks and persists one result per match
	// participant, marks the match completed and re-aggregates the series
	// the match belongs to, propagating the outcome through the bracket.
	// Everything happens in one transaction.
	SubmitMatchResults(ctx context.Context, matchID int, entries []ResultEntry) error
	// DeleteMatch removes a match. Deleting a completed match revokes its
	// win, so the series is re-aggregated exactly as after a correction.
	DeleteMatch(ctx context.Context, matchID int) error
}

type resultService struct {
	tx              TransactionRunner
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	seriesRepo      repositories.SeriesRepository
	notifier        SeriesNotifier
	logger          *slog.Logger
}

func NewResultService(
	tx TransactionRunner,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	seriesRepo repositories.SeriesRepository,
	notifier SeriesNotifier,
	logger *slog.Logger,
) ResultService {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultService{
		tx:              tx,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		seriesRepo:      seriesRepo,
		notifier:        notifier,
		logger:          logger,
	}
}

func (s *resultService) SubmitMatchResults(ctx context.Context, matchID int, entries []ResultEntry) error {
	var update *SeriesUpdate

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetForUpdate(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return fmt.Errorf("failed to load match %d: %w", matchID, err)
		}

		participants, err := s.participantRepo.ListByMatchForUpdate(ctx, exec, matchID)
		if err != nil {
			return fmt.Errorf("failed to load participants of match %d: %w", matchID, err)
		}
		if len(participants) == 0 {
			return ErrMatchNoParticipants
		}

		parsed, verrs := parseEntries(participants, entries)
		if len(verrs) > 0 {
			return verrs
		}

		for _, ranked := range results.Rank(parsed) {
			position := ranked.Position
			raw := ranked.FinalTimeRaw
			row := &models.MatchParticipant{
				MatchID:      matchID,
				TeamID:       ranked.TeamID,
				FinalTimeRaw: &raw,
				FinalTime:    ranked.FinalTime,
				ResultStatus: ranked.Status,
				Position:     &position,
				IsWinner:     ranked.IsWinner,
			}
			if err := s.participantRepo.UpdateResult(ctx, exec, row); err != nil {
				return fmt.Errorf("failed to persist result for team %d: %w", ranked.TeamID, err)
			}
		}

		if err := s.matchRepo.SetCompleted(ctx, exec, matchID); err != nil {
			return fmt.Errorf("failed to complete match %d: %w", matchID, err)
		}

		if match.SeriesID != nil {
			update, err = updateSeriesResult(ctx, exec, s.seriesRepo, s.matchRepo, *match.SeriesID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("match results recorded", slog.Int("match_id", matchID))
	s.notify(update)
	return nil
}

func (s *resultService) DeleteMatch(ctx context.Context, matchID int) error {
	var update *SeriesUpdate

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.matchRepo.GetForUpdate(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return fmt.Errorf("failed to load match %d: %w", matchID, err)
		}

		if err := s.matchRepo.Delete(ctx, exec, matchID); err != nil {
			return fmt.Errorf("failed to delete match %d: %w", matchID, err)
		}

		// A scheduled match never contributed a win, nothing to revoke.
		if match.SeriesID != nil && match.IsCompleted {
			update, err = updateSeriesResult(ctx, exec, s.seriesRepo, s.matchRepo, *match.SeriesID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("match deleted", slog.Int("match_id", matchID))
	s.notify(update)
	return nil
}

func (s *resultService) notify(update *SeriesUpdate) {
	if update == nil || s.notifier == nil {
		return
	}
	s.notifier.NotifySeriesUpdated(update.TournamentID, update)
}

// parseEntries matches submitted entries to the participant rows and
// parses each raw string. Unknown teams and missing or malformed entries
// are collected per participant so the caller can report all of them at
// once.
func parseEntries(participants []*models.MatchParticipant, entries []ResultEntry) ([]results.ParticipantResult, ResultValidationErrors) {
	entryByTeam := make(map[int]string, len(entries))
	for _, entry := range entries {
		entryByTeam[entry.TeamID] = entry.Result
	}

	var verrs ResultValidationErrors
	knownTeams := make(map[int]bool, len(participants))
	parsed := make([]results.ParticipantResult, 0, len(participants))

	for _, p := range participants {
		knownTeams[p.TeamID] = true
		name := teamName(p)

		raw, ok := entryByTeam[p.TeamID]
		if !ok {
			verrs = append(verrs, ResultValidationError{TeamID: p.TeamID, TeamName: name, Reason: "missing result"})
			continue
		}

		finalTime, status, err := results.ParseFinalTime(raw)
		if err != nil {
			verrs = append(verrs, ResultValidationError{TeamID: p.TeamID, TeamName: name, Reason: err.Error()})
			continue
		}

		parsed = append(parsed, results.ParticipantResult{
			TeamID:       p.TeamID,
			FinalTimeRaw: strings.ToUpper(strings.TrimSpace(raw)),
			FinalTime:    finalTime,
			Status:       status,
		})
	}

	for _, entry := range entries {
		if !knownTeams[entry.TeamID] {
			verrs = append(verrs, ResultValidationError{
				TeamID: entry.TeamID,
				Reason: "team is not entered in this match",
			})
		}
	}

	return parsed, verrs
}

func teamName(p *models.MatchParticipant) string {
	if p.Team != nil {
		return p.Team.Name
	}
	return fmt.Sprintf("team %d", p.TeamID)
}

// updateSeriesResult recomputes the winner of a series from its completed
// matches and propagates the outcome one hop through the bracket. The
// snapshot read under FOR UPDATE doubles as the "old state" that retraction
// is computed from, so a corrected or deleted result pulls exactly the
// previously propagated team out of dependent slots before the new value
// is applied. Re-running with an unchanged winner mutates nothing.
func updateSeriesResult(
	ctx context.Context,
	exec repositories.SQLExecutor,
	seriesRepo repositories.SeriesRepository,
	matchRepo repositories.MatchRepository,
	seriesID int,
) (*SeriesUpdate, error) {
	series, err := seriesRepo.GetForUpdate(ctx, exec, seriesID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeriesNotFound) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to lock series %d: %w", seriesID, err)
	}

	oldState := results.SeriesState{
		Team1ID:      series.Team1ID,
		Team2ID:      series.Team2ID,
		WinnerTeamID: series.WinnerTeamID,
	}

	update := &SeriesUpdate{
		SeriesID:        seriesID,
		TournamentID:    series.TournamentID,
		OldWinnerTeamID: series.WinnerTeamID,
	}

	// A series without both slots cannot have a winner. Clear it, and pull
	// back anything the stale winner had propagated downstream.
	if series.Team1ID == nil || series.Team2ID == nil {
		if err := seriesRepo.UpdateWinner(ctx, exec, seriesID, nil); err != nil {
			return nil, fmt.Errorf("failed to clear winner of series %d: %w", seriesID, err)
		}
		if oldState.WinnerTeamID != nil {
			if err := retractPropagation(ctx, exec, seriesRepo, seriesID, oldState); err != nil {
				return nil, err
			}
		}
		return update, nil
	}

	wins, err := matchRepo.CountCompletedWins(ctx, exec, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to count wins of series %d: %w", seriesID, err)
	}

	var newWinner *int
	switch needed := series.WinsNeeded(); {
	case wins[*series.Team1ID] >= needed:
		newWinner = series.Team1ID
	case wins[*series.Team2ID] >= needed:
		newWinner = series.Team2ID
	}
	update.NewWinnerTeamID = newWinner

	if err := seriesRepo.UpdateWinner(ctx, exec, seriesID, newWinner); err != nil {
		return nil, fmt.Errorf("failed to update winner of series %d: %w", seriesID, err)
	}

	// Retraction first: when the resolved winner changed (including to
	// null), dependent slots still holding the previously propagated team
	// must be cleared before the new value lands.
	if !equalTeamRef(oldState.WinnerTeamID, newWinner) {
		if err := retractPropagation(ctx, exec, seriesRepo, seriesID, oldState); err != nil {
			return nil, err
		}
	}

	newState := results.SeriesState{
		Team1ID:      series.Team1ID,
		Team2ID:      series.Team2ID,
		WinnerTeamID: newWinner,
	}
	if err := propagate(ctx, exec, seriesRepo, seriesID, newState); err != nil {
		return nil, err
	}

	return update, nil
}

// retractPropagation clears, for both slots of every dependent series, the
// value the old state of the source had resolved to. The conditional
// update only touches slots holding exactly that team: manual assignments
// and values from other sources stay untouched.
func retractPropagation(
	ctx context.Context,
	exec repositories.SQLExecutor,
	seriesRepo repositories.SeriesRepository,
	sourceSeriesID int,
	oldState results.SeriesState,
) error {
	for slot := 1; slot <= 2; slot++ {
		dependents, err := seriesRepo.ListDependents(ctx, exec, sourceSeriesID, slot, false)
		if err != nil {
			return fmt.Errorf("failed to list slot %d dependents of series %d: %w", slot, sourceSeriesID, err)
		}
		for _, dep := range dependents {
			oldTeam := results.ResolveSource(oldState, dep.SourceType)
			if oldTeam == nil {
				continue
			}
			if err := seriesRepo.ClearSlotIfHolds(ctx, exec, dep.SeriesID, slot, *oldTeam); err != nil {
				return fmt.Errorf("failed to retract team %d from series %d: %w", *oldTeam, dep.SeriesID, err)
			}
		}
	}
	return nil
}

// propagate fills empty dependent slots from the new state of the source.
// Occupied slots are skipped entirely, so propagation is idempotent and
// never overwrites.
func propagate(
	ctx context.Context,
	exec repositories.SQLExecutor,
	seriesRepo repositories.SeriesRepository,
	sourceSeriesID int,
	newState results.SeriesState,
) error {
	for slot := 1; slot <= 2; slot++ {
		dependents, err := seriesRepo.ListDependents(ctx, exec, sourceSeriesID, slot, true)
		if err != nil {
			return fmt.Errorf("failed to list empty slot %d dependents of series %d: %w", slot, sourceSeriesID, err)
		}
		for _, dep := range dependents {
			team := results.ResolveSource(newState, dep.SourceType)
			if team == nil {
				continue
			}
			if err := seriesRepo.SetSlotIfEmpty(ctx, exec, dep.SeriesID, slot, *team); err != nil {
				return fmt.Errorf("failed to propagate team %d into series %d: %w", *team, dep.SeriesID, err)
			}
		}
	}
	return nil
}

func equalTeamRef(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
