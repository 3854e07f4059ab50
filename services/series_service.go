package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkalens/speedbracket/models"
	"github.com/mkalens/speedbracket/repositories"
)

type CreateSeriesInput struct {
	TournamentID        int                `json:"tournament_id"`
	PhaseID             *int               `json:"phase_id"`
	Team1ID             *int               `json:"team1_id"`
	Team2ID             *int               `json:"team2_id"`
	BestOf              int                `json:"best_of"`
	ScheduledAt         *time.Time         `json:"scheduled_at"`
	SourceTeam1SeriesID *int               `json:"source_team1_series_id"`
	SourceTeam1Type     *models.SourceType `json:"source_team1_type"`
	SourceTeam2SeriesID *int               `json:"source_team2_series_id"`
	SourceTeam2Type     *models.SourceType `json:"source_team2_type"`
}

type UpdateSeriesSlotsInput struct {
	Team1ID *int `json:"team1_id"`
	Team2ID *int `json:"team2_id"`
}

type SeriesService interface {
	Create(ctx context.Context, input CreateSeriesInput) (*models.Series, error)
	Get(ctx context.Context, id int) (*models.Series, error)
	ListByTournament(ctx context.Context, tournamentID int, phaseID *int) ([]*models.Series, error)
	// UpdateSlots assigns teams manually. Refused once the series has
	// matches, matching how brackets are administered upstream.
	UpdateSlots(ctx context.Context, id int, input UpdateSeriesSlotsInput) (*models.Series, error)
	UpdateBestOf(ctx context.Context, id int, bestOf int) (*models.Series, error)
	Delete(ctx context.Context, id int) error
}

type seriesService struct {
	seriesRepo repositories.SeriesRepository
	matchRepo  repositories.MatchRepository
	teamRepo   repositories.TeamRepository
}

func NewSeriesService(
	seriesRepo repositories.SeriesRepository,
	matchRepo repositories.MatchRepository,
	teamRepo repositories.TeamRepository,
) SeriesService {
	return &seriesService{
		seriesRepo: seriesRepo,
		matchRepo:  matchRepo,
		teamRepo:   teamRepo,
	}
}

func (s *seriesService) Create(ctx context.Context, input CreateSeriesInput) (*models.Series, error) {
	if input.BestOf < 1 || input.BestOf%2 == 0 {
		return nil, ErrBestOfInvalid
	}
	if input.Team1ID != nil && input.Team2ID != nil && *input.Team1ID == *input.Team2ID {
		return nil, ErrSameTeamBothSlots
	}
	if err := validateSlotSource(input.Team1ID, input.SourceTeam1SeriesID, input.SourceTeam1Type); err != nil {
		return nil, err
	}
	if err := validateSlotSource(input.Team2ID, input.SourceTeam2SeriesID, input.SourceTeam2Type); err != nil {
		return nil, err
	}

	for _, sourceID := range []*int{input.SourceTeam1SeriesID, input.SourceTeam2SeriesID} {
		if sourceID == nil {
			continue
		}
		if err := s.validateSource(ctx, *sourceID, input.TournamentID, input.PhaseID); err != nil {
			return nil, err
		}
	}

	series := &models.Series{
		TournamentID:        input.TournamentID,
		PhaseID:             input.PhaseID,
		Team1ID:             input.Team1ID,
		Team2ID:             input.Team2ID,
		BestOf:              input.BestOf,
		ScheduledAt:         input.ScheduledAt,
		SourceTeam1SeriesID: input.SourceTeam1SeriesID,
		SourceTeam1Type:     input.SourceTeam1Type,
		SourceTeam2SeriesID: input.SourceTeam2SeriesID,
		SourceTeam2Type:     input.SourceTeam2Type,
	}

	if err := s.seriesRepo.Create(ctx, series); err != nil {
		if errors.Is(err, repositories.ErrSeriesRefInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return nil, fmt.Errorf("failed to create series: %w", err)
	}
	return series, nil
}

// validateSource checks that a declared source exists and belongs to the
// same tournament and phase as the new series, the shape a bracket edge is
// allowed to have.
func (s *seriesService) validateSource(ctx context.Context, sourceID, tournamentID int, phaseID *int) error {
	source, err := s.seriesRepo.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, repositories.ErrSeriesNotFound) {
			return fmt.Errorf("%w: source series %d", ErrSeriesNotFound, sourceID)
		}
		return fmt.Errorf("failed to load source series %d: %w", sourceID, err)
	}
	if source.TournamentID != tournamentID || !equalTeamRef(source.PhaseID, phaseID) {
		return ErrSourcePhaseMismatch
	}
	return nil
}

func validateSlotSource(teamID, sourceSeriesID *int, sourceType *models.SourceType) error {
	if teamID != nil && sourceSeriesID != nil {
		return ErrSlotConflict
	}
	if sourceSeriesID != nil && (sourceType == nil || !sourceType.Valid()) {
		return ErrSourceTypeInvalid
	}
	return nil
}

func (s *seriesService) Get(ctx context.Context, id int) (*models.Series, error) {
	series, err := s.seriesRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSeriesNotFound) {
			return nil, ErrSeriesNotFound
		}
		return nil, fmt.Errorf("failed to load series %d: %w", id, err)
	}
	s.populateTeams(ctx, series)
	return series, nil
}

func (s *seriesService) ListByTournament(ctx context.Context, tournamentID int, phaseID *int) ([]*models.Series, error) {
	list, err := s.seriesRepo.ListByTournament(ctx, tournamentID, phaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series of tournament %d: %w", tournamentID, err)
	}

	teams, err := s.teamRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	byID := make(map[int]*models.Team, len(teams))
	for _, team := range teams {
		byID[team.ID] = team
	}
	for _, series := range list {
		if series.Team1ID != nil {
			series.Team1 = byID[*series.Team1ID]
		}
		if series.Team2ID != nil {
			series.Team2 = byID[*series.Team2ID]
		}
		if series.WinnerTeamID != nil {
			series.Winner = byID[*series.WinnerTeamID]
		}
	}
	return list, nil
}

func (s *seriesService) populateTeams(ctx context.Context, series *models.Series) {
	for _, ref := range []struct {
		id   *int
		into **models.Team
	}{
		{series.Team1ID, &series.Team1},
		{series.Team2ID, &series.Team2},
		{series.WinnerTeamID, &series.Winner},
	} {
		if ref.id == nil {
			continue
		}
		team, err := s.teamRepo.GetByID(ctx, *ref.id)
		if err != nil {
			continue // display data only, not worth failing the request
		}
		*ref.into = team
	}
}

func (s *seriesService) UpdateSlots(ctx context.Context, id int, input UpdateSeriesSlotsInput) (*models.Series, error) {
	if input.Team1ID != nil && input.Team2ID != nil && *input.Team1ID == *input.Team2ID {
		return nil, ErrSameTeamBothSlots
	}

	if err := s.ensureNoMatches(ctx, id); err != nil {
		return nil, err
	}

	if err := s.seriesRepo.UpdateSlots(ctx, nil, id, input.Team1ID, input.Team2ID); err != nil {
		if errors.Is(err, repositories.ErrSeriesNotFound) {
			return nil, ErrSeriesNotFound
		}
		if errors.Is(err, repositories.ErrSeriesRefInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return nil, fmt.Errorf("failed to update slots of series %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

func (s *seriesService) UpdateBestOf(ctx context.Context, id int, bestOf int) (*models.Series, error) {
	if bestOf < 1 || bestOf%2 == 0 {
		return nil, ErrBestOfInvalid
	}

	series, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	series.BestOf = bestOf

	if err := s.seriesRepo.UpdateBestOf(ctx, id, bestOf); err != nil {
		return nil, fmt.Errorf("failed to update best_of of series %d: %w", id, err)
	}
	return series, nil
}

func (s *seriesService) Delete(ctx context.Context, id int) error {
	if err := s.ensureNoMatches(ctx, id); err != nil {
		if errors.Is(err, ErrSeriesLocked) {
			return ErrSeriesHasMatches
		}
		return err
	}

	if err := s.seriesRepo.Delete(ctx, nil, id); err != nil {
		if errors.Is(err, repositories.ErrSeriesNotFound) {
			return ErrSeriesNotFound
		}
		return fmt.Errorf("failed to delete series %d: %w", id, err)
	}
	return nil
}

func (s *seriesService) ensureNoMatches(ctx context.Context, seriesID int) error {
	matches, err := s.matchRepo.ListBySeries(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("failed to list matches of series %d: %w", seriesID, err)
	}
	if len(matches) > 0 {
		return ErrSeriesLocked
	}
	return nil
}
