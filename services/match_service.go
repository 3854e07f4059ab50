package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkalens/speedbracket/models"
	"github.com/mkalens/speedbracket/repositories"
)

type CreateMatchInput struct {
	TournamentID int        `json:"tournament_id"`
	SeriesID     *int       `json:"series_id"`
	TeamIDs      []int      `json:"team_ids"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
}

type MatchService interface {
	// Create registers a match and its participant rows. A match without a
	// series is a standalone tie-break.
	Create(ctx context.Context, input CreateMatchInput) (*models.Match, error)
	Get(ctx context.Context, id int) (*models.Match, error)
	ListBySeries(ctx context.Context, seriesID int) ([]*models.Match, error)
}

type matchService struct {
	tx              TransactionRunner
	matchRepo       repositories.MatchRepository
	participantRepo repositories.ParticipantRepository
	seriesRepo      repositories.SeriesRepository
}

func NewMatchService(
	tx TransactionRunner,
	matchRepo repositories.MatchRepository,
	participantRepo repositories.ParticipantRepository,
	seriesRepo repositories.SeriesRepository,
) MatchService {
	return &matchService{
		tx:              tx,
		matchRepo:       matchRepo,
		participantRepo: participantRepo,
		seriesRepo:      seriesRepo,
	}
}

func (s *matchService) Create(ctx context.Context, input CreateMatchInput) (*models.Match, error) {
	if len(input.TeamIDs) < 2 {
		return nil, ErrMatchNeedsTeams
	}
	seen := make(map[int]bool, len(input.TeamIDs))
	for _, teamID := range input.TeamIDs {
		if seen[teamID] {
			return nil, ErrParticipantConflict
		}
		seen[teamID] = true
	}

	if input.SeriesID != nil {
		if _, err := s.seriesRepo.GetByID(ctx, *input.SeriesID); err != nil {
			if errors.Is(err, repositories.ErrSeriesNotFound) {
				return nil, ErrSeriesNotFound
			}
			return nil, fmt.Errorf("failed to load series %d: %w", *input.SeriesID, err)
		}
	}

	match := &models.Match{
		TournamentID: input.TournamentID,
		SeriesID:     input.SeriesID,
		ScheduledAt:  input.ScheduledAt,
	}

	err := s.tx.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.createMatchTx(ctx, exec, match, input.TeamIDs)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, match.ID)
}

func (s *matchService) createMatchTx(ctx context.Context, exec repositories.SQLExecutor, match *models.Match, teamIDs []int) error {
	if err := s.matchRepo.Create(ctx, exec, match); err != nil {
		if errors.Is(err, repositories.ErrMatchRefInvalid) {
			return fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return fmt.Errorf("failed to create match: %w", err)
	}
	if err := s.participantRepo.CreateBatch(ctx, exec, match.ID, teamIDs); err != nil {
		switch {
		case errors.Is(err, repositories.ErrParticipantConflict):
			return ErrParticipantConflict
		case errors.Is(err, repositories.ErrParticipantRefInvalid):
			return fmt.Errorf("%w: %v", ErrValidationFailed, err)
		}
		return fmt.Errorf("failed to register match participants: %w", err)
	}
	return nil
}

func (s *matchService) Get(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to load match %d: %w", id, err)
	}

	participants, err := s.participantRepo.ListByMatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants of match %d: %w", id, err)
	}
	match.Participants = make([]models.MatchParticipant, len(participants))
	for i, p := range participants {
		match.Participants[i] = *p
	}
	return match, nil
}

func (s *matchService) ListBySeries(ctx context.Context, seriesID int) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListBySeries(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of series %d: %w", seriesID, err)
	}
	return matches, nil
}
