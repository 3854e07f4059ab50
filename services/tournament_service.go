package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mkalens/speedbracket/models"
	"github.com/mkalens/speedbracket/repositories"
)

type CreatePhaseInput struct {
	Name     string           `json:"name"`
	Position int              `json:"position"`
	Type     models.PhaseType `json:"type"`
}

type TournamentService interface {
	Create(ctx context.Context, name string, game *string) (*models.Tournament, error)
	Get(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context) ([]*models.Tournament, error)
	Delete(ctx context.Context, id int) error
	CreatePhase(ctx context.Context, tournamentID int, input CreatePhaseInput) (*models.Phase, error)
	DeletePhase(ctx context.Context, phaseID int) error
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	phaseRepo      repositories.PhaseRepository
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	phaseRepo repositories.PhaseRepository,
) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		phaseRepo:      phaseRepo,
	}
}

func (s *tournamentService) Create(ctx context.Context, name string, game *string) (*models.Tournament, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}

	tournament := &models.Tournament{Name: name, Game: game}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, ErrTournamentNameConflict
		}
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	return tournament, nil
}

func (s *tournamentService) Get(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to load tournament %d: %w", id, err)
	}

	phases, err := s.phaseRepo.ListByTournament(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases of tournament %d: %w", id, err)
	}
	tournament.Phases = make([]models.Phase, len(phases))
	for i, phase := range phases {
		tournament.Phases[i] = *phase
	}
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context) ([]*models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	return tournaments, nil
}

func (s *tournamentService) Delete(ctx context.Context, id int) error {
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	return nil
}

func (s *tournamentService) CreatePhase(ctx context.Context, tournamentID int, input CreatePhaseInput) (*models.Phase, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrPhaseNameRequired
	}
	if input.Type != models.PhaseTypeGroups && input.Type != models.PhaseTypeBracket {
		return nil, ErrPhaseTypeInvalid
	}

	phase := &models.Phase{
		TournamentID: tournamentID,
		Name:         input.Name,
		Position:     input.Position,
		Type:         input.Type,
	}
	if err := s.phaseRepo.Create(ctx, phase); err != nil {
		if errors.Is(err, repositories.ErrPhaseTournamentInvalid) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to create phase: %w", err)
	}
	return phase, nil
}

func (s *tournamentService) DeletePhase(ctx context.Context, phaseID int) error {
	if err := s.phaseRepo.Delete(ctx, phaseID); err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return ErrPhaseNotFound
		}
		return fmt.Errorf("failed to delete phase %d: %w", phaseID, err)
	}
	return nil
}
