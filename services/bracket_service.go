package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkalens/speedbracket/models"
	"github.com/mkalens/speedbracket/repositories"
	"golang.org/x/sync/errgroup"
)

// BracketView is everything a client needs to render one phase of a
// tournament: the series with resolved team references and win counts,
// plus the matches grouped per series.
type BracketView struct {
	Tournament *models.Tournament      `json:"tournament"`
	Phase      *models.Phase           `json:"phase,omitempty"`
	Series     []*models.Series        `json:"series"`
	Matches    map[int][]*models.Match `json:"matches"`
}

type BracketService interface {
	GetBracket(ctx context.Context, tournamentID int, phaseID *int) (*BracketView, error)
}

type bracketService struct {
	tournamentRepo repositories.TournamentRepository
	phaseRepo      repositories.PhaseRepository
	seriesService  SeriesService
	matchRepo      repositories.MatchRepository
}

func NewBracketService(
	tournamentRepo repositories.TournamentRepository,
	phaseRepo repositories.PhaseRepository,
	seriesService SeriesService,
	matchRepo repositories.MatchRepository,
) BracketService {
	return &bracketService{
		tournamentRepo: tournamentRepo,
		phaseRepo:      phaseRepo,
		seriesService:  seriesService,
		matchRepo:      matchRepo,
	}
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int, phaseID *int) (*BracketView, error) {
	view := &BracketView{Matches: make(map[int][]*models.Match)}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tournament, err := s.tournamentRepo.GetByID(gCtx, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
			return fmt.Errorf("failed to load tournament %d: %w", tournamentID, err)
		}
		view.Tournament = tournament
		return nil
	})

	if phaseID != nil {
		id := *phaseID
		g.Go(func() error {
			phase, err := s.phaseRepo.GetByID(gCtx, id)
			if err != nil {
				if errors.Is(err, repositories.ErrPhaseNotFound) {
					return ErrPhaseNotFound
				}
				return fmt.Errorf("failed to load phase %d: %w", id, err)
			}
			view.Phase = phase
			return nil
		})
	}

	g.Go(func() error {
		series, err := s.seriesService.ListByTournament(gCtx, tournamentID, phaseID)
		if err != nil {
			return err
		}
		view.Series = series
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Matches depend on the series list, fetched after the first wave.
	g, gCtx = errgroup.WithContext(ctx)
	matchesBySeries := make([][]*models.Match, len(view.Series))
	for i, series := range view.Series {
		i, seriesID := i, series.ID
		g.Go(func() error {
			matches, err := s.matchRepo.ListBySeries(gCtx, seriesID)
			if err != nil {
				return fmt.Errorf("failed to list matches of series %d: %w", seriesID, err)
			}
			matchesBySeries[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, series := range view.Series {
		view.Matches[series.ID] = matchesBySeries[i]
	}

	return view, nil
}
