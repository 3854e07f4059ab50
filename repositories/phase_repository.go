package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mkalens/speedbracket/models"
)

var (
	ErrPhaseNotFound          = errors.New("phase not found")
	ErrPhaseTournamentInvalid = errors.New("phase references an unknown tournament")
)

type PhaseRepository interface {
	Create(ctx context.Context, phase *models.Phase) error
	GetByID(ctx context.Context, id int) (*models.Phase, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Phase, error)
	Delete(ctx context.Context, id int) error
}

type postgresPhaseRepository struct {
	db *sql.DB
}

func NewPostgresPhaseRepository(db *sql.DB) PhaseRepository {
	return &postgresPhaseRepository{db: db}
}

func (r *postgresPhaseRepository) Create(ctx context.Context, phase *models.Phase) error {
	query := `
		INSERT INTO tournament_phases (tournament_id, name, position, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		phase.TournamentID,
		phase.Name,
		phase.Position,
		phase.Type,
	).Scan(&phase.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrPhaseTournamentInvalid
		}
		return err
	}
	return nil
}

func (r *postgresPhaseRepository) GetByID(ctx context.Context, id int) (*models.Phase, error) {
	query := `
		SELECT id, tournament_id, name, position, type
		FROM tournament_phases
		WHERE id = $1`

	phase := &models.Phase{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&phase.ID,
		&phase.TournamentID,
		&phase.Name,
		&phase.Position,
		&phase.Type,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseNotFound
		}
		return nil, err
	}
	return phase, nil
}

func (r *postgresPhaseRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Phase, error) {
	query := `
		SELECT id, tournament_id, name, position, type
		FROM tournament_phases
		WHERE tournament_id = $1
		ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	phases := make([]*models.Phase, 0)
	for rows.Next() {
		var phase models.Phase
		if scanErr := rows.Scan(
			&phase.ID,
			&phase.TournamentID,
			&phase.Name,
			&phase.Position,
			&phase.Type,
		); scanErr != nil {
			return nil, scanErr
		}
		phases = append(phases, &phase)
	}
	return phases, rows.Err()
}

func (r *postgresPhaseRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournament_phases WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPhaseNotFound)
}
