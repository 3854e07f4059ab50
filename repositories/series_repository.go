package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mkalens/speedbracket/models"
)

var (
	ErrSeriesNotFound    = errors.New("series not found")
	ErrSeriesSlotInvalid = errors.New("series slot must be 1 or 2")
	ErrSeriesRefInvalid  = errors.New("series references an unknown team, phase or source series")
)

// SeriesDependent is one series slot that declares the queried series as
// its source.
type SeriesDependent struct {
	SeriesID   int
	SourceType models.SourceType
}

type SeriesRepository interface {
	Create(ctx context.Context, series *models.Series) error
	GetByID(ctx context.Context, id int) (*models.Series, error)
	// GetForUpdate locks the series row for the lifetime of the
	// surrounding transaction, serializing result processing per series.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Series, error)
	ListByTournament(ctx context.Context, tournamentID int, phaseID *int) ([]*models.Series, error)
	UpdateSlots(ctx context.Context, exec SQLExecutor, id int, team1ID, team2ID *int) error
	UpdateBestOf(ctx context.Context, id int, bestOf int) error
	UpdateWinner(ctx context.Context, exec SQLExecutor, id int, winnerTeamID *int) error
	// ListDependents returns every series whose given slot (1 or 2) is
	// sourced from sourceSeriesID. With emptyOnly, only series whose slot
	// is still NULL are returned.
	ListDependents(ctx context.Context, exec SQLExecutor, sourceSeriesID int, slot int, emptyOnly bool) ([]SeriesDependent, error)
	// ClearSlotIfHolds nulls the slot only when it holds exactly teamID,
	// so a manual assignment or another source's value is never touched.
	ClearSlotIfHolds(ctx context.Context, exec SQLExecutor, seriesID int, slot int, teamID int) error
	// SetSlotIfEmpty fills the slot only when it is still NULL.
	SetSlotIfEmpty(ctx context.Context, exec SQLExecutor, seriesID int, slot int, teamID int) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresSeriesRepository struct {
	db *sql.DB
}

func NewPostgresSeriesRepository(db *sql.DB) SeriesRepository {
	return &postgresSeriesRepository{db: db}
}

func (r *postgresSeriesRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const seriesColumns = `
	id, tournament_id, phase_id, team1_id, team2_id, best_of, winner_team_id,
	source_team1_series_id, source_team1_type, source_team2_series_id, source_team2_type,
	scheduled_at, created_at`

func scanSeries(row interface{ Scan(dest ...interface{}) error }, series *models.Series) error {
	return row.Scan(
		&series.ID,
		&series.TournamentID,
		&series.PhaseID,
		&series.Team1ID,
		&series.Team2ID,
		&series.BestOf,
		&series.WinnerTeamID,
		&series.SourceTeam1SeriesID,
		&series.SourceTeam1Type,
		&series.SourceTeam2SeriesID,
		&series.SourceTeam2Type,
		&series.ScheduledAt,
		&series.CreatedAt,
	)
}

func (r *postgresSeriesRepository) Create(ctx context.Context, series *models.Series) error {
	query := `
		INSERT INTO series
			(tournament_id, phase_id, team1_id, team2_id, best_of,
			 source_team1_series_id, source_team1_type, source_team2_series_id, source_team2_type,
			 scheduled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		series.TournamentID,
		series.PhaseID,
		series.Team1ID,
		series.Team2ID,
		series.BestOf,
		series.SourceTeam1SeriesID,
		series.SourceTeam1Type,
		series.SourceTeam2SeriesID,
		series.SourceTeam2Type,
		series.ScheduledAt,
	).Scan(&series.ID, &series.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrSeriesRefInvalid
		}
		return err
	}
	return nil
}

func (r *postgresSeriesRepository) GetByID(ctx context.Context, id int) (*models.Series, error) {
	query := `SELECT` + seriesColumns + ` FROM series WHERE id = $1`

	series := &models.Series{}
	err := scanSeries(r.db.QueryRowContext(ctx, query, id), series)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, err
	}
	return series, nil
}

func (r *postgresSeriesRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Series, error) {
	query := `SELECT` + seriesColumns + ` FROM series WHERE id = $1 FOR UPDATE`

	series := &models.Series{}
	err := scanSeries(r.getExecutor(exec).QueryRowContext(ctx, query, id), series)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSeriesNotFound
		}
		return nil, err
	}
	return series, nil
}

func (r *postgresSeriesRepository) ListByTournament(ctx context.Context, tournamentID int, phaseID *int) ([]*models.Series, error) {
	query := `
		SELECT
			s.id, s.tournament_id, s.phase_id, s.team1_id, s.team2_id, s.best_of, s.winner_team_id,
			s.source_team1_series_id, s.source_team1_type, s.source_team2_series_id, s.source_team2_type,
			s.scheduled_at, s.created_at,
			COUNT(DISTINCT CASE WHEN mt.is_winner AND mt.team_id = s.team1_id THEN m.id END) AS team1_wins,
			COUNT(DISTINCT CASE WHEN mt.is_winner AND mt.team_id = s.team2_id THEN m.id END) AS team2_wins
		FROM series s
		LEFT JOIN matches m ON m.series_id = s.id AND m.is_completed
		LEFT JOIN match_teams mt ON mt.match_id = m.id
		WHERE s.tournament_id = $1
		  AND ($2::int IS NULL OR s.phase_id = $2)
		GROUP BY s.id
		ORDER BY s.id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, phaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*models.Series, 0)
	for rows.Next() {
		var series models.Series
		if scanErr := rows.Scan(
			&series.ID,
			&series.TournamentID,
			&series.PhaseID,
			&series.Team1ID,
			&series.Team2ID,
			&series.BestOf,
			&series.WinnerTeamID,
			&series.SourceTeam1SeriesID,
			&series.SourceTeam1Type,
			&series.SourceTeam2SeriesID,
			&series.SourceTeam2Type,
			&series.ScheduledAt,
			&series.CreatedAt,
			&series.Team1Wins,
			&series.Team2Wins,
		); scanErr != nil {
			return nil, scanErr
		}
		list = append(list, &series)
	}
	return list, rows.Err()
}

func (r *postgresSeriesRepository) UpdateSlots(ctx context.Context, exec SQLExecutor, id int, team1ID, team2ID *int) error {
	query := `UPDATE series SET team1_id = $1, team2_id = $2 WHERE id = $3`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, team1ID, team2ID, id)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrSeriesRefInvalid
		}
		return err
	}
	return checkAffectedRows(result, ErrSeriesNotFound)
}

func (r *postgresSeriesRepository) UpdateBestOf(ctx context.Context, id int, bestOf int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE series SET best_of = $1 WHERE id = $2`, bestOf, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSeriesNotFound)
}

func (r *postgresSeriesRepository) UpdateWinner(ctx context.Context, exec SQLExecutor, id int, winnerTeamID *int) error {
	query := `UPDATE series SET winner_team_id = $1 WHERE id = $2`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, winnerTeamID, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSeriesNotFound)
}

func (r *postgresSeriesRepository) ListDependents(ctx context.Context, exec SQLExecutor, sourceSeriesID int, slot int, emptyOnly bool) ([]SeriesDependent, error) {
	slotCol, sourceIDCol, sourceTypeCol, err := slotColumns(slot)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, %s
		FROM series
		WHERE %s = $1`, sourceTypeCol, sourceIDCol)
	if emptyOnly {
		query += fmt.Sprintf(" AND %s IS NULL", slotCol)
	}
	query += " ORDER BY id ASC"

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, sourceSeriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dependents := make([]SeriesDependent, 0)
	for rows.Next() {
		var dep SeriesDependent
		if scanErr := rows.Scan(&dep.SeriesID, &dep.SourceType); scanErr != nil {
			return nil, scanErr
		}
		dependents = append(dependents, dep)
	}
	return dependents, rows.Err()
}

func (r *postgresSeriesRepository) ClearSlotIfHolds(ctx context.Context, exec SQLExecutor, seriesID int, slot int, teamID int) error {
	slotCol, _, _, err := slotColumns(slot)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE series SET %s = NULL WHERE id = $1 AND %s = $2`, slotCol, slotCol)
	_, err = r.getExecutor(exec).ExecContext(ctx, query, seriesID, teamID)
	return err
}

func (r *postgresSeriesRepository) SetSlotIfEmpty(ctx context.Context, exec SQLExecutor, seriesID int, slot int, teamID int) error {
	slotCol, _, _, err := slotColumns(slot)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE series SET %s = $1 WHERE id = $2 AND %s IS NULL`, slotCol, slotCol)
	_, err = r.getExecutor(exec).ExecContext(ctx, query, teamID, seriesID)
	return err
}

func (r *postgresSeriesRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM series WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrSeriesNotFound)
}

func slotColumns(slot int) (slotCol, sourceIDCol, sourceTypeCol string, err error) {
	switch slot {
	case 1:
		return "team1_id", "source_team1_series_id", "source_team1_type", nil
	case 2:
		return "team2_id", "source_team2_series_id", "source_team2_type", nil
	default:
		return "", "", "", ErrSeriesSlotInvalid
	}
}
