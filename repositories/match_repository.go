package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mkalens/speedbracket/models"
)

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrMatchRefInvalid = errors.New("match references an unknown tournament or series")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetForUpdate locks the match row inside the caller's transaction so
	// two submissions for the same match serialize.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListBySeries(ctx context.Context, seriesID int) ([]*models.Match, error)
	SetCompleted(ctx context.Context, exec SQLExecutor, id int) error
	// CountCompletedWins counts, per team, completed matches of the series
	// the team won. The series aggregator reads its truth from here.
	CountCompletedWins(ctx context.Context, exec SQLExecutor, seriesID int) (map[int]int, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches (tournament_id, series_id, scheduled_at)
		VALUES ($1, $2, $3)
		RETURNING id, is_completed, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		match.TournamentID,
		match.SeriesID,
		match.ScheduledAt,
	).Scan(&match.ID, &match.IsCompleted, &match.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return ErrMatchRefInvalid
		}
		return err
	}
	return nil
}

const matchColumns = `id, tournament_id, series_id, scheduled_at, is_completed, created_at`

func scanMatch(row interface{ Scan(dest ...interface{}) error }, match *models.Match) error {
	return row.Scan(
		&match.ID,
		&match.TournamentID,
		&match.SeriesID,
		&match.ScheduledAt,
		&match.IsCompleted,
		&match.CreatedAt,
	)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match := &models.Match{}
	if err := scanMatch(r.db.QueryRowContext(ctx, query, id), match); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (r *postgresMatchRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1 FOR UPDATE`

	match := &models.Match{}
	if err := scanMatch(r.getExecutor(exec).QueryRowContext(ctx, query, id), match); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (r *postgresMatchRepository) ListBySeries(ctx context.Context, seriesID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE series_id = $1 ORDER BY scheduled_at ASC NULLS LAST, id ASC`

	rows, err := r.db.QueryContext(ctx, query, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var match models.Match
		if scanErr := scanMatch(rows, &match); scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, &match)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) SetCompleted(ctx context.Context, exec SQLExecutor, id int) error {
	query := `UPDATE matches SET is_completed = TRUE WHERE id = $1`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountCompletedWins(ctx context.Context, exec SQLExecutor, seriesID int) (map[int]int, error) {
	query := `
		SELECT mt.team_id, COUNT(*) AS wins
		FROM matches m
		JOIN match_teams mt ON mt.match_id = m.id
		WHERE m.series_id = $1
		  AND m.is_completed
		  AND mt.is_winner
		GROUP BY mt.team_id`

	rows, err := r.getExecutor(exec).QueryContext(ctx, query, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wins := make(map[int]int)
	for rows.Next() {
		var teamID, count int
		if scanErr := rows.Scan(&teamID, &count); scanErr != nil {
			return nil, scanErr
		}
		wins[teamID] = count
	}
	return wins, rows.Err()
}

func (r *postgresMatchRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM matches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}
