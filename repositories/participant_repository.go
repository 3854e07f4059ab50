package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/mkalens/speedbracket/models"
)

var (
	ErrParticipantNotFound   = errors.New("match participant not found")
	ErrParticipantConflict   = errors.New("team is already entered in this match")
	ErrParticipantRefInvalid = errors.New("match participant references an unknown match or team")
)

// ParticipantRepository manages the (match, team) result rows.
type ParticipantRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, matchID int, teamIDs []int) error
	ListByMatch(ctx context.Context, matchID int) ([]*models.MatchParticipant, error)
	// ListByMatchForUpdate reads the rows inside the caller's transaction,
	// in stable submission order (position, then team name).
	ListByMatchForUpdate(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchParticipant, error)
	// UpdateResult writes one ranked result row.
	UpdateResult(ctx context.Context, exec SQLExecutor, participant *models.MatchParticipant) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantRepository) CreateBatch(ctx context.Context, exec SQLExecutor, matchID int, teamIDs []int) error {
	query := `INSERT INTO match_teams (match_id, team_id) VALUES ($1, $2)`

	executor := r.getExecutor(exec)
	for _, teamID := range teamIDs {
		if _, err := executor.ExecContext(ctx, query, matchID, teamID); err != nil {
			return r.handleParticipantError(err)
		}
	}
	return nil
}

const participantSelect = `
	SELECT
		mt.match_id, mt.team_id, mt.final_time_raw, mt.final_time,
		mt.result_status, mt.position, mt.is_winner,
		t.id, t.name, t.logo_key, t.created_at
	FROM match_teams mt
	JOIN teams t ON t.id = mt.team_id
	WHERE mt.match_id = $1
	ORDER BY mt.position ASC NULLS LAST, t.name ASC`

func (r *postgresParticipantRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.MatchParticipant, error) {
	return r.listByMatch(ctx, r.db, matchID, false)
}

func (r *postgresParticipantRepository) ListByMatchForUpdate(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.MatchParticipant, error) {
	return r.listByMatch(ctx, r.getExecutor(exec), matchID, true)
}

func (r *postgresParticipantRepository) listByMatch(ctx context.Context, exec SQLExecutor, matchID int, forUpdate bool) ([]*models.MatchParticipant, error) {
	query := participantSelect
	if forUpdate {
		query += " FOR UPDATE OF mt"
	}

	rows, err := exec.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]*models.MatchParticipant, 0)
	for rows.Next() {
		var p models.MatchParticipant
		var team models.Team
		if scanErr := rows.Scan(
			&p.MatchID,
			&p.TeamID,
			&p.FinalTimeRaw,
			&p.FinalTime,
			&p.ResultStatus,
			&p.Position,
			&p.IsWinner,
			&team.ID,
			&team.Name,
			&team.LogoKey,
			&team.CreatedAt,
		); scanErr != nil {
			return nil, scanErr
		}
		p.Team = &team
		participants = append(participants, &p)
	}
	return participants, rows.Err()
}

func (r *postgresParticipantRepository) UpdateResult(ctx context.Context, exec SQLExecutor, participant *models.MatchParticipant) error {
	query := `
		UPDATE match_teams
		SET final_time_raw = $1,
		    final_time = $2,
		    result_status = $3,
		    position = $4,
		    is_winner = $5
		WHERE match_id = $6
		  AND team_id = $7`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		participant.FinalTimeRaw,
		participant.FinalTime,
		participant.ResultStatus,
		participant.Position,
		participant.IsWinner,
		participant.MatchID,
		participant.TeamID,
	)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) handleParticipantError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505": // unique_violation
			return ErrParticipantConflict
		case "23503": // foreign_key_violation
			return ErrParticipantRefInvalid
		}
	}
	return err
}
