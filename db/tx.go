package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mkalens/speedbracket/repositories"
)

// TxRunner runs a function inside one transaction. Either everything the
// function wrote is committed, or nothing is.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(database *sql.DB) *TxRunner {
	return &TxRunner{db: database}
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()

	err = fn(tx)
	return err
}
