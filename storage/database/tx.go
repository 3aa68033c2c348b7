package database

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/cheo/core"
)

type transactor struct {
	db core.DB
}

var _ core.Transactor = (*transactor)(nil)

func NewTransactor(db core.DB) core.Transactor {
	return &transactor{db: db}
}

func (t *transactor) InTx(ctx context.Context, fn core.TxFunc) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrap(err, fmt.Sprintf("rolling back: %v", rbErr))
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}
