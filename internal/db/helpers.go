package db

import (
	"database/sql"
)

func nullStringToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// affectedRows reads the row count of an UPDATE or DELETE.
func affectedRows(op string, result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr(op+": reading rows affected", err)
	}
	return n, nil
}

// requireRow reports a guarded write that matched nothing as ErrNotFound.
func requireRow(op string, result sql.Result) error {
	n, err := affectedRows(op, result)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
