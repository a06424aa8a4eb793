package database

import (
	"fmt"

	"github.com/hackia/lys-sub000/internal/engine"
)

// RecordOperation appends one row to the operations log.
func (d *Database) RecordOperation(opType, viewState, timestamp string) error {
	_, err := d.db.Exec(
		"INSERT INTO operations_log (operation_type, view_state, timestamp) VALUES (?, ?, ?)",
		opType, viewState, timestamp,
	)
	if err != nil {
		return fmt.Errorf("recording %s operation: %w", opType, err)
	}
	return nil
}

// Operations returns the most recent log rows, newest first.
func (d *Database) Operations(limit int) ([]engine.OperationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.Query(
		"SELECT id, operation_type, view_state, timestamp FROM operations_log ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	ops := make([]engine.OperationRecord, 0, limit)
	for rows.Next() {
		var op engine.OperationRecord
		if err := rows.Scan(&op.ID, &op.Type, &op.ViewState, &op.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}
