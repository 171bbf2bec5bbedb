package postgres

import (
	"context"
	"fmt"
)

// SequenceStorage implements numerator.Storage on the sys_sequences table.
//
// NextValue takes a row lock (FOR UPDATE via the atomic UPDATE) that lives
// until the ambient transaction commits, so two concurrent documents can
// never observe the same counter value.
type SequenceStorage struct{}

func NewSequenceStorage() *SequenceStorage {
	return &SequenceStorage{}
}

func (s *SequenceStorage) NextValue(ctx context.Context, sequence string) (int64, error) {
	q := GetQuerier(ctx)

	var value int64
	err := q.QueryRow(ctx, `
		INSERT INTO sys_sequences (code, value)
		VALUES ($1, 1)
		ON CONFLICT (code)
		DO UPDATE SET value = sys_sequences.value + 1, updated_at = now()
		RETURNING value
	`, sequence).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sequence %q next: %w", sequence, err)
	}
	return value, nil
}

func (s *SequenceStorage) ReserveBlock(ctx context.Context, sequence string, size int64) (int64, error) {
	q := GetQuerier(ctx)

	var last int64
	err := q.QueryRow(ctx, `
		INSERT INTO sys_sequences (code, value)
		VALUES ($1, $2)
		ON CONFLICT (code)
		DO UPDATE SET value = sys_sequences.value + $2, updated_at = now()
		RETURNING value
	`, sequence, size).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("sequence %q reserve: %w", sequence, err)
	}
	return last - size + 1, nil
}
