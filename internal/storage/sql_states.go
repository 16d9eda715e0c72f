package storage

import (
	"context"
	"database/sql"
	"errors"
)

func (s *SQLStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.q(`SELECT state_value FROM states WHERE state_key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (s *SQLStorage) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, s.q(`
	INSERT INTO states (state_key, state_value)
	VALUES (?, ?)
	ON CONFLICT(state_key) DO UPDATE SET
		state_value = excluded.state_value`),
		key, string(value))
	return err
}

func (s *SQLStorage) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM states WHERE state_key = ?`), key)
	return err
}

func (s *SQLStorage) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT state_key, state_value FROM states ORDER BY state_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		records = append(records, Record{Key: key, Value: []byte(value)})
	}
	return records, rows.Err()
}
