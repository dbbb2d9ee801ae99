package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

const (
	getSQL = `SELECT value FROM kv_store WHERE namespace = $1 AND key = $2`

	setSQL = `INSERT INTO kv_store (namespace, key, value, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

	deleteSQL = `DELETE FROM kv_store WHERE namespace = $1 AND key = $2`
)

// KVStore implements repository.KVStore on the kv_store table.
type KVStore struct {
	db        database.DBTX
	namespace string
}

// NewKVStore creates a PostgreSQL-backed store scoped to namespace.
func NewKVStore(db database.DBTX, namespace string) *KVStore {
	return &KVStore{db: db, namespace: namespace}
}

// Get returns the value stored under key.
func (s *KVStore) Get(ctx context.Context, key string) (value string, err error) {
	ctx, end := database.TraceQuery(ctx, "kv.get", getSQL)
	defer func() { end(err) }()

	err = s.db.QueryRow(ctx, getSQL, s.namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("key", key)
		}
		return "", fmt.Errorf("select kv %s: %w", key, err)
	}
	return value, nil
}

// Set upserts the value stored under key.
func (s *KVStore) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := database.TraceQuery(ctx, "kv.set", setSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, setSQL, s.namespace, key, value); err != nil {
		return fmt.Errorf("upsert kv %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, "kv.delete", deleteSQL)
	defer func() { end(err) }()

	if _, err = s.db.Exec(ctx, deleteSQL, s.namespace, key); err != nil {
		return fmt.Errorf("delete kv %s: %w", key, err)
	}
	return nil
}
