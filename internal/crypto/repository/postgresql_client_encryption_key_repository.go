// Package repository implements persistence for client encryption key properties.
//
// A client encryption key row stores the wrapped DEK together with the metadata needed to
// unwrap it (keeper URL and wrap algorithm). Plaintext key material never reaches the
// database. Each store has its own implementation:
//   - PostgreSQL: BYTEA for the wrapped key, TIMESTAMPTZ for timestamps
//   - MySQL: BLOB for the wrapped key, DATETIME(6) for timestamps
//
// All repositories are transaction aware through database.GetTx, so a rewrap can read and
// update a key inside one transaction.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	"github.com/allisson/docencrypt/internal/database"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

const clientEncryptionKeyColumns = `id, encryption_algorithm, wrapped_data_encryption_key,
	key_wrap_metadata_type, key_wrap_metadata_name, key_wrap_metadata_value, key_wrap_metadata_algorithm,
	created_at, updated_at`

// PostgreSQLClientEncryptionKeyRepository implements client encryption key persistence for
// PostgreSQL.
type PostgreSQLClientEncryptionKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLClientEncryptionKeyRepository creates a new PostgreSQL repository.
func NewPostgreSQLClientEncryptionKeyRepository(db *sql.DB) *PostgreSQLClientEncryptionKeyRepository {
	return &PostgreSQLClientEncryptionKeyRepository{db: db}
}

// Create inserts a new key. An existing id returns ErrClientEncryptionKeyAlreadyExists.
func (p *PostgreSQLClientEncryptionKeyRepository) Create(
	ctx context.Context,
	key *cryptoDomain.ClientEncryptionKey,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO client_encryption_keys (` + clientEncryptionKeyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.EncryptionAlgorithm,
		key.WrappedDataEncryptionKey,
		key.KeyWrapMetadata.Type,
		key.KeyWrapMetadata.Name,
		key.KeyWrapMetadata.Value,
		key.KeyWrapMetadata.Algorithm,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return cryptoDomain.ErrClientEncryptionKeyAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create client encryption key")
	}
	return nil
}

// Get returns the key with the given id or ErrClientEncryptionKeyNotFound.
func (p *PostgreSQLClientEncryptionKeyRepository) Get(
	ctx context.Context,
	id string,
) (*cryptoDomain.ClientEncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + clientEncryptionKeyColumns + ` FROM client_encryption_keys WHERE id = $1`

	key, err := scanClientEncryptionKey(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrClientEncryptionKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get client encryption key")
	}
	return key, nil
}

// GetForUpdate is Get with a row lock, for use inside a transaction.
func (p *PostgreSQLClientEncryptionKeyRepository) GetForUpdate(
	ctx context.Context,
	id string,
) (*cryptoDomain.ClientEncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + clientEncryptionKeyColumns + ` FROM client_encryption_keys WHERE id = $1 FOR UPDATE`

	key, err := scanClientEncryptionKey(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cryptoDomain.ErrClientEncryptionKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get client encryption key")
	}
	return key, nil
}

// List returns keys ordered by id.
func (p *PostgreSQLClientEncryptionKeyRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*cryptoDomain.ClientEncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + clientEncryptionKeyColumns + ` FROM client_encryption_keys
			  ORDER BY id ASC LIMIT $1 OFFSET $2`

	rows, err := querier.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list client encryption keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]*cryptoDomain.ClientEncryptionKey, 0)
	for rows.Next() {
		key, err := scanClientEncryptionKey(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan client encryption key")
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate client encryption keys")
	}

	return keys, nil
}

// Update replaces the wrapped key and wrap metadata of an existing key.
func (p *PostgreSQLClientEncryptionKeyRepository) Update(
	ctx context.Context,
	key *cryptoDomain.ClientEncryptionKey,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE client_encryption_keys
			  SET wrapped_data_encryption_key = $1,
				  key_wrap_metadata_type = $2,
				  key_wrap_metadata_name = $3,
				  key_wrap_metadata_value = $4,
				  key_wrap_metadata_algorithm = $5,
				  updated_at = $6
			  WHERE id = $7`

	result, err := querier.ExecContext(
		ctx,
		query,
		key.WrappedDataEncryptionKey,
		key.KeyWrapMetadata.Type,
		key.KeyWrapMetadata.Name,
		key.KeyWrapMetadata.Value,
		key.KeyWrapMetadata.Algorithm,
		key.UpdatedAt,
		key.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update client encryption key")
	}
	return checkRowsAffected(result)
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanClientEncryptionKey(row rowScanner) (*cryptoDomain.ClientEncryptionKey, error) {
	var key cryptoDomain.ClientEncryptionKey
	err := row.Scan(
		&key.ID,
		&key.EncryptionAlgorithm,
		&key.WrappedDataEncryptionKey,
		&key.KeyWrapMetadata.Type,
		&key.KeyWrapMetadata.Name,
		&key.KeyWrapMetadata.Value,
		&key.KeyWrapMetadata.Algorithm,
		&key.CreatedAt,
		&key.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func checkRowsAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return cryptoDomain.ErrClientEncryptionKeyNotFound
	}
	return nil
}
