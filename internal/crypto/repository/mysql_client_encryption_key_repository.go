package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	"github.com/allisson/docencrypt/internal/database"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

// mysqlDuplicateEntry is the MySQL error number for duplicate keys.
const mysqlDuplicateEntry = 1062

// MySQLClientEncryptionKeyRepository implements client encryption key persistence for MySQL.
type MySQLClientEncryptionKeyRepository struct {
	db *sql.DB
}

// NewMySQLClientEncryptionKeyRepository creates a new MySQL repository.
func NewMySQLClientEncryptionKeyRepository(db *sql.DB) *MySQLClientEncryptionKeyRepository {
	return &MySQLClientEncryptionKeyRepository{db: db}
}

// Create inserts a new key. An existing id returns ErrClientEncryptionKeyAlreadyExists.
func (m *MySQLClientEncryptionKeyRepository) Create(
	ctx context.Context,
	key *cryptoDomain.ClientEncryptionKey,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO client_encryption_keys (` + clientEncryptionKeyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

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
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return cryptoDomain.ErrClientEncryptionKeyAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create client encryption key")
	}
	return nil
}

// Get returns the key with the given id or ErrClientEncryptionKeyNotFound.
func (m *MySQLClientEncryptionKeyRepository) Get(
	ctx context.Context,
	id string,
) (*cryptoDomain.ClientEncryptionKey, error) {
	return m.get(ctx, `SELECT `+clientEncryptionKeyColumns+` FROM client_encryption_keys WHERE id = ?`, id)
}

// GetForUpdate is Get with a row lock, for use inside a transaction.
func (m *MySQLClientEncryptionKeyRepository) GetForUpdate(
	ctx context.Context,
	id string,
) (*cryptoDomain.ClientEncryptionKey, error) {
	return m.get(
		ctx,
		`SELECT `+clientEncryptionKeyColumns+` FROM client_encryption_keys WHERE id = ? FOR UPDATE`,
		id,
	)
}

func (m *MySQLClientEncryptionKeyRepository) get(
	ctx context.Context,
	query, id string,
) (*cryptoDomain.ClientEncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

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
func (m *MySQLClientEncryptionKeyRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*cryptoDomain.ClientEncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + clientEncryptionKeyColumns + ` FROM client_encryption_keys
			  ORDER BY id ASC LIMIT ? OFFSET ?`

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
func (m *MySQLClientEncryptionKeyRepository) Update(
	ctx context.Context,
	key *cryptoDomain.ClientEncryptionKey,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE client_encryption_keys
			  SET wrapped_data_encryption_key = ?,
				  key_wrap_metadata_type = ?,
				  key_wrap_metadata_name = ?,
				  key_wrap_metadata_value = ?,
				  key_wrap_metadata_algorithm = ?,
				  updated_at = ?
			  WHERE id = ?`

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
