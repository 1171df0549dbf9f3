package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/docencrypt/internal/crypto/domain"
	"github.com/allisson/docencrypt/internal/database"
	apperrors "github.com/allisson/docencrypt/internal/errors"
)

var keyColumns = []string{
	"id", "encryption_algorithm", "wrapped_data_encryption_key",
	"key_wrap_metadata_type", "key_wrap_metadata_name", "key_wrap_metadata_value", "key_wrap_metadata_algorithm",
	"created_at", "updated_at",
}

func newTestKey() *cryptoDomain.ClientEncryptionKey {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &cryptoDomain.ClientEncryptionKey{
		ID:                       "cek1",
		EncryptionAlgorithm:      cryptoDomain.AESGCM,
		WrappedDataEncryptionKey: []byte("wrapped-dek"),
		KeyWrapMetadata: cryptoDomain.EncryptionKeyWrapMetadata{
			Type:      cryptoDomain.KeyWrapMetadataTypeKMS,
			Name:      "kek1",
			Value:     "base64key://smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4=",
			Algorithm: cryptoDomain.RSAOAEP,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func keyRow(key *cryptoDomain.ClientEncryptionKey) *sqlmock.Rows {
	return sqlmock.NewRows(keyColumns).AddRow(
		key.ID,
		string(key.EncryptionAlgorithm),
		key.WrappedDataEncryptionKey,
		key.KeyWrapMetadata.Type,
		key.KeyWrapMetadata.Name,
		key.KeyWrapMetadata.Value,
		string(key.KeyWrapMetadata.Algorithm),
		key.CreatedAt,
		key.UpdatedAt,
	)
}

// clientEncryptionKeyRepository is satisfied by both implementations.
type clientEncryptionKeyRepository interface {
	Create(ctx context.Context, key *cryptoDomain.ClientEncryptionKey) error
	Get(ctx context.Context, id string) (*cryptoDomain.ClientEncryptionKey, error)
	GetForUpdate(ctx context.Context, id string) (*cryptoDomain.ClientEncryptionKey, error)
	List(ctx context.Context, offset, limit int) ([]*cryptoDomain.ClientEncryptionKey, error)
	Update(ctx context.Context, key *cryptoDomain.ClientEncryptionKey) error
}

type dialect struct {
	name         string
	newRepo      func(db *sql.DB) clientEncryptionKeyRepository
	placeholder  string
	duplicateErr error
}

var dialects = []dialect{
	{
		name: "postgresql",
		newRepo: func(db *sql.DB) clientEncryptionKeyRepository {
			return NewPostgreSQLClientEncryptionKeyRepository(db)
		},
		placeholder:  "$1",
		duplicateErr: &pq.Error{Code: pgUniqueViolation},
	},
	{
		name: "mysql",
		newRepo: func(db *sql.DB) clientEncryptionKeyRepository {
			return NewMySQLClientEncryptionKeyRepository(db)
		},
		placeholder:  "?",
		duplicateErr: &mysql.MySQLError{Number: mysqlDuplicateEntry, Message: "Duplicate entry"},
	},
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func TestClientEncryptionKeyRepository_Create(t *testing.T) {
	for _, d := range dialects {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			key := newTestKey()

			t.Run("inserts", func(t *testing.T) {
				db, mock := newMock(t)
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO client_encryption_keys")).
					WithArgs(
						key.ID,
						string(key.EncryptionAlgorithm),
						key.WrappedDataEncryptionKey,
						key.KeyWrapMetadata.Type,
						key.KeyWrapMetadata.Name,
						key.KeyWrapMetadata.Value,
						string(key.KeyWrapMetadata.Algorithm),
						key.CreatedAt,
						key.UpdatedAt,
					).
					WillReturnResult(sqlmock.NewResult(0, 1))

				require.NoError(t, d.newRepo(db).Create(ctx, key))
				assert.NoError(t, mock.ExpectationsWereMet())
			})

			t.Run("duplicate id", func(t *testing.T) {
				db, mock := newMock(t)
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO client_encryption_keys")).
					WillReturnError(d.duplicateErr)

				err := d.newRepo(db).Create(ctx, key)
				assert.ErrorIs(t, err, cryptoDomain.ErrClientEncryptionKeyAlreadyExists)
				assert.ErrorIs(t, err, apperrors.ErrConflict)
				assert.NoError(t, mock.ExpectationsWereMet())
			})

			t.Run("other failure", func(t *testing.T) {
				db, mock := newMock(t)
				boom := errors.New("connection reset")
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO client_encryption_keys")).WillReturnError(boom)

				err := d.newRepo(db).Create(ctx, key)
				assert.ErrorIs(t, err, boom)
				assert.NotErrorIs(t, err, apperrors.ErrConflict)
			})
		})
	}
}

func TestClientEncryptionKeyRepository_Get(t *testing.T) {
	for _, d := range dialects {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			key := newTestKey()
			query := regexp.QuoteMeta("FROM client_encryption_keys WHERE id = " + d.placeholder)

			t.Run("found", func(t *testing.T) {
				db, mock := newMock(t)
				mock.ExpectQuery(query).WithArgs("cek1").WillReturnRows(keyRow(key))

				got, err := d.newRepo(db).Get(ctx, "cek1")
				require.NoError(t, err)
				assert.Equal(t, key, got)
				assert.NoError(t, mock.ExpectationsWereMet())
			})

			t.Run("not found", func(t *testing.T) {
				db, mock := newMock(t)
				mock.ExpectQuery(query).WithArgs("missing").WillReturnError(sql.ErrNoRows)

				_, err := d.newRepo(db).Get(ctx, "missing")
				assert.ErrorIs(t, err, cryptoDomain.ErrClientEncryptionKeyNotFound)
				assert.ErrorIs(t, err, apperrors.ErrNotFound)
			})

			t.Run("for update inside a transaction", func(t *testing.T) {
				db, mock := newMock(t)
				mock.ExpectBegin()
				mock.ExpectQuery(query + ".*FOR UPDATE").WithArgs("cek1").WillReturnRows(keyRow(key))
				mock.ExpectCommit()

				repo := d.newRepo(db)
				err := database.NewTxManager(db).WithTx(ctx, func(txCtx context.Context) error {
					got, err := repo.GetForUpdate(txCtx, "cek1")
					if err != nil {
						return err
					}
					assert.Equal(t, key.ID, got.ID)
					return nil
				})
				require.NoError(t, err)
				assert.NoError(t, mock.ExpectationsWereMet())
			})
		})
	}
}

func TestClientEncryptionKeyRepository_List(t *testing.T) {
	for _, d := range dialects {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			first := newTestKey()
			second := newTestKey()
			second.ID = "cek2"
			second.EncryptionAlgorithm = cryptoDomain.ChaCha20

			t.Run("pages", func(t *testing.T) {
				db, mock := newMock(t)
				rows := keyRow(first)
				rows.AddRow(
					second.ID,
					string(second.EncryptionAlgorithm),
					second.WrappedDataEncryptionKey,
					second.KeyWrapMetadata.Type,
					second.KeyWrapMetadata.Name,
					second.KeyWrapMetadata.Value,
					string(second.KeyWrapMetadata.Algorithm),
					second.CreatedAt,
					second.UpdatedAt,
				)
				mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id ASC")).WithArgs(50, 0).WillReturnRows(rows)

				keys, err := d.newRepo(db).List(ctx, 0, 50)
				require.NoError(t, err)
				require.Len(t, keys, 2)
				assert.Equal(t, "cek1", keys[0].ID)
				assert.Equal(t, cryptoDomain.ChaCha20, keys[1].EncryptionAlgorithm)
				assert.NoError(t, mock.ExpectationsWereMet())
			})

			t.Run("empty", func(t *testing.T) {
				db, mock := newMock(t)
				mock.ExpectQuery(regexp.QuoteMeta("ORDER BY id ASC")).
					WithArgs(10, 20).
					WillReturnRows(sqlmock.NewRows(keyColumns))

				keys, err := d.newRepo(db).List(ctx, 20, 10)
				require.NoError(t, err)
				assert.NotNil(t, keys)
				assert.Empty(t, keys)
			})
		})
	}
}

func TestClientEncryptionKeyRepository_Update(t *testing.T) {
	for _, d := range dialects {
		t.Run(d.name, func(t *testing.T) {
			ctx := context.Background()
			key := newTestKey()
			key.WrappedDataEncryptionKey = []byte("rewrapped-dek")
			key.KeyWrapMetadata.Value = "base64key://other"

			t.Run("updates", func(t *testing.T) {
				db, mock := newMock(t)
				mock.ExpectExec(regexp.QuoteMeta("UPDATE client_encryption_keys")).
					WithArgs(
						key.WrappedDataEncryptionKey,
						key.KeyWrapMetadata.Type,
						key.KeyWrapMetadata.Name,
						key.KeyWrapMetadata.Value,
						string(key.KeyWrapMetadata.Algorithm),
						key.UpdatedAt,
						key.ID,
					).
					WillReturnResult(sqlmock.NewResult(0, 1))

				require.NoError(t, d.newRepo(db).Update(ctx, key))
				assert.NoError(t, mock.ExpectationsWereMet())
			})

			t.Run("missing row", func(t *testing.T) {
				db, mock := newMock(t)
				mock.ExpectExec(regexp.QuoteMeta("UPDATE client_encryption_keys")).
					WillReturnResult(sqlmock.NewResult(0, 0))

				err := d.newRepo(db).Update(ctx, key)
				assert.ErrorIs(t, err, cryptoDomain.ErrClientEncryptionKeyNotFound)
			})
		})
	}
}
