package repositories_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyops/internal/repositories"
	"github.com/systmms/keyops/pkg/keyring"
)

func newSQLMock(t *testing.T) (sqlmock.Sqlmock, *repositories.SQLRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo, err := repositories.NewSQLRepository(db, "key_documents", "keyring/")
	require.NoError(t, err)
	return mock, repo
}

func TestNewSQLRepositoryValidation(t *testing.T) {
	t.Parallel()

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var verr keyring.ValidationError

	_, err = repositories.NewSQLRepository(nil, "key_documents", "keyring/")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "sql", verr.Store)

	_, err = repositories.NewSQLRepository(db, "key_documents; DROP TABLE users", "keyring/")
	require.ErrorAs(t, err, &verr)

	_, err = repositories.NewSQLRepository(db, "key_documents", "")
	require.ErrorAs(t, err, &verr)
}

func TestSQLGetAllElements(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)
	defer repo.Close()

	rows := sqlmock.NewRows([]string{"name", "xml"}).
		AddRow("keyring/k1", `<key id="k1"/>`).
		AddRow("keyring/bad", "not xml").
		AddRow("keyring/k2", `<key id="k2"/>`)
	mock.ExpectQuery("SELECT name, xml FROM key_documents ORDER BY created_at").WillReturnRows(rows)

	documents, err := repo.GetAllElements(context.Background())
	require.NoError(t, err)
	require.Len(t, documents, 2)
	assert.Equal(t, "k1", documents[0].ID())
	assert.Equal(t, "k2", documents[1].ID())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLGetAllElementsQueryFailure(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)
	defer repo.Close()

	mock.ExpectQuery("SELECT name, xml FROM key_documents").WillReturnError(errors.New("connection reset"))

	documents, err := repo.GetAllElements(context.Background())
	require.Error(t, err)
	assert.Nil(t, documents)

	var serr keyring.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "list", serr.Op)
}

func TestSQLStoreElement(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)
	defer repo.Close()

	doc := mustParse(t, testKeyXML)
	text, err := doc.Serialize()
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO key_documents").
		WithArgs("keyring/primary", text, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.StoreElement(context.Background(), doc, "primary"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStoreElementDuplicate(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)
	defer repo.Close()

	mock.ExpectExec("INSERT INTO key_documents").
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "key_documents_name_key"`))

	err := repo.StoreElement(context.Background(), mustParse(t, testKeyXML), "primary")
	require.Error(t, err)
	assert.True(t, repositories.IsAlreadyExists(err))
}

func TestSQLCloseReleasesHandleOnce(t *testing.T) {
	t.Parallel()

	mock, repo := newSQLMock(t)

	mock.ExpectClose()

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())
	assert.NoError(t, mock.ExpectationsWereMet())

	_, err := repo.GetAllElements(context.Background())
	assert.ErrorIs(t, err, keyring.ErrRepositoryClosed)
}
