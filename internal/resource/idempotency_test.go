package resource_test

import (
	"context"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/careset/fhirstore/internal/dbconn"
	"github.com/careset/fhirstore/internal/resource"
	"github.com/careset/fhirstore/internal/txn"
)

func TestIdempotencyKey_StableAndFieldOrderIndependent(t *testing.T) {
	k1 := resource.IdempotencyKey("Patient", map[string]any{"identifier": "mrn-1", "system": "hospital-a"})
	k2 := resource.IdempotencyKey("Patient", map[string]any{"system": "hospital-a", "identifier": "mrn-1"})
	assert.Equal(t, k1, k2)
}

func TestIdempotencyKey_DistinctForDifferentIdentifiers(t *testing.T) {
	k1 := resource.IdempotencyKey("Patient", map[string]any{"identifier": "mrn-1"})
	k2 := resource.IdempotencyKey("Patient", map[string]any{"identifier": "mrn-2"})
	assert.NotEqual(t, k1, k2)
}

func TestCreateIfAbsent_SecondCallReturnsExisting(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	identifying := map[string]any{"name": "Alice"}

	first, err := repo.CreateIfAbsent(ctx, "Patient", identifying, map[string]any{"name": "Alice"})
	require.NoError(t, err)

	second, err := repo.CreateIfAbsent(ctx, "Patient", identifying, map[string]any{"name": "Alice"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func newMockedRepo(t *testing.T) (*resource.Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	manager := txn.NewManager(dbconn.NewSQLPool(db), zap.NewNop())
	return resource.NewRepository(manager, resource.Registry{}), mock
}

// expectSerializableConditionalCreate scripts everything up to (but not
// including) the commit: one BEGIN, the isolation statement, the
// existence check coming back empty, and the insert.
func expectSerializableConditionalCreate(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("SET TRANSACTION ISOLATION LEVEL SERIALIZABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT id, version_id, last_updated, body FROM resources").
		WithArgs("Patient").
		WillReturnRows(sqlmock.NewRows([]string{"id", "version_id", "last_updated", "body"}))
	mock.ExpectExec("INSERT INTO resources").WillReturnResult(sqlmock.NewResult(1, 1))
}

// The existence check and the insert must share one physical
// transaction: the conflict-detection guarantee only exists while the
// read and the write overlap. The ordered expectations pin the exact
// session sequence down to a single BEGIN ... COMMIT pair.
func TestCreateIfAbsent_SearchAndCreateShareOneTransaction(t *testing.T) {
	repo, mock := newMockedRepo(t)
	expectSerializableConditionalCreate(mock)
	mock.ExpectCommit()

	_, err := repo.CreateIfAbsent(context.Background(), "Patient",
		map[string]any{"name": "Alice"}, map[string]any{"name": "Alice"},
		txn.WithSerializable())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Two concurrent serializable conditional creates for the same
// identifier: the engine lets at most one commit. sqlite and go-sqlmock
// cannot run real SSI, so the engine's conflict decision is scripted
// here (the loser's COMMIT fails with SQLSTATE 40001, exactly what
// PostgreSQL returns); what the test verifies for real is everything on
// our side of the wire: both tasks race through the same code path and
// the loser's commit failure surfaces as a conflict outcome, not a
// success with a duplicate.
func TestCreateIfAbsent_ConcurrentSerializableRaceHasOneLoser(t *testing.T) {
	winner, winnerMock := newMockedRepo(t)
	expectSerializableConditionalCreate(winnerMock)
	winnerMock.ExpectCommit()

	loser, loserMock := newMockedRepo(t)
	expectSerializableConditionalCreate(loserMock)
	loserMock.ExpectCommit().WillReturnError(&pq.Error{
		Code:    "40001",
		Message: "could not serialize access due to read/write dependencies among transactions",
	})

	identifying := map[string]any{"name": "Alice"}
	errs := make([]error, 2)

	var wg sync.WaitGroup
	for i, repo := range []*resource.Repository{winner, loser} {
		wg.Add(1)
		go func(i int, repo *resource.Repository) {
			defer wg.Done()
			_, errs[i] = repo.CreateIfAbsent(context.Background(), "Patient",
				identifying, map[string]any{"name": "Alice"}, txn.WithSerializable())
		}(i, repo)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	assert.True(t, resource.IsConflict(errs[1]))

	var outcome *resource.OutcomeError
	require.ErrorAs(t, errs[1], &outcome)
	assert.Equal(t, txn.CodeSerializationConflict, outcome.Code)

	require.NoError(t, winnerMock.ExpectationsWereMet())
	require.NoError(t, loserMock.ExpectationsWereMet())
}
