package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/merchant-intake/constants"
	"github.com/joseph-ayodele/merchant-intake/internal/common"
	"github.com/joseph-ayodele/merchant-intake/internal/reconcile"
)

func sampleRun(sessionID string, at time.Time) *Run {
	return &Run{
		SessionID: sessionID,
		Target:    "entity",
		Category:  constants.CertInc,
		FileName:  "cert.png",
		MimeType:  "image/png",
		Outcome:   constants.RunPartial,
		Notice:    constants.NoticePartialFailure,
		Remote:    EngineOutput{Fields: map[string]string{}, Error: "quota exceeded", DurationMS: 12},
		Local: EngineOutput{
			Fields:     map[string]string{constants.FieldRegistrationNumber: "HE274180"},
			RawText:    "REGISTRATION NO HE274180",
			DurationMS: 30,
		},
		Merged:  map[string]string{constants.FieldRegistrationNumber: "HE274180"},
		Sources: map[string]reconcile.Source{constants.FieldRegistrationNumber: reconcile.SourceLocal},
		Disagreements: []reconcile.Disagreement{
			{Field: constants.FieldCompanyName, Remote: "ACME LTD", Local: "ACME LIMITED"},
		},
		CreatedAt: at,
	}
}

func newMockRepo(t *testing.T) (RunRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRunRepository(NewDB(db, dialect.Postgres, nil), nil), mock
}

func TestInsertWritesAllColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	run := sampleRun("s1", time.UnixMilli(1700000000000))

	args := make([]driver.Value, len(runColumns))
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	mock.ExpectExec(`INSERT INTO "extraction_runs" \("id", "session_id", .*"created_at_ms"\) VALUES \(\$1, .*\$14\)`).
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), run))
	assert.NotEqual(t, uuid.Nil, run.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertWrapsDatabaseErrors(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`INSERT INTO "extraction_runs"`).WillReturnError(errors.New("connection reset"))

	err := repo.Insert(context.Background(), sampleRun("s1", time.Now()))
	assert.ErrorIs(t, err, common.ErrDatabase)
}

func TestListBySessionDecodesRows(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	rows := sqlmock.NewRows(runColumns).AddRow(
		id.String(), "s1", "officer:o1", "PASSPORT_ID", "pp.jpg", "image/jpeg",
		"COMPLETE", "",
		`{"fields":{"passport_number":"K0123456"},"duration_ms":5}`,
		`{"fields":{"passport_number":"K0123456"},"raw_text":"P<UTO","duration_ms":9}`,
		`{"passport_number":"K0123456"}`,
		`{"passport_number":"remote"}`,
		`null`,
		int64(1700000000000),
	)
	mock.ExpectQuery(`SELECT (.+) FROM "extraction_runs" WHERE "session_id" = \$1 ORDER BY`).
		WithArgs("s1").
		WillReturnRows(rows)

	got, err := repo.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	r := got[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, constants.PassportID, r.Category)
	assert.Equal(t, constants.RunComplete, r.Outcome)
	assert.Equal(t, "P<UTO", r.Local.RawText)
	assert.Equal(t, reconcile.SourceRemote, r.Sources[constants.FieldPassportNumber])
	assert.Nil(t, r.Disagreements)
	assert.Equal(t, int64(1700000000000), r.CreatedAt.UnixMilli())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingIsNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`SELECT (.+) FROM "extraction_runs" WHERE "id" = \$1`).
		WillReturnRows(sqlmock.NewRows(runColumns))

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteMigrateAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, "", nil)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, db.HealthCheck(ctx, time.Second))

	var index string
	require.NoError(t, db.sqlDB.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name NOT LIKE 'sqlite_autoindex%'`, TableExtractionRuns).Scan(&index))
	assert.Equal(t, "extraction_runs_session_created", index)

	repo := NewRunRepository(db, nil)
	first := sampleRun("s1", time.UnixMilli(1000))
	second := sampleRun("s1", time.UnixMilli(2000))
	second.Outcome = constants.RunComplete
	other := sampleRun("s2", time.UnixMilli(1500))
	for _, r := range []*Run{second, other, first} {
		require.NoError(t, repo.Insert(ctx, r))
	}

	runs, err := repo.ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first.ID, runs[0].ID)
	assert.Equal(t, second.ID, runs[1].ID)
	assert.Equal(t, first.Disagreements, runs[0].Disagreements)
	assert.Equal(t, "quota exceeded", runs[0].Remote.Error)

	got, err := repo.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, "s2", got.SessionID)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	assert.Error(t, err)
}
