package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockVLMLogsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *VLMLogsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewVLMLogsRepository(db, logger)

	return db, mock, repo
}

func TestAddVLMLog_Success(t *testing.T) {
	db, mock, repo := setupMockVLMLogsDB(t)
	defer db.Close()

	ctx := context.Background()
	eventID := uuid.New().String()

	mock.ExpectExec(`INSERT INTO vlm_logs`).
		WithArgs(
			eventID,
			"cam_01",
			"Person lying motionless near the door.",
			pq.Array([]float64{0.1, 0.2, 0.3}),
			pq.Array([]string{"person_1a2b3c4d"}),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.AddVLMLog(ctx, eventID, "cam_01",
		"Person lying motionless near the door.",
		[]float64{0.1, 0.2, 0.3},
		[]string{"person_1a2b3c4d"},
	)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddVLMLog_MissingDescription(t *testing.T) {
	db, mock, repo := setupMockVLMLogsDB(t)
	defer db.Close()

	ctx := context.Background()

	err := repo.AddVLMLog(ctx, uuid.New().String(), "cam_01", "", nil, nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPersonInvolvement_Success(t *testing.T) {
	db, mock, repo := setupMockVLMLogsDB(t)
	defer db.Close()

	ctx := context.Background()
	eventA := uuid.New().String()
	eventB := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"event_id", "involvement_start", "involvement_end", "status", "start_time",
	}).AddRow(
		eventB, now.Add(-time.Minute), now, "active", now.Add(-2*time.Minute),
	).AddRow(
		eventA, now.Add(-time.Hour), now.Add(-50*time.Minute), "ended_cleared", now.Add(-time.Hour),
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("person_1a2b3c4d").
		WillReturnRows(rows)

	details, err := repo.GetPersonInvolvement(ctx, "person_1a2b3c4d")

	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, eventB, details[0].EventID)
	assert.Equal(t, "active", details[0].EventStatus)
	assert.Equal(t, eventA, details[1].EventID)
	assert.Equal(t, "ended_cleared", details[1].EventStatus)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPersonInvolvement_InvalidTrackingID(t *testing.T) {
	db, mock, repo := setupMockVLMLogsDB(t)
	defer db.Close()

	ctx := context.Background()

	details, err := repo.GetPersonInvolvement(ctx, "")

	assert.Error(t, err)
	assert.Nil(t, details)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchLogsByEmbedding_RanksBySimilarity(t *testing.T) {
	db, mock, repo := setupMockVLMLogsDB(t)
	defer db.Close()

	ctx := context.Background()
	eventID := uuid.New().String()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"event_id", "log_time", "collective_description", "description_embedding",
	}).AddRow(
		eventID, now.Add(-time.Minute), "Person walking.", "{0,1}",
	).AddRow(
		eventID, now, "Person on the floor.", "{1,0}",
	)

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	results, err := repo.SearchLogsByEmbedding(ctx, []float64{1, 0}, 1)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Person on the floor.", results[0].Description)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSearchLogsByEmbedding_EmptyQuery(t *testing.T) {
	db, mock, repo := setupMockVLMLogsDB(t)
	defer db.Close()

	ctx := context.Background()

	results, err := repo.SearchLogsByEmbedding(ctx, nil, 5)

	assert.Error(t, err)
	assert.Nil(t, results)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{1}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
