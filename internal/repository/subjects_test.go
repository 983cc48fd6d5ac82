package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupMockSubjectsDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *SubjectsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	logger := zap.NewNop()
	repo := NewSubjectsRepository(db, logger)

	return db, mock, repo
}

func TestCreateSubject_Success(t *testing.T) {
	db, mock, repo := setupMockSubjectsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO tracked_subjects`).
		WithArgs("person_1a2b3c4d", "normal", "cam_01", pq.Array([]float64{})).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.CreateSubject(ctx, "person_1a2b3c4d", []float64{}, "cam_01")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateSubject_InvalidTrackingID(t *testing.T) {
	db, mock, repo := setupMockSubjectsDB(t)
	defer db.Close()

	ctx := context.Background()

	err := repo.CreateSubject(ctx, "", nil, "cam_01")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "tracking_id is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSubjectStatus_WithCamera(t *testing.T) {
	db, mock, repo := setupMockSubjectsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectExec(`UPDATE tracked_subjects`).
		WithArgs("person_1a2b3c4d", "suspicious", "cam_02").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSubjectStatus(ctx, "person_1a2b3c4d", "suspicious", "cam_02")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSubjectStatus_WithoutCamera(t *testing.T) {
	db, mock, repo := setupMockSubjectsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectExec(`UPDATE tracked_subjects`).
		WithArgs("person_1a2b3c4d", "normal").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateSubjectStatus(ctx, "person_1a2b3c4d", "normal", "")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSubjectStatus_InvalidStatus(t *testing.T) {
	db, mock, repo := setupMockSubjectsDB(t)
	defer db.Close()

	ctx := context.Background()

	err := repo.UpdateSubjectStatus(ctx, "person_1a2b3c4d", "", "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status is required")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubject_Success(t *testing.T) {
	db, mock, repo := setupMockSubjectsDB(t)
	defer db.Close()

	ctx := context.Background()
	createdAt := time.Now()
	updatedAt := time.Now()

	rows := sqlmock.NewRows([]string{
		"tracking_id", "current_status", "current_camera_id",
		"representative_thumbnail_url", "reid_vector", "created_at", "updated_at",
	}).AddRow(
		"person_1a2b3c4d", "suspicious", "cam_01",
		nil, "{0.1,0.2}", createdAt, updatedAt,
	)

	mock.ExpectQuery(`SELECT`).
		WithArgs("person_1a2b3c4d").
		WillReturnRows(rows)

	subject, err := repo.GetSubject(ctx, "person_1a2b3c4d")

	require.NoError(t, err)
	assert.Equal(t, "person_1a2b3c4d", subject.TrackingID)
	assert.Equal(t, "suspicious", subject.CurrentStatus)
	assert.Equal(t, "cam_01", subject.CurrentCameraID)
	assert.Nil(t, subject.ThumbnailURL)
	assert.Equal(t, []float64{0.1, 0.2}, subject.ReidVector)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubject_NotFound(t *testing.T) {
	db, mock, repo := setupMockSubjectsDB(t)
	defer db.Close()

	ctx := context.Background()

	mock.ExpectQuery(`SELECT`).
		WithArgs("person_ffffffff").
		WillReturnError(sql.ErrNoRows)

	subject, err := repo.GetSubject(ctx, "person_ffffffff")

	assert.Error(t, err)
	assert.Nil(t, subject)
	assert.Contains(t, err.Error(), "not found")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSubjectByVector_RanksBySimilarity(t *testing.T) {
	db, mock, repo := setupMockSubjectsDB(t)
	defer db.Close()

	ctx := context.Background()

	rows := sqlmock.NewRows([]string{
		"tracking_id", "current_status", "current_camera_id", "reid_vector",
	}).AddRow(
		"person_far", "normal", "cam_01", "{0,1}",
	).AddRow(
		"person_near", "normal", "cam_02", "{1,0}",
	)

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	results, err := repo.FindSubjectByVector(ctx, []float64{1, 0}, 1)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "person_near", results[0].TrackingID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindSubjectByVector_EmptyVector(t *testing.T) {
	db, mock, repo := setupMockSubjectsDB(t)
	defer db.Close()

	ctx := context.Background()

	results, err := repo.FindSubjectByVector(ctx, nil, 3)

	assert.Error(t, err)
	assert.Nil(t, results)

	require.NoError(t, mock.ExpectationsWereMet())
}
