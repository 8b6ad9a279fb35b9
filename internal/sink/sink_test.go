package sink

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard/sentinel/internal/model"
)

func TestStore_NewDetectionReturnsStoredTrue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO detections").
		WillReturnRows(pgxmock.NewRows([]string{"evidence_id"}).AddRow("evidence-1"))

	s := New(mock)
	stored, err := s.Store(context.Background(), model.Detection{
		EvidenceID:   "test-run-EBAY-20260101-120000-abc123",
		Platform:     "ebay",
		ListingURL:   "https://example.com/1",
		ListingTitle: "Carved ivory",
		ThreatLevel:  model.LevelCritical,
	})

	assert.NoError(t, err)
	assert.True(t, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DuplicateURLReturnsStoredFalse(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO detections").
		WillReturnError(pgx.ErrNoRows)

	s := New(mock)
	stored, err := s.Store(context.Background(), model.Detection{
		EvidenceID: "test-run-EBAY-20260101-120000-abc123",
		Platform:   "ebay",
		ListingURL: "https://example.com/1",
	})

	assert.NoError(t, err)
	assert.False(t, stored)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_DatabaseErrorIsWrapped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO detections").
		WillReturnError(assertErr("connection lost"))

	s := New(mock)
	_, err = s.Store(context.Background(), model.Detection{
		EvidenceID: "test-run-EBAY-20260101-120000-def456",
		Platform:   "ebay",
		ListingURL: "https://example.com/2",
	})

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MissingEvidenceIDIsRejected(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := New(mock)
	stored, err := s.Store(context.Background(), model.Detection{Platform: "ebay", ListingURL: "https://example.com/3"})

	assert.Error(t, err)
	assert.False(t, stored)
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
