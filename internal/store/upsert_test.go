package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard/sentinel/internal/model"
)

func TestUpsertRunSummary_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO run_summaries").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	summary := model.RunSummary{
		RunTag:           "run-2026-07-31",
		StartedAt:        time.Now(),
		EndedAt:          time.Now(),
		Cycles:           10,
		ListingsScanned:  500,
		DetectionsStored: 12,
		ByPlatform:       map[string]int{"ebay": 6, "avito": 6},
		ByLevel:          map[string]int{"CRITICAL": 2, "HIGH": 10},
	}

	err = UpsertRunSummary(context.Background(), mock, summary)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRunSummary_DatabaseErrorIsWrapped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO run_summaries").WillReturnError(assertErr("write failed"))

	err = UpsertRunSummary(context.Background(), mock, model.RunSummary{RunTag: "run-1"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
