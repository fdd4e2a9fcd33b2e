package sink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/ashh-m/ytkeywordsearchtool/internal/harvest"
)

func TestPostgresAppendBatchUpsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWithPool(mock, "harvested_items")
	require.NoError(t, err)

	title := "hello"
	rec := harvest.UnifiedRecord{
		ID:         "AAAAAAAAAAA",
		Type:       "video",
		URL:        "https://www.youtube.com/watch?v=AAAAAAAAAAA",
		Title:      &title,
		DataSource: harvest.SourcePage,
	}
	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO harvested_items").
		WithArgs(rec.ID, rec.Type, rec.URL, rec.DataSource, payload).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = s.AppendBatch(context.Background(), []harvest.UnifiedRecord{rec})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendBatchAbortsOnFirstFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWithPool(mock, "harvested_items")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO harvested_items").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	records := []harvest.UnifiedRecord{
		{ID: "AAAAAAAAAAA", Type: "video"},
		{ID: "BBBBBBBBBBB", Type: "video"},
	}
	err = s.AppendBatch(context.Background(), records)
	require.Error(t, err)
	require.Contains(t, err.Error(), "AAAAAAAAAAA")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRejectsEmptyRecordID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s, err := NewPostgresWithPool(mock, "harvested_items")
	require.NoError(t, err)

	err = s.AppendBatch(context.Background(), []harvest.UnifiedRecord{{Type: "video"}})
	require.Error(t, err)
}

func TestPostgresValidatesTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresWithPool(mock, "items; DROP TABLE users")
	require.Error(t, err)

	s, err := NewPostgresWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, "harvested_items", s.table)
}

func TestPostgresRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewPostgresWithPool(nil, "harvested_items")
	require.Error(t, err)
}
