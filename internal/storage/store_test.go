package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/pkg/contracts/domain"
)

func newAnalysis(name string, uploadedAt time.Time) *domain.Analysis {
	return &domain.Analysis{
		ID:         uuid.New().String(),
		Name:       name,
		FileName:   name + ".xlsx",
		UploadedAt: uploadedAt,
		UpdatedAt:  uploadedAt,
		Dataset: &domain.Dataset{
			Schema: domain.Schema{Columns: []domain.Column{
				{Index: 0, Kind: domain.ColumnAccount, Name: "CONTA", SubID: "CONTA"},
				{Index: 1, Kind: domain.ColumnData, Name: "Pessoal - Salário", Area: "Pessoal", RawArea: "Pessoal", SubID: "Salário"},
			}},
			Rows: []domain.ExpenseRow{
				{RowID: "3", Account: "Vendas", Values: map[string]float64{"Pessoal - Salário": 100}, RowTotal: 100, SourceRow: 3},
				{RowID: "4", Account: "Compras", Values: map[string]float64{"Pessoal - Salário": 50}, RowTotal: 50, SourceRow: 4},
			},
		},
	}
}

// runStoreContract exercises behaviour every AnalysisStore must share
func runStoreContract(t *testing.T, store AnalysisStore) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	t.Run("create and get", func(t *testing.T) {
		a := newAnalysis("custos", base)
		require.NoError(t, store.Create(ctx, a))

		got, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.Name, got.Name)
		assert.Equal(t, a.FileName, got.FileName)
		assert.WithinDuration(t, a.UploadedAt, got.UploadedAt, time.Millisecond)
		assert.Equal(t, a.Dataset.Schema, got.Dataset.Schema)
		assert.Equal(t, a.Dataset.Rows, got.Dataset.Rows)

		err = store.Create(ctx, a)
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New().String())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returned copies are independent", func(t *testing.T) {
		a := newAnalysis("copy", base)
		require.NoError(t, store.Create(ctx, a))

		got, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		got.Dataset.Rows[0].Values["Pessoal - Salário"] = 999
		got.Name = "changed"

		again, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "copy", again.Name)
		assert.Equal(t, 100.0, again.Dataset.Rows[0].Values["Pessoal - Salário"])
	})

	t.Run("update replaces dataset", func(t *testing.T) {
		a := newAnalysis("update", base)
		require.NoError(t, store.Create(ctx, a))

		a.Name = "renamed"
		a.UpdatedAt = base.Add(time.Minute)
		a.Dataset.Rows = a.Dataset.Rows[:1]
		a.Dataset.Rows[0].Values["Pessoal - Salário"] = 10
		a.Dataset.Rows[0].RowTotal = 10
		require.NoError(t, store.Update(ctx, a))

		got, err := store.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		require.Len(t, got.Dataset.Rows, 1)
		assert.Equal(t, 10.0, got.Dataset.Rows[0].RowTotal)
		assert.WithinDuration(t, base, got.UploadedAt, time.Millisecond)

		missing := newAnalysis("missing", base)
		assert.ErrorIs(t, store.Update(ctx, missing), ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		a := newAnalysis("delete", base)
		require.NoError(t, store.Create(ctx, a))
		require.NoError(t, store.Delete(ctx, a.ID))

		_, err := store.Get(ctx, a.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, store.Delete(ctx, a.ID), ErrNotFound)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	runStoreContract(t, store)
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 12; i++ {
		require.NoError(t, store.Create(ctx, newAnalysis("a", base.Add(time.Duration(i)*time.Hour))))
	}

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 12)

	recent, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, base.Add(11*time.Hour), recent[0].UploadedAt)
	for i := 1; i < len(recent); i++ {
		assert.True(t, recent[i-1].UploadedAt.After(recent[i].UploadedAt))
	}
	assert.Equal(t, 2, recent[0].RowCount)
	assert.Equal(t, 1, recent[0].ColumnCount)
}

// TestPostgresStore runs against a real database when CUSTOS_TEST_DATABASE_URL is set
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("CUSTOS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CUSTOS_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, PostgresConfig{DSN: dsn, MaxConns: 4}, nil)
	require.NoError(t, err)
	defer store.Close()

	runStoreContract(t, store)

	summaries, err := store.List(ctx, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(summaries), 3)
}

func TestNewPostgresStoreInvalidDSN(t *testing.T) {
	_, err := NewPostgresStore(context.Background(), PostgresConfig{DSN: "postgres://%zz"}, nil)
	assert.Error(t, err)
}
