//go:build integration

package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/erp/dre/internal/infrastructure/config"
	"github.com/erp/dre/internal/infrastructure/migration"
	"github.com/erp/dre/migrations"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	gormlogger "gorm.io/gorm/logger"
)

// newPostgresDatabase starts a PostgreSQL container and applies the embedded migrations
func newPostgresDatabase(t *testing.T) *Database {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("dre_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(postgres.Open(dsn), &config.DatabaseConfig{MaxOpenConns: 5, MaxIdleConns: 2}, zap.NewNop(),
		WithLogLevel(gormlogger.Silent))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, migration.Source{FS: migrations.FS}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	version, dirty, err := m.Version()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(3), version)

	return db
}

func TestPostgres_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := newPostgresDatabase(t)
	ctx := context.Background()

	t.Run("templates", func(t *testing.T) {
		repo := NewGormTemplateRepository(db.DB)
		tpl := newTemplate(t, "Postgres DRE", "finance")
		tpl.Tags = []string{"schedule:daily"}
		require.NoError(t, repo.Save(ctx, tpl))

		got, err := repo.FindByName(ctx, "Postgres DRE")
		require.NoError(t, err)
		assert.Equal(t, tpl.ID, got.ID)
		require.Len(t, got.Items, 3)
		assert.Equal(t, []string{"3.01"}, got.Items[0].AccountRefs)

		filter := shared.DefaultFilter()
		filter.Filters["tag"] = "schedule:daily"
		list, err := repo.FindAll(ctx, filter)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		stale, err := repo.FindByID(ctx, tpl.ID)
		require.NoError(t, err)
		require.NoError(t, got.Rename("Postgres DRE v2"))
		require.NoError(t, repo.Save(ctx, got))
		require.NoError(t, stale.Rename("Postgres DRE v3"))
		assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrConcurrencyConflict)

		require.NoError(t, repo.Delete(ctx, tpl.ID))
		_, err = repo.FindByID(ctx, tpl.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("ledger", func(t *testing.T) {
		repo := NewGormLedgerRepository(db.DB)
		require.NoError(t, repo.SaveBatch(ctx, []dre.AccountRecord{
			{AccountID: "3.01", UnitID: "U1", Date: date("2024-01-05"), Amount: decimal.RequireFromString("1234.56")},
			{AccountID: "4.01", UnitID: "U2", CostCenterID: "CC1", Date: date("2024-01-31"), Amount: decimal.NewFromInt(200)},
			{AccountID: "3.01", UnitID: "U1", Date: date("2024-02-01"), Amount: decimal.NewFromInt(1)},
		}))

		january := dre.Period{Start: date("2024-01-01"), End: date("2024-02-01")}
		got, err := repo.FindRecords(ctx, dre.LedgerQuery{Period: january})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.True(t, decimal.RequireFromString("1234.56").Equal(got[0].Amount))

		count, err := repo.CountRecords(ctx, dre.LedgerQuery{Period: january, CostCenters: []string{"CC1"}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("runs", func(t *testing.T) {
		templates := NewGormTemplateRepository(db.DB)
		tpl := newTemplate(t, "Run owner", "finance")
		require.NoError(t, templates.Save(ctx, tpl))

		repo := NewGormRunRepository(db.DB)
		cfg := dre.ReportConfiguration{Period: dre.Period{Start: date("2024-01-01"), End: date("2024-02-01")}}
		run := dre.NewReportRun(tpl.ID, cfg, "scheduler", 1)
		require.NoError(t, repo.Save(ctx, run))

		due, err := repo.FindDue(ctx, time.Now().UTC(), 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, run.ID, due[0].ID)

		run.Start()
		run.Fail("ledger unavailable")
		require.NoError(t, repo.Save(ctx, run))

		got, err := repo.FindByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, dre.RunStatusFailed, got.Status)
		assert.Equal(t, "ledger unavailable", got.Error)
	})
}
