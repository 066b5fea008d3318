package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ledgerRow struct {
	ID        uint   `gorm:"primaryKey"`
	AccountID string `gorm:"size:64"`
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", samplerFor(1).Description())
	assert.Equal(t, "AlwaysOffSampler", samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestNewDBTracingPlugin_Defaults(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, zap.NewNop())
	assert.Equal(t, 200*time.Millisecond, p.config.SlowQueryThresh)
	assert.Equal(t, "postgresql", p.config.DBSystem)

	d := DefaultDBTracingConfig()
	assert.False(t, d.Enabled)
	assert.False(t, d.LogFullSQL)
}

func statementDB(ctx context.Context, table string) *gorm.DB {
	db := &gorm.DB{}
	db.Statement = &gorm.Statement{DB: db, Context: ctx, Table: table}
	return db
}

func TestAfterQuery_AnnotatesSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Millisecond}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "gorm.Query")
	ctx = context.WithValue(ctx, queryStartTimeKey, time.Now().Add(-time.Second))

	db := statementDB(ctx, "dre_ledger_entries")
	db.RowsAffected = 7
	db.Error = errors.New("connection reset")
	p.afterQuery(db)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, int64(7), attrs["db.rows_affected"])
	assert.Equal(t, "dre_ledger_entries", attrs["db.sql.table"])
	assert.Equal(t, true, attrs["db.slow_query"])
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Events(), 2) // exception + slow_query_warning
}

func TestAfterQuery_RecordNotFoundIsNotAnError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Hour}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "gorm.Query")
	ctx = context.WithValue(ctx, queryStartTimeKey, time.Now())
	db := statementDB(ctx, "")
	db.Error = gorm.ErrRecordNotFound
	p.afterQuery(db)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Empty(t, spans[0].Events())
}

func TestRegisterOtelGorm(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&ledgerRow{}))

	t.Run("disabled is a no-op", func(t *testing.T) {
		p := NewDBTracingPlugin(DBTracingConfig{}, zap.NewNop())
		require.NoError(t, p.RegisterOtelGorm(db))
		require.NoError(t, db.Create(&ledgerRow{AccountID: "3.01"}).Error)
		assert.Empty(t, recorder.Ended())
	})

	t.Run("enabled emits spans", func(t *testing.T) {
		p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop())
		require.NoError(t, p.RegisterOtelGorm(db))

		var rows []ledgerRow
		require.NoError(t, db.WithContext(context.Background()).Find(&rows).Error)
		assert.Len(t, rows, 1)
		assert.NotEmpty(t, recorder.Ended())
	})
}
