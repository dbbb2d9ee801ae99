package database

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type errStr string

func (e errStr) Error() string { return string(e) }

func TestRetryBackoff_WithinJitterBounds(t *testing.T) {
	for attempt := 0; attempt < 3; attempt++ {
		base := defaultRetryBaseWait << attempt
		lo := time.Duration(float64(base) * (1 - retryJitterFraction))
		hi := time.Duration(float64(base) * (1 + retryJitterFraction))
		for i := 0; i < 20; i++ {
			d := retryBackoff(attempt)
			assert.GreaterOrEqual(t, d, lo)
			assert.LessOrEqual(t, d, hi)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(errStr("dial tcp 127.0.0.1:5432: connection refused")))
	assert.True(t, isConnectionError(errStr("unexpected EOF")))
	assert.False(t, isConnectionError(errStr("syntax error at or near \"CREATE\"")))
	assert.False(t, isConnectionError(errStr("duplicate key value violates unique constraint")))
}

func TestPostgresConfig_DSNEscapesCredentials(t *testing.T) {
	cfg := PostgresConfig{Host: "db", Port: 5432, User: "shop", Password: "p@ss/word", DBName: "storefront", SSLMode: "disable"}
	dsn := cfg.DSN()
	assert.True(t, strings.HasPrefix(dsn, "postgres://shop:p%40ss%2Fword@db:5432/storefront"))
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestWithStartupRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := withStartupRetry(context.Background(), "probe", quietLogger(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithStartupRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withStartupRetry(ctx, "probe", quietLogger(), func() error { return errStr("down") })
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func migrationsFS() fstest.MapFS {
	return fstest.MapFS{
		"000002_second.up.sql":     {Data: []byte("ALTER TABLE kv_store ADD COLUMN x INT")},
		"000001_kv_store.up.sql":   {Data: []byte("CREATE TABLE kv_store (k TEXT)")},
		"000001_kv_store.down.sql": {Data: []byte("DROP TABLE kv_store")},
		"README.md":                {Data: []byte("ignored")},
	}
}

func TestRunMigrations_AppliesPendingInOrder(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(createMigrationsTable).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	check := "SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)"
	mock.ExpectQuery(check).WithArgs("000001_kv_store.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	mock.ExpectQuery(check).WithArgs("000002_second.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("ALTER TABLE kv_store ADD COLUMN x INT").WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectExec("INSERT INTO schema_migrations (version) VALUES ($1)").
		WithArgs("000002_second.up.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, RunMigrations(context.Background(), mock, migrationsFS(), quietLogger()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_SQLErrorRollsBackWithoutRetry(t *testing.T) {
	mock, err := NewMockPool()
	require.NoError(t, err)
	defer mock.Close()

	fsys := fstest.MapFS{"000001_kv_store.up.sql": {Data: []byte("CREATE TABLE broken")}}

	mock.ExpectExec(createMigrationsTable).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)").
		WithArgs("000001_kv_store.up.sql").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE broken").WillReturnError(errStr("syntax error at end of input"))
	mock.ExpectRollback()

	err = RunMigrations(context.Background(), mock, fsys, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute migration 000001_kv_store.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "storefront")

	ch := make(chan *prometheus.Desc, 16)
	c.Describe(ch)
	close(ch)

	var descs []string
	for d := range ch {
		descs = append(descs, d.String())
	}
	require.Len(t, descs, 7)
	assert.Contains(t, strings.Join(descs, "\n"), "storefront_db_pool_acquired_connections")
	assert.Contains(t, strings.Join(descs, "\n"), "storefront_db_pool_empty_acquire_total")
}

func setupTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return exporter
}

func TestTraceQuery_RecordsSpanAndSlowQuery(t *testing.T) {
	exporter := setupTestTracer(t)

	var buf bytes.Buffer
	SetSlowQueryLogging(time.Nanosecond, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "kv.set", "INSERT INTO kv_store ...")
	end(errors.New("unique violation"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "db.kv.set", spans[0].Name)
	assert.Contains(t, buf.String(), "slow query")
	assert.Contains(t, buf.String(), "unique violation")
}

func TestTraceQuery_FastQueryNotLogged(t *testing.T) {
	setupTestTracer(t)

	var buf bytes.Buffer
	SetSlowQueryLogging(time.Hour, slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { SetSlowQueryLogging(0, nil) })

	_, end := TraceQuery(context.Background(), "kv.get", "SELECT 1")
	end(nil)
	assert.Empty(t, buf.String())
}
