package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

//go:embed schema.sql
var schema string

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Connect opens a pool, routes pgx query traces to the logger and pings once.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   newZapTracer(logger),
		LogLevel: tracelog.LogLevelInfo,
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

type zapTracer struct {
	logger *zap.Logger
}

func newZapTracer(l *zap.Logger) *zapTracer {
	return &zapTracer{logger: l}
}

func (t *zapTracer) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := []zap.Field{
		zap.Any("sql", data["sql"]),
		zap.Any("args", data["args"]),
		zap.Any("time", data["time"]),
	}
	if err, ok := data["err"].(error); ok {
		fields = append(fields, zap.Error(err))
	}

	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		t.logger.Debug(msg, fields...)
	case tracelog.LogLevelInfo:
		t.logger.Debug(msg, fields...)
	case tracelog.LogLevelWarn:
		t.logger.Warn(msg, fields...)
	case tracelog.LogLevelError:
		t.logger.Error(msg, fields...)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// pageOffset converts a 1-based page number into a row offset.
func pageOffset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
