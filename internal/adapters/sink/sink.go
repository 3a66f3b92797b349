// Package sink writes pipeline output to parquet through an in-process DuckDB.
// Rows are appended into a scratch table with the DuckDB appender and then
// copied out in one statement.
package sink

import (
	"context"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/okian/spanline/internal/domain/derived"
	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/pkg/logger"
)

// File suffixes of the per-site outputs.
const (
	UsageSuffix  = ".usage.parquet"
	CompatSuffix = ".compat.parquet"
)

const usageDDL = `CREATE TABLE %s (
	timestamp TIMESTAMP,
	metric VARCHAR,
	resource VARCHAR,
	value DOUBLE,
	site VARCHAR,
	collector_type VARCHAR
)`

const compatDDL = `CREATE TABLE %s (
	date TIMESTAMP,
	site VARCHAR,
	node_type VARCHAR,
	maintenance DOUBLE,
	available DOUBLE,
	idle_reservation DOUBLE,
	active DOUBLE,
	total DOUBLE
)`

// Writer writes per-site parquet files into a directory. It is safe for
// concurrent use; each write uses its own connection and scratch table.
type Writer struct {
	dir       string
	log       logger.Logger
	connector *duckdb.Connector
}

// NewWriter creates the output directory and an in-memory DuckDB.
func NewWriter(dir string, opts ...Option) (*Writer, error) {
	w := &Writer{dir: dir}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Named("sink")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWrite, dir, err)
	}
	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connector: %w", ErrWrite, err)
	}
	w.connector = connector
	return w, nil
}

// Close releases the DuckDB handle.
func (w *Writer) Close() error {
	return w.connector.Close()
}

// UsagePath returns the usage output of site.
func (w *Writer) UsagePath(site string) string {
	return filepath.Join(w.dir, site+UsageSuffix)
}

// CompatPath returns the compat output of site.
func (w *Writer) CompatPath(site string) string {
	return filepath.Join(w.dir, site+CompatSuffix)
}

// WriteUsage writes points to the usage file of site, replacing it.
func (w *Writer) WriteUsage(ctx context.Context, site string, points []model.UsagePoint) (string, error) {
	path := w.UsagePath(site)
	err := w.write(ctx, usageDDL, "site, metric, resource, timestamp", path, func(a *duckdb.Appender) error {
		for _, p := range points {
			if err := a.AppendRow(p.Timestamp.UTC(), string(p.Metric), string(p.Resource), p.Value, p.Site, string(p.CollectorType)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	w.log.Info(ctx, "usage written", logger.String("site", site), logger.String("path", path), logger.Int("points", len(points)))
	return path, nil
}

// WriteCompat writes daily canonical-state hours to the compat file of site.
func (w *Writer) WriteCompat(ctx context.Context, site string, rows []derived.CompatRow) (string, error) {
	path := w.CompatPath(site)
	err := w.write(ctx, compatDDL, "site, date", path, func(a *duckdb.Appender) error {
		for _, r := range rows {
			if err := a.AppendRow(r.Date.UTC(), r.Site, r.NodeType,
				r.Maintenance, r.Available, r.IdleReservation, r.Active, r.Total); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	w.log.Info(ctx, "compat written", logger.String("site", site), logger.String("path", path), logger.Int("rows", len(rows)))
	return path, nil
}

func (w *Writer) write(ctx context.Context, ddl, orderBy, path string, fill func(*duckdb.Appender) error) (err error) {
	conn, err := w.connector.Connect(ctx)
	if err != nil {
		return fmt.Errorf("%w: connect: %w", ErrWrite, err)
	}
	defer conn.Close()
	duckConn, ok := conn.(*duckdb.Conn)
	if !ok {
		return fmt.Errorf("%w: unexpected connection type %T", ErrWrite, conn)
	}

	table := "scratch_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := exec(ctx, duckConn, fmt.Sprintf(ddl, table)); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrWrite, table, err)
	}
	defer func() {
		if dropErr := exec(context.WithoutCancel(ctx), duckConn, "DROP TABLE IF EXISTS "+table); dropErr != nil && err == nil {
			err = fmt.Errorf("%w: drop %s: %w", ErrWrite, table, dropErr)
		}
	}()

	appender, err := duckdb.NewAppenderFromConn(duckConn, "", table)
	if err != nil {
		return fmt.Errorf("%w: appender: %w", ErrWrite, err)
	}
	if err := fill(appender); err != nil {
		_ = appender.Close()
		return fmt.Errorf("%w: append: %w", ErrWrite, err)
	}
	if err := appender.Flush(); err != nil {
		_ = appender.Close()
		return fmt.Errorf("%w: flush: %w", ErrWrite, err)
	}
	if err := appender.Close(); err != nil {
		return fmt.Errorf("%w: close appender: %w", ErrWrite, err)
	}

	copySQL := fmt.Sprintf("COPY (SELECT * FROM %s ORDER BY %s) TO '%s' (FORMAT PARQUET)",
		table, orderBy, strings.ReplaceAll(path, "'", "''"))
	if err := exec(ctx, duckConn, copySQL); err != nil {
		return fmt.Errorf("%w: copy to %s: %w", ErrWrite, path, err)
	}
	return nil
}

func exec(ctx context.Context, conn *duckdb.Conn, query string) error {
	_, err := conn.ExecContext(ctx, query, []driver.NamedValue{})
	return err
}
