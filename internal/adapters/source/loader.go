package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	duckdb "github.com/duckdb/duckdb-go/v2"

	"github.com/okian/spanline/internal/domain/model"
	"github.com/okian/spanline/pkg/logger"
	"github.com/okian/spanline/pkg/metrics"
)

// Loader reads the parquet exports of a site through an in-process DuckDB.
type Loader struct {
	base   string
	tables []Table
	log    logger.Logger

	connector *duckdb.Connector
	db        *sql.DB
}

// NewLoader prepares a loader for exports under base. Remote bases
// (s3://, https://) load the httpfs extension.
func NewLoader(ctx context.Context, base string, opts ...Option) (*Loader, error) {
	l := &Loader{
		base:   base,
		tables: AllTables,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.Named("source")
	}

	connector, err := duckdb.NewConnector("", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: connector: %w", ErrLoaderSetup, err)
	}
	l.connector = connector
	l.db = sql.OpenDB(connector)

	if isRemote(base) {
		for _, stmt := range []string{"INSTALL httpfs", "LOAD httpfs"} {
			if _, err := l.db.ExecContext(ctx, stmt); err != nil {
				_ = l.Close()
				return nil, fmt.Errorf("%w: %s: %w", ErrLoaderSetup, stmt, err)
			}
		}
	}
	return l, nil
}

// Close releases the DuckDB handles.
func (l *Loader) Close() error {
	var errs []error
	if l.db != nil {
		errs = append(errs, l.db.Close())
	}
	if l.connector != nil {
		errs = append(errs, l.connector.Close())
	}
	return errors.Join(errs...)
}

// Path returns where table of site is read from.
func (l *Loader) Path(site string, table Table) string {
	if isRemote(l.base) {
		return strings.TrimRight(l.base, "/") + "/" + site + "/" + table.Filename()
	}
	return filepath.Join(l.base, site, table.Filename())
}

// Load reads every configured table of site. Missing tables are skipped and
// reported; access or remote failures and schema violations abort the site.
func (l *Loader) Load(ctx context.Context, site string) (*Tables, error) {
	out := NewTables(site)
	var missing []string

	for _, table := range l.tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spec, ok := specs[table]
		if !ok {
			continue
		}
		path := l.Path(site, table)
		n, err := l.loadTable(ctx, path, table, spec, out)
		if err != nil {
			var sv *model.SchemaViolation
			if errors.As(err, &sv) {
				metrics.RecordTableLoadError(site, string(table), "schema")
				return nil, err
			}
			le := Classify(site, string(table), err)
			metrics.RecordTableLoadError(site, string(table), KindName(le))
			if le.Recoverable() {
				l.log.Debug(ctx, "raw table missing, skipping",
					logger.String("site", site), logger.String("table", string(table)), logger.String("path", path))
				missing = append(missing, string(table))
				continue
			}
			l.log.Error(ctx, "raw table load failed",
				logger.String("site", site), logger.String("table", string(table)), logger.Error(err))
			return nil, le
		}
		out.MarkLoaded(table, n)
		metrics.SetTableRows(site, string(table), n)
	}

	l.log.Info(ctx, "raw tables loaded",
		logger.String("site", site),
		logger.Int("loaded", len(out.Loaded())),
		logger.Int("known", len(l.tables)))
	if len(missing) > 0 {
		l.log.Warn(ctx, "raw tables missing",
			logger.String("site", site), logger.Int("count", len(missing)),
			logger.String("tables", strings.Join(missing, ", ")))
	}
	return out, nil
}

func (l *Loader) loadTable(ctx context.Context, path string, table Table, spec tableSpec, out *Tables) (int, error) {
	// DuckDB reports a missing local file as an empty glob, so check first.
	if !isRemote(path) {
		if _, err := os.Stat(path); err != nil {
			return 0, err
		}
	}

	present, err := l.columns(ctx, path)
	if err != nil {
		return 0, err
	}
	var absent []string
	for _, c := range spec.columns {
		if !c.optional && !present[c.name] {
			absent = append(absent, c.name)
		}
	}
	if len(absent) > 0 {
		return 0, &model.SchemaViolation{Stage: "load " + string(table), Missing: absent}
	}

	query := fmt.Sprintf("SELECT %s FROM read_parquet(%s)", selectList(spec.columns, present), quoteLiteral(path))
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		rec := newRecord(spec.columns)
		if err := rows.Scan(rec.dest...); err != nil {
			return n, fmt.Errorf("scan %s: %w", table, err)
		}
		spec.add(out, rec)
		n++
	}
	return n, rows.Err()
}

func (l *Loader) columns(ctx context.Context, path string) (map[string]bool, error) {
	rows, err := l.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM read_parquet(%s) LIMIT 0", quoteLiteral(path)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
	}
	return present, nil
}

func isRemote(path string) bool {
	return strings.Contains(path, "://")
}
