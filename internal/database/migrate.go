package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies every migration in migrations/ that is not yet recorded
// in schema_migrations, in file name order.  It returns the names of the
// files applied by this call.
func Migrate(ctx context.Context, db *sql.DB) ([]string, error) {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version VARCHAR(255) NOT NULL PRIMARY KEY)`); err != nil {
		return nil, err
	}

	var applied []string
	for _, f := range files {
		var n int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, f).Scan(&n); err != nil {
			return applied, err
		}
		if n > 0 {
			continue
		}
		b, err := migrations.ReadFile("migrations/" + f)
		if err != nil {
			return applied, err
		}
		// DDL commits implicitly in MySQL, so a failed file is not rolled
		// back; statements are written to be re-runnable.
		for _, stmt := range Statements(string(b)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return applied, fmt.Errorf("apply %s: %w", f, err)
			}
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, f); err != nil {
			return applied, err
		}
		applied = append(applied, f)
	}
	return applied, nil
}

// Statements splits a migration file into statements on semicolons that
// end a line.  Lines starting with "--" are dropped.
func Statements(script string) []string {
	var (
		out []string
		cur strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			if stmt != "" {
				out = append(out, stmt)
			}
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest)
	}
	return out
}
