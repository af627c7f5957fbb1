package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cleanward/internal/logging"
)

// RunClickHouseMigrations executes every .sql file in path in name order.
// Statements must be idempotent (CREATE ... IF NOT EXISTS); ClickHouse has no
// migration bookkeeping here.
func RunClickHouseMigrations(ctx context.Context, db *ClickHouseDB, path string) error {
	logger := logging.FromContext(ctx).WithField("component", "clickhouse_migrate")

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		logger.Warn("no ClickHouse migration files found")
		return nil
	}

	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(path, name)) // #nosec G304 - path is operator supplied
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		for i, stmt := range splitSQLStatements(string(content)) {
			if err := db.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("statement %d in %s: %w", i+1, name, err)
			}
		}
		logger.WithField("file", name).Info("applied ClickHouse migration")
	}

	return nil
}

// splitSQLStatements splits a script on statement-ending semicolons,
// dropping blank lines and full-line comments
func splitSQLStatements(content string) []string {
	var statements []string
	var current strings.Builder

	flush := func() {
		stmt := strings.TrimSuffix(strings.TrimSpace(current.String()), ";")
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()

	return statements
}
