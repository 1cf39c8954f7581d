package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// maxToolRows bounds what one tool call can feed back into a prompt.
const maxToolRows = 50

// PreferenceTool executes validated read-only SQL over the user data tables
// and renders the rows as tab-separated text for the model to rewrite.
// Failures are encoded in the result string with an "ERROR:" prefix so the
// conversation layer can degrade instead of branching on error types.
type PreferenceTool struct {
	db  *sql.DB
	log *slog.Logger
}

func NewPreferenceTool(db *sql.DB, log *slog.Logger) *PreferenceTool {
	if log == nil {
		log = slog.Default()
	}
	return &PreferenceTool{db: db, log: log}
}

func (t *PreferenceTool) Execute(ctx context.Context, query string) string {
	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		t.log.Warn("data tool query failed", "error", err)
		return fmt.Sprintf("ERROR: query failed: %v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Sprintf("ERROR: read columns: %v", err)
	}

	var b strings.Builder
	b.WriteString(strings.Join(cols, "\t"))

	count := 0
	values := make([]any, len(cols))
	for i := range values {
		values[i] = new(sql.NullString)
	}
	for rows.Next() {
		if count >= maxToolRows {
			break
		}
		if err := rows.Scan(values...); err != nil {
			return fmt.Sprintf("ERROR: scan row: %v", err)
		}
		fields := make([]string, len(cols))
		for i, v := range values {
			fields[i] = v.(*sql.NullString).String
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(fields, "\t"))
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Sprintf("ERROR: iterate rows: %v", err)
	}
	if count == 0 {
		return ""
	}
	return b.String()
}
