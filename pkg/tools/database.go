package tools

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/attache/attache/pkg/fault"
	"github.com/attache/attache/pkg/tools/safety"
)

// DatabaseQueryTool runs a read query against a SQLite file under the
// workspace. The gate's SQL rules screen every query before execution.
type DatabaseQueryTool struct {
	ws   *Workspace
	gate *safety.Gate
}

func NewDatabaseQueryTool(ws *Workspace, gate *safety.Gate) *DatabaseQueryTool {
	return &DatabaseQueryTool{ws: ws, gate: gate}
}

func (t *DatabaseQueryTool) Name() string { return "database_query" }

// Dangerous is false only because the gate's query rules forbid unscoped
// mutation; a query that passes them is treated as a read.
func (t *DatabaseQueryTool) Dangerous() bool { return false }

func (t *DatabaseQueryTool) Validate(params map[string]any) error {
	if _, err := stringParam(params, "db_path"); err != nil {
		return err
	}
	query, err := stringParam(params, "query")
	if err != nil {
		return err
	}
	return t.gate.CheckQuery(query)
}

func (t *DatabaseQueryTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	dbPath, err := stringParam(params, "db_path")
	if err != nil {
		return nil, err
	}
	query, err := stringParam(params, "query")
	if err != nil {
		return nil, err
	}
	if err := t.gate.CheckQuery(query); err != nil {
		return nil, err
	}

	abs, err := t.ws.Resolve(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", abs)
	if err != nil {
		return nil, fault.ToolFailed("open database %s: %v", dbPath, err)
	}
	defer db.Close()

	if isSelect(query) {
		return t.runQuery(ctx, db, query)
	}
	return t.runExec(ctx, db, query)
}

func (t *DatabaseQueryTool) runQuery(ctx context.Context, db *sql.DB, query string) (any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fault.ToolFailed("query: %v", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fault.ToolFailed("read columns: %v", err)
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fault.ToolFailed("scan row: %v", err)
		}
		record := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fault.ToolFailed("iterate rows: %v", err)
	}
	return map[string]any{"columns": columns, "rows": records, "count": len(records)}, nil
}

func (t *DatabaseQueryTool) runExec(ctx context.Context, db *sql.DB, query string) (any, error) {
	result, err := db.ExecContext(ctx, query)
	if err != nil {
		return nil, fault.ToolFailed("exec: %v", err)
	}
	affected, _ := result.RowsAffected()
	return map[string]any{"rows_affected": affected}, nil
}

func isSelect(query string) bool {
	normalized := strings.ToLower(strings.TrimSpace(query))
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}
