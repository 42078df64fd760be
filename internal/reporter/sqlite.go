package reporter

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"golang-pos-analytics/internal/models"
)

// writeSQLite writes every table into a fresh database at path
func writeSQLite(path string, tables []*models.ResultTable) error {
	_ = os.Remove(path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, t := range tables {
		if err := writeSQLiteTable(tx, t); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
	}
	return tx.Commit()
}

func writeSQLiteTable(tx *sql.Tx, t *models.ResultTable) error {
	var defs, cols []string
	for i, c := range t.Columns {
		defs = append(defs, fmt.Sprintf("%q %s", c, sqliteType(t, i)))
		cols = append(cols, fmt.Sprintf("%q", c))
	}

	if _, err := tx.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, t.Name)); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(`CREATE TABLE %q (%s)`, t.Name, strings.Join(defs, ","))); err != nil {
		return err
	}

	ph := strings.TrimRight(strings.Repeat("?,", len(t.Columns)), ",")
	stmt, err := tx.Prepare(fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`, t.Name, strings.Join(cols, ","), ph))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range t.Rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = sqliteValue(v)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return err
		}
	}
	return nil
}

// sqliteType picks the column affinity from the first non-nil cell
func sqliteType(t *models.ResultTable, col int) string {
	for _, row := range t.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case int, int64, bool:
			return "INTEGER"
		case float64, decimal.Decimal:
			return "REAL"
		default:
			return "TEXT"
		}
	}
	return "TEXT"
}

func sqliteValue(v interface{}) any {
	switch val := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return val.InexactFloat64()
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return models.FormatCell(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case int, int64, float64, string:
		return val
	default:
		return models.FormatCell(val)
	}
}
