package admin

import (
	"context"
	"database/sql"
	"fmt"
)

// systemsVersion is the migration that adds the systems table and the
// system_id columns.
const systemsVersion = 2

var systemsColumns = []string{"knowledge_base", "chat_conversations"}

const systemsColumnQuery = `SELECT COUNT(*) FROM information_schema.COLUMNS
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND COLUMN_NAME = 'system_id'`

// SystemsColumns counts the tables in schema that already carry system_id.
// Databases created by the old setup scripts have both.
func SystemsColumns(ctx context.Context, db *sql.DB, schema string) (int, error) {
	found := 0
	for _, table := range systemsColumns {
		var n int
		if err := db.QueryRowContext(ctx, systemsColumnQuery, schema, table).Scan(&n); err != nil {
			return 0, fmt.Errorf("inspect %s.%s: %w", schema, table, err)
		}
		if n > 0 {
			found++
		}
	}
	return found, nil
}

// LegacyForce decides whether the systems migration must be marked as
// applied instead of run. It returns the version to force, or 0.
func LegacyForce(version uint, dirty bool, columns int) (int, error) {
	if columns == 0 || version > systemsVersion {
		return 0, nil
	}
	if dirty && version != systemsVersion {
		return 0, nil
	}
	if version == systemsVersion && !dirty {
		return 0, nil
	}
	if columns < len(systemsColumns) {
		return 0, fmt.Errorf("schema is partially migrated (%d of %d system_id columns); "+
			"finish it by hand and run 'migrate force %d'", columns, len(systemsColumns), systemsVersion)
	}
	return systemsVersion, nil
}
