package journal

import (
	"fmt"
	"strings"
)

func (j *Journal) migrate() error {
	version, err := j.schemaVersion()
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	for version < currentSchemaVersion {
		switch version {
		case 1:
			// step durations
			if err := j.migrateV1ToV2(); err != nil {
				return fmt.Errorf("migrate v1 to v2: %w", err)
			}
			version = 2
		default:
			version = currentSchemaVersion
		}
	}
	return nil
}

func (j *Journal) schemaVersion() (int, error) {
	var version int
	err := j.conn.QueryRow(`SELECT schema_version FROM meta WHERE id = 1`).Scan(&version)
	return version, err
}

func (j *Journal) migrateV1ToV2() error {
	_, err := j.conn.Exec(`ALTER TABLE steps ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0`)
	if err != nil && !duplicateColumnError(err) {
		return fmt.Errorf("add duration_ms column: %w", err)
	}
	_, err = j.conn.Exec(`UPDATE meta SET schema_version = 2`)
	return err
}

func duplicateColumnError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}
