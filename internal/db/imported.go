package db

import (
	"database/sql"
	"fmt"
)

// LoadImportedFiles returns the import cache as a map from
// file path to the mtime it had when last imported.
func (db *DB) LoadImportedFiles() (map[string]int64, error) {
	rows, err := db.reader.Query(
		"SELECT file_path, file_mtime FROM imported_files",
	)
	if err != nil {
		return nil, fmt.Errorf(
			"loading imported files: %w", err,
		)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, fmt.Errorf(
				"scanning imported file: %w", err,
			)
		}
		result[path] = mtime
	}
	return result, rows.Err()
}

// ReplaceImportedFiles replaces the import cache in a single
// transaction.
func (db *DB) ReplaceImportedFiles(
	entries map[string]int64,
) error {
	return db.Update(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"DELETE FROM imported_files",
		); err != nil {
			return fmt.Errorf("clearing imported files: %w", err)
		}

		stmt, err := tx.Prepare(
			"INSERT INTO imported_files" +
				" (file_path, file_mtime) VALUES (?, ?)",
		)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for path, mtime := range entries {
			if _, err := stmt.Exec(path, mtime); err != nil {
				return fmt.Errorf(
					"inserting imported file %s: %w",
					path, err,
				)
			}
		}
		return nil
	})
}
