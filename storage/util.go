package storage

import (
	"database/sql"
	"fmt"
)

// Runs a two column query and collects the result as a map from the
// first column to the second.
func queryStringMap(db *sql.DB, query string, args ...interface{}) (map[string]string, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	res := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning: %w", err)
		}
		res[k] = v
	}

	return res, nil
}
