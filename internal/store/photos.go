package store

import (
	"context"
	"fmt"
)

// PhotoReferenced reports whether any hike or observation still points at ref.
func (db *DB) PhotoReferenced(ctx context.Context, ref string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT count(*) FROM (
			SELECT 1 FROM hikes WHERE photoUri = ?
			UNION ALL
			SELECT 1 FROM observations WHERE photoUri = ?
		)`, ref, ref).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: photo references: %w", err)
	}
	return n > 0, nil
}

// PhotoRefs returns every distinct photoUri held by hikes and observations.
func (db *DB) PhotoRefs(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT photoUri FROM hikes WHERE photoUri IS NOT NULL
		UNION
		SELECT photoUri FROM observations WHERE photoUri IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("store: list photo refs: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("store: scan photo ref: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
