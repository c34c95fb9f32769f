package database

import "database/sql"

// InsertSource registers a source, ignoring it if the URL is already known.
// Returns the row ID of the new or existing source.
func (db *DB) InsertSource(s Source) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT OR IGNORE INTO sources (name, url, category) VALUES (?, ?, ?)",
		s.Name, s.URL, s.Category,
	)
	if err != nil {
		return 0, err
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		return result.LastInsertId()
	}

	var id int64
	if err := db.conn.QueryRow("SELECT id FROM sources WHERE url = ?", s.URL).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetSources returns all registered sources ordered by name.
func (db *DB) GetSources() ([]Source, error) {
	rows, err := db.conn.Query("SELECT id, name, url, category, created_at FROM sources ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.Category, &s.CreatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// GetSourceByURL returns a single source, or nil if not registered.
func (db *DB) GetSourceByURL(url string) (*Source, error) {
	var s Source
	err := db.conn.QueryRow(
		"SELECT id, name, url, category, created_at FROM sources WHERE url = ?", url,
	).Scan(&s.ID, &s.Name, &s.URL, &s.Category, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
