package database

import (
	"database/sql"
	"fmt"
)

const digestColumns = "id, run_at, period, content_markdown, content_text, sent_status, created_at"

// InsertDigest stores a digest. RunAt defaults to the current time and
// SentStatus to pending when left empty.
func (db *DB) InsertDigest(d Digest) (int64, error) {
	if !d.Period.Valid() {
		return 0, fmt.Errorf("invalid digest period %q", d.Period)
	}
	status := d.SentStatus
	if status == "" {
		status = StatusPending
	}

	var runAt any
	if d.RunAt != "" {
		runAt = d.RunAt
	}

	result, err := db.conn.Exec(
		`INSERT INTO digests (run_at, period, content_markdown, content_text, sent_status)
		VALUES (COALESCE(?, datetime('now')), ?, ?, ?, ?)`,
		runAt, string(d.Period), d.ContentMarkdown, d.ContentText, string(status),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LinkArticleToDigest records that an article was included in a digest.
// Linking the same pair twice is a no-op.
func (db *DB) LinkArticleToDigest(digestID, articleID int64) error {
	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO article_digest_map (digest_id, article_id) VALUES (?, ?)",
		digestID, articleID,
	)
	return err
}

// UpdateDigestStatus moves a pending digest to its terminal delivery status.
// A digest that is not pending is left untouched and reported as an error.
func (db *DB) UpdateDigestStatus(digestID int64, status SentStatus) error {
	result, err := db.conn.Exec(
		"UPDATE digests SET sent_status = ? WHERE id = ? AND sent_status = 'pending'",
		string(status), digestID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("digest %d not found or not pending", digestID)
	}
	return nil
}

// GetDigests returns up to limit digests, most recent first.
func (db *DB) GetDigests(limit int) ([]Digest, error) {
	rows, err := db.conn.Query(
		"SELECT "+digestColumns+" FROM digests ORDER BY run_at DESC, id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var digests []Digest
	for rows.Next() {
		d, err := scanDigest(rows)
		if err != nil {
			return nil, err
		}
		digests = append(digests, *d)
	}
	return digests, rows.Err()
}

// GetDigest returns a single digest by ID, or nil if it does not exist.
func (db *DB) GetDigest(digestID int64) (*Digest, error) {
	row := db.conn.QueryRow("SELECT "+digestColumns+" FROM digests WHERE id = ?", digestID)
	d, err := scanDigest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDigestArticles returns the articles linked to a digest, highest score first.
func (db *DB) GetDigestArticles(digestID int64) ([]Article, error) {
	rows, err := db.conn.Query(
		`SELECT a.id, a.url, a.title, a.publisher, a.published_at, a.summary,
		a.relevance_score, a.created_at
		FROM articles a JOIN article_digest_map m ON a.id = m.article_id
		WHERE m.digest_id = ?
		ORDER BY a.relevance_score DESC, a.id`, digestID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// GetStats returns aggregate database statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{DigestStatus: make(map[SentStatus]int)}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM sources", &s.Sources},
		{"SELECT COUNT(*) FROM articles", &s.Articles},
		{"SELECT COUNT(*) FROM digests", &s.Digests},
		{"SELECT COUNT(*) FROM article_digest_map", &s.LinkedPairs},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	rows, err := db.conn.Query("SELECT sent_status, COUNT(*) FROM digests GROUP BY sent_status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		s.DigestStatus[SentStatus(status)] = n
	}
	return s, rows.Err()
}

func scanDigest(row rowScanner) (*Digest, error) {
	var d Digest
	var period, status string
	var runAt sql.NullString
	if err := row.Scan(&d.ID, &runAt, &period, &d.ContentMarkdown, &d.ContentText,
		&status, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.RunAt = runAt.String
	d.Period = Period(period)
	d.SentStatus = SentStatus(status)
	return &d, nil
}
