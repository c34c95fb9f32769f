package database

import (
	"database/sql"
)

const articleColumns = "id, url, title, publisher, published_at, summary, relevance_score, created_at"

// InsertArticle stores an article unless its URL is already known.
// Returns the new row ID, or 0 if the URL was already stored.
//
// The lookup and insert are not atomic; the pipeline is the only writer.
func (db *DB) InsertArticle(a Article) (int64, error) {
	var existing int64
	err := db.conn.QueryRow("SELECT id FROM articles WHERE url = ?", a.URL).Scan(&existing)
	if err == nil {
		return 0, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	result, err := db.conn.Exec(
		`INSERT INTO articles (url, title, publisher, published_at, summary, relevance_score)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.URL, a.Title, a.Publisher, a.PublishedAt, a.Summary, a.RelevanceScore,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetArticleByURL returns a stored article, or nil if the URL is unknown.
func (db *DB) GetArticleByURL(url string) (*Article, error) {
	row := db.conn.QueryRow("SELECT "+articleColumns+" FROM articles WHERE url = ?", url)
	a, err := scanArticle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetRecentArticles returns the most recently stored articles.
func (db *DB) GetRecentArticles(limit int) ([]Article, error) {
	rows, err := db.conn.Query(
		"SELECT "+articleColumns+" FROM articles ORDER BY created_at DESC, id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanArticles(rows)
}

// CountArticles returns the number of stored articles.
func (db *DB) CountArticles() (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM articles").Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticles(rows *sql.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

func scanArticle(row rowScanner) (*Article, error) {
	var a Article
	var publishedAt, summary sql.NullString
	if err := row.Scan(&a.ID, &a.URL, &a.Title, &a.Publisher, &publishedAt,
		&summary, &a.RelevanceScore, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.PublishedAt = publishedAt.String
	a.Summary = summary.String
	return &a, nil
}
