package fetch

import (
	"time"

	"github.com/TobiSchelling/IntelDigest/internal/database"
)

// FilterByDate keeps articles published on or after now minus maxAgeDays.
// Dates compare as YYYY-MM-DD strings, so the cutoff day itself is kept.
func FilterByDate(articles []database.Article, maxAgeDays int, now time.Time) []database.Article {
	cutoff := database.DaysAgo(now, maxAgeDays)
	kept := make([]database.Article, 0, len(articles))
	for _, a := range articles {
		if a.PublishedAt >= cutoff {
			kept = append(kept, a)
		}
	}
	return kept
}
