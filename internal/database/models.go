package database

// Period is the digest cadence.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == PeriodDaily || p == PeriodWeekly
}

// SentStatus is the delivery state of a digest.
type SentStatus string

const (
	StatusPending SentStatus = "pending"
	StatusSent    SentStatus = "sent"
	StatusFailed  SentStatus = "failed"
	StatusPrinted SentStatus = "printed"
)

// Source is a configured feed.
type Source struct {
	ID        int64
	Name      string
	URL       string
	Category  string
	CreatedAt *string
}

// Article is a normalized feed item. ID is zero until the article is stored.
type Article struct {
	ID             int64
	URL            string
	Title          string
	Publisher      string
	PublishedAt    string // YYYY-MM-DD
	Summary        string
	RelevanceScore float64
	CreatedAt      *string
}

// Digest is a synthesized summary for one run.
type Digest struct {
	ID              int64
	RunAt           string
	Period          Period
	ContentMarkdown string
	ContentText     string
	SentStatus      SentStatus
	CreatedAt       *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	Sources      int
	Articles     int
	Digests      int
	LinkedPairs  int
	DigestStatus map[SentStatus]int
}
