// Package score ranks articles by keyword relevance, publisher reputation and
// recency.
package score

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/TobiSchelling/IntelDigest/internal/database"
)

// saturation is the fraction of the total group weight at which the keyword
// term reaches its maximum.
const saturation = 0.4

// Group is a set of keywords sharing one weight. A group contributes its weight
// once, however many of its keywords match.
type Group struct {
	Name     string
	Weight   float64
	Keywords []string
}

// Scorer computes relevance scores in [0, 1].
type Scorer struct {
	Groups         []Group
	PublisherBoost map[string]float64
}

// Default returns the scorer for the solo-female-travel and travel-AI beat.
func Default() *Scorer {
	return &Scorer{
		Groups: []Group{
			{Name: "solo_female_travel", Weight: 1.0, Keywords: []string{
				"solo female travel", "women travel", "solo women", "female traveler",
				"women safety", "woman travel", "solo travel safety", "female-only",
				"women-only tour", "women-only hostel", "female dorm",
			}},
			{Name: "travel_ai", Weight: 0.9, Keywords: []string{
				"travel ai", "ai travel", "travel tech", "itinerary ai", "trip planning ai",
				"travel agent ai", "booking ai", "travel recommendation",
				"personalized travel", "travel chatbot",
			}},
			{Name: "safety_tech", Weight: 0.85, Keywords: []string{
				"safety app", "trust and safety", "identity verification", "travel safety",
				"scam alert", "travel advisory", "emergency sos", "traveler safety",
				"safety tech",
			}},
			{Name: "ai_llm", Weight: 0.6, Keywords: []string{
				"llm", "large language model", "rag", "retrieval augmented", "ai agent",
				"ai personalization", "recommendation system", "generative ai",
				"claude", "gpt", "anthropic", "openai",
			}},
			{Name: "destinations", Weight: 0.5, Keywords: []string{
				"southeast asia", "bali", "thailand", "vietnam", "philippines",
				"indonesia", "cambodia", "laos", "myanmar", "malaysia", "singapore",
				"japan", "morocco", "portugal", "colombia", "mexico",
			}},
			{Name: "mobile_apps", Weight: 0.5, Keywords: []string{
				"app store", "mobile growth", "app retention", "user acquisition",
				"app launch", "travel app", "mobile app", "app download", "aso",
				"app store optimization",
			}},
			{Name: "travel_industry", Weight: 0.4, Keywords: []string{
				"travel trend", "airline", "hostel", "booking platform", "travel insurance",
				"travel creator", "ugc travel", "travel affiliate", "digital nomad",
				"solo travel",
			}},
		},
		PublisherBoost: map[string]float64{
			"Skift":               0.15,
			"Phocuswire":          0.12,
			"TechCrunch AI":       0.10,
			"TechCrunch Apps":     0.10,
			"MIT Tech Review AI":  0.10,
			"The Verge AI":        0.08,
			"Condé Nast Traveler": 0.08,
			"Lonely Planet News":  0.08,
			"Reuters Travel":      0.08,
			"Adventurous Kate":    0.10,
			"Be My Travel Muse":   0.10,
			"Solo Traveler Blog":  0.10,
		},
	}
}

// Score returns the relevance of a as of now.
func (s *Scorer) Score(a database.Article, now time.Time) float64 {
	total := 0.75*s.keywordScore(a) + s.PublisherBoost[a.Publisher] + recencyBoost(a.PublishedAt, now)
	return round2(math.Min(total, 1.0))
}

// MatchedGroups returns the names of the groups whose keywords appear in a.
func (s *Scorer) MatchedGroups(a database.Article) []string {
	text := strings.ToLower(a.Title + " " + a.Summary)
	var names []string
	for _, g := range s.Groups {
		if g.matches(text) {
			names = append(names, g.Name)
		}
	}
	return names
}

func (s *Scorer) keywordScore(a database.Article) float64 {
	text := strings.ToLower(a.Title + " " + a.Summary)
	var matched, max float64
	for _, g := range s.Groups {
		max += g.Weight
		if g.matches(text) {
			matched += g.Weight
		}
	}
	if max == 0 {
		return 0
	}
	return math.Min(matched/(max*saturation), 1.0)
}

func (g Group) matches(text string) bool {
	for _, kw := range g.Keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// recencyBoost tiers by whole days between the publish date and now.
func recencyBoost(publishedAt string, now time.Time) float64 {
	published, err := time.Parse(database.DateLayout, publishedAt)
	if err != nil {
		return 0
	}
	days := int(math.Floor(now.UTC().Sub(published).Hours() / 24))
	switch {
	case days <= 0:
		return 0.10
	case days <= 1:
		return 0.05
	case days <= 3:
		return 0.02
	default:
		return 0
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ScoreAndSort sets RelevanceScore on every article and returns them ordered
// by descending score. Equal scores keep their input order.
func (s *Scorer) ScoreAndSort(articles []database.Article, now time.Time) []database.Article {
	scored := make([]database.Article, len(articles))
	for i, a := range articles {
		a.RelevanceScore = s.Score(a, now)
		scored[i] = a
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RelevanceScore > scored[j].RelevanceScore
	})
	return scored
}
