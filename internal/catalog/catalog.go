// Package catalog holds the fixed list of feeds the digest is built from.
package catalog

import (
	"fmt"

	"github.com/TobiSchelling/IntelDigest/internal/database"
)

// Category groups sources by subject.
type Category string

const (
	CategoryTravelIndustry Category = "travel_industry"
	CategoryAITech         Category = "ai_tech"
	CategorySoloTravel     Category = "solo_travel"
	CategoryTravelNews     Category = "travel_news"
	CategoryMobileApps     Category = "mobile_apps"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTravelIndustry, CategoryAITech, CategorySoloTravel, CategoryTravelNews, CategoryMobileApps:
		return true
	}
	return false
}

// Source describes one RSS/Atom feed. The name doubles as the publisher of
// every article the feed yields.
type Source struct {
	Name     string
	URL      string
	Category Category
}

// Record converts s into its persisted form.
func (s Source) Record() database.Source {
	return database.Source{Name: s.Name, URL: s.URL, Category: string(s.Category)}
}

var defaultSources = []Source{
	{Name: "Skift", URL: "https://skift.com/feed/", Category: CategoryTravelIndustry},
	{Name: "Phocuswire", URL: "https://www.phocuswire.com/rss", Category: CategoryTravelIndustry},
	{Name: "TechCrunch AI", URL: "https://techcrunch.com/category/artificial-intelligence/feed/", Category: CategoryAITech},
	{Name: "TechCrunch Apps", URL: "https://techcrunch.com/category/apps/feed/", Category: CategoryMobileApps},
	{Name: "MIT Tech Review AI", URL: "https://www.technologyreview.com/topic/artificial-intelligence/feed", Category: CategoryAITech},
	{Name: "The Verge AI", URL: "https://www.theverge.com/rss/ai-artificial-intelligence/index.xml", Category: CategoryAITech},
	{Name: "Condé Nast Traveler", URL: "https://www.cntraveler.com/feed/rss", Category: CategoryTravelNews},
	{Name: "Lonely Planet News", URL: "https://www.lonelyplanet.com/news/feed", Category: CategoryTravelNews},
	{Name: "Reuters Travel", URL: "https://www.reutersagency.com/feed/?best-topics=lifestyle&post_type=best", Category: CategoryTravelNews},
	{Name: "Adventurous Kate", URL: "https://www.adventurouskate.com/feed/", Category: CategorySoloTravel},
	{Name: "Be My Travel Muse", URL: "https://www.bemytravelmuse.com/feed/", Category: CategorySoloTravel},
	{Name: "Solo Traveler Blog", URL: "https://solotravelerworld.com/feed/", Category: CategorySoloTravel},
}

// Default returns a copy of the built-in catalog.
func Default() []Source {
	out := make([]Source, len(defaultSources))
	copy(out, defaultSources)
	return out
}

// Validate checks a catalog for empty fields, unknown categories and repeated URLs.
func Validate(sources []Source) error {
	seen := make(map[string]struct{}, len(sources))
	for i, s := range sources {
		if s.Name == "" || s.URL == "" {
			return fmt.Errorf("source %d: name and url are required", i)
		}
		if !s.Category.Valid() {
			return fmt.Errorf("source %q: unknown category %q", s.Name, s.Category)
		}
		if _, dup := seen[s.URL]; dup {
			return fmt.Errorf("source %q: duplicate url %s", s.Name, s.URL)
		}
		seen[s.URL] = struct{}{}
	}
	return nil
}
