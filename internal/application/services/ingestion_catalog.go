package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/textmatch"
)

// Ingestion phases select which areas a crawl covers
const (
	PhaseCore     = 1
	PhaseOutlying = 2
	PhaseAll      = 3
)

// IngestionArea is one named area the crawler searches
type IngestionArea struct {
	Name    string
	Query   string
	Aliases []string
	Core    bool
}

// PlaceType is one search keyword and the site category its results default to
type PlaceType struct {
	Keyword  string
	Category string
}

// IngestionCatalog is the fixed search plan of the bulk crawler
type IngestionCatalog struct {
	// Region must appear in a result's address for it to be kept
	Region string
	Areas  []IngestionArea
	Types  []PlaceType
}

// AreasForPhase returns the areas crawled in a phase
func (c IngestionCatalog) AreasForPhase(phase int) ([]IngestionArea, error) {
	var out []IngestionArea
	switch phase {
	case PhaseCore, PhaseOutlying:
		wantCore := phase == PhaseCore
		for _, a := range c.Areas {
			if a.Core == wantCore {
				out = append(out, a)
			}
		}
	case PhaseAll:
		out = append(out, c.Areas...)
	default:
		return nil, fmt.Errorf("unknown phase %d (want 1, 2 or 3)", phase)
	}
	return out, nil
}

// MatchAreas is the area table used to label results by address
func (c IngestionCatalog) MatchAreas() []textmatch.Area {
	areas := make([]textmatch.Area, 0, len(c.Areas))
	for _, a := range c.Areas {
		areas = append(areas, textmatch.Area{Name: a.Name, Aliases: a.Aliases})
	}
	return areas
}

// DefaultIngestionCatalog covers Gero city, Gifu, split into the central
// towns and the outlying valleys
var DefaultIngestionCatalog = IngestionCatalog{
	Region: "下呂市",
	Areas: []IngestionArea{
		{Name: "下呂", Query: "岐阜県下呂市 下呂温泉", Aliases: []string{"湯之島", "下呂市幸田", "下呂市森"}, Core: true},
		{Name: "萩原", Query: "岐阜県下呂市萩原町", Aliases: []string{"萩原町"}, Core: true},
		{Name: "小坂", Query: "岐阜県下呂市小坂町", Aliases: []string{"小坂町"}},
		{Name: "金山", Query: "岐阜県下呂市金山町", Aliases: []string{"金山町"}},
		{Name: "馬瀬", Query: "岐阜県下呂市馬瀬", Aliases: []string{"馬瀬"}},
	},
	Types: []PlaceType{
		{Keyword: "レストラン", Category: "飲食店"},
		{Keyword: "食堂", Category: "飲食店"},
		{Keyword: "ラーメン", Category: "飲食店"},
		{Keyword: "カフェ", Category: "カフェ"},
		{Keyword: "パン屋", Category: "パン・スイーツ"},
		{Keyword: "和菓子", Category: "パン・スイーツ"},
		{Keyword: "温泉", Category: "温泉"},
		{Keyword: "旅館", Category: "宿泊"},
		{Keyword: "観光スポット", Category: "観光"},
		{Keyword: "公園", Category: "自然・公園"},
		{Keyword: "道の駅", Category: "買い物"},
		{Keyword: "直売所", Category: "買い物"},
	},
}

// googleTypeCategories maps Google place types to site categories. The first
// mapped type on a result wins.
var googleTypeCategories = map[string]string{
	"restaurant":             "飲食店",
	"meal_takeaway":          "飲食店",
	"cafe":                   "カフェ",
	"bakery":                 "パン・スイーツ",
	"spa":                    "温泉",
	"lodging":                "宿泊",
	"campground":             "宿泊",
	"tourist_attraction":     "観光",
	"museum":                 "観光",
	"shrine":                 "観光",
	"hindu_temple":           "観光",
	"place_of_worship":       "観光",
	"park":                   "自然・公園",
	"natural_feature":        "自然・公園",
	"supermarket":            "買い物",
	"grocery_or_supermarket": "買い物",
	"store":                  "買い物",
}

// MapCategory picks a site category from Google types, falling back when none is mapped
func MapCategory(types []string, fallback string) string {
	for _, t := range types {
		if c, ok := googleTypeCategories[t]; ok {
			return c
		}
	}
	return fallback
}

var (
	countryPrefix = regexp.MustCompile(`^日本[、,]\s*`)
	postalPrefix  = regexp.MustCompile(`^〒?\d{3}-?\d{4}\s*`)
)

// CleanAddress strips the country and postal code Google prepends to Japanese addresses
func CleanAddress(address string) string {
	a := strings.TrimSpace(address)
	a = countryPrefix.ReplaceAllString(a, "")
	a = postalPrefix.ReplaceAllString(a, "")
	return strings.TrimSpace(a)
}
