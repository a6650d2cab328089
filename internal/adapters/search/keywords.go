package search

import (
	"github.com/machikuchikomi/kuchikomi-cho/backend/internal/domain/entities"
	"github.com/machikuchikomi/kuchikomi-cho/backend/pkg/textmatch"
)

// MaxIndexedKeywords caps the keyword bag stored per document
const MaxIndexedKeywords = 20

// BuildKeywords returns the normalized search terms for a facility, so that
// full-width, half-width and spacing variants of a name all hit the same document.
func BuildKeywords(facility *entities.Facility) []string {
	if facility == nil {
		return nil
	}

	seen := make(map[string]struct{})
	keywords := []string{}
	add := func(terms ...string) {
		for _, t := range terms {
			t = textmatch.Normalize(t)
			if t == "" {
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			if len(keywords) >= MaxIndexedKeywords {
				return
			}
			seen[t] = struct{}{}
			keywords = append(keywords, t)
		}
	}

	add(facility.Name, facility.NameKana)
	add(textmatch.Compact(facility.Name), textmatch.Compact(facility.NameKana))
	add(facility.Area, facility.Category)
	return keywords
}
