package book

import (
	"slices"
	"strings"
)

// MaxResults caps the merged result list returned for one search.
const MaxResults = 15

// Merger defines the interface for merging book records from multiple sources.
type Merger interface {
	// Merge combines the per-source results of one search into a single,
	// de-duplicated and ranked list.
	Merge(results []SourceResult) []Record
}

// PriorityMerger implements Merger using source priority for field precedence.
//
// Results are consumed in ascending priority. A record whose dedup key was
// already seen is folded into the earlier record: empty fields are filled, and
// when the earlier record has no cover the later record's cover (and its
// source) take over. The merged list is then stably ordered cover-first and
// capped at Limit.
type PriorityMerger struct {
	Limit int
}

// NewPriorityMerger creates a new PriorityMerger. A limit outside 1..MaxResults
// is clamped to MaxResults.
func NewPriorityMerger(limit int) *PriorityMerger {
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	return &PriorityMerger{Limit: limit}
}

// Merge combines results into a ranked list of at most m.Limit records.
// Failed results contribute nothing.
func (m *PriorityMerger) Merge(results []SourceResult) []Record {
	ordered := slices.Clone(results)
	slices.SortStableFunc(ordered, func(a, b SourceResult) int {
		return a.Priority - b.Priority
	})

	merged := make([]Record, 0, MaxResults)
	index := make(map[string]int)

	for _, result := range ordered {
		if result.Err != nil {
			continue
		}
		for _, rec := range result.Records {
			if strings.TrimSpace(rec.Title) == "" {
				continue
			}
			if rec.Source == "" {
				rec.Source = result.Source
			}

			key := DedupKey(rec.Title)
			if i, ok := index[key]; ok {
				merged[i] = mergeRecord(merged[i], rec)
				continue
			}
			index[key] = len(merged)
			merged = append(merged, rec)
		}
	}

	slices.SortStableFunc(merged, func(a, b Record) int {
		return coverRank(a) - coverRank(b)
	})

	limit := m.Limit
	if limit <= 0 || limit > MaxResults {
		limit = MaxResults
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func coverRank(r Record) int {
	if r.HasCover() {
		return 0
	}
	return 1
}

// mergeRecord folds incoming into existing. The existing record keeps every
// field it already has, except that a cover from incoming replaces a missing
// one together with the source that supplied it.
func mergeRecord(existing, incoming Record) Record {
	if !existing.HasCover() && incoming.HasCover() {
		existing.CoverURL = incoming.CoverURL
		existing.Source = incoming.Source
	}

	existing.Author = fillString(existing.Author, incoming.Author)
	existing.ISBN = fillString(existing.ISBN, incoming.ISBN)
	existing.Publisher = fillString(existing.Publisher, incoming.Publisher)
	existing.Description = fillString(existing.Description, incoming.Description)
	existing.Subtitle = fillString(existing.Subtitle, incoming.Subtitle)
	existing.Language = fillString(existing.Language, incoming.Language)
	existing.Categories = fillString(existing.Categories, incoming.Categories)

	if existing.PublishYear == nil && incoming.PublishYear != nil {
		y := *incoming.PublishYear
		existing.PublishYear = &y
	}
	if existing.PageCount == nil && incoming.PageCount != nil {
		p := *incoming.PageCount
		existing.PageCount = &p
	}
	return existing
}

func fillString(current, candidate string) string {
	if current != "" {
		return current
	}
	return candidate
}
