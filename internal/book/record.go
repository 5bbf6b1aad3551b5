// Package book provides the canonical book record, the adapter interface
// implemented by every external catalog, and the aggregation pipeline that
// merges their results into one ranked list.
package book

import (
	"fmt"
	"strings"
)

// Source identifies the catalog that produced a record.
type Source string

const (
	SourceGoogle      Source = "google"
	SourceKitapyurdu  Source = "kitapyurdu"
	SourceBKMKitap    Source = "bkmkitap"
	SourceKitap1000   Source = "1000kitap"
	SourceOpenLibrary Source = "openlibrary"
)

// AllSources lists every known source in default merge priority order.
var AllSources = []Source{
	SourceGoogle,
	SourceKitapyurdu,
	SourceBKMKitap,
	SourceKitap1000,
	SourceOpenLibrary,
}

// ParseSource returns the Source matching name (case-insensitive).
func ParseSource(name string) (Source, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range AllSources {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", name)
}

// Kind selects how a query is interpreted by the adapters.
type Kind string

const (
	KindTitle  Kind = "title"
	KindAuthor Kind = "author"
	KindISBN   Kind = "isbn"
)

// ParseKind returns the Kind matching name. An empty name means KindTitle.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "title":
		return KindTitle, nil
	case "author":
		return KindAuthor, nil
	case "isbn":
		return KindISBN, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, name)
	}
}

// Record is one book as seen by the search pipeline. A record produced by a
// single adapter is a candidate; after merging it stands for one real-world
// work. Only Title and Source are guaranteed to be set.
type Record struct {
	Title       string `json:"title" yaml:"title"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`
	ISBN        string `json:"isbn,omitempty" yaml:"isbn,omitempty"`
	PublishYear *int   `json:"publish_year,omitempty" yaml:"publish_year,omitempty"`
	Publisher   string `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	PageCount   *int   `json:"page_count,omitempty" yaml:"page_count,omitempty"`
	CoverURL    string `json:"cover_url,omitempty" yaml:"cover_url,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Source      Source `json:"source" yaml:"source"`
	Subtitle    string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
	Language    string `json:"language,omitempty" yaml:"language,omitempty"`
	Categories  string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// HasCover reports whether the record carries a cover image URL.
func (r Record) HasCover() bool {
	return r.CoverURL != ""
}

// Fields returns the record as a flat column map for the record store.
// Absent optional integers are stored as nil.
func (r Record) Fields() map[string]any {
	fields := map[string]any{
		"title":        r.Title,
		"author":       r.Author,
		"isbn":         r.ISBN,
		"publish_year": nil,
		"publisher":    r.Publisher,
		"page_count":   nil,
		"cover_url":    r.CoverURL,
		"description":  r.Description,
		"source":       string(r.Source),
		"subtitle":     r.Subtitle,
		"language":     r.Language,
		"categories":   r.Categories,
	}
	if r.PublishYear != nil {
		fields["publish_year"] = *r.PublishYear
	}
	if r.PageCount != nil {
		fields["page_count"] = *r.PageCount
	}
	return fields
}

func (r Record) String() string {
	if r.Author == "" {
		return fmt.Sprintf("%s [%s]", r.Title, r.Source)
	}
	return fmt.Sprintf("%s - %s [%s]", r.Title, r.Author, r.Source)
}
