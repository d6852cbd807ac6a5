// Package tags derives the tag vocabulary of a sub-team from its documents.
// There is no tag table: a tag exists while some document carries it.
package tags

import (
	"context"
	"sort"
	"strings"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/document"
	"github.com/ninersracing/kbwiki/internal/document/repository"
	"github.com/ninersracing/kbwiki/internal/subteam"
)

// TagCount is the number of documents carrying Tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Catalog answers tag queries over a document repository.
type Catalog struct {
	repo repository.Repository
}

func NewCatalog(repo repository.Repository) *Catalog {
	return &Catalog{repo: repo}
}

// ForSubteam returns the sorted union of tags over the sub-team's documents.
func (c *Catalog) ForSubteam(ctx context.Context, subteamID string) ([]string, error) {
	if !subteam.Valid(subteamID) {
		return nil, apperr.ErrInvalidSubteam
	}
	docs, err := c.repo.QueryBySubteam(ctx, subteamID, false)
	if err != nil {
		return nil, apperr.Repository("tags.scan", err)
	}
	return Union(docs), nil
}

// Union returns the sorted set of tags over docs.
func Union(docs []*document.Document) []string {
	set := map[string]struct{}{}
	for _, d := range docs {
		for _, t := range d.Tags {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Counts tallies tags over docs, most used first then alphabetical.
func Counts(docs []*document.Document) []TagCount {
	n := map[string]int{}
	for _, d := range docs {
		for _, t := range d.Tags {
			n[t]++
		}
	}
	out := make([]TagCount, 0, len(n))
	for t, c := range n {
		out = append(out, TagCount{Tag: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// Add makes a freshly typed tag usable before any document is saved: it is
// merged into the known vocabulary and appended to the selection. Nothing is
// persisted.
func Add(known, selected []string, tag string) ([]string, []string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return known, selected
	}
	if !contains(known, tag) {
		known = append(append([]string(nil), known...), tag)
		sort.Strings(known)
	}
	if !contains(selected, tag) {
		selected = append(append([]string(nil), selected...), tag)
	}
	return known, selected
}

// Normalize trims, drops empty entries and de-duplicates.
func Normalize(in []string) []string {
	return document.NormalizeTags(in)
}

// MatchesAll reports whether have carries every tag in filter.
func MatchesAll(have document.Tags, filter []string) bool {
	for _, f := range filter {
		if !have.Has(f) {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
