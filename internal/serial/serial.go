// Package serial assigns human-readable document serial numbers of the form
// KB<prefix><counter>.
package serial

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/document"
	"github.com/ninersracing/kbwiki/internal/document/repository"
	"github.com/ninersracing/kbwiki/internal/subteam"
)

// Generator yields the next serial number for a sub-team.
type Generator interface {
	Next(ctx context.Context, subteamID string) (string, error)
}

// Format renders a counter zero-padded to at least four digits. Larger
// counters keep all their digits.
func Format(s subteam.Subteam, n int) string {
	return fmt.Sprintf("%s%04d", s.SerialPrefix(), n)
}

// Parse returns the counter of serial when it belongs to s.
func Parse(s subteam.Subteam, serial string) (int, bool) {
	suffix, ok := strings.CutPrefix(serial, s.SerialPrefix())
	if !ok || suffix == "" {
		return 0, false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return 0, false
	}
	return n, true
}

// MaxCounter is the largest well-formed counter among docs. Blank and
// malformed serials are skipped.
func MaxCounter(s subteam.Subteam, docs []*document.Document) int {
	highest := 0
	for _, d := range docs {
		if n, ok := Parse(s, d.SerialNumber); ok && n > highest {
			highest = n
		}
	}
	return highest
}

// ScanGenerator derives the next serial from the current maximum. Two
// concurrent creations may receive the same value.
type ScanGenerator struct {
	repo repository.Repository
}

func NewScanGenerator(repo repository.Repository) *ScanGenerator {
	return &ScanGenerator{repo: repo}
}

func (g *ScanGenerator) Next(ctx context.Context, subteamID string) (string, error) {
	s, highest, err := scanMax(ctx, g.repo, subteamID)
	if err != nil {
		return "", err
	}
	return Format(s, highest+1), nil
}

func scanMax(ctx context.Context, repo repository.Repository, subteamID string) (subteam.Subteam, int, error) {
	s, err := subteam.Lookup(subteamID)
	if err != nil {
		return subteam.Subteam{}, 0, err
	}
	docs, err := repo.QueryBySubteam(ctx, subteamID, false)
	if err != nil {
		return s, 0, apperr.Repository("serial.scan", err)
	}
	return s, MaxCounter(s, docs), nil
}

// CounterStore keeps one monotonic counter per sub-team.
type CounterStore interface {
	// Next raises the counter to at least floor, increments it and returns
	// the new value, atomically.
	Next(ctx context.Context, subteamID string, floor int) (int, error)
}

// CounterGenerator hands out serials from an atomic per-sub-team counter
// seeded with the scan maximum, so values never collide. Numbers are never
// reused: deleting documents does not lower the counter.
type CounterGenerator struct {
	repo     repository.Repository
	counters CounterStore
}

func NewCounterGenerator(repo repository.Repository, counters CounterStore) *CounterGenerator {
	return &CounterGenerator{repo: repo, counters: counters}
}

func (g *CounterGenerator) Next(ctx context.Context, subteamID string) (string, error) {
	s, highest, err := scanMax(ctx, g.repo, subteamID)
	if err != nil {
		return "", err
	}
	n, err := g.counters.Next(ctx, subteamID, highest)
	if err != nil {
		return "", apperr.Repository("serial.counter", err)
	}
	return Format(s, n), nil
}
