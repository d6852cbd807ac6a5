package serial

import (
	"context"
	"sort"

	"github.com/ninersracing/kbwiki/internal/apperr"
	"github.com/ninersracing/kbwiki/internal/document"
	"github.com/ninersracing/kbwiki/internal/document/repository"
	"github.com/ninersracing/kbwiki/internal/subteam"
	"github.com/ninersracing/kbwiki/pkg/logger"
)

// Backfill assigns serials to documents that have none, oldest first within
// each sub-team, continuing after the sub-team's current maximum. It returns
// the number of documents updated.
func Backfill(ctx context.Context, repo repository.Repository) (int, error) {
	all, err := repo.ListAll(ctx)
	if err != nil {
		return 0, apperr.Repository("serial.backfill", err)
	}

	bySubteam := map[string][]*document.Document{}
	for _, d := range all {
		bySubteam[d.Subteam] = append(bySubteam[d.Subteam], d)
	}

	updated := 0
	for _, s := range subteam.All() {
		docs := bySubteam[s.ID]
		var missing []*document.Document
		for _, d := range docs {
			if d.SerialNumber == "" {
				missing = append(missing, d)
			}
		}
		if len(missing) == 0 {
			continue
		}
		sort.SliceStable(missing, func(i, j int) bool {
			return missing[i].CreatedAt.Before(missing[j].CreatedAt)
		})

		next := MaxCounter(s, docs)
		for _, d := range missing {
			next++
			sn := Format(s, next)
			if err := repo.Update(ctx, d.ID, document.Patch{SerialNumber: &sn}); err != nil {
				return updated, apperr.Repository("serial.backfill", err)
			}
			logger.Infof("backfill: %s -> %s (%q)", d.ID, sn, d.Title)
			updated++
		}
	}
	return updated, nil
}
