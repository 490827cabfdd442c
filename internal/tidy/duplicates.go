package tidy

import (
	"cmp"
	"context"
	"fmt"
	"slices"
)

// DuplicateGroup is a set of eligible files with identical content.
type DuplicateGroup struct {
	Fingerprint string
	Size        int64
	Files       []FileRecord
}

// Wasted is the space the extra copies occupy.
func (g *DuplicateGroup) Wasted() int64 {
	return g.Size * int64(len(g.Files)-1)
}

// FindDuplicates groups the eligible files of root by SHA-256. Only files
// sharing a size with another file are hashed, and empty files are skipped.
// Groups are ordered by fingerprint; files within a group keep name order.
func (s *TidyService) FindDuplicates(ctx context.Context, root string) ([]DuplicateGroup, error) {
	rootPath, err := s.resolveRoot(root)
	if err != nil {
		return nil, err
	}
	records, err := s.eligibleFiles(rootPath)
	if err != nil {
		return nil, err
	}

	bySize := make(map[int64][]FileRecord)
	for _, rec := range records {
		if rec.Size > 0 {
			bySize[rec.Size] = append(bySize[rec.Size], rec)
		}
	}

	byHash := make(map[string]*DuplicateGroup)
	for _, rec := range records {
		if len(bySize[rec.Size]) < 2 || rec.Size <= 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sum, err := s.hashFile(rec.Path)
		if err != nil {
			s.logger.Warn("hashing failed", "path", rec.Path, "error", err)
			continue
		}
		g, ok := byHash[sum]
		if !ok {
			g = &DuplicateGroup{Fingerprint: sum, Size: rec.Size}
			byHash[sum] = g
		}
		g.Files = append(g.Files, rec)
	}

	var groups []DuplicateGroup
	for _, g := range byHash {
		if len(g.Files) >= 2 {
			groups = append(groups, *g)
		}
	}
	slices.SortFunc(groups, func(a, b DuplicateGroup) int {
		return cmp.Compare(a.Fingerprint, b.Fingerprint)
	})

	s.logger.Info("duplicate scan finished", "root", rootPath.String(), "files", len(records), "groups", len(groups))
	return groups, nil
}

func (s *TidyService) hashFile(path string) (string, error) {
	f, err := s.fsmgr.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening: %w", err)
	}
	defer f.Close()

	sum, _, err := fingerprint(f)
	return sum, err
}
