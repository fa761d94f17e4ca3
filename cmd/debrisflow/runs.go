package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wrh-stid/debrisflow-etl/internal/domain"
)

// lookbackRuns returns count runs walking backward hour by hour from start.
func lookbackRuns(start domain.RunTime, count int) []domain.RunTime {
	runs := make([]domain.RunTime, 0, count)
	for i := 0; i < count; i++ {
		runs = append(runs, start.Add(-i))
	}
	return runs
}

// discoverRuns finds the newest runs with rendered imagery by parsing the
// nbm.<YYYYMMDDHH>.json manifests in imagesDir, newest first. Files that do
// not carry a run stamp are ignored.
func discoverRuns(imagesDir string, limit int) ([]domain.RunTime, error) {
	paths, err := filepath.Glob(filepath.Join(imagesDir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", imagesDir, err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))

	var runs []domain.RunTime
	for _, path := range paths {
		if len(runs) == limit {
			break
		}
		parts := strings.Split(filepath.Base(path), ".")
		if len(parts) < 2 {
			continue
		}
		run, err := domain.ParseRunStamp(parts[1])
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}
