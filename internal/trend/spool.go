package trend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dbhealthcheck/engine/internal/domain"
)

// Spool writes/reads run JSON to/from a local directory when ingest
// fails persistently: the run JSON is written to a local spool path for
// later replay.
type Spool struct {
	Dir string
}

// NewSpool ensures dir exists and returns a Spool rooted there.
func NewSpool(dir string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("trend: create spool dir: %w", err)
	}
	return &Spool{Dir: dir}, nil
}

// Write persists run as a JSON file named by its run_id.
func (s *Spool) Write(run domain.Run) (string, error) {
	raw, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("trend: marshal spooled run: %w", err)
	}
	path := filepath.Join(s.Dir, run.RunID+".json")
	if err := os.WriteFile(path, raw, 0o640); err != nil {
		return "", fmt.Errorf("trend: write spool file: %w", err)
	}
	return path, nil
}

// List returns every spooled run_id, sorted for deterministic replay order.
func (s *Spool) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("trend: list spool dir: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext == ".json" {
			ids = append(ids, name[:len(name)-len(ext)])
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Read loads one spooled run by run_id.
func (s *Spool) Read(runID string) (domain.Run, error) {
	raw, err := os.ReadFile(filepath.Join(s.Dir, runID+".json"))
	if err != nil {
		return domain.Run{}, fmt.Errorf("trend: read spool file: %w", err)
	}
	var run domain.Run
	if err := json.Unmarshal(raw, &run); err != nil {
		return domain.Run{}, fmt.Errorf("trend: unmarshal spooled run: %w", err)
	}
	return run, nil
}

// Remove deletes a spooled run file after a successful replay.
func (s *Spool) Remove(runID string) error {
	if err := os.Remove(filepath.Join(s.Dir, runID+".json")); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("trend: remove spool file: %w", err)
	}
	return nil
}

// Replay re-attempts ingest for every spooled run, removing each on
// success and leaving failures spooled for a future attempt. It returns
// the run_ids it successfully replayed.
func Replay(ctx context.Context, spool *Spool, store *Store) ([]string, error) {
	ids, err := spool.List()
	if err != nil {
		return nil, err
	}
	var replayed []string
	for _, id := range ids {
		run, err := spool.Read(id)
		if err != nil {
			continue
		}
		if err := store.IngestRun(ctx, run, nil); err != nil {
			continue
		}
		if err := spool.Remove(id); err != nil {
			continue
		}
		replayed = append(replayed, id)
	}
	return replayed, nil
}
