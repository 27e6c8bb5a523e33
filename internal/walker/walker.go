// Package walker drives batch assimilation: it walks a directory tree,
// picks out eligible run directories, and fans them out to a bounded pool
// of workers. Directories fail independently; one bad run never aborts the
// batch.
package walker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calderon/vaspdb/internal/classify"
	"github.com/calderon/vaspdb/internal/drone"
	"github.com/calderon/vaspdb/internal/types"
)

// Report tallies the outcome of one batch walk.
type Report struct {
	Succeeded int
	Failed    int
	Skipped   int
	// States counts successfully assimilated documents per run state.
	States map[types.State]int
}

// Walker scans directory trees for run directories and assimilates them.
type Walker struct {
	drone   *drone.Drone
	log     *zap.SugaredLogger
	workers int
}

// New builds a walker over a configured drone. workers <= 0 selects one
// worker per CPU.
func New(d *drone.Drone, log *zap.SugaredLogger, workers int) *Walker {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Walker{drone: d, log: log, workers: workers}
}

// Walk assimilates every eligible run directory under root. The returned
// error covers only the walk itself; per-directory failures are tallied in
// the report.
func (w *Walker) Walk(ctx context.Context, root string) (*Report, error) {
	report := &Report{States: map[types.State]int{}}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)

	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			w.log.Warnw("walk error", "path", path, "error", err)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		subdirs, files, err := listDir(path)
		if err != nil {
			w.log.Warnw("unreadable directory", "path", path, "error", err)
			mu.Lock()
			report.Failed++
			mu.Unlock()
			return fs.SkipDir
		}
		eligible := classify.IsAssimilable(path, subdirs, files)
		if len(eligible) == 0 {
			return nil
		}
		for _, dir := range eligible {
			dir := dir
			g.Go(func() error {
				w.assimilateOne(ctx, dir, report, &mu)
				return nil
			})
		}
		// a run directory's children belong to it, never to the walk
		return fs.SkipDir
	})

	if err := g.Wait(); err != nil {
		return report, err
	}
	w.log.Infow("batch walk finished",
		"root", root,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"skipped", report.Skipped)
	return report, walkErr
}

func (w *Walker) assimilateOne(ctx context.Context, dir string, report *Report, mu *sync.Mutex) {
	res, err := w.drone.Assimilate(ctx, dir)

	mu.Lock()
	defer mu.Unlock()
	switch {
	case err != nil:
		w.log.Errorw("assimilation failed", "dir", dir, "error", err)
		report.Failed++
	case res == nil:
		// classified as not a run after all
	case res.Skipped:
		report.Skipped++
	default:
		report.Succeeded++
		report.States[res.State]++
	}
}

func listDir(path string) (subdirs, files []string, err error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	return subdirs, files, nil
}
