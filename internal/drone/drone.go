// Package drone assembles one canonical document per run directory: it
// classifies the directory, merges stage outputs, collects killed runs,
// enriches the document with side-file metadata and derived analysis, and
// persists the result under the dedup policy.
package drone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/calderon/vaspdb/internal/analysis"
	"github.com/calderon/vaspdb/internal/classify"
	"github.com/calderon/vaspdb/internal/schemas"
	"github.com/calderon/vaspdb/internal/store"
	"github.com/calderon/vaspdb/internal/types"
)

// Options configures document assembly.
type Options struct {
	// Simulate performs all computation but never touches the store; the
	// assembled document is returned instead of a task id.
	Simulate bool
	// UpdateDuplicates updates an already-stored directory in place instead
	// of skipping it.
	UpdateDuplicates bool
	// ParseDOS captures density-of-states payloads from stage outputs.
	ParseDOS bool
	// AdditionalFields is a static template merged into every document
	// root. It is treated as immutable; each document starts from a deep
	// copy.
	AdditionalFields map[string]any
	// Tags and Author are default provenance fields; a transformations
	// side file may override them.
	Tags   []string
	Author string
}

// Drone builds and persists run documents. One Drone is safe for use from
// many workers; all per-directory state lives on the stack.
type Drone struct {
	store     store.Store
	engine    *analysis.Engine
	stability StabilityClient
	log       *zap.SugaredLogger
	opts      Options
}

// NewDrone wires a drone. st may be nil when opts.Simulate is set.
func NewDrone(st store.Store, engine *analysis.Engine, log *zap.SugaredLogger, opts Options) *Drone {
	if engine == nil {
		engine = analysis.NewEngine(log)
	}
	return &Drone{store: st, engine: engine, log: log, opts: opts}
}

// WithStability attaches an optional phase-stability enrichment client.
func (d *Drone) WithStability(c StabilityClient) *Drone {
	d.stability = c
	return d
}

// Result reports the outcome of assimilating one directory.
type Result struct {
	// TaskID is the assigned (or existing) task id; store.SimulatedTaskID
	// in simulate mode.
	TaskID int64
	// Document is the assembled document, populated in simulate mode.
	Document *types.RunDocument
	// State is the assembled document's run state.
	State types.State
	// Skipped is set when the directory was already stored and the
	// skip-on-duplicate policy applied.
	Skipped bool
}

// Assimilate runs the full pipeline for one directory. It returns
// (nil, nil) for directories that are not runs at all; any other failure is
// reported as an error scoped to this directory only.
func (d *Drone) Assimilate(ctx context.Context, dir string) (*Result, error) {
	c, err := classify.Classify(dir)
	if err != nil {
		return nil, err
	}

	var doc *types.RunDocument
	switch c.Kind {
	case classify.KindNone:
		return nil, nil
	case classify.KindKilled:
		doc, err = d.ProcessKilledRun(dir)
	case classify.KindRun:
		if isNEBRoot(dir) {
			doc, err = d.GenerateNEBDoc(dir, c.Stages)
		} else {
			doc, err = d.GenerateDoc(dir, c.Stages)
		}
	}
	if err != nil {
		d.log.Errorw("document assembly failed", "dir", dir, "error", err)
		return nil, fmt.Errorf("assembling %s: %w", dir, err)
	}

	d.PostProcess(dir, doc)
	d.enrichStability(ctx, doc)

	if err := schemas.ValidateDocument(doc); err != nil {
		return nil, fmt.Errorf("validating %s: %w", dir, err)
	}

	if d.opts.Simulate {
		doc.TaskID = store.SimulatedTaskID
		return &Result{TaskID: store.SimulatedTaskID, Document: doc, State: doc.State}, nil
	}

	d.offloadDOS(ctx, doc)

	id, err := d.store.Upsert(ctx, doc, d.opts.UpdateDuplicates)
	if err != nil {
		var dup *store.DuplicateError
		if errors.As(err, &dup) {
			d.log.Infow("duplicate directory skipped", "dir", doc.DirName, "task_id", dup.TaskID)
			return &Result{TaskID: dup.TaskID, State: doc.State, Skipped: true}, nil
		}
		return nil, fmt.Errorf("persisting %s: %w", doc.DirName, err)
	}
	d.log.Infow("assimilated", "dir", doc.DirName, "task_id", id, "state", doc.State)
	return &Result{TaskID: id, State: doc.State}, nil
}

// offloadDOS moves density-of-states payloads into the blob store, leaving
// a reference id on each calculation. Failures keep the payload inline.
func (d *Drone) offloadDOS(ctx context.Context, doc *types.RunDocument) {
	for _, calc := range doc.Calculations {
		if len(calc.DOS) == 0 {
			continue
		}
		id, err := d.store.PutBlob(ctx, "dos", calc.DOS)
		if err != nil {
			d.log.Warnw("dos blob store failed, keeping inline", "dir", doc.DirName, "error", err)
			continue
		}
		calc.DOSID = id.String()
		calc.DOS = nil
	}
}

func (d *Drone) enrichStability(ctx context.Context, doc *types.RunDocument) {
	if d.stability == nil || doc.Analysis == nil {
		return
	}
	st, err := d.stability.Stability(ctx, doc)
	if err != nil {
		d.log.Warnw("stability lookup failed", "dir", doc.DirName, "error", err)
		return
	}
	doc.Analysis.Stability = st
}

func isNEBRoot(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	var subdirs []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, e.Name())
		}
	}
	return classify.IsNEBRoot(subdirs)
}

// copyFields deep-copies the additional-fields template through a JSON
// round trip. Callers share one template across every directory; a shallow
// copy would leak nested-map writes between documents.
func (d *Drone) copyFields() map[string]any {
	fields := d.opts.AdditionalFields
	if len(fields) == 0 {
		return nil
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		d.log.Warnw("additional fields template is not JSON-serializable, dropping it", "error", err)
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		d.log.Warnw("additional fields template is not JSON-serializable, dropping it", "error", err)
		return nil
	}
	return out
}
