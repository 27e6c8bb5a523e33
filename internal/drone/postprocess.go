package drone

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/calderon/vaspdb/internal/parsing"
	"github.com/calderon/vaspdb/internal/types"
)

// icsdSourceRe extracts the numeric ICSD identifier out of a provenance
// source string like "12345-ICSD".
var icsdSourceRe = regexp.MustCompile(`^(\d+)-ICSD$`)

// PostProcess enriches an assembled document with side-file metadata, run
// statistics, and the host-qualified directory URI. Every step is fault
// isolated; a bad side file costs only its own fields.
func (d *Drone) PostProcess(dir string, doc *types.RunDocument) {
	d.attachTransformations(dir, doc)
	d.attachCustodian(dir, doc)
	d.attachRunStats(dir, doc)
	doc.DirName = qualifyDir(dir)
}

// attachTransformations loads the provenance side file. Tags and author are
// popped to the document root before the record is attached: the same
// transformations content serves as a template for many generated
// documents and must not accumulate root-level metadata.
func (d *Drone) attachTransformations(dir string, doc *types.RunDocument) {
	path := parsing.FindFile(dir, "transformations.json")
	if path == "" {
		return
	}
	m, err := parsing.ReadTransformations(path)
	if err != nil {
		d.log.Warnw("transformations side file unreadable", "dir", dir, "error", err)
		return
	}

	if tags, ok := popStrings(m, "tags"); ok {
		doc.Tags = tags
	}
	if author, ok := m["author"].(string); ok {
		delete(m, "author")
		doc.Author = author
	}

	if id := historyICSDID(m); id > 0 {
		doc.ICSDID = id
	}
	doc.Transformations = m
}

// historyICSDID digs the first history entry's source identifier out of a
// transformations record.
func historyICSDID(m map[string]any) int {
	history, ok := m["history"].([]any)
	if !ok || len(history) == 0 {
		return 0
	}
	first, ok := history[0].(map[string]any)
	if !ok {
		return 0
	}
	source, ok := first["source"].(string)
	if !ok {
		return 0
	}
	match := icsdSourceRe.FindStringSubmatch(source)
	if match == nil {
		return 0
	}
	id, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return id
}

func popStrings(m map[string]any, key string) ([]string, bool) {
	raw, ok := m[key].([]any)
	if !ok {
		return nil, false
	}
	delete(m, key)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func (d *Drone) attachCustodian(dir string, doc *types.RunDocument) {
	path := parsing.FindFile(dir, "custodian.json")
	if path == "" {
		return
	}
	record, err := parsing.ReadCustodian(path)
	if err != nil {
		d.log.Warnw("custodian side file unreadable", "dir", dir, "error", err)
		return
	}
	doc.Custodian = record
}

// attachRunStats collects per-stage timing counters from the auxiliary
// output files and sums them into an "overall" entry.
func (d *Drone) attachRunStats(dir string, doc *types.RunDocument) {
	stats := map[string]map[string]float64{}
	for _, calc := range doc.Calculations {
		stage := calc.Task.Name
		path := findOutcar(dir, stage)
		if path == "" {
			continue
		}
		counters, err := parsing.ReadOutcarStats(path)
		if err != nil {
			d.log.Warnw("run stats unreadable", "dir", dir, "stage", stage, "error", err)
			continue
		}
		stats[stage] = counters
	}
	if len(stats) == 0 {
		return
	}

	overall := map[string]float64{}
	for _, counters := range stats {
		for name, v := range counters {
			overall[name] += v
		}
	}
	stats["overall"] = overall
	doc.RunStats = stats
}

// findOutcar locates a stage's auxiliary output: inside a stage
// subdirectory, as a suffixed top-level file, or unsuffixed for standard
// runs.
func findOutcar(dir, stage string) string {
	if stage == types.StageStandard {
		return parsing.FindFile(dir, "OUTCAR")
	}
	if p := parsing.FindFile(filepath.Join(dir, stage), "OUTCAR"); p != "" {
		return p
	}
	return parsing.FindFile(dir, "OUTCAR."+stage)
}

// qualifyDir rewrites a directory path into the host-qualified canonical
// URI used as the dedup key. Lookup failures fall back to an unqualified
// host, never an error.
func qualifyDir(dir string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return host + ":" + abs
}
