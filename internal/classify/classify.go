// Package classify decides the run topology of a candidate directory: which
// stage output files make it up, or whether it is a killed run or not a run
// at all.
package classify

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/calderon/vaspdb/internal/types"
)

// Kind is the run topology of a directory.
type Kind int

const (
	// KindNone marks a directory that is not a run.
	KindNone Kind = iota
	// KindRun marks a standard or multi-stage run with stage output files.
	KindRun
	// KindKilled marks a directory with input files but no usable output.
	KindKilled
)

// Stage pairs a stage name with its output file path.
type Stage struct {
	Name string
	File string
}

// Classification is the outcome for one directory. Stages are ordered by
// lexically sorted stage name; downstream first/last semantics depend on
// this exact ordering.
type Classification struct {
	Kind   Kind
	Stages []Stage
}

// stopMarker stops a two-stage run midway.
const stopMarker = "STOPCAR"

// inputKinds are the raw input files a killed run must still have, either
// as-is or as a preserved .orig copy.
var inputKinds = []string{"INCAR", "KPOINTS", "POSCAR", "POTCAR"}

// Classify inspects a directory listing and picks the assimilation
// strategy. Only a failure to list the directory is an error; everything
// else resolves to a Classification, possibly KindNone.
func Classify(dir string) (Classification, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Classification{}, fmt.Errorf("listing %s: %w", dir, err)
	}
	var subdirs, files []string
	for _, e := range entries {
		if e.IsDir() {
			subdirs = append(subdirs, e.Name())
		} else {
			files = append(files, e.Name())
		}
	}
	return classifyListing(dir, subdirs, files), nil
}

func classifyListing(dir string, subdirs, files []string) Classification {
	hasSub := func(name string) bool {
		for _, s := range subdirs {
			if s == name {
				return true
			}
		}
		return false
	}
	hasFile := func(name string) bool {
		for _, f := range files {
			if f == name {
				return true
			}
		}
		return false
	}

	// two-stage run stored as relax1/relax2 subdirectories
	if hasSub(types.StageRelax1) && hasSub(types.StageRelax2) {
		stages := stagesFromSubdirs(dir, true)
		if len(stages) > 0 {
			return Classification{Kind: KindRun, Stages: stages}
		}
		return Classification{Kind: KindNone}
	}

	// a stopped two-stage run tolerates missing stage subdirectories
	if hasFile(stopMarker) {
		if stages := stagesFromSubdirs(dir, false); len(stages) > 0 {
			return Classification{Kind: KindRun, Stages: stages}
		}
		return classifyKilled(dir, files)
	}

	// stage output files in the directory itself
	byStage := map[string]string{}
	for _, f := range files {
		if !strings.HasPrefix(f, "vasprun.xml") {
			continue
		}
		switch {
		case strings.Contains(f, ".relax2"):
			byStage[types.StageRelax2] = f
		case strings.Contains(f, ".relax1"):
			byStage[types.StageRelax1] = f
		default:
			byStage[types.StageStandard] = f
		}
	}
	if len(byStage) > 0 {
		names := make([]string, 0, len(byStage))
		for name := range byStage {
			names = append(names, name)
		}
		// lexical order decides stage precedence; "standard" sorting after
		// "relax1"/"relax2" is long-standing behavior
		sort.Strings(names)
		stages := make([]Stage, 0, len(names))
		for _, name := range names {
			stages = append(stages, Stage{Name: name, File: filepath.Join(dir, byStage[name])})
		}
		return Classification{Kind: KindRun, Stages: stages}
	}

	return classifyKilled(dir, files)
}

// stagesFromSubdirs locates a stage output inside each relax subdirectory.
// With required set, both must be found.
func stagesFromSubdirs(dir string, required bool) []Stage {
	var stages []Stage
	for _, name := range []string{types.StageRelax1, types.StageRelax2} {
		sub := filepath.Join(dir, name)
		file := findVasprun(sub)
		if file == "" {
			if required {
				return nil
			}
			continue
		}
		stages = append(stages, Stage{Name: name, File: file})
	}
	return stages
}

func findVasprun(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), "vasprun.xml") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0])
}

// classifyKilled checks for a killed run: the directory is not itself a
// stage subdirectory and still has the full set of raw input files, as-is
// or as .orig copies.
func classifyKilled(dir string, files []string) Classification {
	base := filepath.Base(dir)
	if strings.HasSuffix(base, types.StageRelax1) || strings.HasSuffix(base, types.StageRelax2) {
		return Classification{Kind: KindNone}
	}
	present := map[string]bool{}
	for _, f := range files {
		present[f] = true
	}
	for _, kind := range inputKinds {
		if !present[kind] && !present[kind+".orig"] {
			return Classification{Kind: KindNone}
		}
	}
	return Classification{Kind: KindKilled}
}

// IsAssimilable implements the directory-walk contract: given one visited
// (parent, subdirectories, files) triple, it returns the paths eligible for
// assimilation. Stage subdirectories are never independent leaves; their
// parent owns them.
func IsAssimilable(parent string, subdirs, files []string) []string {
	base := filepath.Base(parent)
	if base == types.StageRelax1 || base == types.StageRelax2 {
		return nil
	}
	c := classifyListing(parent, subdirs, files)
	if c.Kind == KindNone {
		return nil
	}
	return []string{parent}
}

// IsNEBRoot reports whether a directory looks like the root of a NEB run:
// it has the first two zero-padded image subdirectories.
func IsNEBRoot(subdirs []string) bool {
	found := map[string]bool{}
	for _, s := range subdirs {
		found[s] = true
	}
	return found["00"] && found["01"]
}
