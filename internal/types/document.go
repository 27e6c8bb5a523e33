package types

import (
	"encoding/json"
	"time"
)

// SchemaVersion is stamped on every assembled document.
const SchemaVersion = "vaspdb-2.0.0"

// State describes the outcome of a run.
type State string

const (
	StateSuccessful   State = "successful"
	StateUnsuccessful State = "unsuccessful"
	StateStopped      State = "stopped"
	StateBadStructure State = "errored_bad_structure"
	StateKilled       State = "killed"
)

// RunKind distinguishes the document variants.
type RunKind string

const (
	KindVASP RunKind = "VASP"
	KindNEB  RunKind = "NEB"
)

// Stage names used by the classifier.
const (
	StageRelax1   = "relax1"
	StageRelax2   = "relax2"
	StageStandard = "standard"
)

// BandGap holds band-gap data for one stage's output.
type BandGap struct {
	Gap      float64  `json:"bandgap"`
	CBM      *float64 `json:"cbm"`
	VBM      *float64 `json:"vbm"`
	IsDirect bool     `json:"is_gap_direct"`
}

// TaskLabel identifies one stage within a run.
type TaskLabel struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// StageResult is the parsed output of one simulation stage. It is built by
// a format reader and never mutated after the merge consumes it.
type StageResult struct {
	Task          TaskLabel          `json:"task"`
	InputCrystal  *Crystal           `json:"crystal_input,omitempty"`
	OutputCrystal *Crystal           `json:"crystal_output,omitempty"`
	FinalEnergy   float64            `json:"final_energy"`
	EnergyPerAtom float64            `json:"final_energy_per_atom"`
	CompletedAt   time.Time          `json:"completed_at"`
	HasCompleted  bool               `json:"has_vasp_completed"`
	NIonicSteps   int                `json:"nionic_steps"`
	BandGap       BandGap            `json:"output_bandgap"`
	CIF           string             `json:"cif,omitempty"`
	Density       float64            `json:"density"`
	RunType       string             `json:"run_type"`
	IsHubbard     bool               `json:"is_hubbard"`
	Hubbards      map[string]float64 `json:"hubbards,omitempty"`
	DOS           json.RawMessage    `json:"dos,omitempty"`
	DOSID         string             `json:"dos_id,omitempty"`
	InputParams   map[string]any     `json:"input_parameters,omitempty"`
}

// InputSummary holds the run-level input block of a document.
type InputSummary struct {
	Crystal *Crystal       `json:"crystal,omitempty"`
	Incar   map[string]any `json:"incar,omitempty"`
	Kpoints map[string]any `json:"kpoints,omitempty"`
	Potcar  []string       `json:"potcar,omitempty"`
}

// OutputSummary holds the run-level output block, derived from the last
// stage.
type OutputSummary struct {
	Crystal            *Crystal `json:"crystal,omitempty"`
	FinalEnergy        float64  `json:"final_energy"`
	FinalEnergyPerAtom float64  `json:"final_energy_per_atom"`
}

// SiteCoordination is one site's nearest-neighbor count.
type SiteCoordination struct {
	Site         int    `json:"site"`
	Element      string `json:"element"`
	Coordination int    `json:"coordination"`
}

// AnalysisRecord carries the derived scientific fields of a document.
type AnalysisRecord struct {
	DeltaVolume         float64            `json:"delta_volume"`
	PercentDeltaVolume  float64            `json:"percent_delta_volume"`
	Warnings            []string           `json:"warnings"`
	CoordinationNumbers []SiteCoordination `json:"coordination_numbers,omitempty"`
	BandGap             float64            `json:"bandgap"`
	CBM                 *float64           `json:"cbm"`
	VBM                 *float64           `json:"vbm"`
	IsGapDirect         bool               `json:"is_gap_direct"`
	BVStructure         *Crystal           `json:"bv_structure,omitempty"`
	Stability           map[string]any     `json:"stability,omitempty"`
}

// SpacegroupRecord describes the symmetry of the final structure.
type SpacegroupRecord struct {
	Symbol        string `json:"symbol"`
	Number        int    `json:"number"`
	PointGroup    string `json:"point_group"`
	CrystalSystem string `json:"crystal_system"`
	Hall          string `json:"hall"`
}

// NEBRecord holds the derived reaction-path series of a NEB document.
// Magnetic-moment fields are present only for spin-polarized runs, decided
// by whether the first image reports a moment.
type NEBRecord struct {
	NumImages         int       `json:"num_images"`
	ImageEnergyValues []float64 `json:"image_energy_values"`
	ImageMagValues    []float64 `json:"image_mag_values,omitempty"`
	ImageEnergies     string    `json:"image_energies"`
	ImageMags         string    `json:"image_mags,omitempty"`
	EnergyContour     string    `json:"energy_contour"`
	MagContour        string    `json:"mag_contour,omitempty"`
	DeltaEFirstMax    float64   `json:"deltaE_firstmax"`
	DeltaELastMax     float64   `json:"deltaE_lastmax"`
	DeltaEEndpoints   float64   `json:"deltaE_endpoints"`
	DeltaEMaxMin      float64   `json:"deltaE_maxmin"`
	DeltaMFirstMax    *float64  `json:"deltaM_firstmax,omitempty"`
	DeltaMLastMax     *float64  `json:"deltaM_lastmax,omitempty"`
	DeltaMEndpoints   *float64  `json:"deltaM_endpoints,omitempty"`
	DeltaMMaxMin      *float64  `json:"deltaM_maxmin,omitempty"`
}

// RunDocument is the canonical persisted record for one run directory.
// DirName (host-qualified path) is the dedup key; TaskID is assigned once
// at first insertion and never reassigned.
type RunDocument struct {
	SchemaVersion string  `json:"schema_version"`
	DirName       string  `json:"dir_name"`
	State         State   `json:"state"`
	Type          RunKind `json:"type"`

	Calculations []*StageResult `json:"calculations,omitempty"`

	// Root-level mirrors of the authoritative (last) stage.
	Elements           []string           `json:"elements,omitempty"`
	NElements          int                `json:"nelements,omitempty"`
	PrettyFormula      string             `json:"pretty_formula,omitempty"`
	FullFormula        string             `json:"full_formula,omitempty"`
	ReducedCellFormula map[string]int     `json:"reduced_cell_formula,omitempty"`
	AnonymousFormula   string             `json:"formula_anonymous,omitempty"`
	ChemSys            string             `json:"chemsys,omitempty"`
	Density            float64            `json:"density,omitempty"`
	NSites             int                `json:"nsites,omitempty"`
	IsHubbard          bool               `json:"is_hubbard"`
	Hubbards           map[string]float64 `json:"hubbards,omitempty"`
	RunType            string             `json:"run_type,omitempty"`

	Input  *InputSummary  `json:"input,omitempty"`
	Output *OutputSummary `json:"output,omitempty"`

	Analysis        *AnalysisRecord               `json:"analysis,omitempty"`
	Spacegroup      *SpacegroupRecord             `json:"spacegroup,omitempty"`
	Transformations map[string]any                `json:"transformations,omitempty"`
	Custodian       any                           `json:"custodian,omitempty"`
	RunStats        map[string]map[string]float64 `json:"run_stats,omitempty"`
	NEB             *NEBRecord                    `json:"neb,omitempty"`

	ICSDID      int       `json:"icsd_id,omitempty"`
	TaskID      int64     `json:"task_id,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
	Tags        []string  `json:"tags,omitempty"`
	Author      string    `json:"author,omitempty"`

	// Extra carries the caller-supplied static fields merged into the
	// document root. Struct fields always win over Extra keys.
	Extra map[string]any `json:"-"`
}

// MarshalJSON merges Extra into the document root. Keys that collide with
// struct fields are dropped in favor of the struct value.
func (d *RunDocument) MarshalJSON() ([]byte, error) {
	type alias RunDocument
	base, err := json.Marshal((*alias)(d))
	if err != nil {
		return nil, err
	}
	if len(d.Extra) == 0 {
		return base, nil
	}
	var m map[string]any
	if err := json.Unmarshal(base, &m); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// First returns the first calculation, or nil for killed runs.
func (d *RunDocument) First() *StageResult {
	if len(d.Calculations) == 0 {
		return nil
	}
	return d.Calculations[0]
}

// Last returns the authoritative (last) calculation, or nil for killed runs.
func (d *RunDocument) Last() *StageResult {
	if len(d.Calculations) == 0 {
		return nil
	}
	return d.Calculations[len(d.Calculations)-1]
}
