package parsing

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/calderon/vaspdb/internal/types"
)

// occupancyTol separates occupied from empty bands when locating the band
// edges.
const occupancyTol = 0.001

// VasprunOptions controls optional payload extraction.
type VasprunOptions struct {
	// ParseDOS captures the density-of-states block. The payload is large
	// and is stored out-of-line by the persistence layer.
	ParseDOS bool
}

// ReadVasprun parses a vasprun.xml (optionally gzipped) into a StageResult.
// On any failure no partial result is returned.
func ReadVasprun(path string, opts VasprunOptions) (*types.StageResult, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, parseErr(path, "cannot open vasprun", err)
	}
	defer closeFn()

	data, err := parseVasprun(r, opts)
	if err != nil {
		return nil, parseErr(path, "malformed vasprun", err)
	}
	return data.toStageResult(path)
}

type kpointEigen struct {
	spin   int
	kpoint int
	rows   [][2]float64 // energy, occupancy
}

type vasprunData struct {
	incar   map[string]any
	species []string
	initial *types.Crystal
	final   *types.Crystal
	nCalcs  int
	lastE0  float64
	haveE0  bool
	eigen   []kpointEigen
	dos     json.RawMessage
}

func parseVasprun(r io.Reader, opts VasprunOptions) (*vasprunData, error) {
	dec := xml.NewDecoder(r)
	data := &vasprunData{incar: map[string]any{}}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "incar":
			if err := data.parseIncarBlock(dec, &start); err != nil {
				return nil, err
			}
		case "atominfo":
			if err := data.parseAtomInfo(dec, &start); err != nil {
				return nil, err
			}
		case "structure":
			name := attrValue(start, "name")
			crystal, err := data.parseStructure(dec, &start)
			if err != nil {
				return nil, err
			}
			switch name {
			case "initialpos":
				data.initial = crystal
			case "finalpos":
				data.final = crystal
			}
		case "calculation":
			data.nCalcs++
		case "energy":
			if err := data.parseEnergy(dec, &start); err != nil {
				return nil, err
			}
		case "eigenvalues":
			if err := data.parseEigenvalues(dec, &start); err != nil {
				return nil, err
			}
		case "dos":
			if !opts.ParseDOS {
				if err := dec.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			if err := data.parseDOS(dec, &start); err != nil {
				return nil, err
			}
		}
	}
	if data.initial == nil {
		return nil, fmt.Errorf("no initialpos structure")
	}
	return data, nil
}

func (d *vasprunData) toStageResult(path string) (*types.StageResult, error) {
	out := d.final
	if out == nil {
		return nil, parseErr(path, "no finalpos structure", nil)
	}
	if !d.haveE0 {
		return nil, parseErr(path, "no final energy", nil)
	}

	nsw := 0
	if v, ok := d.incar["NSW"].(float64); ok {
		nsw = int(v)
	}
	completed := nsw <= 1 || d.nCalcs < nsw

	isHubbard := IncarBool(d.incar, "LDAU")
	hubbards := map[string]float64{}
	if isHubbard {
		hubbards = zipHubbards(d.species, IncarFloats(d.incar, "LDAUU"))
	}
	runType := "GGA"
	if IncarBool(d.incar, "LHFCALC") {
		runType = "HF"
	}
	if isHubbard {
		runType = "GGA+U"
	}

	completedAt := time.Now()
	if fi, err := os.Stat(path); err == nil {
		completedAt = fi.ModTime()
	}

	res := &types.StageResult{
		InputCrystal:  d.initial,
		OutputCrystal: out,
		FinalEnergy:   d.lastE0,
		EnergyPerAtom: d.lastE0 / float64(len(out.Sites)),
		CompletedAt:   completedAt,
		HasCompleted:  completed,
		NIonicSteps:   d.nCalcs,
		BandGap:       bandGapFromEigen(d.eigen),
		CIF:           out.CIF(),
		Density:       out.Density(),
		RunType:       runType,
		IsHubbard:     isHubbard,
		Hubbards:      hubbards,
		DOS:           d.dos,
		InputParams:   d.incar,
	}
	return res, nil
}

// zipHubbards pairs the unique element order of the sites with LDAUU values.
func zipHubbards(species []string, u []float64) map[string]float64 {
	var order []string
	seen := map[string]bool{}
	for _, s := range species {
		if !seen[s] {
			seen[s] = true
			order = append(order, s)
		}
	}
	out := map[string]float64{}
	for i, el := range order {
		if i < len(u) {
			out[el] = u[i]
		} else {
			out[el] = 0
		}
	}
	return out
}

func attrValue(start xml.StartElement, name string) string {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// parseIncarBlock reads <i>/<v> children of an <incar> element.
func (d *vasprunData) parseIncarBlock(dec *xml.Decoder, start *xml.StartElement) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "i" || t.Name.Local == "v" {
				name := attrValue(t, "name")
				text, err := elementText(dec)
				if err != nil {
					return err
				}
				if name != "" {
					d.incar[strings.ToUpper(name)] = parseIncarValue(strings.TrimSpace(text))
				}
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// parseAtomInfo extracts the per-site species from <array name="atoms">.
func (d *vasprunData) parseAtomInfo(dec *xml.Decoder, start *xml.StartElement) error {
	inAtoms := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "array":
				inAtoms = attrValue(t, "name") == "atoms"
			case "rc":
				if !inAtoms {
					continue
				}
				sym, err := firstCellText(dec, t.Name.Local)
				if err != nil {
					return err
				}
				d.species = append(d.species, strings.TrimSpace(sym))
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
			if t.Name.Local == "array" {
				inAtoms = false
			}
		}
	}
}

// firstCellText returns the text of the first <c> child and consumes the
// rest of the enclosing element.
func firstCellText(dec *xml.Decoder, parent string) (string, error) {
	first := ""
	haveFirst := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "c" {
				text, err := elementText(dec)
				if err != nil {
					return "", err
				}
				if !haveFirst {
					first = text
					haveFirst = true
				}
			}
		case xml.EndElement:
			if t.Name.Local == parent {
				return first, nil
			}
		}
	}
}

// parseStructure reads one <structure>: basis vectors plus fractional
// positions, producing a cartesian Crystal using the species from atominfo.
func (d *vasprunData) parseStructure(dec *xml.Decoder, start *xml.StartElement) (*types.Crystal, error) {
	var lattice [3][3]float64
	var positions [][3]float64
	current := "" // varray currently open

	latticeRow := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "varray":
				current = attrValue(t, "name")
			case "v":
				text, err := elementText(dec)
				if err != nil {
					return nil, err
				}
				vec, err := parseVector(text)
				if err != nil {
					return nil, err
				}
				switch current {
				case "basis":
					if latticeRow < 3 {
						lattice[latticeRow] = vec
						latticeRow++
					}
				case "positions":
					positions = append(positions, vec)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "varray" {
				current = ""
			}
			if t.Name.Local == start.Name.Local {
				if latticeRow != 3 {
					return nil, fmt.Errorf("structure has %d basis vectors", latticeRow)
				}
				if len(positions) != len(d.species) {
					return nil, fmt.Errorf("%d positions for %d species", len(positions), len(d.species))
				}
				crystal := &types.Crystal{Lattice: lattice}
				for i, f := range positions {
					crystal.Sites = append(crystal.Sites, types.Site{
						Species: d.species[i],
						XYZ:     fracToCart(f, lattice),
					})
				}
				return crystal, nil
			}
		}
	}
}

func (d *vasprunData) parseEnergy(dec *xml.Decoder, start *xml.StartElement) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "i" {
				name := attrValue(t, "name")
				text, err := elementText(dec)
				if err != nil {
					return err
				}
				if name == "e_0_energy" {
					v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
					if err != nil {
						return fmt.Errorf("bad e_0_energy: %w", err)
					}
					d.lastE0 = v
					d.haveE0 = true
				}
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// parseEigenvalues collects (energy, occupancy) rows grouped by spin and
// kpoint from the eigenvalue array.
func (d *vasprunData) parseEigenvalues(dec *xml.Decoder, start *xml.StartElement) error {
	d.eigen = nil
	spin, kpoint := 0, 0
	var current *kpointEigen
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "set":
				comment := attrValue(t, "comment")
				switch {
				case strings.HasPrefix(comment, "spin"):
					n, _ := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(comment, "spin")))
					spin = n
				case strings.HasPrefix(comment, "kpoint"):
					n, _ := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(comment, "kpoint")))
					kpoint = n
					d.eigen = append(d.eigen, kpointEigen{spin: spin, kpoint: kpoint})
					current = &d.eigen[len(d.eigen)-1]
				}
			case "r":
				if current == nil {
					continue
				}
				text, err := elementText(dec)
				if err != nil {
					return err
				}
				fields := strings.Fields(text)
				if len(fields) < 2 {
					return fmt.Errorf("eigenvalue row %q", text)
				}
				e, err1 := strconv.ParseFloat(fields[0], 64)
				occ, err2 := strconv.ParseFloat(fields[1], 64)
				if err1 != nil || err2 != nil {
					return fmt.Errorf("bad eigenvalue row %q", text)
				}
				current.rows = append(current.rows, [2]float64{e, occ})
			}
		case xml.EndElement:
			if t.Name.Local == start.Name.Local {
				return nil
			}
		}
	}
}

// dosRecord is the out-of-line density-of-states payload.
type dosRecord struct {
	EFermi float64                 `json:"efermi"`
	Spins  map[string][][3]float64 `json:"spins"` // rows of energy, total, integrated
}

func (d *vasprunData) parseDOS(dec *xml.Decoder, start *xml.StartElement) error {
	rec := dosRecord{Spins: map[string][][3]float64{}}
	spin := "1"
	inTotal := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "i":
				if attrValue(t, "name") == "efermi" {
					text, err := elementText(dec)
					if err != nil {
						return err
					}
					if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
						rec.EFermi = v
					}
				}
			case "total":
				inTotal = true
			case "partial":
				// site-projected DOS is large and unused downstream
				if err := dec.Skip(); err != nil {
					return err
				}
			case "set":
				comment := attrValue(t, "comment")
				if strings.HasPrefix(comment, "spin") {
					spin = strings.TrimSpace(strings.TrimPrefix(comment, "spin"))
				}
			case "r":
				if !inTotal {
					continue
				}
				text, err := elementText(dec)
				if err != nil {
					return err
				}
				fields := strings.Fields(text)
				if len(fields) < 3 {
					continue
				}
				var row [3]float64
				ok := true
				for i := 0; i < 3; i++ {
					v, err := strconv.ParseFloat(fields[i], 64)
					if err != nil {
						ok = false
						break
					}
					row[i] = v
				}
				if ok {
					rec.Spins[spin] = append(rec.Spins[spin], row)
				}
			}
		case xml.EndElement:
			if t.Name.Local == "total" {
				inTotal = false
			}
			if t.Name.Local == start.Name.Local {
				raw, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				d.dos = raw
				return nil
			}
		}
	}
}

// bandGapFromEigen locates the band edges from per-kpoint eigenvalues. A
// gap is direct when the VBM and CBM sit at the same kpoint.
func bandGapFromEigen(groups []kpointEigen) types.BandGap {
	var gap types.BandGap
	if len(groups) == 0 {
		return gap
	}
	vbm, cbm := 0.0, 0.0
	vbmK, cbmK := -1, -1
	haveVBM, haveCBM := false, false
	for _, g := range groups {
		for _, row := range g.rows {
			e, occ := row[0], row[1]
			if occ > occupancyTol {
				if !haveVBM || e > vbm {
					vbm, vbmK, haveVBM = e, g.kpoint, true
				}
			} else {
				if !haveCBM || e < cbm {
					cbm, cbmK, haveCBM = e, g.kpoint, true
				}
			}
		}
	}
	if !haveVBM || !haveCBM {
		return gap
	}
	g := cbm - vbm
	if g < 0 {
		g = 0
	}
	gap.Gap = g
	gap.VBM = &vbm
	gap.CBM = &cbm
	gap.IsDirect = g > 0 && vbmK == cbmK
	return gap
}

func parseVector(text string) ([3]float64, error) {
	var v [3]float64
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return v, fmt.Errorf("vector %q has %d fields", text, len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return v, fmt.Errorf("bad vector component: %w", err)
		}
		v[i] = f
	}
	return v, nil
}

// elementText returns the character data up to the current element's end
// tag.
func elementText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			if depth == 0 {
				sb.Write(t)
			}
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return sb.String(), nil
			}
			depth--
		}
	}
}
