package parsing

import (
	"bufio"
	"regexp"
	"strconv"
)

// IonicStep is one converged ionic step reported by OSZICAR.
type IonicStep struct {
	E0  float64
	Mag *float64
}

// Oszicar holds the ionic-step energies of one run or image.
type Oszicar struct {
	Steps []IonicStep
}

// FinalE0 returns the last ionic step's E0 energy.
func (o *Oszicar) FinalE0() (float64, bool) {
	if len(o.Steps) == 0 {
		return 0, false
	}
	return o.Steps[len(o.Steps)-1].E0, true
}

// FinalMag returns the last ionic step's total magnetic moment, absent for
// non-spin-polarized runs.
func (o *Oszicar) FinalMag() (float64, bool) {
	if len(o.Steps) == 0 || o.Steps[len(o.Steps)-1].Mag == nil {
		return 0, false
	}
	return *o.Steps[len(o.Steps)-1].Mag, true
}

var (
	oszE0Re  = regexp.MustCompile(`E0=\s*([-+.\dEe]+)`)
	oszMagRe = regexp.MustCompile(`mag=\s*([-+.\dEe]+)`)
)

// ReadOszicar parses an OSZICAR file. Electronic-step lines are skipped;
// each ionic summary line contributes one step.
func ReadOszicar(path string) (*Oszicar, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, parseErr(path, "cannot open OSZICAR", err)
	}
	defer closeFn()

	var osz Oszicar
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		m := oszE0Re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		e0, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, parseErr(path, "bad E0 value "+m[1], err)
		}
		step := IonicStep{E0: e0}
		if mm := oszMagRe.FindStringSubmatch(line); mm != nil {
			if mag, err := strconv.ParseFloat(mm[1], 64); err == nil {
				step.Mag = &mag
			}
		}
		osz.Steps = append(osz.Steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, parseErr(path, "reading OSZICAR", err)
	}
	if len(osz.Steps) == 0 {
		return nil, parseErr(path, "no ionic steps found", nil)
	}
	return &osz, nil
}
