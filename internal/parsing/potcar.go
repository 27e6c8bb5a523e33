package parsing

import (
	"bufio"
	"strings"
)

// PotcarSpec is one pseudopotential entry from a concatenated POTCAR.
type PotcarSpec struct {
	Title   string // full TITEL line payload, e.g. "PAW_PBE Fe_pv 06Sep2000"
	Symbol  string // potential symbol, e.g. "Fe_pv"
	Element string // bare element, e.g. "Fe"
}

// ReadPotcar extracts the TITEL entries of a POTCAR. The potential data
// blocks themselves are skipped.
func ReadPotcar(path string) ([]PotcarSpec, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, parseErr(path, "cannot open POTCAR", err)
	}
	defer closeFn()

	var specs []PotcarSpec
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "TITEL") {
			continue
		}
		_, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		title := strings.TrimSpace(val)
		fields := strings.Fields(title)
		spec := PotcarSpec{Title: title}
		if len(fields) >= 2 {
			spec.Symbol = fields[1]
			spec.Element, _, _ = strings.Cut(fields[1], "_")
		}
		specs = append(specs, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, parseErr(path, "reading POTCAR", err)
	}
	if len(specs) == 0 {
		return nil, parseErr(path, "no TITEL entries found", nil)
	}
	return specs, nil
}
