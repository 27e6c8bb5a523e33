package parsing

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/calderon/vaspdb/internal/types"
)

// ReadPoscar parses a VASP 5 format POSCAR/CONTCAR into a Crystal. The
// symbol line after the lattice vectors is required; pre-VASP-5 files
// without it are rejected.
func ReadPoscar(path string) (*types.Crystal, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, parseErr(path, "cannot open POSCAR", err)
	}
	defer closeFn()
	crystal, err := parsePoscar(r)
	if err != nil {
		return nil, parseErr(path, "malformed POSCAR", err)
	}
	return crystal, nil
}

func parsePoscar(r io.Reader) (*types.Crystal, error) {
	scanner := bufio.NewScanner(r)
	next := func() (string, error) {
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", err
			}
			return "", io.ErrUnexpectedEOF
		}
		return scanner.Text(), nil
	}

	if _, err := next(); err != nil { // comment line
		return nil, err
	}
	scaleLine, err := next()
	if err != nil {
		return nil, err
	}
	scale, err := strconv.ParseFloat(strings.TrimSpace(scaleLine), 64)
	if err != nil {
		return nil, fmt.Errorf("bad scale factor: %w", err)
	}

	var lattice [3][3]float64
	for i := 0; i < 3; i++ {
		line, err := next()
		if err != nil {
			return nil, err
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("lattice row %d has %d fields", i, len(fields))
		}
		for j := 0; j < 3; j++ {
			v, err := strconv.ParseFloat(fields[j], 64)
			if err != nil {
				return nil, fmt.Errorf("lattice row %d: %w", i, err)
			}
			lattice[i][j] = v * scale
		}
	}

	symbolLine, err := next()
	if err != nil {
		return nil, err
	}
	symbols := strings.Fields(symbolLine)
	if len(symbols) == 0 || isAllInts(symbols) {
		return nil, fmt.Errorf("missing element symbol line (VASP 5 format required)")
	}
	countLine, err := next()
	if err != nil {
		return nil, err
	}
	countFields := strings.Fields(countLine)
	if len(countFields) != len(symbols) {
		return nil, fmt.Errorf("%d symbols but %d counts", len(symbols), len(countFields))
	}
	counts := make([]int, len(countFields))
	total := 0
	for i, f := range countFields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad atom count: %w", err)
		}
		counts[i] = n
		total += n
	}

	modeLine, err := next()
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(modeLine)), "s") {
		// selective dynamics; coordinate mode is on the next line
		modeLine, err = next()
		if err != nil {
			return nil, err
		}
	}
	mode := strings.ToLower(strings.TrimSpace(modeLine))
	if mode == "" {
		return nil, fmt.Errorf("truncated POSCAR: empty coordinate mode line")
	}
	cartesian := false
	switch mode[0] {
	case 'c', 'k':
		cartesian = true
	}

	crystal := &types.Crystal{Lattice: lattice}
	for i, sym := range symbols {
		for n := 0; n < counts[i]; n++ {
			line, err := next()
			if err != nil {
				return nil, err
			}
			fields := strings.Fields(line)
			if len(fields) < 3 {
				return nil, fmt.Errorf("coordinate line has %d fields", len(fields))
			}
			var xyz [3]float64
			for j := 0; j < 3; j++ {
				v, err := strconv.ParseFloat(fields[j], 64)
				if err != nil {
					return nil, fmt.Errorf("bad coordinate: %w", err)
				}
				xyz[j] = v
			}
			if cartesian {
				for j := 0; j < 3; j++ {
					xyz[j] *= scale
				}
			} else {
				xyz = fracToCart(xyz, lattice)
			}
			crystal.Sites = append(crystal.Sites, types.Site{Species: sym, XYZ: xyz})
		}
	}
	if len(crystal.Sites) != total {
		return nil, fmt.Errorf("expected %d sites, read %d", total, len(crystal.Sites))
	}
	return crystal, nil
}

func isAllInts(fields []string) bool {
	for _, f := range fields {
		if _, err := strconv.Atoi(f); err != nil {
			return false
		}
	}
	return true
}

func fracToCart(f [3]float64, lattice [3][3]float64) [3]float64 {
	var xyz [3]float64
	for j := 0; j < 3; j++ {
		xyz[j] = f[0]*lattice[0][j] + f[1]*lattice[1][j] + f[2]*lattice[2][j]
	}
	return xyz
}
