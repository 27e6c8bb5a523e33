package parsing

import (
	"bufio"
	"strconv"
	"strings"
)

// ReadKpoints parses an automatic-mesh KPOINTS file into a generic record.
func ReadKpoints(path string) (map[string]any, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, parseErr(path, "cannot open KPOINTS", err)
	}
	defer closeFn()

	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() && len(lines) < 5 {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, parseErr(path, "reading KPOINTS", err)
	}
	if len(lines) < 4 {
		return nil, parseErr(path, "truncated KPOINTS", nil)
	}

	record := map[string]any{
		"comment":    strings.TrimSpace(lines[0]),
		"generation": strings.TrimSpace(lines[2]),
	}
	grid := []int{}
	for _, f := range strings.Fields(lines[3]) {
		n, err := strconv.Atoi(f)
		if err != nil {
			break
		}
		grid = append(grid, n)
	}
	if len(grid) == 3 {
		record["grid"] = grid
	}
	return record, nil
}
