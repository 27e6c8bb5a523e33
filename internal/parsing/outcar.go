package parsing

import (
	"bufio"
	"regexp"
	"strconv"
)

// runStatRe matches the timing summary lines at the end of an OUTCAR, e.g.
// "Total CPU time used (sec):     1295.33".
var runStatRe = regexp.MustCompile(`(Total CPU time used \(sec\)|User time \(sec\)|System time \(sec\)|Elapsed time \(sec\)|Maximum memory used \(kb\)|Average memory used \(kb\)):\s+([-+.\dEe]+)`)

var coresRe = regexp.MustCompile(`running on\s+(\d+) total cores`)

// ReadOutcarStats extracts the run-statistics counters from an OUTCAR.
func ReadOutcarStats(path string) (map[string]float64, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, parseErr(path, "cannot open OUTCAR", err)
	}
	defer closeFn()

	stats := map[string]float64{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := runStatRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[2], 64); err == nil {
				stats[m[1]] = v
			}
			continue
		}
		if m := coresRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				stats["cores"] = v
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, parseErr(path, "reading OUTCAR", err)
	}
	if len(stats) == 0 {
		return nil, parseErr(path, "no run statistics found", nil)
	}
	return stats, nil
}
