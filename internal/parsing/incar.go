package parsing

import (
	"bufio"
	"strconv"
	"strings"
)

// ReadIncar parses an INCAR file into a map of tag name to typed value.
// Values become bool, float64, []float64, or string depending on shape.
func ReadIncar(path string) (map[string]any, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, parseErr(path, "cannot open INCAR", err)
	}
	defer closeFn()

	params := map[string]any{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexAny(line, "#!"); i >= 0 {
			line = line[:i]
		}
		// multiple tags may share a line separated by semicolons
		for _, part := range strings.Split(line, ";") {
			key, val, ok := strings.Cut(part, "=")
			if !ok {
				continue
			}
			key = strings.ToUpper(strings.TrimSpace(key))
			if key == "" {
				continue
			}
			params[key] = parseIncarValue(strings.TrimSpace(val))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, parseErr(path, "reading INCAR", err)
	}
	return params, nil
}

func parseIncarValue(raw string) any {
	fields := strings.Fields(raw)
	switch len(fields) {
	case 0:
		return ""
	case 1:
		return parseIncarScalar(fields[0])
	}
	vals := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return raw
		}
		vals = append(vals, v)
	}
	return vals
}

func parseIncarScalar(s string) any {
	switch strings.ToUpper(s) {
	case "T", ".TRUE.", "TRUE":
		return true
	case "F", ".FALSE.", "FALSE":
		return false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return s
}

// IncarBool reads a logical tag, defaulting to false when absent or not a
// bool.
func IncarBool(params map[string]any, key string) bool {
	b, _ := params[key].(bool)
	return b
}

// IncarFloats reads a list tag, promoting a lone scalar to a single-element
// slice.
func IncarFloats(params map[string]any, key string) []float64 {
	switch v := params[key].(type) {
	case []float64:
		return v
	case float64:
		return []float64{v}
	}
	return nil
}
