package parsing

import (
	"encoding/json"
	"io"
)

// ReadTransformations parses a transformations.json provenance side file.
func ReadTransformations(path string) (map[string]any, error) {
	return readJSONMap(path, "transformations")
}

// ReadCustodian parses a custodian.json execution-audit side file. The
// content is attached to documents verbatim.
func ReadCustodian(path string) (any, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, parseErr(path, "cannot open custodian file", err)
	}
	defer closeFn()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, parseErr(path, "reading custodian file", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, parseErr(path, "malformed custodian JSON", err)
	}
	return out, nil
}

func readJSONMap(path, what string) (map[string]any, error) {
	r, closeFn, err := openMaybeGzip(path)
	if err != nil {
		return nil, parseErr(path, "cannot open "+what+" file", err)
	}
	defer closeFn()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, parseErr(path, "reading "+what+" file", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, parseErr(path, "malformed "+what+" JSON", err)
	}
	return out, nil
}
