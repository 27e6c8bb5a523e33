package parsing

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// openMaybeGzip opens a file, transparently decompressing when the name
// carries a .gz suffix. The returned closer closes both layers.
func openMaybeGzip(path string) (io.Reader, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, f.Close, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	closer := func() error {
		gzErr := gz.Close()
		if err := f.Close(); err != nil {
			return err
		}
		return gzErr
	}
	return gz, closer, nil
}

// FindFile returns the first existing path among base and base+".gz" in dir,
// or "" when neither exists.
func FindFile(dir, base string) string {
	for _, name := range []string{base, base + ".gz"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
