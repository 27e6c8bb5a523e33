package drone

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/calderon/vaspdb/internal/classify"
	"github.com/calderon/vaspdb/internal/parsing"
	"github.com/calderon/vaspdb/internal/types"
)

// maxNEBImages caps the image walk; indexes are two-digit zero-padded.
const maxNEBImages = 9

var imageDirRe = regexp.MustCompile(`^\d{2}$`)

// GenerateNEBDoc builds the document for a NEB run: the standard stage
// merge followed by the reaction-path series computed from the numbered
// image subdirectories. An incomplete image set aborts the whole document;
// a NEB run is never partially persisted.
func (d *Drone) GenerateNEBDoc(dir string, stages []classify.Stage) (*types.RunDocument, error) {
	doc, err := d.GenerateDoc(dir, stages)
	if err != nil {
		return nil, err
	}

	record, err := d.nebRecord(dir)
	if err != nil {
		return nil, err
	}
	doc.NEB = record
	doc.Type = types.KindNEB
	return doc, nil
}

// nebRecord reads each image's energy file and derives the series,
// contour, and delta statistics.
func (d *Drone) nebRecord(dir string) (*types.NEBRecord, error) {
	n, err := countImageDirs(dir)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("no image directories in %s", dir)
	}

	energies := make([]float64, 0, n)
	mags := make([]*float64, 0, n)
	for i := 0; i < n; i++ {
		sub := filepath.Join(dir, fmt.Sprintf("%02d", i))
		path := parsing.FindFile(sub, "OSZICAR")
		if path == "" {
			return nil, fmt.Errorf("image %02d has no energy file", i)
		}
		osz, err := parsing.ReadOszicar(path)
		if err != nil {
			return nil, fmt.Errorf("image %02d: %w", i, err)
		}
		e0, ok := osz.FinalE0()
		if !ok {
			return nil, fmt.Errorf("image %02d reports no energy", i)
		}
		energies = append(energies, e0)
		if m, ok := osz.FinalMag(); ok {
			v := m
			mags = append(mags, &v)
		} else {
			mags = append(mags, nil)
		}
	}

	rec := &types.NEBRecord{
		NumImages:         n,
		ImageEnergyValues: energies,
		ImageEnergies:     joinSeries(energies),
		EnergyContour:     contour(energies),
	}
	rec.DeltaEFirstMax, rec.DeltaELastMax, rec.DeltaEEndpoints, rec.DeltaEMaxMin = seriesDeltas(energies)

	// spin-polarized only: the first image decides whether moments exist
	if mags[0] != nil {
		magValues := make([]float64, n)
		for i, m := range mags {
			if m == nil {
				return nil, fmt.Errorf("image %02d reports no magnetic moment in a spin-polarized run", i)
			}
			magValues[i] = *m
		}
		rec.ImageMagValues = magValues
		rec.ImageMags = joinSeries(magValues)
		rec.MagContour = contour(magValues)
		fm, lm, ep, mm := seriesDeltas(magValues)
		rec.DeltaMFirstMax = &fm
		rec.DeltaMLastMax = &lm
		rec.DeltaMEndpoints = &ep
		rec.DeltaMMaxMin = &mm
	}
	return rec, nil
}

// countImageDirs counts the two-digit image subdirectories whose index is
// within the image walk range. A stray high-numbered directory is ignored
// rather than counted as a phantom image; real gaps inside the range still
// surface later as missing energy files.
func countImageDirs(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", dir, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() || !imageDirRe.MatchString(e.Name()) {
			continue
		}
		idx, err := strconv.Atoi(e.Name())
		if err != nil || idx >= maxNEBImages {
			continue
		}
		n++
	}
	return n, nil
}

func joinSeries(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

// contour renders the series as glyph segments, one direction marker per
// adjacent pair, compared strictly.
func contour(values []float64) string {
	var sb strings.Builder
	sb.WriteString("-x-")
	for i := 1; i < len(values); i++ {
		switch {
		case values[i] > values[i-1]:
			sb.WriteString("/")
		case values[i] < values[i-1]:
			sb.WriteString(`\`)
		default:
			sb.WriteString("=")
		}
		sb.WriteString("-x-")
	}
	return sb.String()
}

func seriesDeltas(values []float64) (firstMax, lastMax, endpoints, maxMin float64) {
	max, min := values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	first, last := values[0], values[len(values)-1]
	return max - first, max - last, last - first, max - min
}
