package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/calderon/vaspdb/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxWarningsToShow is the default number of warnings to display
	maxWarningsToShow = 5
)

// Printer handles formatted output for simulate and verbose modes
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintDocument outputs a human-readable summary of an assembled run
// document.
func (p *Printer) PrintDocument(doc *types.RunDocument) {
	if doc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Directory: %s\n", doc.DirName))
	sb.WriteString(fmt.Sprintf("State:     %s\n", doc.State))
	sb.WriteString(fmt.Sprintf("Type:      %s\n", doc.Type))
	if doc.PrettyFormula != "" {
		sb.WriteString(fmt.Sprintf("Formula:   %s (%s)\n", doc.PrettyFormula, doc.ChemSys))
	}
	if doc.RunType != "" {
		sb.WriteString(fmt.Sprintf("Run type:  %s\n", doc.RunType))
	}
	sb.WriteString(fmt.Sprintf("Stages:    %d\n", len(doc.Calculations)))
	if doc.Output != nil {
		sb.WriteString(fmt.Sprintf("Energy:    %.6f eV\n", doc.Output.FinalEnergy))
	}
	if doc.NEB != nil {
		sb.WriteString(fmt.Sprintf("Images:    %d\n", doc.NEB.NumImages))
		sb.WriteString(fmt.Sprintf("Contour:   %s\n", doc.NEB.EnergyContour))
	}
	if doc.Analysis != nil && len(doc.Analysis.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		count := min(len(doc.Analysis.Warnings), maxWarningsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", doc.Analysis.Warnings[i]))
		}
		if len(doc.Analysis.Warnings) > maxWarningsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(doc.Analysis.Warnings)-maxWarningsToShow))
		}
	}

	p.printBox("SIMULATED RUN DOCUMENT", strings.TrimRight(sb.String(), "\n"))
}

// PrintDocumentJSON dumps the full candidate document for inspection.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintDocumentJSON(doc *types.RunDocument) {
	if doc == nil {
		return
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		fmt.Fprintf(p.out, "cannot render document: %v\n", err)
		return
	}
	fmt.Fprintf(p.out, "%s\n", raw)
}

// PrintReport outputs the summary counts of one batch walk.
func (p *Printer) PrintReport(succeeded, failed, skipped int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Succeeded: %d\n", succeeded))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", failed))
	sb.WriteString(fmt.Sprintf("Skipped:   %d", skipped))
	p.printBox("ASSIMILATION REPORT", sb.String())
}
