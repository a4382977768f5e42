// Package render writes reports as JSON, YAML or aligned tables.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Format represents an output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// FormatFromFlags picks the output format from the --json and --yaml flags
func FormatFromFlags(asJSON, asYAML bool) (Format, error) {
	switch {
	case asJSON && asYAML:
		return "", fmt.Errorf("--json and --yaml are mutually exclusive")
	case asJSON:
		return FormatJSON, nil
	case asYAML:
		return FormatYAML, nil
	default:
		return FormatTable, nil
	}
}

// Options for rendering
type Options struct {
	Format    Format
	Porcelain bool
}

// Renderer handles output rendering
type Renderer struct {
	writer io.Writer
	opts   Options
}

// NewRenderer creates a new renderer
func NewRenderer(writer io.Writer, opts Options) *Renderer {
	return &Renderer{
		writer: writer,
		opts:   opts,
	}
}

// Structured reports whether the renderer emits machine-readable output
func (r *Renderer) Structured() bool {
	return r.opts.Format == FormatJSON || r.opts.Format == FormatYAML
}

// Render writes data in the structured format of the renderer
func (r *Renderer) Render(data interface{}) error {
	switch r.opts.Format {
	case FormatJSON:
		return r.RenderJSON(data)
	case FormatYAML:
		return r.RenderYAML(data)
	default:
		return fmt.Errorf("format %q cannot render structured data", r.opts.Format)
	}
}

// RenderJSON renders data as JSON
func (r *Renderer) RenderJSON(data interface{}) error {
	encoder := json.NewEncoder(r.writer)
	if !r.opts.Porcelain {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// RenderYAML renders data as YAML
func (r *Renderer) RenderYAML(data interface{}) error {
	encoder := yaml.NewEncoder(r.writer)
	defer encoder.Close()
	return encoder.Encode(data)
}

// Printf writes a formatted line of human output
func (r *Renderer) Printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}

// RenderTable renders data as a formatted table
func (r *Renderer) RenderTable(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if r.opts.Porcelain {
		fmt.Fprintln(r.writer, strings.Join(headers, "\t"))
		for _, row := range rows {
			fmt.Fprintln(r.writer, strings.Join(row, "\t"))
		}
		return nil
	}

	r.renderTableRow(headers, widths)
	r.renderTableSeparator(widths)
	for _, row := range rows {
		r.renderTableRow(row, widths)
	}
	return nil
}

func (r *Renderer) renderTableRow(cells []string, widths []int) {
	for i, cell := range cells {
		if i < len(widths) {
			fmt.Fprintf(r.writer, "%-*s", widths[i], cell)
			if i < len(cells)-1 {
				fmt.Fprint(r.writer, "  ")
			}
		}
	}
	fmt.Fprintln(r.writer)
}

func (r *Renderer) renderTableSeparator(widths []int) {
	for i, width := range widths {
		fmt.Fprint(r.writer, strings.Repeat("-", width))
		if i < len(widths)-1 {
			fmt.Fprint(r.writer, "  ")
		}
	}
	fmt.Fprintln(r.writer)
}

// Count formats a row count with thousands separators
func Count(n int64) string {
	return humanize.Comma(n)
}

// Plural picks the singular or plural noun for n
func Plural(n int64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
