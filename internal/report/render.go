package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// RenderOptions selects the output format.
type RenderOptions struct {
	// TemplatePath renders through a text/template file instead of JSON.
	TemplatePath string
	// Indent pretty-prints JSON output.
	Indent bool
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
	"add":  func(a, b int) int { return a + b },
}

// Render writes report to w.
func Render(w io.Writer, report Report, opts RenderOptions) error {
	if strings.TrimSpace(opts.TemplatePath) == "" {
		return renderJSON(w, report, opts.Indent)
	}

	raw, err := os.ReadFile(opts.TemplatePath)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	tmpl, err := template.New(filepath.Base(opts.TemplatePath)).Funcs(templateFuncs).Parse(string(raw))
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	if err := tmpl.Execute(w, report); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}
	return nil
}

func renderJSON(w io.Writer, report Report, indent bool) error {
	encoder := json.NewEncoder(w)
	if indent {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
