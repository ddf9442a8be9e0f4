package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/axonops/openapi-diagram/internal/api/types"
)

// printDiagram writes one row per property, grouped by class.
func printDiagram(out io.Writer, format string, resp types.DiagramResponse) error {
	if format == "json" {
		return printJSON(out, resp)
	}

	if nav := resp.Navigation; nav != nil {
		if nav.Error != "" {
			fmt.Fprintf(out, "Scope %s: %s", resp.Scope, nav.Error)
			if len(nav.Candidates) > 0 {
				fmt.Fprintf(out, " (%d candidates)", len(nav.Candidates))
			}
			fmt.Fprintln(out)
		} else {
			fmt.Fprintf(out, "Scope %s selects %s\n", resp.Scope, nav.ClassName)
		}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tPROPERTY\tTYPE\tFLAGS")
	for _, c := range resp.Classes {
		name := c.Name
		if c.Deprecated {
			name += " (deprecated)"
		}
		if len(c.Properties) == 0 {
			fmt.Fprintf(w, "%s\t\t\t\n", name)
			continue
		}
		for _, p := range c.Properties {
			prop := p.Name
			if p.Synthetic {
				prop = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", name, prop, p.Type, propertyFlags(p))
			name = ""
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d classes, %d relations\n", len(resp.Classes), len(resp.Relations))
	return nil
}

func propertyFlags(p types.PropertyResponse) string {
	var flags []string
	if p.Required {
		flags = append(flags, "required")
	}
	if p.Deprecated {
		flags = append(flags, "deprecated")
	}
	if p.TypeDeprecated {
		flags = append(flags, "type-deprecated")
	}
	return strings.Join(flags, ",")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
