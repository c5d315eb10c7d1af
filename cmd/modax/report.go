package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ahmedtd/modax/models"
	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
)

// Discovery is the equation a trained Deepmod model explains its data with.
type Discovery struct {
	Terms      []string
	Coeffs     []float64
	Normalized []float64
	Active     []bool
}

func newDiscovery(model *models.Deepmod, phys *models.Physics) *Discovery {
	coeffs := phys.Coeffs.Value.ToFloat64()
	active := make([]bool, len(coeffs))
	for j := range active {
		active[j] = model.Mask == nil || model.Mask[j]
	}
	return &Discovery{
		Terms:      model.Terms(),
		Coeffs:     coeffs,
		Normalized: models.NormalizedCoeffs(phys.Theta.Value, phys.Dt.Value, phys.Coeffs.Value),
		Active:     active,
	}
}

// Equation renders the active terms as "u_t = c1 t1 + c2 t2 ...".
func (d *Discovery) Equation() string {
	var b strings.Builder
	b.WriteString("u_t =")
	first := true
	for j, term := range d.Terms {
		if !d.Active[j] {
			continue
		}
		c := d.Coeffs[j]
		switch {
		case first && c < 0:
			b.WriteString(" -")
		case !first && c < 0:
			b.WriteString(" - ")
		case !first:
			b.WriteString(" + ")
		default:
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%.4g", math.Abs(c))
		if term != "1" {
			b.WriteString(" " + term)
		}
		first = false
	}
	if first {
		b.WriteString(" 0")
	}
	return b.String()
}

// WriteTable prints one row per library term.
func (d *Discovery) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Term", "Coefficient", "Normalized", "Active"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for j, term := range d.Terms {
		table.Append([]string{
			term,
			fmt.Sprintf("%.5f", d.Coeffs[j]),
			fmt.Sprintf("%.5f", d.Normalized[j]),
			fmt.Sprintf("%v", d.Active[j]),
		})
	}
	table.Render()
}

// plotLosses draws log10 of the loss trace, downsampled to at most width
// points.
func plotLosses(losses []float32, width int) string {
	if len(losses) == 0 {
		return ""
	}
	stride := (len(losses) + width - 1) / width
	series := make([]float64, 0, width)
	for i := 0; i < len(losses); i += stride {
		series = append(series, math.Log10(max(float64(losses[i]), 1e-30)))
	}
	return asciigraph.Plot(series, asciigraph.Height(12), asciigraph.Caption("log10(loss) by epoch"))
}
