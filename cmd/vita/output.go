package main

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/YuminosukeSato/vitaforest/pkg/errors"
	"github.com/YuminosukeSato/vitaforest/sklearn/feature_selection"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func renderResult(w io.Writer, result *feature_selection.SelectionResult, selectedOnly bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "importance", Align: text.AlignRight},
		{Name: "p-value", Align: text.AlignRight},
		{Name: "ci", Align: text.AlignRight},
	})
	t.AppendHeader(table.Row{"variable", "importance", "p-value", "ci", "selected"})

	var rows []table.Row
	for _, v := range result.Variables {
		if selectedOnly && !v.Selected {
			continue
		}
		mark := ""
		if v.Selected {
			mark = text.FgGreen.Sprint("*")
		}
		rows = append(rows, table.Row{
			v.Name,
			strconv.FormatFloat(v.Importance, 'g', 4, 64),
			strconv.FormatFloat(v.PValue, 'g', 4, 64),
			fmt.Sprintf("[%.3g, %.3g]", v.CILower, v.CIUpper),
			mark,
		})
	}
	t.AppendRows(rows)

	caption := fmt.Sprintf("%d of %d variables selected at p < %g (%s",
		len(result.Selected), len(result.Variables), result.Threshold, result.PValueMethod)
	if result.FDRAdjusted {
		caption += ", " + result.FDRMethod + " adjusted"
	}
	t.SetCaption(caption + fmt.Sprintf("); null size %d", result.Null.Size))
	t.Render()
}

// plotImportance draws the importance histogram over the mirrored null
// distribution built from the non-positive scores.
func plotImportance(path string, result *feature_selection.SelectionResult) error {
	vim := result.Importances()
	var null plotter.Values
	for _, v := range vim {
		switch {
		case v < 0:
			null = append(null, v, -v)
		case v == 0:
			null = append(null, 0)
		}
	}

	p := plot.New()
	p.Title.Text = "Variable importance"
	p.X.Label.Text = "importance"
	p.Y.Label.Text = "count"

	all, err := plotter.NewHist(plotter.Values(vim), bins(len(vim)))
	if err != nil {
		return errors.Wrap(err, "importance histogram")
	}
	all.FillColor = color.RGBA{R: 70, G: 130, B: 180, A: 160}
	p.Add(all)
	p.Legend.Add("observed", all)

	if len(null) > 0 {
		h, err := plotter.NewHist(null, bins(len(null)))
		if err != nil {
			return errors.Wrap(err, "null histogram")
		}
		h.FillColor = color.RGBA{R: 220, G: 80, B: 60, A: 120}
		p.Add(h)
		p.Legend.Add("mirrored null", h)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save plot %s", path)
	}
	return nil
}

func bins(n int) int {
	switch {
	case n < 20:
		return 5
	case n > 1000:
		return 60
	default:
		return n/20 + 5
	}
}
