package net

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/VectorFist/MicroNet/internal/autodiff"
	"github.com/VectorFist/MicroNet/internal/tensor"
)

var (
	summaryCell   = lipgloss.NewStyle().Padding(0, 1)
	summaryHeader = lipgloss.NewStyle().Padding(0, 1).Bold(true)
)

// Summary renders a table with one row per scheduled layer: name, kind,
// output shapes and parameter count, followed by the totals.
func Summary(g *autodiff.Graph) string {
	table := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return summaryHeader
			}
			return summaryCell
		}).
		Headers("Layer", "Kind", "Output", "Params")

	var total, trainable int
	seen := make(map[*tensor.Tensor]bool)
	for _, l := range g.Layers() {
		var shapes string
		for i, v := range g.LayerOutputs(l) {
			if i > 0 {
				shapes += " "
			}
			s := v.Shape()
			shapes += fmt.Sprintf("(%d,%d,%d)", s.Channels(), s.Height(), s.Width())
		}
		count := 0
		for _, p := range l.Params() {
			count += p.Count()
			if seen[p] {
				continue
			}
			seen[p] = true
			total += p.Count()
			if p.Trainable() {
				trainable += p.Count()
			}
		}
		table.Row(l.Name(), l.Kind().String(), shapes, humanize.Comma(int64(count)))
	}
	table.Row("", "", "total", humanize.Comma(int64(total)))
	table.Row("", "", "trainable", humanize.Comma(int64(trainable)))
	return table.String()
}

// Summary renders the layer table of the classifier graph.
func (n *ClassifyNet) Summary() string { return Summary(n.graph) }
