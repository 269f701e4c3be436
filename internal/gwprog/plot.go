// Public domain.

package gwprog

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/soniakeys/gwagn/internal/gwpipe"
)

// palette for cluster labels, reused cyclically.
var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
	color.RGBA{R: 227, G: 119, B: 194, A: 255},
	color.RGBA{R: 127, G: 127, B: 127, A: 255},
}

// Plot writes a PNG of the credible region colored by cluster with the
// final candidates marked.  The file type follows the extension of fn.
func Plot(r *gwpipe.Result, fn string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %d clusters, %d candidates", r.Event, r.K, len(r.Candidates))
	p.X.Label.Text = "RA (deg)"
	p.Y.Label.Text = "Dec (deg)"

	if r.Partition != nil {
		byLabel := make([]plotter.XYs, r.Partition.K)
		for _, pt := range r.Partition.Points {
			if pt.Label >= 0 && pt.Label < len(byLabel) {
				byLabel[pt.Label] = append(byLabel[pt.Label], plotter.XY{X: pt.RA, Y: pt.Dec})
			}
		}
		for i, xys := range byLabel {
			if len(xys) == 0 {
				continue
			}
			s, err := plotter.NewScatter(xys)
			if err != nil {
				return err
			}
			s.GlyphStyle.Color = palette[i%len(palette)]
			s.GlyphStyle.Radius = vg.Points(1)
			s.GlyphStyle.Shape = draw.CircleGlyph{}
			p.Add(s)
			p.Legend.Add(fmt.Sprintf("cluster %d", i), s)
		}
	}
	if len(r.Candidates) > 0 {
		xys := make(plotter.XYs, len(r.Candidates))
		for i, c := range r.Candidates {
			xys[i] = plotter.XY{X: c.MeanRA, Y: c.MeanDec}
		}
		s, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		s.GlyphStyle.Color = color.Black
		s.GlyphStyle.Radius = vg.Points(4)
		s.GlyphStyle.Shape = draw.CrossGlyph{}
		p.Add(s)
		p.Legend.Add("candidates", s)
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, fn)
}
