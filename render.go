package choromap

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Map is a rendered choropleth. The caller owns it: encode it, save it, or
// pull the raw image for further composition.
type Map struct {
	dc *gg.Context
}

// Image returns the rendered raster.
func (m *Map) Image() image.Image { return m.dc.Image() }

// EncodePNG writes the map as PNG.
func (m *Map) EncodePNG(w io.Writer) error { return m.dc.EncodePNG(w) }

// SavePNG writes the map as PNG to a file.
func (m *Map) SavePNG(path string) error { return m.dc.SavePNG(path) }

// legendFont parses the bundled Go font once; legend text is the only text
// on the canvas.
var legendFont = sync.OnceValues(func() (*opentype.Font, error) {
	return opentype.Parse(goregular.TTF)
})

// Render draws one filled-polygon layer: every boundary in draw order,
// filled by its reconciled value through the palette ramp, with a legend
// titled after the value column. Fill values attach to polygons by 3-letter
// code, never by row position.
func Render(bs *BoundarySet, rec *Reconciled, style *Style) (*Map, error) {
	if style == nil {
		style = DefaultStyle()
	}
	if err := style.Validate(); err != nil {
		return nil, fmt.Errorf("invalid style: %w", err)
	}

	ramp, err := newColorRamp(style.Palette)
	if err != nil {
		return nil, err
	}
	background, _ := parseHexColor(style.Background)
	missing, _ := parseHexColor(style.MissingFill)
	stroke, _ := parseHexColor(style.Stroke)

	dc := gg.NewContext(style.Width, style.Height)
	dc.SetColor(background)
	dc.Clear()
	dc.SetFillRule(gg.FillRuleEvenOdd)

	proj := projection{width: float64(style.Width), height: float64(style.Height)}
	lo, hi, hasDomain := rec.Domain()

	for i := 0; i < bs.Len(); i++ {
		b := bs.At(i)

		fill := missing
		if row, ok := rec.Row(b.ISO3); ok && row.HasValue && hasDomain {
			fill = ramp.at(unitPos(row.Value, lo, hi))
		}

		for _, poly := range b.Polygons {
			for _, ring := range poly {
				tracePath(dc, proj, ring)
			}
		}
		dc.SetColor(fill)
		dc.FillPreserve()
		dc.SetColor(stroke)
		dc.SetLineWidth(style.StrokeWidth)
		dc.Stroke()
	}

	if hasDomain {
		title := style.LegendTitle
		if title == "" {
			title = rec.ValueColumn
		}
		if err := drawLegend(dc, style, ramp, title, lo, hi); err != nil {
			return nil, err
		}
	}

	return &Map{dc: dc}, nil
}

// projection is the fixed equirectangular mapping of EPSG:4326 coordinates
// onto the canvas.
type projection struct {
	width  float64
	height float64
}

func (p projection) point(lon, lat float64) (x, y float64) {
	x = (lon + 180) / 360 * p.width
	y = (90 - lat) / 180 * p.height
	return x, y
}

func tracePath(dc *gg.Context, proj projection, ring Ring) {
	if len(ring) == 0 {
		return
	}
	dc.NewSubPath()
	x, y := proj.point(ring[0][0], ring[0][1])
	dc.MoveTo(x, y)
	for _, v := range ring[1:] {
		x, y = proj.point(v[0], v[1])
		dc.LineTo(x, y)
	}
	dc.ClosePath()
}

// unitPos places v on [0,1] within the domain. A degenerate domain maps to
// the middle of the ramp.
func unitPos(v, lo, hi float64) float64 {
	if hi == lo {
		return 0.5
	}
	t := (v - lo) / (hi - lo)
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return t
}

// colorRamp interpolates linearly between palette stops.
type colorRamp struct {
	stops []color.RGBA
}

func newColorRamp(palette []string) (*colorRamp, error) {
	stops := make([]color.RGBA, len(palette))
	for i, s := range palette {
		c, err := parseHexColor(s)
		if err != nil {
			return nil, err
		}
		stops[i] = c
	}
	return &colorRamp{stops: stops}, nil
}

func (r *colorRamp) at(t float64) color.RGBA {
	segs := len(r.stops) - 1
	pos := t * float64(segs)
	i := int(pos)
	if i >= segs {
		return r.stops[segs]
	}
	f := pos - float64(i)
	a, b := r.stops[i], r.stops[i+1]
	return color.RGBA{
		R: lerp(a.R, b.R, f),
		G: lerp(a.G, b.G, f),
		B: lerp(a.B, b.B, f),
		A: 0xff,
	}
}

func lerp(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}

// Legend geometry as fractions of the canvas.
const (
	legendBarWidthFrac  = 0.22
	legendBarHeightFrac = 0.025
	legendMarginFrac    = 0.03
	legendSteps         = 96
)

func drawLegend(dc *gg.Context, style *Style, ramp *colorRamp, title string, lo, hi float64) error {
	parsed, err := legendFont()
	if err != nil {
		return fmt.Errorf("parsing legend font: %w", err)
	}
	size := float64(style.Height) / 45
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("building legend font face: %w", err)
	}
	dc.SetFontFace(face)

	w := float64(style.Width)
	h := float64(style.Height)
	barW := w * legendBarWidthFrac
	barH := h * legendBarHeightFrac
	x := w * legendMarginFrac
	y := h - h*legendMarginFrac - barH

	step := barW / legendSteps
	for i := 0; i < legendSteps; i++ {
		dc.SetColor(ramp.at(float64(i) / (legendSteps - 1)))
		// Overdraw each step slightly so antialiasing seams do not show.
		dc.DrawRectangle(x+float64(i)*step, y, step+1, barH)
		dc.Fill()
	}
	stroke, _ := parseHexColor(style.Stroke)
	dc.SetColor(stroke)
	dc.SetLineWidth(1)
	dc.DrawRectangle(x, y, barW, barH)
	dc.Stroke()

	dc.DrawString(title, x, y-size*0.6)
	dc.DrawString(formatValue(lo), x, y+barH+size*1.1)
	hiLabel := formatValue(hi)
	tw, _ := dc.MeasureString(hiLabel)
	dc.DrawString(hiLabel, x+barW-tw, y+barH+size*1.1)
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
