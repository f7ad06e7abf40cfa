package board

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	// MaxPNGEdge caps the longer side of a rendered PNG in pixels
	MaxPNGEdge = 8192
	// minPNGResolution is the lowest pixels per board unit a PNG is scaled to
	minPNGResolution = 0.01
)

// ErrBoardTooLarge is returned when a board cannot fit MaxPNGEdge pixels
// without dropping below minPNGResolution
var ErrBoardTooLarge = errors.New("board too large to rasterize")

// BoardRenderer draws an analyzed board: notes as circles in their own
// color, labels as squares, graph edges and one outline per group.
type BoardRenderer struct {
	Result     *Result
	NoteRadius float64           // board units
	Padding    float64           // board units
	Resolution canvas.Resolution // PNG dots per board unit
}

// NewBoardRenderer creates a renderer with the configured sizes
func NewBoardRenderer(res *Result, cfg RenderConfig) *BoardRenderer {
	r := &BoardRenderer{
		Result:     res,
		NoteRadius: cfg.NoteRadius,
		Padding:    cfg.Padding,
		Resolution: canvas.DPMM(cfg.Resolution),
	}
	if r.NoteRadius <= 0 {
		r.NoteRadius = DefaultNoteRadius
	}
	if r.Padding <= 0 {
		r.Padding = DefaultPadding
	}
	if r.Resolution <= 0 {
		r.Resolution = canvas.DPMM(DefaultResolution)
	}
	return r
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// frame maps board coordinates (y down) onto the canvas (y up)
type frame struct {
	minX, minY    float64
	width, height float64
	padding       float64
}

func (f frame) toCanvas(p Point) (float64, float64) {
	return (p.X - f.minX) + f.padding, f.height - ((p.Y - f.minY) + f.padding)
}

// toPixel maps a board point to raster pixel coordinates (y down)
func (f frame) toPixel(p Point, res canvas.Resolution) (int, int) {
	dpmm := res.DPMM()
	return int(math.Round(((p.X - f.minX) + f.padding) * dpmm)),
		int(math.Round(((p.Y - f.minY) + f.padding) * dpmm))
}

func (r *BoardRenderer) frame() (frame, error) {
	if r.Result == nil {
		return frame{}, fmt.Errorf("no result to render")
	}
	b, ok := Bounds(r.Result.Items)
	if !ok {
		return frame{}, fmt.Errorf("board %q has no items to render", r.Result.Board)
	}
	pad := r.Padding + r.NoteRadius
	return frame{
		minX:    b.Min[0],
		minY:    b.Min[1],
		width:   (b.Max[0] - b.Min[0]) + 2*pad,
		height:  (b.Max[1] - b.Min[1]) + 2*pad,
		padding: pad,
	}, nil
}

// pngResolution scales res down so the longer side fits MaxPNGEdge pixels
func (f frame) pngResolution(res canvas.Resolution) (canvas.Resolution, error) {
	edge := math.Max(f.width, f.height)
	dpmm := res.DPMM()
	if edge*dpmm <= MaxPNGEdge {
		return res, nil
	}
	dpmm = MaxPNGEdge / edge
	if dpmm < minPNGResolution {
		return 0, fmt.Errorf("%w: %.0f x %.0f units", ErrBoardTooLarge, f.width, f.height)
	}
	return canvas.DPMM(dpmm), nil
}

// RenderToSVG writes the board as an SVG to the provided writer
func (r *BoardRenderer) RenderToSVG(w io.Writer) error {
	f, err := r.frame()
	if err != nil {
		return err
	}

	svgRenderer := svg.New(w, f.width, f.height, nil)
	r.renderToCanvas(svgRenderer, f)

	return svgRenderer.Close()
}

// RenderToPNG writes the board as a PNG with a caption per group
func (r *BoardRenderer) RenderToPNG(w io.Writer) error {
	f, err := r.frame()
	if err != nil {
		return err
	}

	res, err := f.pngResolution(r.Resolution)
	if err != nil {
		return err
	}

	rast := rasterizer.New(f.width, f.height, res, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, f)

	black := color.RGBA{0, 0, 0, 255}
	for _, a := range r.Result.Analyses {
		members := append(append([]Item{}, a.Notes...), a.Labels...)
		b, ok := Bounds(members)
		if !ok {
			continue
		}
		x, y := f.toPixel(Point{X: b.Min[0] - r.NoteRadius, Y: b.Min[1] - r.NoteRadius}, res)
		drawText(rast, x, y-4, fmt.Sprintf("%s (%s)", a.GroupID(), a.Score), black)
	}

	// Rasterizer implements draw.Image, which embeds image.Image
	return png.Encode(w, rast)
}

// renderToCanvas draws the shared SVG/PNG content
func (r *BoardRenderer) renderToCanvas(renderer canvasRenderer, f frame) {
	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(f.width, f.height), bgStyle, canvas.Identity)

	res := r.Result

	// 1. Group outlines
	hullStyle := canvas.DefaultStyle
	hullStyle.Fill = canvas.Paint{Color: color.RGBA{R: 240, G: 240, B: 245, A: 255}}
	hullStyle.Stroke = canvas.Paint{Color: canvas.Gray}
	hullStyle.StrokeWidth = 3.0

	for _, a := range res.Analyses {
		members := append(append([]Item{}, a.Notes...), a.Labels...)
		hull := convexHull(uniquePoints(itemPoints(members)))
		if len(hull) < 3 {
			continue
		}
		cp := &canvas.Path{}
		for i, p := range hull {
			cx, cy := f.toCanvas(pointFromOrb(p))
			if i == 0 {
				cp.MoveTo(cx, cy)
			} else {
				cp.LineTo(cx, cy)
			}
		}
		cp.Close()
		renderer.RenderPath(cp, hullStyle, canvas.Identity)
	}

	// 2. Edges
	positions := make(map[string]Point, len(res.Items))
	for _, it := range res.Items {
		positions[it.ID] = it.Position
	}

	proximityStyle := canvas.DefaultStyle
	proximityStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	proximityStyle.Stroke = canvas.Paint{Color: canvas.Gray}
	proximityStyle.StrokeWidth = 4.0

	labelingStyle := proximityStyle
	labelingStyle.Stroke = canvas.Paint{Color: canvas.Black}
	labelingStyle.StrokeWidth = 2.0
	labelingStyle.Dashes = []float64{10.0, 10.0}

	for _, e := range res.Edges {
		from, okFrom := positions[e.From]
		to, okTo := positions[e.To]
		if !okFrom || !okTo {
			continue
		}
		x1, y1 := f.toCanvas(from)
		x2, y2 := f.toCanvas(to)
		edgePath := &canvas.Path{}
		edgePath.MoveTo(x1, y1)
		edgePath.LineTo(x2, y2)
		style := proximityStyle
		if e.Kind == EdgeLabeling {
			style = labelingStyle
		}
		renderer.RenderPath(edgePath, style, canvas.Identity)
	}

	// 3. Items, labels on top of notes
	for _, labels := range []bool{false, true} {
		for _, it := range res.Items {
			if it.IsLabel() != labels {
				continue
			}
			cx, cy := f.toCanvas(it.Position)

			style := canvas.DefaultStyle
			style.Fill = canvas.Paint{Color: parseHexColor(it.Color)}
			style.Stroke = canvas.Paint{Color: canvas.Black}
			style.StrokeWidth = 3.0

			var p *canvas.Path
			if labels {
				side := 2 * r.NoteRadius
				p = canvas.Rectangle(side, side).Translate(cx-r.NoteRadius, cy-r.NoteRadius)
			} else {
				p = canvas.Circle(r.NoteRadius).Translate(cx, cy)
			}
			renderer.RenderPath(p, style, canvas.Identity)
		}
	}
}

// drawText draws a caption with the fixed 7x13 face; y is the baseline
func drawText(img draw.Image, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// parseHexColor converts "#RRGGBB" to a color. Unparsable codes render gray.
func parseHexColor(hex string) color.RGBA {
	fallback := color.RGBA{128, 128, 128, 255}

	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return fallback
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		return fallback
	}
	return color.RGBA{r, g, b, 255}
}
