package maskeditor

import (
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

const discSegments = 32

// stamp is the coverage of one stroke over the part of the canvas it
// touches. mask is anchored at (0,0); rect places it on the canvas.
type stamp struct {
	rect image.Rectangle
	mask *image.Alpha
}

// masker rasterises strokes one at a time over a w x h canvas. Its
// rasterizer and mask buffer are reused, so the returned stamp is only
// valid until the next call.
type masker struct {
	w, h int
	z    *vector.Rasterizer
	pix  []uint8
}

func newMasker(w, h int) *masker {
	return &masker{w: w, h: h, z: vector.NewRasterizer(0, 0)}
}

// coverage rasterises s as a hard mask: discs at every point joined by
// segment quads, thresholded at half coverage. It reports false when the
// stroke misses the canvas.
func (m *masker) coverage(s Stroke) (stamp, bool) {
	r := strokeBounds(s, m.w, m.h).Intersect(image.Rect(0, 0, m.w, m.h))
	if r.Empty() {
		return stamp{}, false
	}
	w, h := r.Dx(), r.Dy()

	m.z.Reset(w, h)
	m.z.DrawOp = draw.Src
	off := Point{X: float64(r.Min.X), Y: float64(r.Min.Y)}
	for i, p := range s.Points {
		p = Point{X: p.X - off.X, Y: p.Y - off.Y}
		addPolygon(m.z, disc(p, s.Radius))
		if i > 0 {
			prev := Point{X: s.Points[i-1].X - off.X, Y: s.Points[i-1].Y - off.Y}
			if q, ok := segment(prev, p, s.Radius); ok {
				addPolygon(m.z, q)
			}
		}
	}

	if n := w * h; cap(m.pix) < n {
		m.pix = make([]uint8, n)
	}
	mask := &image.Alpha{Pix: m.pix[:w*h], Stride: w, Rect: image.Rect(0, 0, w, h)}
	clear(mask.Pix)
	m.z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	for i, a := range mask.Pix {
		if a >= 0x80 {
			mask.Pix[i] = 0xff
		} else {
			mask.Pix[i] = 0
		}
	}
	return stamp{rect: r, mask: mask}, true
}

// strokeBounds returns the pixel rectangle s can touch, with coordinates
// clamped just outside a w x h canvas.
func strokeBounds(s Stroke, w, h int) image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range s.Points {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	clampTo := func(v float64, limit int) int {
		return int(math.Min(math.Max(v, -1), float64(limit+1)))
	}
	return image.Rect(
		clampTo(math.Floor(minX-s.Radius)-1, w),
		clampTo(math.Floor(minY-s.Radius)-1, h),
		clampTo(math.Ceil(maxX+s.Radius)+1, w),
		clampTo(math.Ceil(maxY+s.Radius)+1, h),
	)
}

func disc(c Point, r float64) []Point {
	pts := make([]Point, discSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / discSegments
		pts[i] = Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)}
	}
	return pts
}

func segment(a, b Point, r float64) ([]Point, bool) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return nil, false
	}
	nx, ny := -dy/l*r, dx/l*r
	return []Point{
		{a.X + nx, a.Y + ny},
		{b.X + nx, b.Y + ny},
		{b.X - nx, b.Y - ny},
		{a.X - nx, a.Y - ny},
	}, true
}

// addPolygon adds pts with positive orientation so overlapping shapes
// accumulate instead of cancelling.
func addPolygon(z *vector.Rasterizer, pts []Point) {
	if signedArea(pts) < 0 {
		rev := make([]Point, len(pts))
		for i, p := range pts {
			rev[len(pts)-1-i] = p
		}
		pts = rev
	}
	z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X), float32(p.Y))
	}
	z.ClosePath()
}

func signedArea(pts []Point) float64 {
	var a float64
	for i, p := range pts {
		q := pts[(i+1)%len(pts)]
		a += p.X*q.Y - q.X*p.Y
	}
	return a / 2
}

// erase clears every masked pixel of dst.
func erase(dst *image.NRGBA, st stamp) {
	forMasked(dst, nil, st, func(d, _ []uint8) {
		d[0], d[1], d[2], d[3] = 0, 0, 0, 0
	})
}

// restore draws src behind dst inside the mask.
func restore(dst, src *image.NRGBA, st stamp) {
	forMasked(dst, src, st, func(d, s []uint8) {
		switch da := d[3]; {
		case da == 0xff:
		case da == 0:
			copy(d, s)
		default:
			sa := uint32(s[3]) * uint32(0xff-da) / 0xff
			oa := uint32(da) + sa
			if oa == 0 {
				return
			}
			for c := 0; c < 3; c++ {
				d[c] = uint8((uint32(d[c])*uint32(da) + uint32(s[c])*sa) / oa)
			}
			d[3] = uint8(oa)
		}
	})
}

// forMasked calls fn for every set pixel of the stamp with the dst pixel
// and, when src is not nil, the src pixel at the same offset.
func forMasked(dst, src *image.NRGBA, st stamp, fn func(d, s []uint8)) {
	w := st.rect.Dx()
	for y := 0; y < st.rect.Dy(); y++ {
		row := st.mask.Pix[y*st.mask.Stride : y*st.mask.Stride+w]
		for x, a := range row {
			if a == 0 {
				continue
			}
			o := dst.PixOffset(st.rect.Min.X+x, st.rect.Min.Y+y)
			var s []uint8
			if src != nil {
				s = src.Pix[o : o+4 : o+4]
			}
			fn(dst.Pix[o:o+4:o+4], s)
		}
	}
}
