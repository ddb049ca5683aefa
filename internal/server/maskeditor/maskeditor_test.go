package maskeditor

import (
	"image"
	"image/color"
	"testing"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// cutout returns a layer that is opaque red on the left half and partly
// transparent green on the right.
func cutout(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetNRGBA(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{G: 200, A: 90})
			}
		}
	}
	return img
}

func newSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(solid(100, 60, color.NRGBA{B: 255, A: 255}), cutout(100, 60), 0)
	require.NoError(t, err)
	return s
}

func TestNewSession_AspectRatio(t *testing.T) {
	s, err := NewSession(solid(400, 300, color.NRGBA{A: 255}), cutout(200, 200), 200)
	require.NoError(t, err)

	w, h := s.Size()
	assert.Equal(t, 200, w)
	assert.Equal(t, 150, h)
	assert.Equal(t, image.Rect(0, 0, 200, 150), s.Render().Bounds())

	s, err = NewSession(solid(3, 2, color.NRGBA{A: 255}), cutout(3, 2), 0)
	require.NoError(t, err)
	w, h = s.Size()
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)
}

func TestNewSession_Invalid(t *testing.T) {
	_, err := NewSession(nil, cutout(2, 2), 0)
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = NewSession(image.NewNRGBA(image.Rect(0, 0, 0, 0)), cutout(2, 2), 0)
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = NewSession(cutout(2, 2), cutout(2, 2), -1)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestApply_ZeroStrokesIsIdentity(t *testing.T) {
	top := cutout(100, 60)
	s, err := NewSession(solid(100, 60, color.NRGBA{B: 255, A: 255}), top, 0)
	require.NoError(t, err)

	out, err := s.Apply()
	require.NoError(t, err)
	assert.Equal(t, top.Pix, out.Pix)
}

func TestEraseThenRestoreIsIdentity(t *testing.T) {
	top := cutout(100, 60)
	s, err := NewSession(solid(100, 60, color.NRGBA{B: 255, A: 255}), top, 0)
	require.NoError(t, err)

	path := []Point{{10, 10}, {40, 30}, {90, 50}}

	require.NoError(t, s.SetTool(ModeErase))
	s.PointerDown(path[0])
	for _, p := range path[1:] {
		s.PointerMove(p)
	}
	s.PointerUp()

	require.NoError(t, s.SetTool(ModeRestore))
	s.PointerDown(path[0])
	for _, p := range path[1:] {
		s.PointerMove(p)
	}
	s.PointerUp()

	assert.Equal(t, 2, s.Log().Len())

	out, err := s.Apply()
	require.NoError(t, err)
	assert.Equal(t, top.Pix, out.Pix)
}

func TestErase_PunchesTransparency(t *testing.T) {
	s := newSession(t)
	s.SetBrushSize(20)
	s.PointerDown(Point{20, 30})
	s.PointerUp()

	preview := s.Render()
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, preview.NRGBAAt(20, 30), "base shows through")
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, preview.NRGBAAt(20, 5), "outside the brush")

	out, err := s.Apply()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.NRGBAAt(20, 30).A)
	assert.Equal(t, uint8(255), out.NRGBAAt(20, 5).A)
	assert.Equal(t, 0, s.Log().Len())
}

func TestUndoAndCancel(t *testing.T) {
	top := cutout(100, 60)
	s, err := NewSession(solid(100, 60, color.NRGBA{A: 255}), top, 0)
	require.NoError(t, err)

	s.PointerDown(Point{20, 30})
	s.PointerUp()
	s.PointerDown(Point{60, 30})
	s.PointerUp()
	s.Undo()
	assert.Equal(t, 1, s.Log().Len())

	s.Cancel()
	assert.Equal(t, 0, s.Log().Len())

	out, err := s.Apply()
	require.NoError(t, err)
	assert.Equal(t, top.Pix, out.Pix)
}

func TestPointerMoveIgnoredWhenNotHeld(t *testing.T) {
	s := newSession(t)
	s.PointerMove(Point{1, 1})
	assert.Equal(t, 0, s.Log().Len())

	s.PointerDown(Point{1, 1})
	s.PointerMove(Point{2, 2})
	s.PointerUp()
	s.PointerMove(Point{3, 3})

	strokes := s.Log().Strokes()
	require.Len(t, strokes, 1)
	assert.Equal(t, []Point{{1, 1}, {2, 2}}, strokes[0].Points)
	assert.Equal(t, float64(DefaultBrushSize)/2, strokes[0].Radius)
	assert.Equal(t, ModeErase, strokes[0].Mode)
}

func TestBrushSizeClamp(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, DefaultBrushSize, s.BrushSize())

	s.SetBrushSize(1)
	assert.Equal(t, MinBrushSize, s.BrushSize())
	s.SetBrushSize(500)
	assert.Equal(t, MaxBrushSize, s.BrushSize())
	s.SetBrushSize(42)
	assert.Equal(t, 42, s.BrushSize())

	assert.ErrorIs(t, s.SetTool("smudge"), common.ErrorValidation)
}

func TestReplay(t *testing.T) {
	s := newSession(t)

	err := s.Replay([]Stroke{{Points: []Point{{1, 1}}, Radius: 5, Mode: "blur"}})
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Equal(t, 0, s.Log().Len())

	require.NoError(t, s.Replay([]Stroke{
		{Points: []Point{{10, 10}}, Radius: 1, Mode: ModeErase},
		{Points: []Point{{10, 10}}, Radius: 1000, Mode: ModeRestore},
	}))
	strokes := s.Log().Strokes()
	assert.Equal(t, float64(MinBrushSize)/2, strokes[0].Radius)
	assert.Equal(t, float64(MaxBrushSize)/2, strokes[1].Radius)
}

func TestStrokeLogIsImmutable(t *testing.T) {
	var l0 StrokeLog
	l1 := l0.Append(Stroke{Points: []Point{{1, 1}}, Radius: 5, Mode: ModeErase})
	l2 := l1.Extend(Point{2, 2})
	l3 := l2.Append(Stroke{Points: []Point{{9, 9}}, Radius: 5, Mode: ModeRestore})
	l4 := l3.DropLast()
	l5 := l4.Append(Stroke{Points: []Point{{7, 7}}, Radius: 5, Mode: ModeErase})

	assert.Equal(t, 0, l0.Len())
	assert.Len(t, l1.Strokes()[0].Points, 1)
	assert.Len(t, l2.Strokes()[0].Points, 2)
	assert.Equal(t, ModeRestore, l3.Strokes()[1].Mode)
	assert.Equal(t, 1, l4.Len())
	assert.Equal(t, Point{7, 7}, l5.Strokes()[1].Points[0])
	assert.Equal(t, Point{9, 9}, l3.Strokes()[1].Points[0])

	got := l2.Strokes()
	got[0].Points[0] = Point{100, 100}
	assert.Equal(t, Point{1, 1}, l2.Strokes()[0].Points[0])
}

func TestMasker_Thresholded(t *testing.T) {
	m := newMasker(40, 20)
	area, ok := m.coverage(Stroke{Points: []Point{{10, 10}, {30, 10}}, Radius: 4, Mode: ModeErase})
	require.True(t, ok)
	assert.Equal(t, image.Rect(5, 5, 35, 15), area.rect)

	for _, a := range area.mask.Pix {
		assert.True(t, a == 0 || a == 0xff)
	}
	at := func(x, y int) uint8 {
		return area.mask.AlphaAt(x-area.rect.Min.X, y-area.rect.Min.Y).A
	}
	assert.Equal(t, uint8(0xff), at(20, 10))
	assert.Equal(t, uint8(0), at(20, 14))
}

func TestMasker_ReusesBufferAndClips(t *testing.T) {
	m := newMasker(40, 20)
	_, ok := m.coverage(Stroke{Points: []Point{{-500, -500}}, Radius: 5, Mode: ModeErase})
	assert.False(t, ok)

	big, ok := m.coverage(Stroke{Points: []Point{{0, 0}, {40, 20}}, Radius: 40, Mode: ModeErase})
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 40, 20), big.rect)
	buf := &m.pix[0]

	small, ok := m.coverage(Stroke{Points: []Point{{38, 1}}, Radius: 5, Mode: ModeErase})
	require.True(t, ok)
	assert.Same(t, buf, &small.mask.Pix[0])
	assert.Equal(t, 40, small.rect.Max.X)
	assert.Equal(t, 0, small.rect.Min.Y)
	assert.Equal(t, uint8(0xff), small.mask.AlphaAt(38-small.rect.Min.X, 1).A)
}

func TestNewSession_CanvasIsBounded(t *testing.T) {
	s, err := NewSession(cutout(2, 1), cutout(2, 1), 8000)
	require.NoError(t, err)
	w, h := s.Size()
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)

	s, err = NewSession(cutout(4000, 10), cutout(4000, 10), 0)
	require.NoError(t, err)
	w, h = s.Size()
	assert.Equal(t, MaxCanvasDimension, w)
	assert.Equal(t, 5, h)

	s, err = NewSession(cutout(10, 3000), cutout(10, 3000), 0)
	require.NoError(t, err)
	w, h = s.Size()
	assert.Equal(t, 7, w)
	assert.Equal(t, MaxCanvasDimension, h)
}

func TestReplay_Limits(t *testing.T) {
	s := newSession(t)
	one := Stroke{Points: []Point{{1, 1}}, Radius: 5, Mode: ModeErase}

	tooMany := make([]Stroke, MaxReplayStrokes+1)
	for i := range tooMany {
		tooMany[i] = one
	}
	assert.ErrorIs(t, s.Replay(tooMany), common.ErrorValidation)

	long := Stroke{Points: make([]Point, MaxReplayPoints+1), Radius: 5, Mode: ModeErase}
	assert.ErrorIs(t, s.Replay([]Stroke{long}), common.ErrorValidation)

	far := Stroke{Points: []Point{{1e9, 1}}, Radius: 5, Mode: ModeErase}
	assert.ErrorIs(t, s.Replay([]Stroke{far}), common.ErrorValidation)
	assert.Equal(t, 0, s.Log().Len())

	offCanvas := Stroke{Points: []Point{{-300, 900}}, Radius: 5, Mode: ModeErase}
	require.NoError(t, s.Replay([]Stroke{offCanvas, one}))
	out, err := s.Apply()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.NRGBAAt(1, 1).A)
}
