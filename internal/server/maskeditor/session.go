package maskeditor

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/dmitrijs2005/cutout/internal/common"
	"github.com/dmitrijs2005/cutout/internal/server/imagex"
	"golang.org/x/image/draw"
)

const (
	MinBrushSize     = 10
	MaxBrushSize     = 80
	DefaultBrushSize = 30
)

// Limits on the work a single session may be asked to do.
const (
	MaxCanvasDimension = 2048
	MaxReplayStrokes   = 500
	MaxReplayPoints    = 20000
)

// Session edits one processed image against its original.
type Session struct {
	mu sync.Mutex

	width, height int
	base          *image.NRGBA
	top           *image.NRGBA

	tool    Mode
	brush   int
	log     StrokeLog
	holding bool
}

// NewSession scales base and top onto a canvas canvasWidth wide whose
// aspect ratio matches base. canvasWidth 0 keeps the base width. The canvas
// is never wider than base and its longest side is at most
// MaxCanvasDimension.
func NewSession(base, top image.Image, canvasWidth int) (*Session, error) {
	if base == nil || top == nil {
		return nil, fmt.Errorf("%w: both images are required", common.ErrorValidation)
	}
	bw, bh := base.Bounds().Dx(), base.Bounds().Dy()
	if bw == 0 || bh == 0 {
		return nil, fmt.Errorf("%w: empty image", common.ErrorValidation)
	}
	if canvasWidth < 0 {
		return nil, fmt.Errorf("%w: negative width", common.ErrorValidation)
	}
	w, h := canvasSize(bw, bh, canvasWidth)

	return &Session{
		width:  w,
		height: h,
		base:   imagex.ScaleTo(base, w, h),
		top:    imagex.ScaleTo(top, w, h),
		tool:   ModeErase,
		brush:  DefaultBrushSize,
	}, nil
}

func canvasSize(bw, bh, want int) (int, int) {
	if want == 0 || want > bw {
		want = bw
	}
	w := want
	h := max(1, int(math.Round(float64(w)*float64(bh)/float64(bw))))
	switch {
	case w >= h && w > MaxCanvasDimension:
		h = max(1, int(math.Round(float64(h)*MaxCanvasDimension/float64(w))))
		w = MaxCanvasDimension
	case h > w && h > MaxCanvasDimension:
		w = max(1, int(math.Round(float64(w)*MaxCanvasDimension/float64(h))))
		h = MaxCanvasDimension
	}
	return w, h
}

// Size returns the canvas dimensions.
func (s *Session) Size() (int, int) {
	return s.width, s.height
}

func (s *Session) SetTool(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: unknown tool %q", common.ErrorValidation, m)
	}
	s.mu.Lock()
	s.tool = m
	s.mu.Unlock()
	return nil
}

// SetBrushSize sets the brush diameter, clamped to [MinBrushSize, MaxBrushSize].
func (s *Session) SetBrushSize(px int) {
	s.mu.Lock()
	s.brush = clampBrush(px)
	s.mu.Unlock()
}

func (s *Session) BrushSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brush
}

func clampBrush(px int) int {
	return min(max(px, MinBrushSize), MaxBrushSize)
}

func (s *Session) PointerDown(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = s.log.Append(Stroke{Points: []Point{p}, Radius: float64(s.brush) / 2, Mode: s.tool})
	s.holding = true
}

// PointerMove extends the current stroke; it is ignored unless held.
func (s *Session) PointerMove(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holding {
		s.log = s.log.Extend(p)
	}
}

func (s *Session) PointerUp() {
	s.mu.Lock()
	s.holding = false
	s.mu.Unlock()
}

// Undo drops the last stroke.
func (s *Session) Undo() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holding = false
	s.log = s.log.DropLast()
}

// Replay appends finished strokes, as sent by a client that captured them.
// Radii are clamped to the brush limits. At most MaxReplayStrokes strokes
// with MaxReplayPoints points between them are accepted per call.
func (s *Session) Replay(strokes []Stroke) error {
	if len(strokes) > MaxReplayStrokes {
		return fmt.Errorf("%w: %d strokes, at most %d allowed", common.ErrorValidation, len(strokes), MaxReplayStrokes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.log
	points := 0
	for i, st := range strokes {
		if err := st.validate(); err != nil {
			return fmt.Errorf("%w: stroke %d: %v", common.ErrorValidation, i, err)
		}
		if points += len(st.Points); points > MaxReplayPoints {
			return fmt.Errorf("%w: more than %d points", common.ErrorValidation, MaxReplayPoints)
		}
		st.Radius = math.Min(math.Max(st.Radius, MinBrushSize/2), MaxBrushSize/2)
		next = next.Append(st)
	}
	s.log = next
	s.holding = false
	return nil
}

// Log returns the current stroke log.
func (s *Session) Log() StrokeLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.log
}

// edited applies every stroke to a copy of the top layer.
func (s *Session) edited() *image.NRGBA {
	cur := imagex.ToNRGBA(s.top)
	m := newMasker(s.width, s.height)
	for _, st := range s.log.strokes {
		area, ok := m.coverage(st)
		if !ok {
			continue
		}
		switch st.Mode {
		case ModeErase:
			erase(cur, area)
		case ModeRestore:
			restore(cur, s.top, area)
		}
	}
	return cur
}

// Render returns the preview: base first, edited top over it.
func (s *Session) Render() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := imagex.ToNRGBA(s.base)
	draw.Draw(out, out.Bounds(), s.edited(), image.Point{}, draw.Over)
	return out
}

// Apply returns the edited top layer alone and starts over from it.
func (s *Session) Apply() (*image.NRGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.edited()
	s.top = imagex.ToNRGBA(out)
	s.log = StrokeLog{}
	s.holding = false
	return out, nil
}

// Cancel discards every stroke.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = StrokeLog{}
	s.holding = false
}
