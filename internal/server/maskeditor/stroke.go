// Package maskeditor refines a background-removal result by hand: erase
// strokes punch holes into the processed layer, restore strokes bring the
// processed pixels back.
package maskeditor

import (
	"fmt"
	"math"
)

// maxCoord bounds point coordinates; points may lie off the canvas.
const maxCoord = 1e6

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Mode string

const (
	ModeErase   Mode = "erase"
	ModeRestore Mode = "restore"
)

func (m Mode) Valid() bool {
	return m == ModeErase || m == ModeRestore
}

type Stroke struct {
	Points []Point `json:"points"`
	Radius float64 `json:"radius"`
	Mode   Mode    `json:"mode"`
}

func (s Stroke) validate() error {
	if !s.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	if len(s.Points) == 0 {
		return fmt.Errorf("stroke without points")
	}
	if s.Radius <= 0 {
		return fmt.Errorf("non-positive radius %v", s.Radius)
	}
	for _, p := range s.Points {
		if math.Abs(p.X) > maxCoord || math.Abs(p.Y) > maxCoord || math.IsNaN(p.X) || math.IsNaN(p.Y) {
			return fmt.Errorf("point %v out of range", p)
		}
	}
	return nil
}

// StrokeLog is an append-only list of strokes. Every change returns a new
// log; existing values are never modified.
type StrokeLog struct {
	strokes []Stroke
}

func (l StrokeLog) Len() int {
	return len(l.strokes)
}

// Strokes returns a copy of the log's strokes.
func (l StrokeLog) Strokes() []Stroke {
	out := make([]Stroke, len(l.strokes))
	for i, s := range l.strokes {
		out[i] = Stroke{Points: append([]Point(nil), s.Points...), Radius: s.Radius, Mode: s.Mode}
	}
	return out
}

// Append returns a log with s added at the end.
func (l StrokeLog) Append(s Stroke) StrokeLog {
	next := make([]Stroke, len(l.strokes), len(l.strokes)+1)
	copy(next, l.strokes)
	s.Points = append([]Point(nil), s.Points...)
	return StrokeLog{strokes: append(next, s)}
}

// Extend returns a log whose last stroke has p appended.
func (l StrokeLog) Extend(p Point) StrokeLog {
	if len(l.strokes) == 0 {
		return l
	}
	next := make([]Stroke, len(l.strokes))
	copy(next, l.strokes)

	last := next[len(next)-1]
	pts := make([]Point, len(last.Points), len(last.Points)+1)
	copy(pts, last.Points)
	last.Points = append(pts, p)
	next[len(next)-1] = last

	return StrokeLog{strokes: next}
}

// DropLast returns a log without its last stroke.
func (l StrokeLog) DropLast() StrokeLog {
	if len(l.strokes) == 0 {
		return l
	}
	return StrokeLog{strokes: l.strokes[:len(l.strokes)-1:len(l.strokes)-1]}
}
