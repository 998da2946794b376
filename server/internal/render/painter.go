package render

import (
	"github.com/GapNapatS/PredictableTimingExperiment/server/internal/experiment"
)

// Layout of the stimulus area in canvas pixels.
const (
	Margin       = 50.0
	BarTop       = 60.0
	BarHeight    = 30.0
	MarkerTop    = 50.0
	MarkerBottom = 100.0
	EndTextSize  = 24.0
)

// EndMessage is shown once the session is complete.
const EndMessage = "Experiment over.\nThank you for participating!"

// Painter draws frames for one session. It remembers whether the end screen
// has been drawn so that it is only emitted once.
type Painter struct {
	ended bool
}

func NewPainter() *Painter { return &Painter{} }

// Ended reports whether the end screen has been drawn.
func (p *Painter) Ended() bool { return p.ended }

// Draw paints f onto c and reports whether anything was drawn. After the end
// screen it draws nothing, leaving the last image in place.
func (p *Painter) Draw(c Canvas, f experiment.Frame, width, height float64) bool {
	switch f.Phase {
	case experiment.Complete:
		if p.ended {
			return false
		}
		p.ended = true
		c.Clear(LightGray)
		c.Text(EndMessage, width/2, height/2, EndTextSize, White)
		return true

	case experiment.IntertrialWait:
		c.Clear(Black)
		return true
	}

	c.Clear(Black)
	track := width - 2*Margin

	fill := White
	if f.Stimulus == experiment.Triggered {
		fill = Red
	}

	if f.FullBar {
		c.FillRect(Margin, BarTop, track, BarHeight, fill)
		return true
	}

	c.FillRect(Margin, BarTop, track*f.BarFraction, BarHeight, fill)
	for _, m := range f.Markers {
		x := Margin + m*track
		c.Line(x, MarkerTop, x, MarkerBottom, Black)
	}
	return true
}
