// Package render turns experiment frames into 2D draw calls.
package render

import "fmt"

// Color is an opaque RGB color.
type Color struct {
	R, G, B uint8
}

var (
	Black     = Color{0, 0, 0}
	White     = Color{255, 255, 255}
	Red       = Color{255, 0, 0}
	LightGray = Color{220, 220, 220}
)

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Color) UnmarshalText(text []byte) error {
	_, err := fmt.Sscanf(string(text), "#%02x%02x%02x", &c.R, &c.G, &c.B)
	if err != nil {
		return fmt.Errorf("invalid color %q: %w", text, err)
	}
	return nil
}

// Canvas is the drawing surface a Painter writes to.
type Canvas interface {
	Clear(c Color)
	FillRect(x, y, w, h float64, c Color)
	Line(x1, y1, x2, y2 float64, c Color)
	// Text draws s centered on (x, y). Newlines start a new line.
	Text(s string, x, y, size float64, c Color)
}

// Op is one recorded draw call.
type Op struct {
	Op    string  `json:"op"`
	Color Color   `json:"color"`
	X     float64 `json:"x,omitempty"`
	Y     float64 `json:"y,omitempty"`
	W     float64 `json:"w,omitempty"`
	H     float64 `json:"h,omitempty"`
	X2    float64 `json:"x2,omitempty"`
	Y2    float64 `json:"y2,omitempty"`
	Text  string  `json:"text,omitempty"`
	Size  float64 `json:"size,omitempty"`
}

// CommandCanvas records draw calls so a browser client can replay them.
type CommandCanvas struct {
	Ops []Op `json:"ops"`
}

func NewCommandCanvas() *CommandCanvas {
	return &CommandCanvas{Ops: []Op{}}
}

func (c *CommandCanvas) Clear(col Color) {
	c.Ops = append(c.Ops, Op{Op: "clear", Color: col})
}

func (c *CommandCanvas) FillRect(x, y, w, h float64, col Color) {
	c.Ops = append(c.Ops, Op{Op: "rect", X: x, Y: y, W: w, H: h, Color: col})
}

func (c *CommandCanvas) Line(x1, y1, x2, y2 float64, col Color) {
	c.Ops = append(c.Ops, Op{Op: "line", X: x1, Y: y1, X2: x2, Y2: y2, Color: col})
}

func (c *CommandCanvas) Text(s string, x, y, size float64, col Color) {
	c.Ops = append(c.Ops, Op{Op: "text", X: x, Y: y, Text: s, Size: size, Color: col})
}

// Reset drops all recorded ops.
func (c *CommandCanvas) Reset() { c.Ops = c.Ops[:0] }
