package subsystem

import "fmt"

type DecorationKind int

const (
	Box DecorationKind = iota
	Ellipsoid
	Cylinder
	Circle
	Line
	Text
	Frame
)

var kindNames = [...]string{"box", "ellipsoid", "cylinder", "circle", "line", "text", "frame"}

func (k DecorationKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("decoration(%d)", int(k))
	}
	return kindNames[k]
}

type Vec3 [3]float64

// Color is RGBA with components in [0,1].
type Color [4]float64

var (
	White = Color{1, 1, 1, 1}
	Red   = Color{1, 0, 0, 1}
	Blue  = Color{0, 0, 1, 1}
)

// Decoration is a drawable primitive produced by a subsystem for
// visualization. Only the fields meaningful for Kind are set: Origin and
// Scale for solids, From and To for lines, Origin and Label for text.
type Decoration struct {
	Kind      DecorationKind
	Origin    Vec3
	Scale     Vec3
	From, To  Vec3
	Thickness float64
	Color     Color
	Label     string
}

func (d Decoration) String() string {
	switch d.Kind {
	case Line:
		return fmt.Sprintf("line %v->%v", d.From, d.To)
	case Text:
		return fmt.Sprintf("text %q at %v", d.Label, d.Origin)
	default:
		return fmt.Sprintf("%s at %v scale %v", d.Kind, d.Origin, d.Scale)
	}
}
