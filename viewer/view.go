package viewer

// A chart shown by the viewer.
type ViewKind int

const (
	LineDelayView ViewKind = iota
	StationDelayView
	StationRiskView
	TimeDelayView
)

// All views, in rotation order.
var Views = []ViewKind{
	LineDelayView,
	StationDelayView,
	StationRiskView,
	TimeDelayView,
}

func (v ViewKind) String() string {
	switch v {
	case LineDelayView:
		return "Durchschnittliche Verspätung"
	case StationDelayView:
		return "Durchschnittliche Verspätung pro Station"
	case StationRiskView:
		return "Verspätungsrisiko pro Station"
	case TimeDelayView:
		return "Verspätung nach Uhrzeit"
	}
	return "unknown view"
}

// Whether the view shows a single line.
func (v ViewKind) PerLine() bool {
	return v != LineDelayView
}

// Position in Views. Wraps around in both directions.
type Rotation struct {
	pos int
}

func (r *Rotation) Current() ViewKind {
	return Views[r.pos]
}

func (r *Rotation) Next() ViewKind {
	r.pos = (r.pos + 1) % len(Views)
	return Views[r.pos]
}

func (r *Rotation) Prev() ViewKind {
	r.pos = (r.pos - 1 + len(Views)) % len(Views)
	return Views[r.pos]
}
