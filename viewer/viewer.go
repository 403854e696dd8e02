package viewer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"delyzer.dev/delyzer/model"
)

const (
	// Station views only show the stations with the largest values.
	MaxStationRows = 10

	BarWidth      = 40
	MaxLabelWidth = 40
)

// Data behind the views. Implemented by Client.
type Source interface {
	Lines(ctx context.Context) ([]model.Line, error)
	LineDelays(ctx context.Context) ([]model.LineDelay, error)
	StationDelays(ctx context.Context, line model.Line) ([]model.StationDelay, error)
	StationRisks(ctx context.Context, line model.Line) ([]model.StationDelay, error)
	TimeDelays(ctx context.Context, line model.Line) ([]model.TimeslotDelay, error)
}

type Row struct {
	Label string
	Value *float64 // nil renders as an empty bar
}

// A rendered chart.
type Frame struct {
	View  ViewKind
	Line  *model.Line
	Unit  string
	Rows  []Row
	Stale bool
}

// Interactive chart viewer. Keeps the last good frame of every view
// and shows it again when fetching fresh data fails.
type Viewer struct {
	source   Source
	out      io.Writer
	rotation Rotation
	lines    []model.Line
	line     *model.Line
	frames   map[ViewKind]Frame
}

func New(source Source, out io.Writer) *Viewer {
	return &Viewer{
		source: source,
		out:    out,
		frames: map[ViewKind]Frame{},
	}
}

func (v *Viewer) View() ViewKind {
	return v.rotation.Current()
}

func (v *Viewer) Line() (model.Line, bool) {
	if v.line == nil {
		return model.Line{}, false
	}
	return *v.line, true
}

func (v *Viewer) SetLine(line model.Line) {
	v.line = &line
}

// Moves to the next line served by the API, wrapping around.
func (v *Viewer) NextLine(ctx context.Context) error {
	lines, err := v.source.Lines(ctx)
	if err != nil {
		if len(v.lines) == 0 {
			return fmt.Errorf("fetching lines: %w", err)
		}
		log.Printf("Warning: fetching lines: %v", err)
	} else {
		v.lines = lines
	}
	if len(v.lines) == 0 {
		return nil
	}

	next := 0
	if v.line != nil {
		for i, l := range v.lines {
			if l == *v.line {
				next = (i + 1) % len(v.lines)
				break
			}
		}
	}
	v.SetLine(v.lines[next])
	return nil
}

func (v *Viewer) Next(ctx context.Context) error {
	v.rotation.Next()
	return v.Show(ctx)
}

func (v *Viewer) Prev(ctx context.Context) error {
	v.rotation.Prev()
	return v.Show(ctx)
}

// Fetches and renders the current view. Fetch failures are logged
// and the previous frame of the view is rendered instead. Only
// write errors are returned.
func (v *Viewer) Show(ctx context.Context) error {
	view := v.rotation.Current()

	frame, err := v.fetch(ctx, view)
	if err != nil {
		log.Printf("Warning: fetching %s: %v", view, err)
		stale, ok := v.frames[view]
		if !ok {
			_, werr := fmt.Fprintf(v.out, "%s\n\nKeine Daten verfügbar\n\n", view)
			return werr
		}
		stale.Stale = true
		return Render(v.out, stale)
	}

	v.frames[view] = frame
	return Render(v.out, frame)
}

func (v *Viewer) fetch(ctx context.Context, view ViewKind) (Frame, error) {
	frame := Frame{View: view, Unit: "min"}

	if view.PerLine() && v.line == nil {
		if err := v.NextLine(ctx); err != nil {
			return frame, err
		}
		if v.line == nil {
			return frame, fmt.Errorf("no lines available")
		}
	}

	switch view {
	case LineDelayView:
		delays, err := v.source.LineDelays(ctx)
		if err != nil {
			return frame, err
		}
		frame.Rows = lineRows(delays)

	case StationDelayView, StationRiskView:
		line := *v.line
		frame.Line = &line

		var stations []model.StationDelay
		var err error
		if view == StationDelayView {
			stations, err = v.source.StationDelays(ctx, line)
		} else {
			frame.Unit = "%"
			stations, err = v.source.StationRisks(ctx, line)
		}
		if err != nil {
			return frame, err
		}
		frame.Rows = stationRows(stations)

	case TimeDelayView:
		line := *v.line
		frame.Line = &line

		slots, err := v.source.TimeDelays(ctx, line)
		if err != nil {
			return frame, err
		}
		frame.Rows = timeRows(slots)

	default:
		return frame, fmt.Errorf("unknown view %d", view)
	}

	return frame, nil
}

// Mean over directions per line number, smallest first.
func lineRows(delays []model.LineDelay) []Row {
	sums := map[string]float64{}
	counts := map[string]int{}
	order := []string{}
	for _, d := range delays {
		if _, found := counts[d.LineNumber]; !found {
			order = append(order, d.LineNumber)
		}
		sums[d.LineNumber] += d.Delay
		counts[d.LineNumber]++
	}

	rows := make([]Row, 0, len(order))
	for _, number := range order {
		mean := sums[number] / float64(counts[number])
		rows = append(rows, Row{Label: number, Value: &mean})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return *rows[i].Value < *rows[j].Value
	})
	return rows
}

// Largest first, at most MaxStationRows.
func stationRows(stations []model.StationDelay) []Row {
	rows := make([]Row, 0, len(stations))
	for _, s := range stations {
		label := fmt.Sprintf("%d", s.StationID)
		if s.Name != nil {
			label = *s.Name
		}
		value := s.Delay
		rows = append(rows, Row{Label: label, Value: &value})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return *rows[i].Value > *rows[j].Value
	})
	if len(rows) > MaxStationRows {
		rows = rows[:MaxStationRows]
	}
	return rows
}

func timeRows(slots []model.TimeslotDelay) []Row {
	sorted := make([]model.TimeslotDelay, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TimeslotStart < sorted[j].TimeslotStart
	})

	rows := make([]Row, 0, len(sorted))
	for _, s := range sorted {
		label := fmt.Sprintf("%02d:%02d", s.TimeslotStart.Hour(), s.TimeslotStart.Minute())
		rows = append(rows, Row{Label: label, Value: s.Delay})
	}
	return rows
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

// Writes frame as a horizontal bar chart.
func Render(w io.Writer, frame Frame) error {
	var b strings.Builder

	b.WriteString(frame.View.String())
	if frame.Line != nil {
		fmt.Fprintf(&b, " (%s %s)", frame.Line.Number, frame.Line.Direction)
	}
	if frame.Stale {
		b.WriteString(" [veraltet]")
	}
	b.WriteString("\n\n")

	if len(frame.Rows) == 0 {
		b.WriteString("Keine Daten\n\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	labelWidth := 0
	top := 0.0
	for _, row := range frame.Rows {
		if n := utf8.RuneCountInString(truncate(row.Label, MaxLabelWidth)); n > labelWidth {
			labelWidth = n
		}
		if row.Value != nil && *row.Value > top {
			top = *row.Value
		}
	}

	for _, row := range frame.Rows {
		label := truncate(row.Label, MaxLabelWidth)
		b.WriteString(label)
		b.WriteString(strings.Repeat(" ", labelWidth-utf8.RuneCountInString(label)+1))

		if row.Value == nil {
			b.WriteString("-\n")
			continue
		}

		bar := 0
		if top > 0 && *row.Value > 0 {
			bar = int(math.Round(*row.Value / top * BarWidth))
		}
		b.WriteString(strings.Repeat("#", bar))
		fmt.Fprintf(&b, " %.2f %s\n", *row.Value, frame.Unit)
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

const help = "n: nächste Ansicht, p: vorherige Ansicht, l: nächste Linie, r: neu laden, q: beenden\n"

// Shows the current view, then reacts to one command per input line
// until q, end of input or ctx is done.
func (v *Viewer) Run(ctx context.Context, in io.Reader) error {
	if err := v.Show(ctx); err != nil {
		return err
	}
	if _, err := io.WriteString(v.out, help); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		var err error
		switch strings.TrimSpace(scanner.Text()) {
		case "n":
			err = v.Next(ctx)
		case "p":
			err = v.Prev(ctx)
		case "l":
			if lerr := v.NextLine(ctx); lerr != nil {
				log.Printf("Warning: %v", lerr)
			}
			err = v.Show(ctx)
		case "r":
			err = v.Show(ctx)
		case "q":
			return nil
		case "":
			continue
		default:
			_, err = io.WriteString(v.out, help)
		}
		if err != nil {
			return err
		}
	}

	return scanner.Err()
}
