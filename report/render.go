package report

import (
	"fmt"
	"hash/fnv"
	"html/template"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vainnor/session-report/timeline"
)

// Page geometry, in SVG user units.
const (
	pageWidth     = 1600.0
	marginLR      = 40.0
	headerLeft    = 80.0
	marginTop     = 40.0
	headerTop     = 16.0
	sessionHeight = 8.0
	sessionGap    = 2.0
	chartHeight   = 160.0
	chartGap      = 40.0
	legendSpacing = 60.0
	chartWidth    = pageWidth - 2*marginLR - headerLeft
)

const defaultColor = "#000000"

type tick struct {
	Y     float64
	Label string
}

type dayMark struct {
	X      float64
	Label  string
	LabelX float64
}

type bar struct {
	X, Y, W, H float64
	Color      string
	Label      string
	LabelY     float64
	Title      string
	Open       bool
}

type serverLabel struct {
	Y    float64
	Name string
}

type line struct {
	Label  string
	Color  string
	Points string
}

type legendItem struct {
	X, Y  float64
	Label string
	Color string
}

type chart struct {
	Title  string
	Top    float64
	Bottom float64
	Ticks  []tick
	Lines  []line
	Legend []legendItem
}

type pageView struct {
	Title       string
	GeneratedAt string
	Width       float64
	Height      float64
	Left        float64
	Right       float64
	ChartRight  float64
	TimelineTop float64
	TimelineEnd float64
	Days        []dayMark
	Servers     []serverLabel
	Bars        []bar
	Charts      []chart
	Offenders   []string
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 0; }
text { font-family: sans-serif; }
.meta { font-size: 12px; padding: 8px 40px; color: #555; }
</style>
</head>
<body>
<div class="meta">{{.Title}}, generated {{.GeneratedAt}}{{if .Offenders}}. Users over the session limit: {{range $i, $u := .Offenders}}{{if $i}}, {{end}}{{$u}}{{end}}{{end}}</div>
<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}">
{{range .Days}}<line x1="{{.X}}" y1="{{$.TimelineTop}}" x2="{{.X}}" y2="{{$.TimelineEnd}}" stroke="#808080" stroke-width="0.5"/>
{{if .Label}}<text x="{{.LabelX}}" y="{{$.TimelineTop}}" font-size="9" dy="-4">{{.Label}}</text>
{{end}}{{end}}
{{range .Servers}}<text x="{{$.Left}}" y="{{.Y}}" font-size="10">{{.Name}}</text>
{{end}}
{{range .Bars}}<g><title>{{.Title}}</title><rect x="{{.X}}" y="{{.Y}}" width="{{.W}}" height="{{.H}}" fill="none" stroke="{{.Color}}" stroke-width="0.6"{{if .Open}} stroke-dasharray="2,1"{{end}}/><text x="{{.X}}" y="{{.LabelY}}" dx="1" font-size="3">{{.Label}}</text></g>
{{end}}
{{range $c := .Charts}}<g>
<text transform="translate({{$.Left}},{{$c.Bottom}}) rotate(-90)" font-size="10" dy="12">{{$c.Title}}</text>
{{range $.Days}}<line x1="{{.X}}" y1="{{$c.Top}}" x2="{{.X}}" y2="{{$c.Bottom}}" stroke="#ccc" stroke-width="0.5"/>
{{if .Label}}<text x="{{.LabelX}}" y="{{$c.Bottom}}" dy="12" font-size="8">{{.Label}}</text>
{{end}}{{end}}{{range $c.Ticks}}<line x1="{{$.Right}}" y1="{{.Y}}" x2="{{$.ChartRight}}" y2="{{.Y}}" stroke="#ccc" stroke-width="0.5"/><text x="{{$.Right}}" y="{{.Y}}" dx="-4" dy="3" font-size="8" text-anchor="end">{{.Label}}</text>
{{end}}<line x1="{{$.Right}}" y1="{{$c.Top}}" x2="{{$.Right}}" y2="{{$c.Bottom}}" stroke="#000" stroke-width="0.5"/>
<line x1="{{$.Right}}" y1="{{$c.Bottom}}" x2="{{$.ChartRight}}" y2="{{$c.Bottom}}" stroke="#000" stroke-width="0.5"/>
{{range $c.Lines}}<polyline fill="none" stroke="{{.Color}}" stroke-width="0.8" points="{{.Points}}"><title>{{.Label}}</title></polyline>
{{end}}{{range $c.Legend}}<text x="{{.X}}" y="{{.Y}}" font-size="8" fill="{{.Color}}">{{.Label}}</text>
{{end}}</g>
{{end}}
</svg>
</body>
</html>
`))

// RenderHTML writes r as a self-contained HTML page with an SVG timeline of
// server occupancy and step charts of the concurrency series.
func RenderHTML(w io.Writer, r *Report) error {
	v, err := newPageView(r)
	if err != nil {
		return err
	}
	return pageTemplate.Execute(w, v)
}

type scale struct {
	start time.Time
	hours float64
}

func newScale(start, end time.Time) scale {
	hours := end.Sub(start).Hours()
	if hours <= 0 {
		hours = 24
	}
	return scale{start: start, hours: hours}
}

// x maps a timestamp to a horizontal position.
func (s scale) x(t time.Time) float64 {
	return marginLR + headerLeft + chartWidth*t.Sub(s.start).Hours()/s.hours
}

func newPageView(r *Report) (pageView, error) {
	sc := newScale(r.WindowStart, r.WindowEnd)
	capacity := r.Layout.Capacity
	rowPitch := sessionHeight + sessionGap

	v := pageView{
		Title:       r.Title,
		GeneratedAt: r.GeneratedAt.Format(time.DateTime),
		Width:       pageWidth,
		Left:        marginLR,
		Right:       marginLR + headerLeft,
		ChartRight:  marginLR + headerLeft + chartWidth,
		TimelineTop: marginTop + headerTop,
		Offenders:   r.Analysis.Offenders,
	}
	v.TimelineEnd = v.TimelineTop + float64(len(r.Layout.Servers)*capacity)*rowPitch

	for day := r.WindowStart; !day.After(r.WindowEnd); day = day.AddDate(0, 0, 1) {
		mark := dayMark{X: sc.x(day)}
		if day.Before(r.WindowEnd) {
			mark.Label = day.Format("Mon 02/01")
			mark.LabelX = mark.X + 0.1*chartWidth*24/sc.hours
		}
		v.Days = append(v.Days, mark)
	}

	serverIndex := make(map[string]int, len(r.Layout.Servers))
	for i, s := range r.Layout.Servers {
		serverIndex[s] = i
		v.Servers = append(v.Servers, serverLabel{
			Y:    v.TimelineTop + float64(i*capacity)*rowPitch + sessionHeight,
			Name: s,
		})
	}

	offsets := newLabelOffsets()
	for _, al := range r.Layout.Allocations {
		row := serverIndex[al.Server]*capacity + al.Slot
		top := v.TimelineTop + float64(row)*rowPitch
		left := sc.x(al.Start)
		b := bar{
			X:     left,
			Y:     top,
			W:     math.Max(sc.x(al.End)-left, 0.5),
			H:     sessionHeight,
			Color: colorFor(r.Colors, al.Session.Environment),
			Label: al.Session.User,
			Title: fmt.Sprintf("%s on %s (%s) %s - %s", al.Session.User, al.Server, al.Session.Environment,
				al.Start.Format(time.DateTime), al.End.Format(time.DateTime)),
			Open: al.Synthetic,
		}
		b.LabelY = top + sessionHeight/2 + 1 + offsets.next(row)
		v.Bars = append(v.Bars, b)
	}

	a := r.Analysis

	colors := make([]string, 0, len(a.Sessions))
	for _, s := range a.Sessions {
		colors = append(colors, colorFor(r.Colors, s.Label))
	}
	userColors := make([]string, 0, len(a.PerUser))
	for _, s := range a.PerUser {
		userColors = append(userColors, userColor(s.Label))
	}

	charts := []struct {
		title        string
		series       []timeline.Series
		colors       []string
		legend       []string
		tickInterval float64
	}{
		{"Number of sessions in use", a.Sessions, colors, nil, 5},
		{"Number of concurrent users", []timeline.Series{a.Users}, []string{defaultColor}, nil, 5},
		{"Number of sessions per user", a.PerUser, userColors, a.Offenders, 1},
		{"Average sessions per active user", []timeline.Series{a.Average}, []string{defaultColor}, nil, 0.5},
	}

	top := v.TimelineEnd + chartGap
	for _, ch := range charts {
		c, err := newChart(ch.title, top, sc, ch.series, ch.colors, ch.legend, ch.tickInterval)
		if err != nil {
			return pageView{}, fmt.Errorf("drawing %q: %w", ch.title, err)
		}
		v.Charts = append(v.Charts, c)
		top += chartHeight + chartGap
	}

	v.Height = top
	return v, nil
}

// newChart draws each series as a step curve. Only labels listed in legend
// get a legend entry; a nil legend means none.
func newChart(title string, top float64, sc scale, series []timeline.Series, colors []string, legend []string, tickInterval float64) (chart, error) {
	c := chart{Title: title, Top: top, Bottom: top + chartHeight}

	ymax := 0.0
	for _, s := range series {
		if peak, _ := s.Peak(); peak > ymax {
			ymax = peak
		}
	}
	if ymax <= 0 {
		ymax = 1
	}
	y := func(v float64) float64 { return top + chartHeight*(1-v/ymax) }

	for t := 0.0; t <= ymax; t += tickInterval {
		c.Ticks = append(c.Ticks, tick{Y: y(t), Label: strconv.FormatFloat(t, 'f', -1, 64)})
	}

	inLegend := make(map[string]bool, len(legend))
	for _, l := range legend {
		inLegend[l] = true
	}

	perRow := int(chartWidth / legendSpacing)
	n := 0
	for i, s := range series {
		step, err := s.Step()
		if err != nil {
			return chart{}, err
		}
		points := make([]string, len(step.Times))
		for j := range step.Times {
			points[j] = fmt.Sprintf("%.2f,%.2f", sc.x(step.Times[j]), y(step.Values[j]))
		}
		c.Lines = append(c.Lines, line{Label: s.Label, Color: colors[i], Points: strings.Join(points, " ")})

		if inLegend[s.Label] {
			c.Legend = append(c.Legend, legendItem{
				X:     marginLR + headerLeft + 2 + float64(n%perRow)*legendSpacing,
				Y:     top + 8 + float64(n/perRow)*10,
				Label: s.Label,
				Color: colors[i],
			})
			n++
		}
	}
	return c, nil
}

// labelOffsets cycles the vertical position of user labels within a row so
// labels of adjacent short sessions do not sit on top of each other.
type labelOffsets map[int]int

const labelPositions = 4

func newLabelOffsets() labelOffsets { return make(labelOffsets) }

// next returns the offset for the next label in row: -2, -2/3, 2/3, 2, and
// around again.
func (o labelOffsets) next(row int) float64 {
	k := o[row]
	o[row] = (k + 1) % labelPositions
	return -2 + float64(k)*4/float64(labelPositions-1)
}

func colorFor(colors map[string]string, label string) string {
	if c, ok := colors[label]; ok && c != "" {
		return c
	}
	if label == timeline.TotalLabel {
		return defaultColor
	}
	return userColor(label)
}

// userColor derives a stable color from a name.
func userColor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	sum := h.Sum32()
	return fmt.Sprintf("hsl(%d,70%%,40%%)", sum%360)
}
