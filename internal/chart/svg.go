package chart

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"sync"
)

const (
	svgWidth   = 640.0
	svgHeight  = 320.0
	padTop     = 16.0
	padBottom  = 56.0
	padSide    = 24.0
	legendRoom = 24.0
	barFill    = 0.7
)

var barTemplate = template.Must(template.New("bar").Parse(`<svg xmlns="http://www.w3.org/2000/svg" id="{{.CanvasID}}-svg" role="img" viewBox="0 0 {{.Width}} {{.Height}}"
{{- if .Responsive}} width="100%" preserveAspectRatio="xMidYMid meet"{{else}} width="{{.Width}}" height="{{.Height}}"{{end}} class="bar-chart">
{{- if .Legend}}<g class="bar-chart__legend"><rect x="{{.PadSide}}" y="4" width="12" height="12" fill="{{.LegendColor}}"></rect><text x="{{.LegendTextX}}" y="14" font-size="12">{{.Legend}}</text></g>{{end}}
<line x1="{{.PadSide}}" y1="{{.Baseline}}" x2="{{.AxisEnd}}" y2="{{.Baseline}}" stroke="#9ca3af" stroke-width="1"></line>
{{- range .Bars}}
<g class="bar-chart__bar"><title>{{.Label}}: {{.Value}}</title><rect x="{{.X}}" y="{{.Y}}" width="{{.W}}" height="{{.H}}" fill="{{.Color}}"></rect><text x="{{.LabelX}}" y="{{.LabelY}}" font-size="10" text-anchor="middle">{{.Label}}</text></g>
{{- end}}
</svg>`))

type svgBar struct {
	Label, Value, Color string
	X, Y, W, H          string
	LabelX, LabelY      string
}

// SVG draws bar charts as inline SVG and keeps count of the live charts on
// each canvas.
type SVG struct {
	mu   sync.Mutex
	live map[string]int
}

func NewSVG() *SVG {
	return &SVG{live: make(map[string]int)}
}

func (s *SVG) NewBar(canvasID string, cfg BarConfig) (Chart, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	html, err := renderBar(canvasID, cfg)
	if err != nil {
		return nil, fmt.Errorf("render bar chart %s: %w", canvasID, err)
	}

	s.mu.Lock()
	s.live[canvasID]++
	s.mu.Unlock()

	return &svgChart{lib: s, canvasID: canvasID, html: html}, nil
}

// Live reports how many undestroyed charts exist on canvasID.
func (s *SVG) Live(canvasID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[canvasID]
}

func (s *SVG) release(canvasID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live[canvasID] > 0 {
		s.live[canvasID]--
	}
	if s.live[canvasID] == 0 {
		delete(s.live, canvasID)
	}
}

type svgChart struct {
	once     sync.Once
	lib      *SVG
	canvasID string
	html     template.HTML
}

func (c *svgChart) HTML() template.HTML {
	return c.html
}

func (c *svgChart) Destroy() {
	c.once.Do(func() {
		c.html = ""
		c.lib.release(c.canvasID)
	})
}

func renderBar(canvasID string, cfg BarConfig) (template.HTML, error) {
	top := padTop
	if cfg.ShowLegend {
		top += legendRoom
	}
	baseline := svgHeight - padBottom
	plotH := baseline - top
	plotW := svgWidth - 2*padSide

	maxV := 0.0
	for _, v := range cfg.Values {
		if v > maxV {
			maxV = v
		}
	}

	bars := make([]svgBar, 0, len(cfg.Values))
	if n := len(cfg.Values); n > 0 {
		slot := plotW / float64(n)
		w := slot * barFill
		for i, v := range cfg.Values {
			h := 0.0
			if maxV > 0 && v > 0 {
				h = v / maxV * plotH
			}
			x := padSide + float64(i)*slot + (slot-w)/2
			bars = append(bars, svgBar{
				Label:  cfg.Labels[i],
				Value:  strconv.FormatFloat(v, 'f', 2, 64),
				Color:  cfg.color(i),
				X:      coord(x),
				Y:      coord(baseline - h),
				W:      coord(w),
				H:      coord(h),
				LabelX: coord(x + w/2),
				LabelY: coord(baseline + 14),
			})
		}
	}

	data := struct {
		CanvasID            string
		Width, Height       string
		Responsive          bool
		Legend, LegendColor string
		LegendTextX         string
		PadSide             string
		Baseline, AxisEnd   string
		Bars                []svgBar
	}{
		CanvasID:    canvasID,
		Width:       coord(svgWidth),
		Height:      coord(svgHeight),
		Responsive:  cfg.Responsive,
		PadSide:     coord(padSide),
		LegendTextX: coord(padSide + 18),
		Baseline:    coord(baseline),
		AxisEnd:     coord(svgWidth - padSide),
		Bars:        bars,
	}
	if cfg.ShowLegend {
		data.Legend = cfg.DatasetLabel
		data.LegendColor = DefaultColor
		if len(cfg.Colors) > 0 {
			data.LegendColor = cfg.Colors[0]
		}
	}

	var buf bytes.Buffer
	if err := barTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
