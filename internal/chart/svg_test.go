package chart

import (
	"errors"
	"strings"
	"testing"
)

func TestSVGNewBarRendersOneBarPerValue(t *testing.T) {
	lib := NewSVG()
	c, err := lib.NewBar("category-chart", BarConfig{
		Labels:     []string{"Food (expense)", "Salary (income)"},
		Values:     []float64{120, 3000},
		Colors:     []string{"red", "green"},
		Responsive: true,
	})
	if err != nil {
		t.Fatalf("new bar: %v", err)
	}
	html := string(c.HTML())

	if got := strings.Count(html, `class="bar-chart__bar"`); got != 2 {
		t.Fatalf("expected 2 bars, got %d in %s", got, html)
	}
	for _, want := range []string{"Food (expense)", "Salary (income)", `fill="red"`, `fill="green"`, `width="100%"`} {
		if !strings.Contains(html, want) {
			t.Fatalf("missing %q in %s", want, html)
		}
	}
	if strings.Contains(html, "bar-chart__legend") {
		t.Fatal("legend should be hidden unless requested")
	}
}

func TestSVGLegendAndFixedSize(t *testing.T) {
	c, err := NewSVG().NewBar("c", BarConfig{
		DatasetLabel: "Totals",
		Labels:       []string{"a"},
		Values:       []float64{1},
		ShowLegend:   true,
	})
	if err != nil {
		t.Fatalf("new bar: %v", err)
	}
	html := string(c.HTML())
	if !strings.Contains(html, "bar-chart__legend") || !strings.Contains(html, "Totals") {
		t.Fatalf("legend missing: %s", html)
	}
	if !strings.Contains(html, `height="320.0"`) {
		t.Fatalf("non-responsive chart should have a fixed height: %s", html)
	}
}

func TestSVGEscapesLabels(t *testing.T) {
	c, err := NewSVG().NewBar("c", BarConfig{Labels: []string{`<script>x</script>`}, Values: []float64{1}})
	if err != nil {
		t.Fatalf("new bar: %v", err)
	}
	if strings.Contains(string(c.HTML()), "<script>") {
		t.Fatalf("label was not escaped: %s", c.HTML())
	}
}

func TestSVGShapeMismatch(t *testing.T) {
	lib := NewSVG()
	_, err := lib.NewBar("c", BarConfig{Labels: []string{"a", "b"}, Values: []float64{1}})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
	_, err = lib.NewBar("c", BarConfig{Labels: []string{"a"}, Values: []float64{1}, Colors: []string{"x", "y"}})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch for colors, got %v", err)
	}
	if lib.Live("c") != 0 {
		t.Fatal("failed charts must not count as live")
	}
}

func TestSVGLiveCountAndDestroy(t *testing.T) {
	lib := NewSVG()
	first, _ := lib.NewBar("chart", BarConfig{})
	second, _ := lib.NewBar("chart", BarConfig{})
	if lib.Live("chart") != 2 {
		t.Fatalf("live = %d, want 2", lib.Live("chart"))
	}

	first.Destroy()
	first.Destroy()
	if lib.Live("chart") != 1 {
		t.Fatalf("double destroy must release once, live = %d", lib.Live("chart"))
	}
	if first.HTML() != "" {
		t.Fatal("destroyed chart should render nothing")
	}

	second.Destroy()
	if lib.Live("chart") != 0 {
		t.Fatalf("live = %d, want 0", lib.Live("chart"))
	}
}

func TestSVGZeroValues(t *testing.T) {
	c, err := NewSVG().NewBar("c", BarConfig{Labels: []string{"a", "b"}, Values: []float64{0, 0}})
	if err != nil {
		t.Fatalf("new bar: %v", err)
	}
	if !strings.Contains(string(c.HTML()), `height="0.0"`) {
		t.Fatalf("zero totals should draw empty bars: %s", c.HTML())
	}
}
