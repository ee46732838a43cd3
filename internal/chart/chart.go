// Package chart defines the bar-chart capability the dashboard draws with and
// ships an inline SVG implementation of it.
package chart

import (
	"errors"
	"html/template"
)

// BarConfig describes a single-dataset bar chart.
type BarConfig struct {
	DatasetLabel string
	Labels       []string
	Values       []float64
	// Colors holds one fill per bar; empty means DefaultColor everywhere.
	Colors     []string
	ShowLegend bool
	// Responsive charts scale with their container instead of using a fixed size.
	Responsive bool
}

// Chart is a live chart bound to a canvas. Destroy releases it; a destroyed
// chart renders nothing.
type Chart interface {
	HTML() template.HTML
	Destroy()
}

// Library creates charts on a canvas identified by its element id.
type Library interface {
	NewBar(canvasID string, cfg BarConfig) (Chart, error)
}

const DefaultColor = "rgba(59, 130, 246, 0.7)"

var ErrShapeMismatch = errors.New("chart: labels, values and colors must have the same length")

func (c BarConfig) validate() error {
	if len(c.Labels) != len(c.Values) {
		return ErrShapeMismatch
	}
	if len(c.Colors) != 0 && len(c.Colors) != len(c.Values) {
		return ErrShapeMismatch
	}
	return nil
}

func (c BarConfig) color(i int) string {
	if len(c.Colors) == 0 {
		return DefaultColor
	}
	return c.Colors[i]
}
