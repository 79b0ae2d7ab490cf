package web

import (
	"bytes"
	"errors"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/sweeney/oven-monitor/internal/engine"
)

const (
	chartWidth  = 960
	chartHeight = 360
)

// ErrNotEnoughData is returned when there are fewer than two temperature samples.
var ErrNotEnoughData = errors.New("not enough samples to chart")

var (
	tempColor  = drawing.Color{R: 0, G: 102, B: 204, A: 255}
	boundColor = drawing.Color{R: 136, G: 136, B: 136, A: 255}
	bandColor  = drawing.Color{R: 255, G: 0, B: 0, A: 51}
)

// RenderChart draws the temperature history with the relay-on bands shaded
// red behind it and the current bounds as dashed lines.
func RenderChart(v engine.View, width, height int) ([]byte, error) {
	if len(v.Temperatures) < 2 {
		return nil, ErrNotEnoughData
	}

	xs := make([]time.Time, len(v.Temperatures))
	ys := make([]float64, len(v.Temperatures))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, s := range v.Temperatures {
		xs[i] = s.Time
		ys[i] = s.Value
		lo = math.Min(lo, s.Value)
		hi = math.Max(hi, s.Value)
	}
	first, last := xs[0], xs[len(xs)-1]
	lo = math.Min(lo, math.Min(v.Thresholds.Upper, v.Thresholds.Lower))
	hi = math.Max(hi, math.Max(v.Thresholds.Upper, v.Thresholds.Lower))
	pad := math.Max((hi-lo)*0.1, 1)
	lo, hi = lo-pad, hi+pad

	var series []chart.Series
	for _, b := range v.Bands {
		from, to := b.From, b.To
		if from.Before(first) {
			from = first
		}
		if to.After(last) {
			to = last
		}
		if !to.After(from) {
			continue
		}
		series = append(series, chart.TimeSeries{
			XValues: []time.Time{from, to},
			YValues: []float64{hi, hi},
			Style: chart.Style{
				StrokeColor: drawing.ColorTransparent,
				FillColor:   bandColor,
			},
		})
	}

	series = append(series,
		boundSeries("Upper", first, last, v.Thresholds.Upper),
		boundSeries("Lower", first, last, v.Thresholds.Lower),
		chart.TimeSeries{
			Name:    "Temperature",
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: tempColor,
				StrokeWidth: 2,
			},
		},
	)

	ch := chart.Chart{
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeMinuteValueFormatter},
		YAxis:      chart.YAxis{Name: "°C", Range: &chart.ContinuousRange{Min: lo, Max: hi}},
		Series:     series,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func boundSeries(name string, from, to time.Time, y float64) chart.TimeSeries {
	return chart.TimeSeries{
		Name:    name,
		XValues: []time.Time{from, to},
		YValues: []float64{y, y},
		Style: chart.Style{
			StrokeColor:     boundColor,
			StrokeWidth:     1,
			StrokeDashArray: []float64{5, 5},
		},
	}
}
