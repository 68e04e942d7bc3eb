// Package charts renders analytics buckets as PNG images.
package charts

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"fintrack/internal/core"
)

const (
	width  = 1000
	height = 600
)

var (
	incomeColor  = chart.ColorGreen
	expenseColor = chart.ColorRed
)

// ValueFormatter formats axis and slice values, e.g. "1 200 ₽".
type ValueFormatter func(v float64) string

func defaultFormatter(v float64) string {
	return fmt.Sprintf("%.0f₽", v)
}

// Renderer draws category and timeline charts.
type Renderer struct {
	format ValueFormatter
}

func NewRenderer(format ValueFormatter) *Renderer {
	if format == nil {
		format = defaultFormatter
	}
	return &Renderer{format: format}
}

func background() chart.Style {
	return chart.Style{
		Padding: chart.Box{
			Top:    50,
			Left:   50,
			Right:  50,
			Bottom: 50,
		},
		FillColor: chart.ColorWhite,
	}
}

// Categories renders expense buckets as a pie chart. No buckets means no
// image: it returns nil, nil.
func (r *Renderer) Categories(buckets []core.CategoryBucket) ([]byte, error) {
	if len(buckets) == 0 {
		return nil, nil
	}

	values := make([]chart.Value, 0, len(buckets))
	for _, b := range buckets {
		v := b.Value.InexactFloat64()
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s: %s", b.Name, r.format(v)),
			Value: v,
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		})
	}

	pie := chart.PieChart{
		Title:      "Расходы по категориям",
		Width:      height,
		Height:     height,
		Values:     values,
		Background: background(),
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render category chart: %w", err)
	}
	return buf.Bytes(), nil
}

// Timeline renders income and expense per bucket as two lines over the
// bucket labels. No buckets means no image.
func (r *Renderer) Timeline(buckets []core.TimelineBucket) ([]byte, error) {
	if len(buckets) == 0 {
		return nil, nil
	}

	xs := make([]float64, len(buckets))
	income := make([]float64, len(buckets))
	expense := make([]float64, len(buckets))
	ticks := make([]chart.Tick, len(buckets))
	top := 0.0
	for i, b := range buckets {
		xs[i] = float64(i)
		income[i] = b.Income.InexactFloat64()
		expense[i] = b.Expense.InexactFloat64()
		ticks[i] = chart.Tick{Value: float64(i), Label: b.Key}
		top = max(top, income[i], expense[i])
	}
	if top == 0 {
		top = 1
	}

	graph := chart.Chart{
		Width:      width,
		Height:     height,
		Background: background(),
		XAxis: chart.XAxis{
			Ticks: ticks,
			// Explicit ranges keep a single bucket or an all-zero series drawable.
			Range: &chart.ContinuousRange{Min: -0.5, Max: float64(len(buckets)) - 0.5},
			Style: chart.Style{FontSize: 11, FontColor: chart.ColorBlack},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return r.format(f)
				}
				return ""
			},
			Style: chart.Style{FontSize: 11, FontColor: chart.ColorBlack},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Доходы",
				XValues: xs,
				YValues: income,
				Style: chart.Style{
					StrokeColor: incomeColor,
					StrokeWidth: 3,
					DotColor:    incomeColor,
					DotWidth:    4,
				},
			},
			chart.ContinuousSeries{
				Name:    "Расходы",
				XValues: xs,
				YValues: expense,
				Style: chart.Style{
					StrokeColor: expenseColor,
					StrokeWidth: 3,
					DotColor:    expenseColor,
					DotWidth:    4,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph, chart.Style{FontSize: 12, FontColor: chart.ColorBlack}),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render timeline chart: %w", err)
	}
	return buf.Bytes(), nil
}
