package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/pipeline"
)

// DefaultPlotFields are plotted when no field is requested.
var DefaultPlotFields = []dynamo.Field{
	dynamo.Temperature,
	dynamo.Sugar,
	dynamo.Ethanol,
	dynamo.Volume,
	dynamo.IsoAlpha,
	dynamo.CO2,
}

// Resample picks n values of one field at evenly spaced global times,
// holding the last record before each time.
func Resample(records []pipeline.Record, f dynamo.Field, n int) []float64 {
	if len(records) == 0 || n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{records[len(records)-1].State[f]}
	}
	start, end := records[0].Time, records[len(records)-1].Time
	out := make([]float64, n)
	j := 0
	for i := range out {
		t := start + (end-start)*float64(i)/float64(n-1)
		for j+1 < len(records) && records[j+1].Time <= t {
			j++
		}
		out[i] = records[j].State[f]
	}
	return out
}

// Plot draws one field over the whole brew.
func Plot(records []pipeline.Record, f dynamo.Field, width, height int) string {
	data := Resample(records, f, width)
	if len(data) == 0 {
		return ""
	}
	caption := fmt.Sprintf("%s vs time (h)", f)
	if len(records) > 0 {
		caption += fmt.Sprintf(", %.1f h", records[len(records)-1].Time-records[0].Time)
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// StageBoundaries lists each stage with its global start time.
func StageBoundaries(records []pipeline.Record) string {
	var b strings.Builder
	last := ""
	for _, rec := range records {
		if rec.Stage == last {
			continue
		}
		last = rec.Stage
		fmt.Fprintf(&b, "%s@%.1fh ", rec.Stage, rec.Time)
	}
	return strings.TrimSpace(b.String())
}
