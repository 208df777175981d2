package viz

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/optim"
	"github.com/san-kum/brewsim/internal/pipeline"
)

// Metrics renders name/value pairs sorted by name.
func Metrics(m map[string]float64) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s %s\n", MetricLabel.Render(fmt.Sprintf("%-24s", name)), MetricValue.Render(fmt.Sprintf("%.4g", m[name])))
	}
	return b.String()
}

// Stages tabulates a brew stage by stage.
func Stages(res *pipeline.Result) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tHOURS\tSTEPS\tCLAMPS\tTEMP\tSUGAR\tETHANOL\tVOLUME")
	for _, sr := range res.Stages {
		x := sr.Final
		fmt.Fprintf(w, "%s\t%.2f\t%d\t%d\t%.1f\t%.1f\t%.1f\t%.2f\n",
			sr.Stage, sr.Duration, sr.Steps, len(sr.Clamps),
			x[dynamo.Temperature], x[dynamo.Sugar], x[dynamo.Ethanol], x[dynamo.Volume])
	}
	w.Flush()
	return b.String()
}

// Front tabulates a Pareto front under variable and objective headings.
func Front(variables, objectives []string, front []optim.Candidate) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(append(append([]string{"#"}, variables...), objectives...), "\t")))
	for i := range front {
		cells := []string{fmt.Sprint(i)}
		for _, v := range front[i].Params {
			cells = append(cells, fmt.Sprintf("%.3g", v))
		}
		for _, v := range front[i].Objectives {
			cells = append(cells, fmt.Sprintf("%.4g", v))
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	return b.String()
}

// Generations summarizes the search progress one line per generation.
func Generations(stats []optim.GenerationStats) string {
	var b strings.Builder
	hv := make([]float64, len(stats))
	for i, s := range stats {
		hv[i] = s.Hypervolume
	}
	fmt.Fprintf(&b, "hypervolume %s\n", Sparkline(hv, 40))
	for _, s := range stats {
		line := fmt.Sprintf("gen %3d  feasible %3d/%-3d  failed %3d  front %3d  hv %.4g",
			s.Generation, s.Feasible, s.Evaluated, s.Failed, s.FrontSize, s.Hypervolume)
		if s.Feasible == 0 {
			line = Warning.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
