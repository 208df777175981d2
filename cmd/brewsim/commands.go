package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/brewsim/internal/config"
	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/experiment"
	"github.com/san-kum/brewsim/internal/optim"
	"github.com/san-kum/brewsim/internal/pipeline"
	"github.com/san-kum/brewsim/internal/stages"
	"github.com/san-kum/brewsim/internal/storage"
	"github.com/san-kum/brewsim/internal/viz"
)

func metadataFor(cfg *config.Config, kind string) storage.RunMetadata {
	return storage.RunMetadata{
		Kind:       kind,
		Name:       cfg.Name,
		Integrator: cfg.Integrator,
		Initial:    cfg.InitialState,
		Params:     cfg.Params.Map(),
	}
}

type stageLogger struct{}

func (stageLogger) OnStage(index int, res *stages.Result) {
	logrus.WithFields(logrus.Fields{
		"stage":  res.Stage,
		"steps":  res.Steps,
		"clamps": len(res.Clamps),
	}).Infof("stage %d/%d complete", index+1, len(stages.Order))
}

func runBrew(cmd *cobra.Command, args []string) error {
	cfg, exp, err := loadConfig()
	if err != nil {
		return err
	}

	if saveConfig != "" {
		if err := config.Save(saveConfig, cfg); err != nil {
			return err
		}
		logrus.Infof("config written to %s", saveConfig)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	start := time.Now()
	res, err := exp.Run(ctx, pipeline.WithObserver(stageLogger{}))
	if err != nil {
		var failure *pipeline.StageFailure
		if errors.As(err, &failure) {
			fmt.Println(viz.Warning.Render(fmt.Sprintf("brew failed in %s at t=%.3fh", failure.Stage, failure.Time)))
		}
		return err
	}

	fmt.Println(viz.Title.Render("brew complete") + viz.Subtle.Render(fmt.Sprintf(" in %s", time.Since(start).Round(time.Millisecond))))
	fmt.Println()
	fmt.Println(viz.HeaderStyle.Render("stages"))
	fmt.Print(viz.Stages(res))
	fmt.Println()
	fmt.Println(viz.HeaderStyle.Render("metrics"))
	fmt.Println(viz.Panel.Render(strings.TrimRight(viz.Metrics(res.Metrics), "\n")))

	meta := metadataFor(cfg, storage.KindRun)
	meta.Summarize(res)
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.SaveRun(meta, res.Records)
		if err != nil {
			return err
		}
		meta.ID = runID
		fmt.Printf("\nsaved: %s\n", runID)
	}
	if exportPath != "" {
		return storage.ExportJSONFile(exportPath, &meta, res.Records)
	}
	return nil
}

func runStage(cmd *cobra.Command, args []string) error {
	cfg, exp, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := exp.RunStage(cmd.Context(), args[0], nil)
	if err != nil {
		return err
	}

	fmt.Println(viz.Title.Render(res.Stage) + viz.Subtle.Render(fmt.Sprintf(" %.2fh, %d steps, %d clamps", res.Duration, res.Steps, len(res.Clamps))))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tIN\tOUT")
	in := res.Samples[0].State
	for _, f := range dynamo.Fields() {
		if in[f] == 0 && res.Final[f] == 0 {
			continue
		}
		fmt.Fprintf(w, "%s\t%.4g\t%.4g\n", f, in[f], res.Final[f])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := metadataFor(cfg, storage.KindStage)
	meta.Stages = []storage.StageSummary{{Stage: res.Stage, Duration: res.Duration, Steps: res.Steps, Clamps: len(res.Clamps)}}
	runID, err := st.SaveRun(meta, pipeline.Records(res, 0))
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved: %s\n", runID)
	return nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if population > 0 {
		cfg.Optimizer.PopulationSize = population
	}
	if generations > 0 {
		cfg.Optimizer.MaxGenerations = generations
	}
	if seed != 0 {
		cfg.Optimizer.Seed = seed
	}
	if workers >= 0 {
		cfg.Optimizer.Workers = workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ec, err := cfg.Experiment()
	if err != nil {
		return err
	}
	exp := experiment.New(ec)

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("metrics server stopped")
			}
		}()
		defer srv.Close()
		logrus.Infof("serving metrics on %s/metrics", metricsAddr)
	}

	total := cfg.Optimizer.MaxGenerations
	exp.OnGeneration(func(s optim.GenerationStats) {
		fmt.Fprintf(os.Stderr, "\r%s gen %d/%d  front %d  hv %.4g ",
			viz.ProgressBar(s.Generation+1, total, 30), s.Generation+1, total, s.FrontSize, s.Hypervolume)
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	res, err := exp.Optimize(ctx)
	fmt.Fprintln(os.Stderr)
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Println(viz.Warning.Render("interrupted: keeping the front found so far"))
	case errors.Is(err, optim.ErrSearchStalled):
		if res == nil || len(res.Front) == 0 {
			if res != nil {
				fmt.Print(viz.Generations(res.Stats))
			}
			return err
		}
		fmt.Println(viz.Warning.Render("search stalled: keeping the front found so far"))
		fmt.Println(viz.Subtle.Render(err.Error()))
	case err != nil:
		return err
	}

	variables := make([]string, len(cfg.Search))
	for i, b := range cfg.Search {
		variables[i] = b.Name
	}
	objectives := exp.ObjectiveNames()

	fmt.Println(viz.Title.Render("pareto front") + viz.Subtle.Render(fmt.Sprintf(" %d candidates after %d generations (%s), hypervolume %.4g",
		len(res.Front), res.Generations, res.Reason, res.Hypervolume())))
	fmt.Println()
	fmt.Print(viz.Front(variables, objectives, res.Front))

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := metadataFor(cfg, storage.KindOptimize)
	meta.Variables = variables
	meta.Objectives = objectives
	runID, err := st.SaveFront(meta, res)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved: %s\n", runID)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	_, exp, err := loadConfig()
	if err != nil {
		return err
	}

	bound := optim.Bound{Name: args[0], Lower: lower, Upper: upper}
	best, all, err := exp.Sweep(cmd.Context(), bound, points)
	if err != nil && !errors.Is(err, optim.ErrSearchStalled) {
		return err
	}

	objectives := exp.ObjectiveNames()
	fmt.Println(viz.Title.Render("sweep "+bound.Name) + viz.Subtle.Render(fmt.Sprintf(" against %s", objectives[0])))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VALUE\tOBJECTIVE\tVIOLATION\tNOTE")
	for _, c := range all {
		note := ""
		switch {
		case c.Failure != "":
			note = c.Failure
		case !c.Feasible:
			note = "infeasible"
		case best != nil && c.Params[0] == best.Params[0]:
			note = "best"
		}
		obj := "-"
		if len(c.Objectives) > 0 {
			obj = fmt.Sprintf("%.4g", c.Objectives[0])
		}
		fmt.Fprintf(w, "%.4g\t%s\t%.3g\t%s\n", c.Params[0], obj, c.Violation(), note)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tNAME\tTIME\tINTEG\tSUMMARY")
	for _, run := range runs {
		summary := ""
		switch run.Kind {
		case storage.KindOptimize:
			summary = fmt.Sprintf("front %d, %d gens, hv %.4g", run.FrontSize, run.Generations, run.Hypervolume)
		default:
			if y, ok := run.Metrics["yield"]; ok {
				summary = fmt.Sprintf("yield %.1f g", y)
			} else if len(run.Stages) == 1 {
				summary = run.Stages[0].Stage
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID,
			run.Kind,
			run.Name,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Integrator,
			summary,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	records, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fields := viz.DefaultPlotFields
	if len(args) > 1 {
		f, ok := dynamo.ParseField(args[1])
		if !ok {
			return fmt.Errorf("unknown field: %s (available: %v)", args[1], dynamo.FieldNames())
		}
		fields = []dynamo.Field{f}
	}

	fmt.Println(viz.Title.Render("run: " + meta.ID))
	fmt.Println(viz.Subtle.Render(viz.StageBoundaries(records)))
	fmt.Println()
	for _, f := range fields {
		fmt.Println(viz.Plot(records, f, 80, 10))
		fmt.Println()
	}
	return nil
}

func listComponents(cmd *cobra.Command, args []string) error {
	_, exp, err := loadConfig()
	if err != nil {
		return err
	}
	reg := exp.Registry()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "stages\t%s\n", strings.Join(reg.ListStages(), ", "))
	fmt.Fprintf(w, "integrators\t%s\n", strings.Join(reg.ListIntegrators(), ", "))
	fmt.Fprintf(w, "objectives\t%s\n", strings.Join(reg.ListObjectives(), ", "))
	fmt.Fprintf(w, "constraints\t%s\n", strings.Join(reg.ListConstraints(), ", "))
	fmt.Fprintf(w, "active\t%s\n", strings.Join(exp.ObjectiveNames(), ", "))
	return w.Flush()
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	records, err := st.LoadTrace(args[0])
	if err != nil {
		return err
	}
	if err := storage.ExportJSONFile(exportOut, meta, records); err != nil {
		return err
	}
	if exportOut != "-" {
		fmt.Printf("exported to %s\n", exportOut)
	}
	return nil
}
