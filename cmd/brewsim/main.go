package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/san-kum/brewsim/internal/config"
	"github.com/san-kum/brewsim/internal/experiment"
	"github.com/san-kum/brewsim/internal/storage"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	integrator string
	noSave     bool
	exportPath string
	exportOut  string
	saveConfig string
	paramsFrom string
	// optimize
	population  int
	generations int
	seed        int64
	workers     int
	metricsAddr string
	// sweep
	lower  float64
	upper  float64
	points int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "brewsim",
		Short: "brewing process simulator and recipe optimizer",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level: %s", logLevel)
			}
			logrus.SetLevel(level)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".brewsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "recipe preset (see presets)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&integrator, "integrator", "", "override integrator (rk45, dopri5, rk4)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "brew once from milling to conditioning",
		Args:  cobra.NoArgs,
		RunE:  runBrew,
	}
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().StringVar(&exportPath, "export", "", "also write the trace as JSON to this path")
	runCmd.Flags().StringVar(&saveConfig, "save-config", "", "write the resolved config as yaml to this path")
	rootCmd.PersistentFlags().StringVar(&paramsFrom, "params-from", "", "start from the parameters of a stored run")

	stageCmd := &cobra.Command{
		Use:   "stage [name]",
		Short: "run a single stage from the state it receives in a full brew",
		Args:  cobra.ExactArgs(1),
		RunE:  runStage,
	}
	stageCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	optimizeCmd := &cobra.Command{
		Use:   "optimize",
		Short: "search the recipe space with NSGA-II",
		Args:  cobra.NoArgs,
		RunE:  runOptimize,
	}
	optimizeCmd.Flags().IntVar(&population, "pop", 0, "population size (0 keeps config)")
	optimizeCmd.Flags().IntVar(&generations, "gens", 0, "max generations (0 keeps config)")
	optimizeCmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 keeps config)")
	optimizeCmd.Flags().IntVar(&workers, "workers", -1, "parallel evaluations (0 = one per CPU, -1 keeps config)")
	optimizeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while searching")

	sweepCmd := &cobra.Command{
		Use:   "sweep [stage.param]",
		Short: "grid-sweep one coefficient against the first objective",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	sweepCmd.Flags().Float64Var(&lower, "lower", 0, "lower bound")
	sweepCmd.Flags().Float64Var(&upper, "upper", 0, "upper bound")
	sweepCmd.Flags().IntVar(&points, "points", 5, "grid points")
	_ = sweepCmd.MarkFlagRequired("lower")
	_ = sweepCmd.MarkFlagRequired("upper")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id] [field]",
		Short: "plot a stored trace",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  plotRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list recipe presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Printf("  %-10s %s\n", name, config.Presets[name].Description)
			}
			return nil
		},
	}

	componentsCmd := &cobra.Command{
		Use:   "components",
		Short: "list stages, integrators, objectives and constraints",
		Args:  cobra.NoArgs,
		RunE:  listComponents,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored trace to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output path (- for stdout)")

	rootCmd.AddCommand(runCmd, stageCmd, optimizeCmd, sweepCmd, listCmd, plotCmd, presetsCmd, componentsCmd, exportJSONCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves --config, --preset and --params-from into an
// experiment. A preset is the base that a config file overlays, and stored
// run parameters override both.
func loadConfig() (*config.Config, *experiment.Experiment, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	switch {
	case configFile != "" && preset == "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	case configFile != "":
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, nil, err
		}
		loaded, err := config.ParseOnto(cfg, data)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if integrator != "" {
		cfg.Integrator = integrator
	}
	if paramsFrom != "" {
		meta, err := storage.New(dataDir).Load(paramsFrom)
		if err != nil {
			return nil, nil, err
		}
		if err := cfg.Params.Apply(meta.Params); err != nil {
			return nil, nil, fmt.Errorf("params of %s: %w", paramsFrom, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	ec, err := cfg.Experiment()
	if err != nil {
		return nil, nil, err
	}
	return cfg, experiment.New(ec), nil
}
