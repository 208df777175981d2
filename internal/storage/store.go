// Package storage persists brews and Pareto fronts as a directory per run:
// metadata.json plus a CSV body.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/optim"
	"github.com/san-kum/brewsim/internal/pipeline"
)

const (
	metadataFile = "metadata.json"
	traceFile    = "trace.csv"
	frontFile    = "front.csv"
)

// Run kinds.
const (
	KindRun      = "run"
	KindStage    = "stage"
	KindOptimize = "optimize"
)

var ErrNoTrace = errors.New("storage: run has no trace")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type StageSummary struct {
	Stage    string  `json:"stage"`
	Duration float64 `json:"duration"`
	Steps    int     `json:"steps"`
	Clamps   int     `json:"clamps"`
}

type RunMetadata struct {
	ID          string                        `json:"id"`
	Kind        string                        `json:"kind"`
	Name        string                        `json:"name,omitempty"`
	Timestamp   time.Time                     `json:"timestamp"`
	Integrator  string                        `json:"integrator"`
	Initial     map[string]float64            `json:"initial,omitempty"`
	Params      map[string]map[string]float64 `json:"params,omitempty"`
	Metrics     map[string]float64            `json:"metrics,omitempty"`
	Stages      []StageSummary                `json:"stages,omitempty"`
	Variables   []string                      `json:"variables,omitempty"`
	Objectives  []string                      `json:"objectives,omitempty"`
	Generations int                           `json:"generations,omitempty"`
	Reason      string                        `json:"reason,omitempty"`
	Hypervolume float64                       `json:"hypervolume,omitempty"`
	FrontSize   int                           `json:"front_size,omitempty"`
}

// Summarize fills the per-stage summary and metrics of a pipeline result.
func (m *RunMetadata) Summarize(res *pipeline.Result) {
	m.Metrics = res.Metrics
	m.Stages = make([]StageSummary, len(res.Stages))
	for i, sr := range res.Stages {
		m.Stages[i] = StageSummary{Stage: sr.Stage, Duration: sr.Duration, Steps: sr.Steps, Clamps: len(sr.Clamps)}
	}
}

func (s *Store) create(meta *RunMetadata) (string, error) {
	if meta.Kind == "" {
		meta.Kind = KindRun
	}
	meta.ID = fmt.Sprintf("%s_%s", meta.Kind, uuid.NewString()[:8])
	meta.Timestamp = time.Now().UTC()

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}
	return runDir, nil
}

// SaveRun writes the metadata and the stage-tagged trace, one row per
// record, and returns the new run id.
func (s *Store) SaveRun(meta RunMetadata, records []pipeline.Record) (string, error) {
	runDir, err := s.create(&meta)
	if err != nil {
		return "", err
	}

	header := append([]string{"stage", "time", "stage_time"}, dynamo.FieldNames()...)
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, 0, len(header))
		row = append(row, rec.Stage, formatFloat(rec.Time), formatFloat(rec.StageTime))
		for _, v := range rec.State {
			row = append(row, formatFloat(v))
		}
		rows = append(rows, row)
	}
	if err := writeCSV(filepath.Join(runDir, traceFile), header, rows); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// SaveFront writes the optimisation summary and the first front, one row
// per candidate: decision variables, objectives, total violation.
func (s *Store) SaveFront(meta RunMetadata, res *optim.Result) (string, error) {
	meta.Kind = KindOptimize
	meta.Generations = res.Generations
	meta.Reason = res.Reason
	meta.Hypervolume = res.Hypervolume()
	meta.FrontSize = len(res.Front)
	runDir, err := s.create(&meta)
	if err != nil {
		return "", err
	}

	header := append(append([]string(nil), meta.Variables...), meta.Objectives...)
	header = append(header, "violation")
	rows := make([][]string, 0, len(res.Front))
	for i := range res.Front {
		c := &res.Front[i]
		row := make([]string, 0, len(header))
		for _, v := range c.Params {
			row = append(row, formatFloat(v))
		}
		for _, v := range c.Objectives {
			row = append(row, formatFloat(v))
		}
		row = append(row, formatFloat(c.Violation()))
		rows = append(rows, row)
	}
	if err := writeCSV(filepath.Join(runDir, frontFile), header, rows); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// List returns every readable run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrace reads back the records written by SaveRun.
func (s *Store) LoadTrace(runID string) ([]pipeline.Record, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, traceFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoTrace, runID)
		}
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("%w: %s", ErrNoTrace, runID)
	}

	records := make([]pipeline.Record, 0, len(rows)-1)
	for line, row := range rows[1:] {
		if len(row) != 3+dynamo.NumFields {
			return nil, fmt.Errorf("run %s line %d: expected %d columns, got %d", runID, line+2, 3+dynamo.NumFields, len(row))
		}
		nums := make([]float64, len(row)-1)
		for j, cell := range row[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s line %d: %w", runID, line+2, err)
			}
			nums[j] = v
		}
		records = append(records, pipeline.Record{
			Stage:     row[0],
			Time:      nums[0],
			StageTime: nums[1],
			State:     dynamo.State(nums[2:]),
		})
	}
	return records, nil
}
