package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/brewsim/internal/dynamo"
	"github.com/san-kum/brewsim/internal/optim"
	"github.com/san-kum/brewsim/internal/pipeline"
	"github.com/san-kum/brewsim/internal/stages"
)

func sampleRecords() []pipeline.Record {
	a := dynamo.NewState()
	a[dynamo.Temperature] = 18
	a[dynamo.Mass] = 5
	b := a.Clone()
	b[dynamo.Temperature] = 66.25
	b[dynamo.Volume] = 15
	b[dynamo.Sugar] = 1.0 / 3.0
	return []pipeline.Record{
		{Stage: stages.MillingStage, Time: 0, StageTime: 0, State: a},
		{Stage: stages.MashingStage, Time: 0.1, StageTime: 0, State: a},
		{Stage: stages.MashingStage, Time: 0.6, StageTime: 0.5, State: b},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	meta := RunMetadata{
		Name:       "pale_ale",
		Integrator: "rk45",
		Metrics:    map[string]float64{"energy": 1.5},
		Params:     stages.DefaultParameterSet().Map(),
	}
	runID, err := st.SaveRun(meta, sampleRecords())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if !strings.HasPrefix(runID, KindRun+"_") {
		t.Errorf("unexpected run id %q", runID)
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Name != "pale_ale" || loaded.Kind != KindRun {
		t.Errorf("unexpected metadata %+v", loaded)
	}
	if loaded.Metrics["energy"] != 1.5 {
		t.Errorf("expected energy 1.5, got %f", loaded.Metrics["energy"])
	}
	if loaded.Params["mashing"]["rest_temp"] != 66 {
		t.Errorf("params not stored: %v", loaded.Params["mashing"])
	}

	replay := stages.DefaultParameterSet()
	replay.Mashing.RestTemp = 60
	if err := replay.Apply(loaded.Params); err != nil {
		t.Fatalf("apply stored params: %v", err)
	}
	if replay != stages.DefaultParameterSet() {
		t.Errorf("stored params did not restore the parameter set")
	}

	records, err := st.LoadTrace(runID)
	if err != nil {
		t.Fatalf("load trace failed: %v", err)
	}
	want := sampleRecords()
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i := range want {
		if records[i].Stage != want[i].Stage || records[i].Time != want[i].Time || records[i].StageTime != want[i].StageTime {
			t.Errorf("record %d: got %+v", i, records[i])
		}
		for f, v := range want[i].State {
			if records[i].State[f] != v {
				t.Errorf("record %d %s: got %v want %v", i, dynamo.Field(f), records[i].State[f], v)
			}
		}
	}
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	runs, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected 0 runs, got %d", len(runs))
	}

	first, _ := st.SaveRun(RunMetadata{}, sampleRecords())
	second, _ := st.SaveRun(RunMetadata{Kind: KindStage}, sampleRecords()[:1])

	runs, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("expected newest first, got %s, %s", runs[0].ID, runs[1].ID)
	}

	missing, err := New(filepath.Join(t.TempDir(), "nope")).List()
	if err != nil || len(missing) != 0 {
		t.Errorf("missing dir should list empty, got %v %v", missing, err)
	}
}

func TestStoreFileStructure(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	runID, err := st.SaveRun(RunMetadata{}, sampleRecords())
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, name := range []string{metadataFile, traceFile} {
		if _, err := os.Stat(filepath.Join(dir, runID, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, runID, traceFile))
	if err != nil {
		t.Fatal(err)
	}
	header := strings.SplitN(string(data), "\n", 2)[0]
	if !strings.HasPrefix(header, "stage,time,stage_time,temperature,sugar") {
		t.Errorf("unexpected header %q", header)
	}
}

func TestSaveFront(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)

	res := &optim.Result{
		Front: []optim.Candidate{
			{Params: []float64{64, 40}, Objectives: []float64{-900, 12}, Feasible: true},
			{Params: []float64{68, 90}, Objectives: []float64{-850, 9}, Feasible: true},
		},
		Generations: 12,
		Reason:      optim.ReasonConverged,
		Reference:   []float64{0, 20},
	}
	meta := RunMetadata{
		Variables:  []string{"mashing.rest_temp", "boiling.hop_dose"},
		Objectives: []string{"neg_yield", "energy"},
	}
	runID, err := st.SaveFront(meta, res)
	if err != nil {
		t.Fatalf("save front failed: %v", err)
	}

	loaded, err := st.Load(runID)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Kind != KindOptimize || loaded.FrontSize != 2 || loaded.Reason != optim.ReasonConverged {
		t.Errorf("unexpected metadata %+v", loaded)
	}
	if loaded.Hypervolume <= 0 {
		t.Errorf("expected positive hypervolume, got %v", loaded.Hypervolume)
	}

	data, err := os.ReadFile(filepath.Join(dir, runID, frontFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "mashing.rest_temp,boiling.hop_dose,neg_yield,energy,violation" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "64,40,-900,12,0" {
		t.Errorf("unexpected row %q", lines[1])
	}

	_, err = st.LoadTrace(runID)
	if !errors.Is(err, ErrNoTrace) {
		t.Errorf("expected ErrNoTrace, got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	meta := &RunMetadata{ID: "run_1", Kind: KindRun}
	if err := ExportJSON(&buf, meta, sampleRecords()); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	var out ExportData
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if out.Steps != 3 || len(out.Records) != 3 {
		t.Errorf("expected 3 records, got %d", out.Steps)
	}
	if out.Final["temperature"] != 66.25 {
		t.Errorf("unexpected final state %v", out.Final)
	}
	if out.Run == nil || out.Run.ID != "run_1" {
		t.Errorf("metadata missing: %+v", out.Run)
	}
	if len(out.Fields) != dynamo.NumFields {
		t.Errorf("expected %d fields, got %d", dynamo.NumFields, len(out.Fields))
	}

	path := filepath.Join(t.TempDir(), "trace.json")
	if err := ExportJSONFile(path, meta, sampleRecords()); err != nil {
		t.Fatalf("export file failed: %v", err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("export file not written: %v", err)
	}
}
