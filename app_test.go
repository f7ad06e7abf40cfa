package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwv/stickymesh/board"
)

// sampleExport has two well separated clusters: a labeled one scoring 50
// and an unlabeled one scoring 58.
const sampleExport = `ID,Text,BG Color,Position X,Position Y
t1,Alpha,#86E6D9,0,0
p1,Deploys,#FFFFFF,20,0
n1,Fast pipeline.,#459C5B,0,10
n2,Okay reviews,#FCF281,20,10
n3,Flaky tests,#E95E5E,10,20
m1,Slow builds,#FFC061,1000,1000
m2,Standups are fine,#FCF281,1010,1000
m3,Great pairing sessions,#459C5B,1005,1010
`

func writeExport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newTestApp(t *testing.T, dir string) (*App, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	app := NewApp()
	app.ApplyOptions(AppOptions{DataDir: dir, ConfigFile: "config.yaml", Parallel: 2})
	app.Out = &out
	return app, &out
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	if app == nil {
		t.Fatal("NewApp returned nil")
		return
	}
	if app.StateTracker == nil {
		t.Error("StateTracker should be initialized")
	}
	if app.Out == nil {
		t.Error("Out should default to stdout")
	}
}

func TestApplyOptions(t *testing.T) {
	app := NewApp()
	opts := AppOptions{
		DataDir:      "/test/data",
		ConfigFile:   "test-config.yaml",
		CSVOut:       "out.csv",
		JSONOut:      "out.json",
		GeoJSONOut:   "out.geojson",
		RenderOut:    "out.svg",
		RenderFormat: "svg",
		DBPath:       "runs.db",
		Parallel:     3,
		HttpPort:     8080,
		MqttMode:     true,
		HttpMode:     false,
	}

	app.ApplyOptions(opts)

	if app.DataDir != "/test/data" {
		t.Errorf("DataDir = %s, want /test/data", app.DataDir)
	}
	if app.ConfigFile != "test-config.yaml" {
		t.Errorf("ConfigFile = %s, want test-config.yaml", app.ConfigFile)
	}
	if app.CSVOut != "out.csv" || app.JSONOut != "out.json" || app.GeoJSONOut != "out.geojson" {
		t.Errorf("outputs not applied: %s %s %s", app.CSVOut, app.JSONOut, app.GeoJSONOut)
	}
	if app.RenderOut != "out.svg" || app.RenderFormat != "svg" {
		t.Errorf("render options not applied: %s %s", app.RenderOut, app.RenderFormat)
	}
	if app.DBPath != "runs.db" {
		t.Errorf("DBPath = %s, want runs.db", app.DBPath)
	}
	if app.Parallel != 3 {
		t.Errorf("Parallel = %d, want 3", app.Parallel)
	}
	if app.HttpPort != 8080 {
		t.Errorf("HttpPort = %d, want 8080", app.HttpPort)
	}
	if !app.MqttMode {
		t.Error("MqttMode should be true")
	}
	if app.HttpMode {
		t.Error("HttpMode should be false")
	}
}

func TestLoadConfig_MissingDefaultUsesDefaults(t *testing.T) {
	app, _ := newTestApp(t, t.TempDir())
	require.NoError(t, app.loadConfig())
	assert.Equal(t, board.DefaultFallbackTeam, app.Config.Labels.FallbackTeam)
	assert.NotNil(t, app.Pipeline)
}

func TestLoadConfig_MissingExplicitFileFails(t *testing.T) {
	app, _ := newTestApp(t, t.TempDir())
	app.ConfigFile = filepath.Join(t.TempDir(), "nope.yaml")
	assert.Error(t, app.loadConfig())
}

func TestLoadConfig_FromDataDir(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "config.yaml", "labels:\n  fallbackTeam: Nobody\n  fallbackTopic: Nothing\n")

	app, _ := newTestApp(t, dir)
	require.NoError(t, app.loadConfig())
	assert.Equal(t, "Nobody", app.Config.Labels.FallbackTeam)
	assert.Equal(t, "Nothing", app.Config.Labels.FallbackTopic)
}

func TestRunAnalyze_Report(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "retro.csv", sampleExport)

	app, out := newTestApp(t, dir)
	require.NoError(t, app.RunAnalyze([]string{path}))

	report := out.String()
	assert.Contains(t, report, "Board retro")
	assert.Contains(t, report, "Group Alpha-Deploys")
	assert.Contains(t, report, "NO ID GENERATED FOR Group #1")
	assert.Contains(t, report, "Alpha-Deploys: 50\n")
	assert.Contains(t, report, "Group #1: 58\n")
	assert.Contains(t, report, "3 total responses")
}

func TestRunAnalyze_DefaultInputsFromDataDir(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "retro.csv", sampleExport)

	app, out := newTestApp(t, dir)
	require.NoError(t, app.RunAnalyze(nil))
	assert.Contains(t, out.String(), "Alpha-Deploys: 50")
}

func TestRunAnalyze_NoInputs(t *testing.T) {
	app, _ := newTestApp(t, t.TempDir())
	err := app.RunAnalyze(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no *.csv exports")
}

func TestRunAnalyze_InvalidExport(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "bad.csv", "ID,Text,BG Color,Position X,Position Y\nx1,hi,#123456,0,0\n")

	app, _ := newTestApp(t, dir)
	err := app.RunAnalyze([]string{path})
	require.Error(t, err)
	assert.ErrorIs(t, err, board.ErrUnmappedColor)
}

func TestRunAnalyze_WritesOutputs(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "retro.csv", sampleExport)
	outDir := filepath.Join(dir, "out")

	app, _ := newTestApp(t, dir)
	app.CSVOut = filepath.Join(outDir, "report.csv")
	app.JSONOut = filepath.Join(outDir, "run.json")
	app.GeoJSONOut = filepath.Join(outDir, "groups.geojson")
	app.RenderOut = filepath.Join(outDir, "board.svg")
	require.NoError(t, app.RunAnalyze([]string{path}))

	f, err := os.Open(app.CSVOut)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "group_id", records[0][1])
	assert.Equal(t, "Alpha-Deploys", records[1][1])
	assert.Equal(t, "50", records[1][5])

	snap, err := board.LoadSnapshot(app.JSONOut)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "retro", snap.Board)
	assert.Len(t, snap.Analyses, 2)

	data, err := os.ReadFile(app.GeoJSONOut)
	require.NoError(t, err)
	var fc map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])

	svg, err := os.ReadFile(app.RenderOut)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
}

func TestRunAnalyze_MultipleBoardsSuffixOutputs(t *testing.T) {
	dir := t.TempDir()
	a := writeExport(t, dir, "alpha.csv", sampleExport)
	b := writeExport(t, dir, "beta.csv", sampleExport)

	app, out := newTestApp(t, dir)
	app.CSVOut = filepath.Join(dir, "report.csv")
	require.NoError(t, app.RunAnalyze([]string{a, b}))

	assert.FileExists(t, filepath.Join(dir, "report-alpha.csv"))
	assert.FileExists(t, filepath.Join(dir, "report-beta.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "report.csv"))

	// reports are printed in input order
	report := out.String()
	assert.Less(t, strings.Index(report, "Board alpha"), strings.Index(report, "Board beta"))
}

func TestRunAnalyze_HistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeExport(t, dir, "retro.csv", sampleExport)
	dbPath := filepath.Join(dir, "history", "runs.db")

	app, _ := newTestApp(t, dir)
	app.DBPath = dbPath
	require.NoError(t, app.RunAnalyze([]string{path}))
	require.NoError(t, app.RunAnalyze([]string{path}))
	assert.Nil(t, app.Store, "store should be closed after the run")

	var out bytes.Buffer
	app.Out = &out
	require.NoError(t, app.RunHistory("retro"))
	assert.Contains(t, out.String(), "2 run(s) of retro")
	assert.Contains(t, out.String(), "Alpha-Deploys: 50")
}

func TestRunHistory_NoDatabase(t *testing.T) {
	app, _ := newTestApp(t, t.TempDir())
	err := app.RunHistory("retro")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no history database")
}

func TestRunHistory_UnknownBoard(t *testing.T) {
	dir := t.TempDir()
	app, out := newTestApp(t, dir)
	app.DBPath = filepath.Join(dir, "runs.db")
	require.NoError(t, app.RunHistory("ghost"))
	assert.Contains(t, out.String(), "No runs stored for ghost")
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		path  string
		board string
		multi bool
		want  string
	}{
		{"report.csv", "retro", false, "report.csv"},
		{"report.csv", "retro", true, "report-retro.csv"},
		{"out/board.svg", "b1", true, "out/board-b1.svg"},
		{"noext", "b1", true, "noext-b1"},
	}
	for _, tt := range tests {
		if got := outputPath(tt.path, tt.board, tt.multi); got != tt.want {
			t.Errorf("outputPath(%q, %q, %v) = %q, want %q", tt.path, tt.board, tt.multi, got, tt.want)
		}
	}
}

func TestRenderFormat(t *testing.T) {
	tests := []struct {
		format, path, want string
	}{
		{"", "board.svg", "svg"},
		{"", "board.PNG", "png"},
		{"", "board", "svg"},
		{"png", "board.svg", "png"},
	}
	for _, tt := range tests {
		if got := renderFormat(tt.format, tt.path); got != tt.want {
			t.Errorf("renderFormat(%q, %q) = %q, want %q", tt.format, tt.path, got, tt.want)
		}
	}
}

func TestHandleExport_UpdatesStateAndPublishes(t *testing.T) {
	dir := t.TempDir()
	app, _ := newTestApp(t, dir)
	require.NoError(t, app.loadConfig())

	mock := board.NewMockClient()
	mock.SetConnected(true)
	app.Publisher = board.NewPublisher(mock, "test")

	app.handleExport("retro", []byte(sampleExport))

	res, ok := app.StateTracker.Get("retro")
	require.True(t, ok)
	assert.Equal(t, "mqtt", res.Source)
	assert.Len(t, res.Analyses, 2)

	retained := mock.RetainedTopics()
	assert.Contains(t, retained, "test/retro/analyses")
	assert.Contains(t, retained, "test/retro/groups/0")
	assert.Contains(t, retained, "test/retro/groups/1")
}

func TestHandleExport_InvalidPayloadIgnored(t *testing.T) {
	app, _ := newTestApp(t, t.TempDir())
	require.NoError(t, app.loadConfig())

	app.handleExport("retro", []byte("not,a,board\n1,2,3\n"))

	_, ok := app.StateTracker.Get("retro")
	assert.False(t, ok)
}
