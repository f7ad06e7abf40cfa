package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/kwv/stickymesh/board"
)

// App encapsulates the application state and dependencies
type App struct {
	Config       *board.Config
	Pipeline     *board.Pipeline
	StateTracker *board.StateTracker
	MQTTClient   *board.MQTTClient
	Publisher    *board.Publisher
	Store        *board.Store
	Out          io.Writer

	// CLI flags
	DataDir      string
	ConfigFile   string
	CSVOut       string
	JSONOut      string
	GeoJSONOut   string
	RenderOut    string
	RenderFormat string
	DBPath       string
	Parallel     int
	HttpPort     int
	MqttMode     bool
	HttpMode     bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		StateTracker: board.NewStateTracker(),
		Out:          os.Stdout,
		DataDir:      ".",
		ConfigFile:   "config.yaml",
		Parallel:     1,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.DataDir = opts.DataDir
	a.ConfigFile = opts.ConfigFile
	a.CSVOut = opts.CSVOut
	a.JSONOut = opts.JSONOut
	a.GeoJSONOut = opts.GeoJSONOut
	a.RenderOut = opts.RenderOut
	a.RenderFormat = opts.RenderFormat
	a.DBPath = opts.DBPath
	a.Parallel = opts.Parallel
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig loads the config file and builds the pipeline. A missing
// default config file falls back to the built-in defaults.
func (a *App) loadConfig() error {
	if a.Pipeline != nil {
		return nil
	}

	path := a.ConfigFile
	if path == "" {
		path = "config.yaml"
	}
	if a.DataDir != "" && a.DataDir != "." && path == "config.yaml" {
		path = filepath.Join(a.DataDir, "config.yaml")
	}

	var cfg *board.Config
	if _, err := os.Stat(path); os.IsNotExist(err) && (a.ConfigFile == "" || a.ConfigFile == "config.yaml") {
		log.Info("no config file, using defaults", "path", path)
		cfg = board.DefaultConfig()
	} else {
		loaded, err := board.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log.Info("loaded config", "path", path)
		cfg = loaded
	}

	pipeline, err := board.NewPipeline(cfg, log.Default())
	if err != nil {
		return err
	}
	a.Config = cfg
	a.Pipeline = pipeline
	return nil
}

// openStore opens the history database named by --db or the config
func (a *App) openStore() error {
	if a.Store != nil {
		return nil
	}
	path := a.DBPath
	if path == "" && a.Config != nil {
		path = a.Config.Database
	}
	if path == "" {
		return nil
	}
	store, err := board.OpenStore(path)
	if err != nil {
		return err
	}
	a.Store = store
	log.Debug("opened history database", "path", path)
	return nil
}

func (a *App) closeStore() {
	if a.Store == nil {
		return
	}
	if err := a.Store.Close(); err != nil {
		log.Warn("closing history database", "err", err)
	}
	a.Store = nil
}

// resolveInputs returns the export files and URLs to analyze
func (a *App) resolveInputs(inputs []string) ([]string, error) {
	if len(inputs) > 0 {
		return inputs, nil
	}
	files, err := filepath.Glob(filepath.Join(a.DataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("finding CSV exports: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no *.csv exports found in %s", a.DataDir)
	}
	return files, nil
}

// analyzeInput analyzes one export file or URL
func (a *App) analyzeInput(ctx context.Context, input string) (*board.Result, error) {
	if !board.IsURL(input) {
		return a.Pipeline.AnalyzeFile(input)
	}

	data, err := board.FetchExport(ctx, input)
	if err != nil {
		return nil, err
	}
	res, err := a.Pipeline.AnalyzeReader(board.BoardNameFromURL(input), bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", input, err)
	}
	res.Source = input
	return res, nil
}

// RunAnalyze analyzes every input concurrently, then prints and writes the
// results in input order
func (a *App) RunAnalyze(inputs []string) error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	inputs, err := a.resolveInputs(inputs)
	if err != nil {
		return err
	}

	results := make([]*board.Result, len(inputs))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(a.Parallel)
	for i, input := range inputs {
		g.Go(func() error {
			res, err := a.analyzeInput(ctx, input)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := a.openStore(); err != nil {
		return err
	}
	defer a.closeStore()

	multi := len(results) > 1
	for _, res := range results {
		if err := board.WriteReport(a.Out, res); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		if err := a.writeOutputs(res, multi); err != nil {
			return err
		}
		if a.Store != nil {
			runID, err := a.Store.SaveResult(context.Background(), res.Board, res)
			if err != nil {
				return fmt.Errorf("saving run of %s: %w", res.Board, err)
			}
			log.Info("saved run", "board", res.Board, "run", runID)
		}
	}
	return nil
}

// outputPath suffixes path with the board name when several boards share
// one output flag
func outputPath(path, boardID string, multi bool) string {
	if !multi {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-" + boardID + ext
}

// renderFormat returns the explicit --format or the one implied by path
func renderFormat(format, path string) string {
	if format != "" {
		return format
	}
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return "png"
	}
	return "svg"
}

// writeOutputs writes every file output requested on the command line
func (a *App) writeOutputs(res *board.Result, multi bool) error {
	if a.CSVOut != "" {
		if err := writeFile(outputPath(a.CSVOut, res.Board, multi), func(w io.Writer) error {
			return board.WriteCSV(w, res.Analyses)
		}); err != nil {
			return err
		}
	}

	if a.JSONOut != "" {
		if err := board.SaveSnapshot(outputPath(a.JSONOut, res.Board, multi), res); err != nil {
			return err
		}
	}

	if a.GeoJSONOut != "" {
		if err := writeFile(outputPath(a.GeoJSONOut, res.Board, multi), func(w io.Writer) error {
			data, err := board.ResultToFeatureCollection(res).MarshalJSON()
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		}); err != nil {
			return err
		}
	}

	if a.RenderOut != "" && len(res.Items) > 0 {
		path := outputPath(a.RenderOut, res.Board, multi)
		renderer := board.NewBoardRenderer(res, a.Config.Render)
		if err := writeFile(path, func(w io.Writer) error {
			if renderFormat(a.RenderFormat, path) == "png" {
				return renderer.RenderToPNG(w)
			}
			return renderer.RenderToSVG(w)
		}); err != nil {
			return err
		}
	}

	return nil
}

// writeFile creates path and streams content into it
func writeFile(path string, content func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := content(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	log.Info("wrote output", "path", path)
	return nil
}

// RunHistory lists the stored runs of a board and the scores of the latest
func (a *App) RunHistory(boardID string) error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.openStore(); err != nil {
		return err
	}
	if a.Store == nil {
		return fmt.Errorf("no history database configured (use --db or database: in config)")
	}
	defer a.closeStore()

	ctx := context.Background()
	runs, err := a.Store.ListRuns(ctx, boardID)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(a.Out, "No runs stored for %s\n", boardID)
		return nil
	}

	fmt.Fprintf(a.Out, "%d run(s) of %s\n\n", len(runs), boardID)
	for _, r := range runs {
		fmt.Fprintf(a.Out, "%s  %s  %d items  %d groups  %d anomalies\n",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Items, r.Groups, r.Anomalies)
	}

	latest, err := a.Store.LoadAnalyses(ctx, runs[0].ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "\nLatest scores:\n")
	return board.WriteScoreSummary(a.Out, latest)
}

// handleExport analyzes an export received for a configured board
func (a *App) handleExport(boardID string, payload []byte) {
	res, err := a.Pipeline.AnalyzeReader(boardID, bytes.NewReader(payload))
	if err != nil {
		log.Error("analyzing export", "board", boardID, "err", err)
		return
	}
	res.Source = "mqtt"
	a.ingest(boardID, res)
}

// ingest records a new result: state, history and MQTT
func (a *App) ingest(boardID string, res *board.Result) {
	a.StateTracker.Update(boardID, res)
	log.Info("board analyzed", "board", boardID, "groups", len(res.Analyses), "anomalies", len(res.Anomalies))

	if a.Store != nil {
		if _, err := a.Store.SaveResult(context.Background(), boardID, res); err != nil {
			log.Error("saving run", "board", boardID, "err", err)
		}
	}

	if a.Publisher != nil {
		if err := a.Publisher.PublishResult(boardID, res); err != nil {
			log.Error("publishing analyses", "board", boardID, "err", err)
		}
	}
}

// fetchConfiguredBoards analyzes every board that has an export URL
func (a *App) fetchConfiguredBoards(ctx context.Context) {
	for _, b := range a.Config.Boards {
		if b.URL == "" {
			continue
		}
		data, err := board.FetchExport(ctx, b.URL)
		if err != nil {
			log.Error("fetching board export", "board", b.ID, "err", err)
			continue
		}
		res, err := a.Pipeline.AnalyzeReader(b.ID, bytes.NewReader(data))
		if err != nil {
			log.Error("analyzing board export", "board", b.ID, "err", err)
			continue
		}
		res.Source = b.URL
		a.ingest(b.ID, res)
	}
}

// RunService runs the MQTT and/or HTTP service until interrupted
func (a *App) RunService() error {
	fmt.Fprintln(a.Out, "Starting stickymesh service...")

	if err := a.loadConfig(); err != nil {
		return err
	}
	config := a.Config

	a.StateTracker = board.NewStateTrackerWithCache(filepath.Join(a.DataDir, ".snapshots"))
	if boards := a.StateTracker.Boards(); len(boards) > 0 {
		log.Info("restored snapshots", "boards", strings.Join(boards, ", "))
	}

	if err := a.openStore(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.MqttMode {
		mqttClient, err := board.InitMQTT(config, a.handleExport)
		if err != nil {
			return fmt.Errorf("failed to initialize MQTT: %w", err)
		}
		if mqttClient == nil {
			return fmt.Errorf("MQTT broker not configured in config.yaml")
		}
		a.MQTTClient = mqttClient
		a.Publisher = board.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix)
		fmt.Fprintln(a.Out, "MQTT analyses publisher initialized")
	}

	go a.fetchConfiguredBoards(ctx)

	var server *http.Server
	if a.HttpMode {
		server = &http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", a.HttpPort),
			Handler:           newHTTPServer(a.StateTracker, a.Pipeline, a.ingest),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("starting HTTP server", "addr", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatal("HTTP server error", "err", err)
			}
		}()
	}

	fmt.Fprintln(a.Out, "\nService Running")
	fmt.Fprintln(a.Out, "===============")

	if a.MqttMode {
		fmt.Fprintln(a.Out, "\nMQTT:")
		fmt.Fprintln(a.Out, "  Subscribed topics:")
		for _, b := range config.Boards {
			if b.Topic != "" {
				fmt.Fprintf(a.Out, "    - %s (%s)\n", b.Topic, b.ID)
			}
		}
		prefix := a.Publisher.Prefix()
		fmt.Fprintf(a.Out, "  Publishing to: %s/{board}/analyses\n", prefix)
		fmt.Fprintf(a.Out, "  Per group:     %s/{board}/groups/{n}\n", prefix)
	}

	if a.HttpMode {
		fmt.Fprintf(a.Out, "\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Fprintln(a.Out, "  GET  /health                      - Health check")
		fmt.Fprintln(a.Out, "  GET  /boards                      - Analyzed boards")
		fmt.Fprintln(a.Out, "  GET  /boards/{id}/analyses.json   - Latest analyses")
		fmt.Fprintln(a.Out, "  GET  /boards/{id}/report.csv      - Latest analyses as CSV")
		fmt.Fprintln(a.Out, "  GET  /boards/{id}/groups.geojson  - Items, edges and group outlines")
		fmt.Fprintln(a.Out, "  GET  /boards/{id}/board.svg       - Rendered board")
		fmt.Fprintln(a.Out, "  GET  /boards/{id}/board.png       - Rendered board with captions")
		fmt.Fprintln(a.Out, "  POST /analyze?board={id}          - Analyze a CSV export")
	}

	fmt.Fprintln(a.Out, "\nPress Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Fprintln(a.Out, "\nShutting down service...")
	cancel()
	if server != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = server.Shutdown(shutdownCtx)
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	a.closeStore()
	fmt.Fprintln(a.Out, "Service stopped")
	return nil
}
