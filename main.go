package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions holds the parsed command line
type AppOptions struct {
	ConfigFile   string
	DataDir      string
	CSVOut       string
	JSONOut      string
	GeoJSONOut   string
	RenderOut    string
	RenderFormat string
	DBPath       string
	History      string
	Parallel     int
	MqttMode     bool
	HttpMode     bool
	HttpPort     int
	Debug        bool
}

// Runner is implemented by App; tests substitute a mock
type Runner interface {
	ApplyOptions(opts AppOptions)
	RunAnalyze(inputs []string) error
	RunHistory(boardID string) error
	RunService() error
}

func main() {
	log.SetDefault(log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	}))

	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatal(err)
	}
}

// run parses args and dispatches to the selected mode
func run(args []string, out io.Writer, app Runner) error {
	fs := flag.NewFlagSet("stickymesh", flag.ContinueOnError)
	fs.SetOutput(out)

	var opts AppOptions
	fs.StringVar(&opts.ConfigFile, "config", "config.yaml", "Path to configuration file (defaults apply when missing)")
	fs.StringVar(&opts.DataDir, "data-dir", ".", "Directory searched for *.csv exports when no input is given")
	fs.StringVar(&opts.CSVOut, "csv", "", "Write analyses as CSV to this file")
	fs.StringVar(&opts.JSONOut, "json", "", "Write a JSON snapshot of the run to this file")
	fs.StringVar(&opts.GeoJSONOut, "geojson", "", "Write items, edges and group outlines as GeoJSON to this file")
	fs.StringVar(&opts.RenderOut, "render", "", "Render the clustered board to this file")
	fs.StringVar(&opts.RenderFormat, "format", "", "Render format: svg or png (default: from --render extension)")
	fs.StringVar(&opts.DBPath, "db", "", "SQLite database for run history (overrides config)")
	fs.StringVar(&opts.History, "history", "", "List stored runs of a board and exit")
	fs.IntVar(&opts.Parallel, "parallel", 4, "Number of exports analyzed concurrently")
	fs.BoolVar(&opts.MqttMode, "mqtt", false, "Run as a service analyzing exports received over MQTT")
	fs.BoolVar(&opts.HttpMode, "http", false, "Run the HTTP server")
	fs.IntVar(&opts.HttpPort, "http-port", 8080, "HTTP server port")
	fs.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")
	showVersion := fs.Bool("version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(out, "Usage of stickymesh:\n")
		fmt.Fprintf(out, "  stickymesh [flags] [export.csv | https://... ...]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Fprintf(out, "stickymesh version: %s\n", Version)
		return nil
	}

	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	switch opts.RenderFormat {
	case "", "svg", "png":
	default:
		return fmt.Errorf("unknown --format %q (want svg or png)", opts.RenderFormat)
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}

	app.ApplyOptions(opts)

	if opts.MqttMode || opts.HttpMode {
		fmt.Fprintf(out, "stickymesh version: %s\n", Version)
		fmt.Fprintln(out, "stickymesh service starting...")
		return app.RunService()
	}

	if opts.History != "" {
		return app.RunHistory(opts.History)
	}

	return app.RunAnalyze(fs.Args())
}
