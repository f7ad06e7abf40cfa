package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kwv/stickymesh/board"
)

// maxExportBytes caps the size of an uploaded export
const maxExportBytes = 50 << 20

var boardIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// ingestFunc records a freshly analyzed result
type ingestFunc func(boardID string, res *board.Result)

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>stickymesh</title>
<style>
body{font-family:sans-serif;margin:2em;background:#fafafa}
img{display:block;max-width:100%;margin:1em 0;border:1px solid #ddd}
</style>
</head>
<body>
<h1>stickymesh</h1>
{{range .}}<h2>{{.}}</h2>
<p><a href="/boards/{{.}}/analyses.json">analyses.json</a> · <a href="/boards/{{.}}/report.csv">report.csv</a> · <a href="/boards/{{.}}/groups.geojson">groups.geojson</a></p>
<img src="/boards/{{.}}/board.svg" alt="{{.}}">
{{else}}<p>No boards analyzed yet.</p>
{{end}}</body>
</html>`))

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(stateTracker *board.StateTracker, pipeline *board.Pipeline, ingest ingestFunc) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status     string    `json:"status"`
			Timestamp  time.Time `json:"timestamp"`
			HasResults bool      `json:"hasResults"`
		}{
			Status:     "ok",
			Timestamp:  time.Now(),
			HasResults: stateTracker.HasResults(),
		}
		writeJSON(w, status)
	})

	mux.HandleFunc("GET /boards", func(w http.ResponseWriter, r *http.Request) {
		type boardSummary struct {
			ID        string    `json:"id"`
			Groups    int       `json:"groups"`
			Anomalies int       `json:"anomalies"`
			CreatedAt time.Time `json:"createdAt"`
		}
		boards := []boardSummary{}
		for _, id := range stateTracker.Boards() {
			res, ok := stateTracker.Get(id)
			if !ok {
				continue
			}
			boards = append(boards, boardSummary{
				ID:        id,
				Groups:    len(res.Analyses),
				Anomalies: len(res.Anomalies),
				CreatedAt: res.CreatedAt,
			})
		}
		writeJSON(w, boards)
	})

	mux.HandleFunc("GET /boards/{id}/analyses.json", withResult(stateTracker, func(w http.ResponseWriter, res *board.Result) {
		writeJSON(w, res)
	}))

	mux.HandleFunc("GET /boards/{id}/report.csv", withResult(stateTracker, func(w http.ResponseWriter, res *board.Result) {
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Board+".csv"))
		if err := board.WriteCSV(w, res.Analyses); err != nil {
			log.Error("writing CSV report", "board", res.Board, "err", err)
		}
	}))

	mux.HandleFunc("GET /boards/{id}/groups.geojson", withResult(stateTracker, func(w http.ResponseWriter, res *board.Result) {
		data, err := board.ResultToFeatureCollection(res).MarshalJSON()
		if err != nil {
			http.Error(w, "failed to encode GeoJSON", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(data)
	}))

	// Vector board
	mux.HandleFunc("GET /boards/{id}/board.svg", withResult(stateTracker, func(w http.ResponseWriter, res *board.Result) {
		if len(res.Items) == 0 {
			http.Error(w, "No items to render", http.StatusServiceUnavailable)
			return
		}
		renderer := board.NewBoardRenderer(res, pipeline.Config().Render)
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := renderer.RenderToSVG(w); err != nil {
			log.Error("encoding board SVG", "board", res.Board, "err", err)
		}
	}))

	// Raster board with group captions
	mux.HandleFunc("GET /boards/{id}/board.png", withResult(stateTracker, func(w http.ResponseWriter, res *board.Result) {
		if len(res.Items) == 0 {
			http.Error(w, "No items to render", http.StatusServiceUnavailable)
			return
		}
		renderer := board.NewBoardRenderer(res, pipeline.Config().Render)
		var buf bytes.Buffer
		if err := renderer.RenderToPNG(&buf); err != nil {
			log.Error("encoding board PNG", "board", res.Board, "err", err)
			status := http.StatusInternalServerError
			if errors.Is(err, board.ErrBoardTooLarge) {
				status = http.StatusUnprocessableEntity
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := buf.WriteTo(w); err != nil {
			log.Error("writing board PNG", "board", res.Board, "err", err)
		}
	}))

	mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
		boardID := r.URL.Query().Get("board")
		if !boardIDPattern.MatchString(boardID) {
			http.Error(w, "missing or invalid board parameter", http.StatusBadRequest)
			return
		}

		body := http.MaxBytesReader(w, r.Body, maxExportBytes)
		res, err := pipeline.AnalyzeReader(boardID, body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "export too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res.Source = "http"
		if ingest != nil {
			ingest(boardID, res)
		}
		writeJSON(w, res)
	})

	// Default route lists the analyzed boards
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		if err := indexTemplate.Execute(w, stateTracker.Boards()); err != nil {
			log.Error("rendering index", "err", err)
		}
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug("http request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}

// withResult resolves the {id} path value to the latest result of a board
func withResult(stateTracker *board.StateTracker, next func(http.ResponseWriter, *board.Result)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		res, ok := stateTracker.Get(id)
		if !ok {
			http.Error(w, fmt.Sprintf("No analyses for board %q", id), http.StatusNotFound)
			return
		}
		next(w, res)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("encoding JSON response", "err", err)
	}
}
