// Package chart renders per-user mood history line charts to PNG files.
//
// Each user's chart lives at a fixed path keyed by user id and is
// overwritten on every regeneration. Writes are serialized per user and
// go through a temp-file-then-rename step so a concurrently sent photo
// never reads a partially written image.
package chart

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/habitping/habitping/internal/models"
	"github.com/habitping/habitping/internal/util"
	"github.com/wcharczuk/go-chart/v2"
)

// Constants for chart rendering
const (
	// DefaultChartWidth is the rendered image width in pixels
	DefaultChartWidth = 600
	// DefaultChartHeight is the rendered image height in pixels
	DefaultChartHeight = 300
	// DefaultDirPermissions defines the permissions for the chart directory
	DefaultDirPermissions = 0755
)

// Opts holds configuration options for the renderer.
type Opts struct {
	Dir    string
	Width  int
	Height int
}

// Option defines a configuration option for the renderer.
type Option func(*Opts)

// WithDir sets the directory chart files are written to.
func WithDir(dir string) Option {
	return func(o *Opts) {
		o.Dir = dir
	}
}

// WithSize overrides the rendered image dimensions.
func WithSize(width, height int) Option {
	return func(o *Opts) {
		o.Width = width
		o.Height = height
	}
}

// Renderer renders mood charts into a local data directory.
type Renderer struct {
	dir    string
	width  int
	height int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRenderer creates a renderer writing into the configured directory,
// creating it if needed.
func NewRenderer(opts ...Option) (*Renderer, error) {
	cfg := Opts{Width: DefaultChartWidth, Height: DefaultChartHeight}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Dir == "" {
		return nil, fmt.Errorf("chart directory not set")
	}
	if err := os.MkdirAll(cfg.Dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create chart directory", "error", err, "dir", cfg.Dir)
		return nil, fmt.Errorf("failed to create chart directory: %w", err)
	}
	return &Renderer{
		dir:    cfg.Dir,
		width:  cfg.Width,
		height: cfg.Height,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Path returns the chart file path for a user.
func (r *Renderer) Path(userID string) string {
	return filepath.Join(r.dir, "mood_"+userID+".png")
}

// userLock returns the per-user mutex, creating it on first use.
func (r *Renderer) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[userID] = l
	}
	return l
}

// Render draws the user's mood entries as a date/value line chart and
// atomically replaces the user's chart file. It returns the final path.
func (r *Renderer) Render(userID string, entries []models.MoodEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("no mood entries to render for %s", userID)
	}

	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	xs := make([]time.Time, 0, len(entries))
	ys := make([]float64, 0, len(entries))
	for _, e := range entries {
		d, err := time.ParseInLocation(models.DateLayout, e.Date, time.Local)
		if err != nil {
			return "", fmt.Errorf("bad mood entry date %q: %w", e.Date, err)
		}
		xs = append(xs, d)
		ys = append(ys, float64(e.Value))
	}
	// The chart library needs two points to draw a segment; a single
	// entry is duplicated into a flat line.
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(time.Hour))
		ys = append(ys, ys[0])
	}

	graph := chart.Chart{
		Width:  r.width,
		Height: r.height,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: float64(models.MinMoodValue), Max: float64(models.MaxMoodValue)},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeWidth: 2,
					DotWidth:    4,
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		slog.Error("Chart render failed", "error", err, "userID", userID)
		return "", fmt.Errorf("failed to render mood chart for %s: %w", userID, err)
	}

	final := r.Path(userID)
	tmp := final + "." + util.GenerateTempSuffix() + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		slog.Error("Chart temp write failed", "error", err, "path", tmp)
		return "", fmt.Errorf("failed to write chart temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		slog.Error("Chart rename failed", "error", err, "path", final)
		return "", fmt.Errorf("failed to replace chart file: %w", err)
	}

	slog.Debug("Chart rendered", "userID", userID, "path", final, "points", len(entries))
	return final, nil
}
