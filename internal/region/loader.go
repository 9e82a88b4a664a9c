package region

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/MeKo-Tech/memorialmap/internal/worker"
)

// Sources names the boundary datasets. Each entry is an http(s) URL or a
// local file path; an empty entry leaves that level empty.
type Sources struct {
	Districts    string
	Subdistricts string
}

// LoaderConfig configures Load.
type LoaderConfig struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
	OnProgress worker.ProgressFunc
	// MaxBytes caps a single dataset (default: 256 MiB)
	MaxBytes int64
}

const defaultMaxBytes = 256 << 20

// Load fetches both boundary datasets concurrently. A dataset that fails to
// load is logged and its level stays empty, so lookups on it miss and the
// highlighter falls back to circles.
func Load(ctx context.Context, src Sources, cfg LoaderConfig) (districts, subdistricts []Feature) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}

	var tasks []worker.Task
	if src.Districts != "" {
		tasks = append(tasks, worker.Task{Name: string(LevelDistrict), Source: src.Districts})
	}
	if src.Subdistricts != "" {
		tasks = append(tasks, worker.Task{Name: string(LevelSubdistrict), Source: src.Subdistricts})
	}

	var (
		mu     sync.Mutex
		loaded = make(map[Level][]Feature)
	)
	pool := worker.New(worker.Config{
		Workers:    len(tasks),
		OnProgress: cfg.OnProgress,
		Handler: worker.HandlerFunc(func(ctx context.Context, task worker.Task) (int, error) {
			data, err := ReadSource(ctx, cfg.HTTPClient, task.Source, cfg.MaxBytes)
			if err != nil {
				return 0, err
			}
			level := Level(task.Name)
			features, err := ParseFeatureCollection(data, level)
			if err != nil {
				return 0, err
			}
			mu.Lock()
			loaded[level] = features
			mu.Unlock()
			return len(features), nil
		}),
	})

	for _, r := range pool.Run(ctx, tasks) {
		if r.Err != nil {
			logger.Warn("Boundary dataset unavailable, polygon highlighting disabled for level",
				"level", r.Task.Name, "source", r.Task.Source, "error", r.Err)
			continue
		}
		logger.Info("Loaded boundary dataset",
			"level", r.Task.Name, "features", r.Count, "elapsed", r.Elapsed)
	}

	return loaded[LevelDistrict], loaded[LevelSubdistrict]
}

// ErrTooLarge reports a dataset over the configured size limit.
var ErrTooLarge = errors.New("dataset too large")

// ReadSource returns the contents of an http(s) URL or a local file. Sources
// larger than maxBytes fail with ErrTooLarge; maxBytes <= 0 selects 256 MiB.
func ReadSource(ctx context.Context, client *http.Client, source string, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", source, err)
		}
		defer f.Close()
		return readLimited(f, source, maxBytes)
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", source, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %s", source, resp.Status)
	}
	if resp.ContentLength > maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit %d: %w", source, resp.ContentLength, maxBytes, ErrTooLarge)
	}
	return readLimited(resp.Body, source, maxBytes)
}

// readLimited reads one byte past maxBytes so an oversized source is reported
// instead of truncated.
func readLimited(r io.Reader, source string, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%s exceeds %d bytes: %w", source, maxBytes, ErrTooLarge)
	}
	return data, nil
}
