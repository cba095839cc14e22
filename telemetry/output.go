package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/physarum/config"
)

// csvFile appends gocsv records, writing the header with the first batch.
type csvFile struct {
	f             *os.File
	headerWritten bool
}

func createCSV(dir, name string) (*csvFile, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvFile{f: f}, nil
}

func (c *csvFile) write(records any) error {
	if !c.headerWritten {
		if err := gocsv.Marshal(records, c.f); err != nil {
			return err
		}
		c.headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, c.f)
}

func (c *csvFile) close() error {
	if c == nil || c.f == nil {
		return nil
	}
	return c.f.Close()
}

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir       string
	telemetry *csvFile
	emitters  *csvFile
	perf      *csvFile
	bookmarks *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		dst  **csvFile
		name string
	}{
		{&om.telemetry, "telemetry.csv"},
		{&om.emitters, "emitters.csv"},
		{&om.perf, "perf.csv"},
		{&om.bookmarks, "bookmarks.csv"},
	}
	for _, spec := range files {
		f, err := createCSV(dir, spec.name)
		if err != nil {
			om.Close()
			return nil, err
		}
		*spec.dst = f
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.write([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WriteEmitters writes per-emitter window records to emitters.csv.
func (om *OutputManager) WriteEmitters(records []EmitterRecord) error {
	if om == nil || len(records) == 0 {
		return nil
	}
	if err := om.emitters.write(records); err != nil {
		return fmt.Errorf("writing emitters: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd uint64) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.bookmarks.write([]Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// SnapshotDir returns the directory snapshots are written to.
func (om *OutputManager) SnapshotDir() string {
	if om == nil {
		return ""
	}
	return filepath.Join(om.dir, "snapshots")
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*csvFile{om.telemetry, om.emitters, om.perf, om.bookmarks} {
		if err := f.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
