package telemetry

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkPoolSaturated  BookmarkType = "pool_saturated"
	BookmarkTrailCollapse  BookmarkType = "trail_collapse"
	BookmarkNetworkStable  BookmarkType = "network_stable"
	BookmarkExtinction     BookmarkType = "extinction"
	BookmarkCoverageSpread BookmarkType = "coverage_spread"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        uint64       `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// stableWindows is how many consecutive low-variance windows mark a settled
// network.
const stableWindows = 5

// BookmarkDetector detects interesting moments in the simulation.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	saturated          bool    // occupancy currently at or above 0.99
	recentTrailPeak    float64 // peak trail total since the last collapse
	stableWindowsCount int
	hadLive            bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < stableWindows {
		historySize = stableWindows
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkPoolSaturated(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkExtinction(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Trail collapse: total dropped >50% from recent peak
		if b := bd.checkTrailCollapse(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Coverage spread: coverage doubled against the rolling average
		if b := bd.checkCoverageSpread(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Network stable: low trail variance over several windows
		if b := bd.checkNetworkStable(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)

	if stats.TrailTotal > bd.recentTrailPeak {
		bd.recentTrailPeak = stats.TrailTotal
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

// getHistory returns past windows oldest first.
func (bd *BookmarkDetector) getHistory() []WindowStats {
	if !bd.historyFull {
		return bd.history[:bd.historyIdx]
	}
	out := make([]WindowStats, 0, bd.historySize)
	out = append(out, bd.history[bd.historyIdx:]...)
	return append(out, bd.history[:bd.historyIdx]...)
}

// checkPoolSaturated fires once each time the pools fill up.
func (bd *BookmarkDetector) checkPoolSaturated(stats WindowStats) *Bookmark {
	full := stats.Capacity > 0 && stats.Occupancy >= 0.99
	defer func() { bd.saturated = full }()
	if !full || bd.saturated {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkPoolSaturated,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Pools saturated: %d of %d slots live", stats.Live, stats.Capacity),
	}
}

func (bd *BookmarkDetector) checkExtinction(stats WindowStats) *Bookmark {
	if stats.Live > 0 {
		bd.hadLive = true
		return nil
	}
	if !bd.hadLive || stats.Emitters == 0 {
		return nil
	}
	bd.hadLive = false
	return &Bookmark{
		Type:        BookmarkExtinction,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("No live particles across %d emitters", stats.Emitters),
	}
}

func (bd *BookmarkDetector) checkTrailCollapse(stats WindowStats) *Bookmark {
	if bd.recentTrailPeak <= 0 {
		return nil
	}

	drop := 1.0 - stats.TrailTotal/bd.recentTrailPeak
	if drop > 0.50 {
		oldPeak := bd.recentTrailPeak
		bd.recentTrailPeak = stats.TrailTotal

		return &Bookmark{
			Type:        BookmarkTrailCollapse,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Trail collapsed %.0f%% from peak %.1f to %.1f", drop*100, oldPeak, stats.TrailTotal),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkCoverageSpread(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.Coverage
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.Coverage > avg*2.0 && stats.Coverage > 0.05 {
		return &Bookmark{
			Type:        BookmarkCoverageSpread,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Coverage %.3f is %.1fx average (%.3f)", stats.Coverage, stats.Coverage/avg, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkNetworkStable(stats WindowStats) *Bookmark {
	if stats.Live == 0 || stats.TrailTotal <= 0 {
		bd.stableWindowsCount = 0
		return nil
	}

	history := bd.getHistory()
	if len(history) < stableWindows-1 {
		return nil
	}

	recent := history[len(history)-(stableWindows-1):]
	totals := make([]float64, 0, stableWindows)
	for _, h := range recent {
		totals = append(totals, h.TrailTotal)
	}
	totals = append(totals, stats.TrailTotal)

	mean, std := stat.PopMeanStdDev(totals, nil)
	if mean > 0 && std/mean < 0.05 {
		bd.stableWindowsCount++
	} else {
		bd.stableWindowsCount = 0
	}

	if bd.stableWindowsCount == stableWindows { // trigger exactly once
		return &Bookmark{
			Type:        BookmarkNetworkStable,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Trail network stable at %.1f with %d live over %d+ windows", stats.TrailTotal, stats.Live, stableWindows),
		}
	}

	return nil
}
