package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// evalLog records every evaluation as a CSV row and tracks the best point.
type evalLog struct {
	w        *csv.Writer
	progress io.Writer
	maxEvals int
	started  time.Time

	count int
	best  float64
	bestX []float64
}

func newEvalLog(out io.Writer, progress io.Writer, paramNames []string, maxEvals int) (*evalLog, error) {
	l := &evalLog{
		w:        csv.NewWriter(out),
		progress: progress,
		maxEvals: maxEvals,
		started:  time.Now(),
		best:     1e9,
	}
	header := append([]string{"eval", "fitness", "quality"}, paramNames...)
	if err := l.w.Write(header); err != nil {
		return nil, fmt.Errorf("writing log header: %w", err)
	}
	l.w.Flush()
	return l, l.w.Error()
}

// record logs one evaluation of the clamped parameter vector x.
func (l *evalLog) record(x []float64, fitness, quality float64) error {
	l.count++
	if fitness < l.best {
		l.best = fitness
		l.bestX = append(l.bestX[:0], x...)
	}

	row := make([]string, 0, 3+len(x))
	row = append(row, strconv.Itoa(l.count), ftoa(fitness), ftoa(quality))
	for _, v := range x {
		row = append(row, ftoa(v))
	}
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()

	elapsed := time.Since(l.started)
	eta := time.Duration(l.maxEvals-l.count) * (elapsed / time.Duration(l.count))
	fmt.Fprintf(l.progress, "eval %d/%d  quality %.3f  best %.3f  elapsed %s  eta %s\n",
		l.count, l.maxEvals, quality, -l.best, formatDuration(elapsed), formatDuration(eta))
	return l.w.Error()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// formatDuration renders d as 1h02m03s, or 2m03s under an hour.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h, m, s := d/time.Hour, (d%time.Hour)/time.Minute, (d%time.Minute)/time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
