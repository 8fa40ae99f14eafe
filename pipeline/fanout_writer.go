package pipeline

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/aluiziolira/go-catalog-harvester/models"
)

// Target is one named destination of a FanoutWriter.
type Target struct {
	Name   string
	Writer OutputWriter
}

// FanoutWriter mirrors every batch to several sinks, for example a JSONL
// archive next to a Redis stream. A failing sink does not stop delivery to
// the others; its error is reported with the sink name.
type FanoutWriter struct {
	mu      sync.Mutex
	targets []Target
	written map[string]int64
	failed  map[string]int64
}

// NewFanoutWriter returns a writer over targets, written in order.
func NewFanoutWriter(targets ...Target) *FanoutWriter {
	return &FanoutWriter{
		targets: targets,
		written: make(map[string]int64, len(targets)),
		failed:  make(map[string]int64, len(targets)),
	}
}

// NewDualWriter writes CSV and JSONL files side by side.
func NewDualWriter(csvFilename, jsonFilename string) (*FanoutWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create json writer: %w", err)
	}

	return NewFanoutWriter(
		Target{Name: "csv", Writer: csvWriter},
		Target{Name: "json", Writer: jsonWriter},
	), nil
}

// Write hands items to every sink and records per-sink delivery counts.
func (fw *FanoutWriter) Write(items []*models.Item) error {
	if len(items) == 0 {
		return nil
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	var errs []error
	for _, t := range fw.targets {
		if err := t.Writer.Write(items); err != nil {
			fw.failed[t.Name] += int64(len(items))
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		fw.written[t.Name] += int64(len(items))
	}
	return errors.Join(errs...)
}

// Close closes every sink, even after a failure.
func (fw *FanoutWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	var errs []error
	for _, t := range fw.targets {
		if err := t.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate checks every sink.
func (fw *FanoutWriter) Validate() error {
	var errs []error
	for _, t := range fw.targets {
		if err := t.Writer.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("validate %s: %w", t.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Delivered returns, per sink name, the items written and the items whose
// batch failed.
func (fw *FanoutWriter) Delivered() (written, failed map[string]int64) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	return maps.Clone(fw.written), maps.Clone(fw.failed)
}
