// Package http exposes the artifacts of a forecast run over a small
// read-only JSON API.
package http

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"dpcli/internal/config"
	"dpcli/internal/enrich"
	"dpcli/internal/forecast"
	"dpcli/internal/ledger"
)

// ResultStore holds the artifacts of the most recent run. The pipeline can
// publish into it directly, or it can be hydrated from the artifact files a
// previous run left on disk.
type ResultStore struct {
	mu      sync.RWMutex
	report  *enrich.Report
	results map[ledger.Level]*forecast.Result
}

// NewResultStore creates an empty store.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[ledger.Level]*forecast.Result)}
}

// Publish replaces the stored artifacts with those of a completed run.
func (s *ResultStore) Publish(report *enrich.Report, results map[ledger.Level]*forecast.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
	s.results = make(map[ledger.Level]*forecast.Result, len(results))
	for level, result := range results {
		s.results[level] = result
	}
}

// LoadFromDisk hydrates the store from the artifact files of a previous run.
// Levels without a result file on disk are skipped; at least one level must
// load for the call to succeed.
func (s *ResultStore) LoadFromDisk(paths *config.Paths, levels []ledger.Level) error {
	report, err := readJSON[enrich.Report](paths.EnrichmentReportJSON)
	if err != nil {
		return fmt.Errorf("load enrichment report: %w", err)
	}

	results := make(map[ledger.Level]*forecast.Result, len(levels))
	for _, level := range levels {
		result, err := readJSON[forecast.Result](paths.ResultJSON(level))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("load %s results: %w", level, err)
		}
		results[level] = result
	}
	if len(results) == 0 {
		return fmt.Errorf("no result artifacts found under %s", paths.OutDir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.report = report
	s.results = results
	return nil
}

// Report returns the enrichment report of the stored run, if any.
func (s *ResultStore) Report() (*enrich.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report, s.report != nil
}

// Result returns the stored result for one entity level.
func (s *ResultStore) Result(level ledger.Level) (*forecast.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[level]
	return result, ok
}

// Levels lists the entity levels with stored results, in the canonical order.
func (s *ResultStore) Levels() []ledger.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var levels []ledger.Level
	for _, level := range []ledger.Level{ledger.LevelProduct, ledger.LevelCategory, ledger.LevelCustomer} {
		if _, ok := s.results[level]; ok {
			levels = append(levels, level)
		}
	}
	return levels
}

// Empty reports whether the store holds no run at all.
func (s *ResultStore) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report == nil && len(s.results) == 0
}

func readJSON[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &v, nil
}
