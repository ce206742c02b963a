// Linguacache - Predictive Content Prefetching for Edge Translation Devices
// Copyright 2026 D. Vermeer (dvermeer)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dvermeer/linguacache

// Package network implements the connection-issue pattern analyzer: it
// accumulates offline and quality-degradation event histories, hourly and
// daily risk histograms, and location-keyed statistics, and produces
// multi-factor connection-issue risk forecasts so offline periods can be
// anticipated.
package network

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvermeer/linguacache/internal/metrics"
)

// Sample is one network observation. Immutable once recorded.
type Sample struct {
	Online         bool      `json:"isOnline"`
	Timestamp      time.Time `json:"timestamp"`
	Quality        float64   `json:"quality,omitempty"`
	LatencyMs      float64   `json:"latency,omitempty"`
	PacketLoss     float64   `json:"packetLoss,omitempty"`
	Location       *Location `json:"location,omitempty"`
	ConnectionType string    `json:"connectionType,omitempty"`
	SignalStrength float64   `json:"signalStrength,omitempty"`
}

// Location is a device position attached to a sample.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// issueKind classifies connection-issue events.
type issueKind string

const (
	issueOffline     issueKind = "offline"
	issuePoorQuality issueKind = "poor_quality"
	issueDegradation issueKind = "quality_degradation"
)

// issueEvent is one recorded connection issue.
type issueEvent struct {
	kind      issueKind
	timestamp time.Time
	location  string
	connType  string
}

// locationStats accumulates per-bucket connectivity statistics.
type locationStats struct {
	online     int
	offline    int
	qualitySum float64
	samples    int
	connTypes  map[string]int
}

// PatternStatistics summarizes extracted connection-issue patterns.
type PatternStatistics struct {
	// HourlyCounts is the 24-slot histogram of issue events by hour.
	HourlyCounts [24]int `json:"hourlyCounts"`

	// DailyCounts is the 7-slot histogram of issue events by weekday.
	DailyCounts [7]int `json:"dailyCounts"`

	// PeakHours are the top-quartile hours by event count.
	PeakHours []int `json:"peakHours"`

	// PeakDays are the top-third weekdays by event count.
	PeakDays []int `json:"peakDays"`

	// ProblematicLocations are location buckets with offline ratio > 0.3.
	ProblematicLocations []string `json:"problematicLocations"`

	// Confidence is in [0, 1], scaled down for small sample counts.
	Confidence float64 `json:"confidence"`

	// EventCount is the number of accumulated issue events.
	EventCount int `json:"eventCount"`
}

// RiskForecast is the output of a connection-issue risk prediction.
type RiskForecast struct {
	// Risk is the overall offline risk in [0, 1]: the mean of the top-3
	// riskiest forecast hours.
	Risk float64 `json:"risk"`

	// HourlyRisks has one entry per forecast hour.
	HourlyRisks []HourRisk `json:"hourlyRisks,omitempty"`

	// Confidence mirrors the pattern confidence behind the forecast.
	Confidence float64 `json:"confidence"`

	// Reason is "pattern_forecast" or "insufficient_data".
	Reason string `json:"reason"`
}

// HourRisk is the risk for one future hour.
type HourRisk struct {
	Hour time.Time `json:"hour"`
	Risk float64   `json:"risk"`
}

// AnalyzerConfig contains configuration for the pattern analyzer.
type AnalyzerConfig struct {
	// HistoryCap bounds the quality-history ring buffer. Default: 1000.
	HistoryCap int

	// MinEvents is the number of accumulated issue events required before
	// non-trivial patterns are returned. Default: 10.
	MinEvents int

	// ConfidenceThreshold below which risk forecasts return the fixed
	// low-risk insufficient-data answer. Default: 0.3.
	ConfidenceThreshold float64

	// DegradationRatio flags a quality-degradation event when quality
	// drops below this fraction of the preceding sample. Default: 0.7.
	DegradationRatio float64

	// PoorQualityFloor logs online samples below this quality as
	// poor-quality issues. Default: 0.5.
	PoorQualityFloor float64
}

// DefaultAnalyzerConfig returns the default analyzer configuration.
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		HistoryCap:          1000,
		MinEvents:           10,
		ConfidenceThreshold: 0.3,
		DegradationRatio:    0.7,
		PoorQualityFloor:    0.5,
	}
}

// insufficientDataRisk is the fixed low risk returned when confidence is
// below the threshold.
const insufficientDataRisk = 0.1

// Analyzer maintains connection-issue histories and statistics and serves
// risk forecasts. Safe for concurrent use.
type Analyzer struct {
	cfg    AnalyzerConfig
	logger zerolog.Logger

	mu             sync.RWMutex
	hourlyOffline  [24]int
	dailyOffline   [7]int
	events         []issueEvent
	qualityHistory []float64
	lastQuality    float64
	hasLastQuality bool
	locations      map[string]*locationStats
	sampleCount    int
}

// NewAnalyzer creates a pattern analyzer.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewAnalyzer(cfg AnalyzerConfig, logger zerolog.Logger) *Analyzer {
	if cfg.HistoryCap <= 0 {
		cfg.HistoryCap = 1000
	}
	if cfg.MinEvents <= 0 {
		cfg.MinEvents = 10
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.3
	}
	if cfg.DegradationRatio <= 0 {
		cfg.DegradationRatio = 0.7
	}
	if cfg.PoorQualityFloor <= 0 {
		cfg.PoorQualityFloor = 0.5
	}
	return &Analyzer{
		cfg:       cfg,
		logger:    logger.With().Str("component", "network").Logger(),
		locations: make(map[string]*locationStats),
	}
}

// locationKey buckets a location by latitude/longitude rounded to 4
// decimal places.
func locationKey(loc *Location) string {
	return fmt.Sprintf("%.4f,%.4f", loc.Latitude, loc.Longitude)
}

// Record ingests one network sample into the histograms, histories, and
// location statistics.
func (a *Analyzer) Record(s Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sampleCount++
	metrics.RecordNetworkSample()
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}

	locKey := ""
	if s.Location != nil {
		locKey = locationKey(s.Location)
		a.recordLocation(locKey, s)
	}

	if !s.Online {
		a.hourlyOffline[s.Timestamp.Hour()]++
		a.dailyOffline[int(s.Timestamp.Weekday())]++
		a.appendEvent(issueEvent{kind: issueOffline, timestamp: s.Timestamp, location: locKey, connType: s.ConnectionType})
	} else if s.Quality > 0 && s.Quality < a.cfg.PoorQualityFloor {
		// Degraded-but-connected periods are tracked alongside outages.
		a.appendEvent(issueEvent{kind: issuePoorQuality, timestamp: s.Timestamp, location: locKey, connType: s.ConnectionType})
	}

	if s.Quality > 0 {
		if a.hasLastQuality && s.Quality < a.lastQuality*a.cfg.DegradationRatio {
			a.appendEvent(issueEvent{kind: issueDegradation, timestamp: s.Timestamp, location: locKey, connType: s.ConnectionType})
			a.logger.Debug().
				Float64("quality", s.Quality).
				Float64("previous", a.lastQuality).
				Msg("quality degradation recorded")
		}
		a.lastQuality = s.Quality
		a.hasLastQuality = true

		a.qualityHistory = append(a.qualityHistory, s.Quality)
		if len(a.qualityHistory) > a.cfg.HistoryCap {
			a.qualityHistory = a.qualityHistory[len(a.qualityHistory)-a.cfg.HistoryCap:]
		}
	}
}

func (a *Analyzer) recordLocation(key string, s Sample) {
	stats, ok := a.locations[key]
	if !ok {
		stats = &locationStats{connTypes: make(map[string]int)}
		a.locations[key] = stats
	}
	if s.Online {
		stats.online++
	} else {
		stats.offline++
	}
	stats.qualitySum += s.Quality
	stats.samples++
	if s.ConnectionType != "" {
		stats.connTypes[s.ConnectionType]++
	}
}

// appendEvent adds an issue event, evicting the oldest beyond the cap.
func (a *Analyzer) appendEvent(ev issueEvent) {
	a.events = append(a.events, ev)
	if len(a.events) > a.cfg.HistoryCap {
		a.events = a.events[len(a.events)-a.cfg.HistoryCap:]
	}
}

// issueHistograms builds hour/day histograms over offline and poor-quality
// events (degradation events feed quality tracking, not the risk histograms).
func (a *Analyzer) issueHistograms() (hourly [24]int, daily [7]int, count int) {
	for _, ev := range a.events {
		if ev.kind != issueOffline && ev.kind != issuePoorQuality {
			continue
		}
		hourly[ev.timestamp.Hour()]++
		daily[int(ev.timestamp.Weekday())]++
		count++
	}
	return hourly, daily, count
}

// ExtractPatterns derives peak hours/days, problematic locations, and a
// confidence score from the accumulated issue events. Fewer than MinEvents
// events yields a trivial zero-confidence result.
func (a *Analyzer) ExtractPatterns() PatternStatistics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.extractPatternsLocked()
}

func (a *Analyzer) extractPatternsLocked() PatternStatistics {
	hourly, daily, count := a.issueHistograms()
	stats := PatternStatistics{
		HourlyCounts: hourly,
		DailyCounts:  daily,
		EventCount:   count,
	}
	if count < a.cfg.MinEvents {
		return stats
	}

	stats.PeakHours = topSlots(hourly[:], len(hourly)/4)
	stats.PeakDays = topSlots(daily[:], len(daily)/3)
	stats.ProblematicLocations = a.problematicLocationsLocked()

	// Confidence blends peak-hour concentration (0.6), peak-day
	// concentration (0.2), and a location-diversity bonus (0.2),
	// scaled linearly toward 1 at 100 events.
	peakHourEvents := 0
	for _, h := range stats.PeakHours {
		peakHourEvents += hourly[h]
	}
	peakDayEvents := 0
	for _, d := range stats.PeakDays {
		peakDayEvents += daily[d]
	}
	confidence := 0.6*float64(peakHourEvents)/float64(count) +
		0.2*float64(peakDayEvents)/float64(count)
	if len(stats.ProblematicLocations) > 0 {
		confidence += 0.2
	}
	sizeScale := float64(count) / 100
	if sizeScale > 1 {
		sizeScale = 1
	}
	stats.Confidence = clamp01(confidence * sizeScale)
	return stats
}

// topSlots returns the indices of the n largest non-zero histogram slots.
func topSlots(histogram []int, n int) []int {
	if n < 1 {
		n = 1
	}
	idx := make([]int, len(histogram))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if histogram[idx[a]] == histogram[idx[b]] {
			return idx[a] < idx[b]
		}
		return histogram[idx[a]] > histogram[idx[b]]
	})
	out := make([]int, 0, n)
	for _, i := range idx[:n] {
		if histogram[i] > 0 {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// problematicLocationsLocked returns location buckets whose offline ratio
// exceeds 30%.
func (a *Analyzer) problematicLocationsLocked() []string {
	var out []string
	for key, stats := range a.locations {
		total := stats.online + stats.offline
		if total > 0 && float64(stats.offline)/float64(total) > 0.3 {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// PredictRisk forecasts connection-issue risk over the next windowHours.
// Per forecast hour it combines hourly and daily historical risk (0.7/0.3),
// boosts peak hours (x1.5) and peak days (x1.2), then applies location
// (x1.5 flagged, x1.3 offline ratio > 30%) and connection-type (x1.2 when
// that type's issue share exceeds 30%) boosts, each capped at 1.0. The
// overall risk is the mean of the top-3 riskiest hours. Below the
// confidence threshold a fixed low risk with reason insufficient_data is
// returned instead of an unreliable number.
func (a *Analyzer) PredictRisk(windowHours int, loc *Location, connectionType string) RiskForecast {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if windowHours <= 0 {
		windowHours = 24
	}

	patterns := a.extractPatternsLocked()
	if patterns.Confidence < a.cfg.ConfidenceThreshold {
		return RiskForecast{
			Risk:       insufficientDataRisk,
			Confidence: patterns.Confidence,
			Reason:     "insufficient_data",
		}
	}

	hourly, daily, count := a.issueHistograms()
	peakHours := toSet(patterns.PeakHours)
	peakDays := toSet(patterns.PeakDays)
	locBoost := a.locationBoostLocked(loc, patterns.ProblematicLocations)
	connBoost := a.connectionTypeBoostLocked(connectionType, count)

	now := time.Now()
	risks := make([]HourRisk, 0, windowHours)
	for i := 1; i <= windowHours; i++ {
		t := now.Add(time.Duration(i) * time.Hour)
		hourRisk := float64(hourly[t.Hour()]) / float64(count)
		dayRisk := float64(daily[int(t.Weekday())]) / float64(count)
		risk := 0.7*hourRisk + 0.3*dayRisk
		if peakHours[t.Hour()] {
			risk *= 1.5
		}
		if peakDays[int(t.Weekday())] {
			risk *= 1.2
		}
		risk = clamp01(risk * locBoost)
		risk = clamp01(risk * connBoost)
		risks = append(risks, HourRisk{Hour: t, Risk: risk})
	}

	// Overall risk is the mean of the top-3 riskiest hours.
	sorted := append([]HourRisk(nil), risks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Risk > sorted[j].Risk })
	top := 3
	if len(sorted) < top {
		top = len(sorted)
	}
	var sum float64
	for _, r := range sorted[:top] {
		sum += r.Risk
	}
	overall := 0.0
	if top > 0 {
		overall = sum / float64(top)
	}

	return RiskForecast{
		Risk:        clamp01(overall),
		HourlyRisks: risks,
		Confidence:  patterns.Confidence,
		Reason:      "pattern_forecast",
	}
}

// locationBoostLocked returns the risk multiplier for the current location.
func (a *Analyzer) locationBoostLocked(loc *Location, problematic []string) float64 {
	if loc == nil {
		return 1
	}
	key := locationKey(loc)
	for _, p := range problematic {
		if p == key {
			return 1.5
		}
	}
	if stats, ok := a.locations[key]; ok {
		total := stats.online + stats.offline
		if total > 0 && float64(stats.offline)/float64(total) > 0.3 {
			return 1.3
		}
	}
	return 1
}

// connectionTypeBoostLocked returns the risk multiplier for the current
// connection type based on its share of issue events.
func (a *Analyzer) connectionTypeBoostLocked(connType string, totalIssues int) float64 {
	if connType == "" || totalIssues == 0 {
		return 1
	}
	byType := 0
	for _, ev := range a.events {
		if (ev.kind == issueOffline || ev.kind == issuePoorQuality) && ev.connType == connType {
			byType++
		}
	}
	if float64(byType)/float64(totalIssues) > 0.3 {
		return 1.2
	}
	return 1
}

// SampleCount returns the number of ingested samples.
func (a *Analyzer) SampleCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sampleCount
}

// EventCount returns the number of retained issue events of any kind.
func (a *Analyzer) EventCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.events)
}

func toSet(xs []int) map[int]bool {
	set := make(map[int]bool, len(xs))
	for _, x := range xs {
		set[x] = true
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
