// Package report accumulates per-cycle scan results into a session
// summary and renders both the end-of-run summary and the keyword
// coverage report the cmd layer prints.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wildguard/sentinel/internal/cursor"
	"github.com/wildguard/sentinel/internal/model"
	"github.com/wildguard/sentinel/internal/scheduler"
)

// Builder accumulates CycleResults across a Supervisor session into a
// RunSummary.
type Builder struct {
	runTag    string
	startedAt time.Time
	summary   model.RunSummary
}

// NewBuilder starts a new session summary tagged runTag.
func NewBuilder(runTag string, startedAt time.Time) *Builder {
	return &Builder{
		runTag:    runTag,
		startedAt: startedAt,
		summary: model.RunSummary{
			RunTag:              runTag,
			StartedAt:           startedAt,
			ByPlatform:          make(map[string]int),
			ByLevel:             make(map[string]int),
			TopRejectionReasons: make(map[string]int),
		},
	}
}

// Record folds one scheduler cycle's results into the running summary.
func (b *Builder) Record(result scheduler.CycleResult) {
	b.summary.Cycles++
	b.summary.ListingsScanned += result.ListingsSeen
	b.summary.DetectionsStored += result.Detections
	b.summary.Duplicates += result.Duplicates
	b.summary.Errors += len(result.Rejections)

	if result.Detections > 0 {
		b.summary.ByPlatform[result.Platform] += result.Detections
	}
	for _, rej := range result.Rejections {
		b.summary.TopRejectionReasons[rej.Reason]++
	}
}

// RecordLevel tags one stored detection's threat level in ByLevel. Record
// does not fill ByLevel, and neither the scheduler nor the Supervisor
// calls RecordLevel, so a session summary's ByLevel stays empty.
func (b *Builder) RecordLevel(level model.ThreatLevel) {
	b.summary.ByLevel[string(level)]++
}

// Finish stamps EndedAt and returns the completed summary.
func (b *Builder) Finish(endedAt time.Time) model.RunSummary {
	b.summary.EndedAt = endedAt
	return b.summary
}

// FormatSessionSummary renders a RunSummary as human-readable text for
// the CLI and logs.
func FormatSessionSummary(s model.RunSummary) string {
	var sb strings.Builder
	duration := s.EndedAt.Sub(s.StartedAt)

	fmt.Fprintf(&sb, "Session %s\n", s.RunTag)
	fmt.Fprintf(&sb, "  duration:          %s\n", duration.Round(time.Second))
	fmt.Fprintf(&sb, "  cycles:            %d\n", s.Cycles)
	fmt.Fprintf(&sb, "  listings scanned:  %d\n", s.ListingsScanned)
	fmt.Fprintf(&sb, "  detections stored: %d\n", s.DetectionsStored)
	fmt.Fprintf(&sb, "  duplicates seen:   %d\n", s.Duplicates)
	fmt.Fprintf(&sb, "  errors:            %d\n", s.Errors)

	if len(s.ByPlatform) > 0 {
		sb.WriteString("  by platform:\n")
		for _, p := range sortedKeys(s.ByPlatform) {
			fmt.Fprintf(&sb, "    %-16s %d\n", p, s.ByPlatform[p])
		}
	}
	if len(s.ByLevel) > 0 {
		sb.WriteString("  by threat level:\n")
		for _, l := range sortedKeys(s.ByLevel) {
			fmt.Fprintf(&sb, "    %-16s %d\n", l, s.ByLevel[l])
		}
	}
	if len(s.TopRejectionReasons) > 0 {
		sb.WriteString("  top rejection reasons:\n")
		for _, r := range topN(s.TopRejectionReasons, 5) {
			fmt.Fprintf(&sb, "    %-60s %d\n", truncate(r, 60), s.TopRejectionReasons[r])
		}
	}

	return sb.String()
}

// FormatCoverageReport renders a cursor.Store coverage snapshot as
// human-readable text.
func FormatCoverageReport(report map[string]cursor.PlatformCoverage) string {
	var sb strings.Builder
	sb.WriteString("Keyword coverage by platform:\n")
	for _, p := range sortedCoverageKeys(report) {
		c := report[p]
		last := "never"
		if c.LastUpdated != nil {
			last = c.LastUpdated.Format(time.RFC3339)
		}
		fmt.Fprintf(&sb, "  %-16s %6.2f%% (%d keywords used, last updated %s)\n", p, c.CoveragePercentage, c.KeywordsUsed, last)
	}
	return sb.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCoverageKeys(m map[string]cursor.PlatformCoverage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// topN returns up to n keys of m ordered by descending value, breaking
// ties alphabetically for determinism.
func topN(m map[string]int, n int) []string {
	keys := sortedKeys(m)
	sort.SliceStable(keys, func(i, j int) bool { return m[keys[i]] > m[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
