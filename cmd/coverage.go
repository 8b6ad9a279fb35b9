package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/wildguard/sentinel/internal/adapter"
	"github.com/wildguard/sentinel/internal/cursor"
	"github.com/wildguard/sentinel/internal/keywordcorpus"
	"github.com/wildguard/sentinel/internal/report"
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Print per-platform keyword coverage from the cursor store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("coverage"); err != nil {
			return err
		}

		corpus, err := keywordcorpus.Load(cfg.Keywords.FilePath, cfg.Keywords.MinAcceptedFrac)
		if err != nil {
			return eris.Wrap(err, "coverage: load keyword corpus")
		}

		cursorPath := filepath.Join(cfg.State.Dir, "cursor.json")
		cursors := cursor.New(cursorPath)

		platforms := allPlatformNames()
		rep := cursors.CoverageReport(platforms, corpus.Size())

		fmt.Print(report.FormatCoverageReport(rep))
		return nil
	},
}

// allPlatformNames lists every platform this binary scans, independent of
// whether a live adapter registry has been constructed.
func allPlatformNames() []string {
	names := []string{"ebay"}
	for platform := range adapter.DefaultSelectors() {
		names = append(names, platform)
	}
	for platform := range adapter.DefaultHeadlessSelectors() {
		names = append(names, platform)
	}
	return names
}

func init() {
	rootCmd.AddCommand(coverageCmd)
}
