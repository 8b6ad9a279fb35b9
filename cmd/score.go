package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wildguard/sentinel/internal/model"
	"github.com/wildguard/sentinel/internal/scorer"
)

var scoreFlags struct {
	platform    string
	title       string
	description string
	price       string
	location    string
	url         string
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single listing offline, for calibrating indicator weights",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		listing := model.Listing{
			Platform:    scoreFlags.platform,
			Title:       scoreFlags.title,
			Description: scoreFlags.description,
			PriceText:   scoreFlags.price,
			Location:    scoreFlags.location,
			URL:         scoreFlags.url,
			ObservedAt:  time.Now(),
		}

		thresholds := scorer.Thresholds{
			WildlifeMin: cfg.Scorer.WildlifeThreshold,
			HTMin:       cfg.Scorer.HTThreshold,
		}
		assessment := scorer.Analyze(listing, thresholds)

		fmt.Printf("category:    %s\n", assessment.Category)
		fmt.Printf("level:       %s\n", assessment.Level)
		fmt.Printf("score:       %d\n", assessment.Score)
		fmt.Printf("confidence:  %.2f\n", assessment.Confidence)
		fmt.Printf("fp risk:     %.2f\n", assessment.FalsePositiveRisk)
		fmt.Printf("human review: %v\n", assessment.RequiresHumanReview)
		fmt.Printf("wildlife indicators: %v\n", assessment.WildlifeIndicators)
		fmt.Printf("ht indicators:       %v\n", assessment.HTIndicators)
		fmt.Printf("reasoning:   %s\n", assessment.Reasoning)
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVar(&scoreFlags.platform, "platform", "ebay", "marketplace the listing was observed on")
	scoreCmd.Flags().StringVar(&scoreFlags.title, "title", "", "listing title")
	scoreCmd.Flags().StringVar(&scoreFlags.description, "description", "", "listing description")
	scoreCmd.Flags().StringVar(&scoreFlags.price, "price", "", "listing price text")
	scoreCmd.Flags().StringVar(&scoreFlags.location, "location", "", "listing location text")
	scoreCmd.Flags().StringVar(&scoreFlags.url, "url", "", "listing URL")
	rootCmd.AddCommand(scoreCmd)
}
