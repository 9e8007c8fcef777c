package handlers

import (
	"encoding/json"
	"fmt"
	"os"

	"newslens/internal/analysis"

	"github.com/spf13/cobra"
)

// NewFetchCmd creates the fetch command
func NewFetchCmd() *cobra.Command {
	var feedURLs []string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch configured feeds and store their articles",
		Long: `Fetch every configured RSS/Atom feed and upsert the articles by URL.

Examples:
  newslens fetch
  newslens fetch --feed https://www.clarin.com/rss/lo-ultimo/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), needs{feeds: true})
			if err != nil {
				return err
			}
			defer a.close()

			urls := feedURLs
			if len(urls) == 0 {
				urls = a.cfg.Feeds.URLs
			}
			report, err := a.fetcher.Ingest(cmd.Context(), a.store, urls)
			if err != nil {
				return err
			}

			for _, f := range report.Feeds {
				if f.Error != "" {
					fmt.Printf("❌ %s: %s\n", f.URL, f.Error)
					continue
				}
				fmt.Printf("✅ %s: %d articles\n", f.URL, f.Articles)
			}
			fmt.Printf("\nFetched %d | Inserted %d | Updated %d | Failed %d\n",
				report.Fetched, report.Saved.Inserted, report.Saved.Updated, report.Saved.Failed)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&feedURLs, "feed", nil, "feed URL to fetch instead of the configured list (repeatable)")
	return cmd
}

// NewTriageCmd creates the triage command
func NewTriageCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Classify unanalyzed articles and link related coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), needs{llm: true})
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.orchestrator.Triage(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, o := range report.Outcomes {
				line := fmt.Sprintf("%-36s %-15s linked=%d", o.ArticleID, o.Tag, o.Linked)
				if o.Err != "" {
					line += "  " + o.Err
				}
				fmt.Println(line)
			}
			fmt.Printf("\nAnalyzed %d | Failed %d | Linked %d\n", report.Analyzed, report.Failed, report.Linked)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of articles to triage")
	return cmd
}

// NewDeepCmd creates the deep command
func NewDeepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deep ARTICLE_ID",
		Short: "Run a deep analysis of one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), needs{llm: true})
			if err != nil {
				return err
			}
			defer a.close()

			article, err := a.orchestrator.DeepAnalyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(article.DeepAnalysis)
		},
	}
}

// NewCompareCmd creates the compare command
func NewCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare ARTICLE_ID ARTICLE_ID [ARTICLE_ID...]",
		Short: "Compare how several outlets cover the same story",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), needs{llm: true})
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.orchestrator.Compare(cmd.Context(), args)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

// NewRelatedCmd creates the related command
func NewRelatedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "related ARTICLE_ID",
		Short: "List articles linked to the same story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), needs{analysis: true})
			if err != nil {
				return err
			}
			defer a.close()

			related, err := a.orchestrator.Related(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(related) == 0 {
				fmt.Println("No related articles")
				return nil
			}
			for _, r := range related {
				fmt.Printf("%s  %-20s %s\n", r.ID, r.SourceName, r.Title)
			}
			return nil
		},
	}
}

// NewBackfillCmd creates the backfill command
func NewBackfillCmd() *cobra.Command {
	var limit, days int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Re-run correlation for recent triaged articles without links",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), needs{analysis: true})
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.orchestrator.Backfill(cmd.Context(), limit, days)
			if err != nil {
				return err
			}
			fmt.Printf("Processed %d | Linked %d\n", report.Processed, report.Linked)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", analysis.DefaultBackfillLimit, "maximum number of articles to process")
	cmd.Flags().IntVar(&days, "days", analysis.DefaultBackfillDays, "only consider articles fetched in the last N days")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
