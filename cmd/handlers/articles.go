package handlers

import (
	"fmt"

	"newslens/internal/persistence"
	"newslens/internal/stats"

	"github.com/spf13/cobra"
)

// NewArticlesCmd creates the articles command
func NewArticlesCmd() *cobra.Command {
	var opts persistence.ListOptions

	cmd := &cobra.Command{
		Use:   "articles",
		Short: "List stored articles",
		Long: `List stored articles, most recently fetched first.

Examples:
  newslens articles --limit 20
  newslens articles --category Politics --source "La Nación"
  newslens articles show ARTICLE_ID`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), needs{})
			if err != nil {
				return err
			}
			defer a.close()

			articles, err := a.store.ListArticles(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(articles) == 0 {
				fmt.Println("No articles found")
				return nil
			}
			for _, art := range articles {
				category := art.Category
				if category == "" {
					category = "-"
				}
				fmt.Printf("%s  %-18s %-16s %s\n", art.ID, truncate(art.SourceName, 18), truncate(category, 16), art.Title)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum number of articles")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "number of articles to skip")
	cmd.Flags().StringVar(&opts.Category, "category", "", "only articles in this category")
	cmd.Flags().StringVar(&opts.Source, "source", "", "only articles from this outlet")

	cmd.AddCommand(&cobra.Command{
		Use:   "show ARTICLE_ID",
		Short: "Print one article as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), needs{})
			if err != nil {
				return err
			}
			defer a.close()

			art, err := a.store.GetArticle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(art)
		},
	})

	return cmd
}

// NewStatsCmd creates the stats command
func NewStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), needs{stats: true})
			if err != nil {
				return err
			}
			defer a.close()

			d, err := a.stats.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(d)
			}
			fmt.Println(stats.Render(d))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the dashboard as JSON")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
