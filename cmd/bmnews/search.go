package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"BioMedNews/internal/ports"
)

var (
	searchQuery string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search stored publications by keyword",
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "max results")
	_ = searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	papers, err := application.Store.ListPapers(cmd.Context(), ports.ListFilter{
		Search: searchQuery,
		Limit:  searchLimit,
	})
	if err != nil {
		return err
	}
	if len(papers) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for _, sp := range papers {
		p := sp.Paper
		fmt.Printf("\n  %s\n", p.Title)
		if len(p.Authors) > 0 {
			authors := p.Authors
			if len(authors) > 3 {
				authors = authors[:3]
			}
			fmt.Printf("  Authors: %s\n", strings.Join(authors, ", "))
		}
		published := "unknown"
		if !p.PublishedDate.IsZero() {
			published = p.PublishedDate.Format("2006-01-02")
		}
		fmt.Printf("  Source: %s  Date: %s\n", p.Source, published)
		url := p.URL
		if url == "" {
			url = "N/A"
		}
		fmt.Printf("  URL: %s\n", url)
	}
	return nil
}
