package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	airweave "github.com/AlejoJamC/airweave/pkg/sdk"
)

type searchFlags struct {
	url         string
	apiKey      string
	collections []string
	limit       int
	strategy    string
	completion  bool
	noExpand    bool
	noRerank    bool
	jsonOut     bool
}

func newSearchCmd() *cobra.Command {
	f := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Query a running search API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, f, args[0])
		},
	}
	cmd.Flags().StringVar(&f.url, "url", envOr("AIRWEAVE_URL", "http://localhost:8080"), "search API base URL")
	cmd.Flags().StringVar(&f.apiKey, "api-key", os.Getenv("AIRWEAVE_API_KEY"), "API key or JWT")
	cmd.Flags().StringSliceVarP(&f.collections, "collection", "c", nil, "collections to search (repeatable)")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "retrieval strategy: hybrid, neural or keyword (server default if empty)")
	cmd.Flags().BoolVar(&f.completion, "answer", false, "generate an answer from the results")
	cmd.Flags().BoolVar(&f.noExpand, "no-expand", false, "disable query expansion")
	cmd.Flags().BoolVar(&f.noRerank, "no-rerank", false, "disable LLM reranking")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "output the raw response as JSON")
	return cmd
}

func runSearch(cmd *cobra.Command, f *searchFlags, q string) error {
	client, err := airweave.New(f.url, airweave.WithAPIKey(f.apiKey))
	if err != nil {
		return err
	}

	req := airweave.SearchRequest{
		Query:       q,
		Collections: f.collections,
		Limit:       f.limit,
	}
	if f.strategy != "" {
		req.RetrievalStrategy = &f.strategy
	}
	if f.completion {
		req.ResponseType = "completion"
	}
	if f.noExpand {
		off := false
		req.ExpandQuery = &off
	}
	if f.noRerank {
		off := false
		req.Rerank = &off
	}

	resp, err := client.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if f.jsonOut {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printSearch(cmd, resp)
	return nil
}

func printSearch(cmd *cobra.Command, resp *airweave.SearchResponse) {
	if resp.Completion != nil {
		cmd.Println(resp.Completion.Text)
		if len(resp.Completion.Citations) > 0 {
			cmd.Printf("Sources: %s\n", strings.Join(resp.Completion.Citations, ", "))
		}
		cmd.Println()
	}

	if len(resp.Results) == 0 {
		cmd.Printf("No results found (%s).\n", resp.Status)
		return
	}

	for i, r := range resp.Results {
		cmd.Printf("  [%d] %s/%s (%.3f)\n", i+1, r.Collection, r.ID, r.Score)
		if snippet := firstLine(r.Content, 120); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
	}
	for _, d := range resp.Degraded {
		target := d.Stage
		if d.Target != "" {
			target += "/" + d.Target
		}
		cmd.Printf("degraded: %s: %s\n", target, d.Reason)
	}
}

func firstLine(s string, maxRunes int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	r := []rune(strings.TrimSpace(s))
	if len(r) > maxRunes {
		return string(r[:maxRunes]) + "…"
	}
	return string(r)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
