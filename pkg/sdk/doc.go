// Package airweave is a Go client for the airweave search API.
//
//	client, _ := airweave.New("http://localhost:8080", airweave.WithAPIKey(key))
//	resp, _ := client.Search(ctx, airweave.SearchRequest{
//	    Query:       "contract renewals next quarter",
//	    Collections: []string{"docs"},
//	})
//	for _, r := range resp.Results {
//	    fmt.Println(r.ID, r.Score)
//	}
//
// Pipeline stages can be toggled per request:
//
//	expand := false
//	resp, _ := client.SearchCollection(ctx, "tickets", airweave.SearchRequest{
//	    Query:        "outage last week",
//	    ExpandQuery:  &expand,
//	    ResponseType: "completion",
//	})
//	fmt.Println(resp.Completion.Text)
package airweave
