package chi

import (
	"fmt"

	"github.com/AlejoJamC/airweave/internal/domain"
	"github.com/AlejoJamC/airweave/internal/domain/search/filter"
	searchuc "github.com/AlejoJamC/airweave/internal/usecase/search"
)

func filtersFromAPI(expr *FilterExpression) (filter.Expression, error) {
	if expr == nil {
		return filter.Expression{}, nil
	}

	must, err := conditionsFromAPI("must", expr.Must)
	if err != nil {
		return filter.Expression{}, err
	}
	should, err := conditionsFromAPI("should", expr.Should)
	if err != nil {
		return filter.Expression{}, err
	}
	mustNot, err := conditionsFromAPI("must_not", expr.MustNot)
	if err != nil {
		return filter.Expression{}, err
	}

	return filter.NewExpression(must, should, mustNot)
}

func conditionsFromAPI(group string, conds []FilterCondition) ([]filter.Condition, error) {
	if len(conds) == 0 {
		return nil, nil
	}
	out := make([]filter.Condition, 0, len(conds))
	for i, c := range conds {
		cond, err := conditionFromAPI(c)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", group, i, err)
		}
		out = append(out, cond)
	}
	return out, nil
}

func conditionFromAPI(c FilterCondition) (filter.Condition, error) {
	set := 0
	if c.Match != nil {
		set++
	}
	if len(c.Any) > 0 {
		set++
	}
	if c.Range != nil {
		set++
	}
	if set != 1 {
		return filter.Condition{}, fmt.Errorf("key %q: exactly one of match, any, range is required", c.Key)
	}

	switch {
	case c.Match != nil:
		return filter.NewMatch(c.Key, *c.Match)
	case len(c.Any) > 0:
		return filter.NewMatchAny(c.Key, c.Any)
	default:
		r, err := filter.NewRangeFilter(c.Range.Gt, c.Range.Gte, c.Range.Lt, c.Range.Lte)
		if err != nil {
			return filter.Condition{}, fmt.Errorf("key %q: %w", c.Key, err)
		}
		return filter.NewRange(c.Key, r)
	}
}

func searchResponseToAPI(resp *searchuc.Response) SearchResponse {
	items := make([]SearchResultItem, len(resp.Results))
	for i, sr := range resp.Results {
		r := sr.Result()
		item := SearchResultItem{
			ID:         r.ID(),
			Collection: r.Collection(),
			Score:      sr.Composite(),
			Content:    r.Content(),
			Tags:       r.Tags(),
			Numerics:   r.Numerics(),
		}
		if ts, ok := r.Timestamp(); ok {
			item.Timestamp = &ts
		}
		for _, c := range sr.Contributions() {
			item.Scoring = append(item.Scoring, ScoreContribution{
				Stage: c.Stage,
				Op:    string(c.Op),
				Value: c.Value,
			})
		}
		items[i] = item
	}

	out := SearchResponse{
		QueryID:         resp.QueryID,
		Status:          string(resp.Status),
		Results:         items,
		ExpandedQueries: resp.ExpandedQueries,
		DurationMs:      resp.Duration.Milliseconds(),
	}
	if out.ExpandedQueries == nil {
		out.ExpandedQueries = []string{}
	}
	if resp.Answer != nil {
		citations := resp.Answer.Citations()
		if citations == nil {
			citations = []string{}
		}
		out.Completion = &Completion{
			Text:      resp.Answer.Text(),
			Citations: citations,
			Model:     resp.Answer.Model(),
		}
	}
	for _, d := range resp.Degraded {
		out.Degraded = append(out.Degraded, Degradation{Stage: d.Stage, Target: d.Target, Reason: d.Reason})
	}
	return out
}

func collectionToAPI(c domain.Collection) Collection {
	return Collection{
		ID:             c.ID,
		Backend:        string(c.Backend),
		EmbeddingModel: c.EmbeddingModel,
		Dimensions:     c.Dimensions,
		Sources:        c.Sources,
	}
}
