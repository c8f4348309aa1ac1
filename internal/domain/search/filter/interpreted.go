package filter

import (
	"fmt"
	"time"
)

// Payload keys the interpreted filter constrains.
const (
	FieldCreatedAt  = "created_at" // unix seconds
	FieldSourceName = "source_name"
	FieldEntityType = "entity_type"
)

// TimeRange bounds content timestamps. A zero bound is open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Interpreted holds structured constraints extracted from free text.
// The zero value means "no filter".
type Interpreted struct {
	timeRange   *TimeRange
	sourceTypes []string
	entityTypes []string
}

// NewInterpreted validates extracted constraints. An inverted time range is an error.
func NewInterpreted(tr *TimeRange, sourceTypes, entityTypes []string) (Interpreted, error) {
	if tr != nil {
		if tr.From.IsZero() && tr.To.IsZero() {
			tr = nil
		} else if !tr.From.IsZero() && !tr.To.IsZero() && tr.From.After(tr.To) {
			return Interpreted{}, fmt.Errorf("time range start %s is after end %s",
				tr.From.Format(time.RFC3339), tr.To.Format(time.RFC3339))
		}
	}
	return Interpreted{
		timeRange:   tr,
		sourceTypes: dedupe(sourceTypes),
		entityTypes: dedupe(entityTypes),
	}, nil
}

// TimeRange returns the time bounds, nil when absent.
func (f Interpreted) TimeRange() *TimeRange { return f.timeRange }

// SourceTypes returns the source connector names.
func (f Interpreted) SourceTypes() []string { return f.sourceTypes }

// EntityTypes returns the entity type names.
func (f Interpreted) EntityTypes() []string { return f.entityTypes }

// IsEmpty reports whether no constraint was extracted.
func (f Interpreted) IsEmpty() bool {
	return f.timeRange == nil && len(f.sourceTypes) == 0 && len(f.entityTypes) == 0
}

// Expression converts the constraints into must conditions.
func (f Interpreted) Expression() (Expression, error) {
	var must []Condition
	if tr := f.timeRange; tr != nil {
		var gte, lte *float64
		if !tr.From.IsZero() {
			v := float64(tr.From.Unix())
			gte = &v
		}
		if !tr.To.IsZero() {
			v := float64(tr.To.Unix())
			lte = &v
		}
		r, err := NewRangeFilter(nil, gte, nil, lte)
		if err != nil {
			return Expression{}, err
		}
		c, err := NewRange(FieldCreatedAt, r)
		if err != nil {
			return Expression{}, err
		}
		must = append(must, c)
	}
	if len(f.sourceTypes) > 0 {
		c, err := NewMatchAny(FieldSourceName, f.sourceTypes)
		if err != nil {
			return Expression{}, err
		}
		must = append(must, c)
	}
	if len(f.entityTypes) > 0 {
		c, err := NewMatchAny(FieldEntityType, f.entityTypes)
		if err != nil {
			return Expression{}, err
		}
		must = append(must, c)
	}
	return NewExpression(must, nil, nil)
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
