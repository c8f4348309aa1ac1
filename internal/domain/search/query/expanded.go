package query

import "strings"

// Expanded is the set of query variants searched for one request. The
// original text is always present and listed first.
type Expanded struct {
	variants []string
}

// NewExpanded builds the variant set from the original text and alternatives.
// Blank and case-insensitive duplicate alternatives are dropped; the result holds
// at most limit variants including the original.
func NewExpanded(original string, alternatives []string, limit int) Expanded {
	if limit < 1 {
		limit = 1
	}
	variants := []string{original}
	seen := map[string]struct{}{normalize(original): {}}
	for _, alt := range alternatives {
		if len(variants) >= limit {
			break
		}
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		key := normalize(alt)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		variants = append(variants, alt)
	}
	return Expanded{variants: variants}
}

// Original returns the original query text.
func (e Expanded) Original() string {
	if len(e.variants) == 0 {
		return ""
	}
	return e.variants[0]
}

// Variants returns a copy of all variants, original first.
func (e Expanded) Variants() []string { return append([]string(nil), e.variants...) }

// Alternatives returns variants other than the original.
func (e Expanded) Alternatives() []string {
	if len(e.variants) <= 1 {
		return nil
	}
	return append([]string(nil), e.variants[1:]...)
}

// Len returns the number of variants.
func (e Expanded) Len() int { return len(e.variants) }

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
