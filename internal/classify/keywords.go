package classify

import (
	"sort"
	"strings"
)

// DefaultKeywords is the built-in category table used when the caller does
// not supply one. Keywords mix Vietnamese and English because the corpus
// does.
var DefaultKeywords = map[string][]string{
	"A": {"kế hoạch", "plan", "chiến lược", "strategy"},
	"B": {"marketing", "quảng cáo", "bán hàng", "sales"},
	"C": {"báo cáo", "report", "thống kê", "statistics"},
	"D": {"hướng dẫn", "guide", "manual", "tutorial"},
	"E": {"khác", "other", "miscellaneous"},
}

// FallbackLabel is assigned when no keyword matches.
const FallbackLabel = "E"

// MatchKeywords assigns a label by scanning text (typically filename plus
// preview) for the first category, in sorted key order, with a keyword hit.
// Returns FallbackLabel when nothing matches. Purely lexical, no oracle.
func MatchKeywords(text string, keywords map[string][]string) string {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	lower := strings.ToLower(text)

	names := make([]string, 0, len(keywords))
	for name := range keywords {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, kw := range keywords[name] {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return name
			}
		}
	}
	return FallbackLabel
}

// DescribeCategories renders a keyword table as category descriptions for
// the batched oracle prompt, one "name: kw1, kw2" line per category in
// sorted key order.
func DescribeCategories(keywords map[string][]string) map[string]string {
	out := make(map[string]string, len(keywords))
	for name, kws := range keywords {
		out[name] = strings.Join(kws, ", ")
	}
	return out
}
