package domain

import (
	"math"
	"sort"
	"strings"
)

// SortOrder names a post ordering applied by consumers of a lane.
type SortOrder string

const (
	SortHot           SortOrder = "hot" // feed order
	SortNew           SortOrder = "new"
	SortTop           SortOrder = "top"
	SortControversial SortOrder = "controversial"
)

// ParseSortOrder accepts the names above and falls back to hot.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortNew:
		return SortNew
	case SortTop:
		return SortTop
	case SortControversial:
		return SortControversial
	default:
		return SortHot
	}
}

// View filters and orders a lane's posts for display.
type View struct {
	Sort     SortOrder
	HideNSFW bool
	MinScore *int
	MaxScore *int
	Query    string
}

// Apply returns a new slice; the input is never reordered.
func (v View) Apply(posts []Post) []Post {
	q := strings.ToLower(strings.TrimSpace(v.Query))
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		if v.HideNSFW && isNSFW(p) {
			continue
		}
		if v.MinScore != nil && p.Score < *v.MinScore {
			continue
		}
		if v.MaxScore != nil && p.Score > *v.MaxScore {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Title), q) {
			continue
		}
		out = append(out, p)
	}

	switch v.Sort {
	case SortNew:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case SortTop:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	case SortControversial:
		sort.SliceStable(out, func(i, j int) bool { return controversy(out[i]) > controversy(out[j]) })
	}
	return out
}

func isNSFW(p Post) bool {
	if p.NSFW {
		return true
	}
	t := strings.ToLower(p.Title)
	return strings.Contains(t, "nsfw") || strings.Contains(t, "spoiler")
}

// controversy is |score| per comment; posts without comments score zero.
func controversy(p Post) float64 {
	if p.CommentCount <= 0 {
		return 0
	}
	return math.Abs(float64(p.Score)) / float64(p.CommentCount)
}
