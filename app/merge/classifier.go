package merge

import (
	"github.com/lysyi3m/rssmaker/app/extract"
	"github.com/lysyi3m/rssmaker/app/feed"
)

type Classification int

const (
	New Classification = iota
	Changed
	Unchanged
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Changed:
		return "changed"
	case Unchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Classify compares a candidate with the retained item sharing its link.
// known is nil when no such item exists.
//
// A candidate with the same description is only considered changed when it
// surfaced more than one recency unit later than the stored item, which
// absorbs the rounding of "N units ago" between runs.
func Classify(c *extract.Candidate, known *feed.Item) Classification {
	if known == nil {
		return New
	}
	if c.Description != known.Description {
		return Changed
	}
	if c.PubDate.After(known.PubDate.Add(c.Granularity)) {
		return Changed
	}
	return Unchanged
}
