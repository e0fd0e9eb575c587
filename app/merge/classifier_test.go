package merge

import (
	"testing"
	"time"

	"github.com/lysyi3m/rssmaker/app/extract"
	"github.com/lysyi3m/rssmaker/app/feed"
)

func TestClassify(t *testing.T) {
	d := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	known := &feed.Item{Link: "/game/a", Description: "Price $5", PubDate: d}

	tests := []struct {
		name      string
		candidate extract.Candidate
		known     *feed.Item
		want      Classification
	}{
		{
			name:      "no known item",
			candidate: extract.Candidate{Link: "/game/a", Description: "Price $5", PubDate: d, Granularity: time.Hour},
			known:     nil,
			want:      New,
		},
		{
			name:      "description differs",
			candidate: extract.Candidate{Link: "/game/a", Description: "Price $3", PubDate: d, Granularity: time.Hour},
			known:     known,
			want:      Changed,
		},
		{
			name:      "same timestamp",
			candidate: extract.Candidate{Link: "/game/a", Description: "Price $5", PubDate: d, Granularity: time.Hour},
			known:     known,
			want:      Unchanged,
		},
		{
			name:      "exactly one unit later",
			candidate: extract.Candidate{Link: "/game/a", Description: "Price $5", PubDate: d.Add(time.Hour), Granularity: time.Hour},
			known:     known,
			want:      Unchanged,
		},
		{
			name:      "two units later",
			candidate: extract.Candidate{Link: "/game/a", Description: "Price $5", PubDate: d.Add(2 * time.Hour), Granularity: time.Hour},
			known:     known,
			want:      Changed,
		},
		{
			name:      "earlier timestamp",
			candidate: extract.Candidate{Link: "/game/a", Description: "Price $5", PubDate: d.Add(-time.Hour), Granularity: time.Hour},
			known:     known,
			want:      Unchanged,
		},
		{
			name:      "minute granularity",
			candidate: extract.Candidate{Link: "/game/a", Description: "Price $5", PubDate: d.Add(2 * time.Minute), Granularity: time.Minute},
			known:     known,
			want:      Changed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(&tt.candidate, tt.known)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
