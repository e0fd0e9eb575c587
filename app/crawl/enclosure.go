package crawl

import (
	"context"
	"strconv"

	"github.com/lysyi3m/rssmaker/app/feed"
)

// EnclosureResolver looks up the size and media type of listing images with
// a HEAD request.
type EnclosureResolver struct {
	fetcher Fetcher
}

func NewEnclosureResolver(fetcher Fetcher) *EnclosureResolver {
	return &EnclosureResolver{fetcher: fetcher}
}

func (r *EnclosureResolver) Resolve(ctx context.Context, url string) (*feed.Enclosure, error) {
	resp, err := r.fetcher.Head(ctx, url)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	enclosure := &feed.Enclosure{
		URL:  url,
		Type: resp.Header.Get("Content-Type"),
	}
	if resp.ContentLength > 0 {
		enclosure.Length = resp.ContentLength
	} else if length, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil && length > 0 {
		enclosure.Length = length
	}

	return enclosure, nil
}
