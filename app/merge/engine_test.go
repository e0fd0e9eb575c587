package merge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lysyi3m/rssmaker/app/extract"
	"github.com/lysyi3m/rssmaker/app/feed"
)

var d = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func sequentialGUIDs() Option {
	n := 0
	return WithGUIDFunc(func() string {
		n++
		return fmt.Sprintf("guid-%d", n)
	})
}

func candidate(link, description string, pubDate time.Time) *extract.Candidate {
	return &extract.Candidate{
		Title:       link,
		Link:        link,
		Description: description,
		PubDate:     pubDate,
		Granularity: time.Hour,
	}
}

func links(doc *feed.Document) []string {
	out := make([]string, len(doc.Items))
	for i, item := range doc.Items {
		out[i] = item.Link
	}
	return out
}

func assertLinks(t *testing.T, doc *feed.Document, want ...string) {
	t.Helper()
	got := links(doc)
	if len(got) != len(want) {
		t.Fatalf("Expected links %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected links %v, got %v", want, got)
		}
	}
}

func TestEngineUnchangedStops(t *testing.T) {
	doc := &feed.Document{Items: []feed.Item{
		{Link: "/game/a", Description: "Price $5", PubDate: d, GUID: "old-a"},
	}}
	engine := NewEngine(doc, 10, sequentialGUIDs())

	stop, err := engine.Accept(context.Background(), candidate("/game/a", "Price $5", d))
	if err != nil {
		t.Fatal(err)
	}

	if !stop {
		t.Error("Expected stop for unchanged item")
	}
	if engine.Changed() {
		t.Error("Expected no change")
	}
	if engine.NewItems() != 0 {
		t.Errorf("Expected 0 new items, got %d", engine.NewItems())
	}
	if doc.Items[0].GUID != "old-a" {
		t.Errorf("Expected guid to be kept, got '%s'", doc.Items[0].GUID)
	}
}

func TestEngineChangedDescriptionReplaces(t *testing.T) {
	doc := &feed.Document{Items: []feed.Item{
		{Link: "/game/z", Description: "Price $1", PubDate: d.Add(time.Hour), GUID: "old-z"},
		{Link: "/game/a", Description: "Price $5", PubDate: d, GUID: "old-a"},
	}}
	engine := NewEngine(doc, 10, sequentialGUIDs())

	stop, err := engine.Accept(context.Background(), candidate("/game/a", "Price $3", d))
	if err != nil {
		t.Fatal(err)
	}

	if stop {
		t.Error("Expected no stop for changed item")
	}
	if !engine.Changed() {
		t.Error("Expected change flag to be set")
	}
	if engine.Replaced() != 1 || engine.Inserted() != 0 {
		t.Errorf("Expected 1 replaced and 0 inserted, got %d and %d", engine.Replaced(), engine.Inserted())
	}

	assertLinks(t, doc, "/game/a", "/game/z")
	if doc.Items[0].GUID == "old-a" {
		t.Error("Expected a fresh guid for replaced item")
	}
	if doc.Items[0].Description != "Price $3" {
		t.Errorf("Expected description 'Price $3', got '%s'", doc.Items[0].Description)
	}
}

func TestEngineBatchOrdering(t *testing.T) {
	doc := &feed.Document{Items: []feed.Item{
		{Link: "/old/1", Description: "x", PubDate: d},
		{Link: "/old/2", Description: "y", PubDate: d.Add(-time.Hour)},
	}}
	engine := NewEngine(doc, 10, sequentialGUIDs())
	ctx := context.Background()

	for _, link := range []string{"/new/1", "/new/2", "/new/3"} {
		if stop, err := engine.Accept(ctx, candidate(link, "desc", d.Add(3*time.Hour))); err != nil || stop {
			t.Fatalf("Unexpected result for %s: stop=%v err=%v", link, stop, err)
		}
	}
	stop, _ := engine.Accept(ctx, candidate("/old/1", "x", d))
	if !stop {
		t.Error("Expected stop at first known item")
	}

	assertLinks(t, doc, "/new/1", "/new/2", "/new/3", "/old/1", "/old/2")
	if engine.NewItems() != 3 {
		t.Errorf("Expected 3 new items, got %d", engine.NewItems())
	}
	for i, want := range []string{"guid-1", "guid-2", "guid-3"} {
		if doc.Items[i].GUID != want {
			t.Errorf("Item %d: expected guid '%s', got '%s'", i, want, doc.Items[i].GUID)
		}
	}
}

func TestEngineEvictionAboveCursorKeepsOrder(t *testing.T) {
	doc := &feed.Document{Items: []feed.Item{
		{Link: "/old/1", Description: "x", PubDate: d},
	}}
	engine := NewEngine(doc, 10, sequentialGUIDs())
	ctx := context.Background()

	engine.Accept(ctx, candidate("/new/1", "a", d))
	engine.Accept(ctx, candidate("/new/2", "b", d))
	// The same link shows up again in the run with a different description.
	engine.Accept(ctx, candidate("/new/1", "c", d))
	engine.Accept(ctx, candidate("/new/3", "d", d))

	assertLinks(t, doc, "/new/2", "/new/1", "/new/3", "/old/1")
	if engine.NewItems() != 3 {
		t.Errorf("Expected 3 new items, got %d", engine.NewItems())
	}
}

func TestEngineIdempotent(t *testing.T) {
	doc := &feed.Document{}
	engine := NewEngine(doc, 10, sequentialGUIDs())
	ctx := context.Background()

	batch := []*extract.Candidate{
		candidate("/a", "A", d.Add(2*time.Hour)),
		candidate("/b", "B", d.Add(time.Hour)),
		candidate("/c", "C", d),
	}
	for _, c := range batch {
		engine.Accept(ctx, c)
	}
	engine.Finalize()

	before := make([]feed.Item, len(doc.Items))
	copy(before, doc.Items)

	second := NewEngine(doc, 10, sequentialGUIDs())
	for _, c := range batch {
		stop, err := second.Accept(ctx, c)
		if err != nil {
			t.Fatal(err)
		}
		if stop {
			break
		}
	}
	second.Finalize()

	if second.Changed() {
		t.Error("Expected second run to report no change")
	}
	if len(doc.Items) != len(before) {
		t.Fatalf("Expected %d items, got %d", len(before), len(doc.Items))
	}
	for i := range before {
		if doc.Items[i].Link != before[i].Link || doc.Items[i].GUID != before[i].GUID {
			t.Errorf("Item %d changed: %+v -> %+v", i, before[i], doc.Items[i])
		}
	}
}

func TestEngineCapInvariant(t *testing.T) {
	var items []feed.Item
	for i := 0; i < 8; i++ {
		items = append(items, feed.Item{Link: fmt.Sprintf("/old/%d", i), Description: "x", PubDate: d})
	}
	doc := &feed.Document{Items: items}

	engine := NewEngine(doc, 5, sequentialGUIDs())
	if len(doc.Items) != 5 {
		t.Fatalf("Expected load to trim to 5 items, got %d", len(doc.Items))
	}

	// Items beyond the ceiling are no longer known.
	stop, _ := engine.Accept(context.Background(), candidate("/old/7", "x", d))
	if stop {
		t.Error("Expected trimmed item to be treated as new")
	}

	for i := 0; i < 4; i++ {
		engine.Accept(context.Background(), candidate(fmt.Sprintf("/new/%d", i), "y", d))
	}

	engine.Finalize()
	if len(doc.Items) != 5 {
		t.Errorf("Expected 5 items after finalize, got %d", len(doc.Items))
	}
	if doc.Items[0].Link != "/old/7" {
		t.Errorf("Expected newest insert first, got '%s'", doc.Items[0].Link)
	}
}

func TestEngineDropsDuplicateLinksOnLoad(t *testing.T) {
	doc := &feed.Document{Items: []feed.Item{
		{Link: "/a", Description: "new", PubDate: d},
		{Link: "/b", Description: "b", PubDate: d},
		{Link: "/a", Description: "old", PubDate: d.Add(-time.Hour)},
	}}
	NewEngine(doc, 10)

	assertLinks(t, doc, "/a", "/b")
	if doc.Items[0].Description != "new" {
		t.Errorf("Expected first occurrence to be kept, got '%s'", doc.Items[0].Description)
	}
}

func TestEngineDefaultGUIDsAreUnique(t *testing.T) {
	doc := &feed.Document{Items: []feed.Item{
		{Link: "/game/a", Description: "Price $5", PubDate: d, GUID: "old-a"},
	}}
	engine := NewEngine(doc, 10)

	engine.Accept(context.Background(), candidate("/game/a", "Price $3", d))
	engine.Accept(context.Background(), candidate("/game/b", "Price $4", d))

	if doc.Items[0].GUID == "" || doc.Items[0].GUID == "old-a" {
		t.Errorf("Expected a fresh guid, got '%s'", doc.Items[0].GUID)
	}
	if doc.Items[0].GUID == doc.Items[1].GUID {
		t.Error("Expected distinct guids")
	}
}
