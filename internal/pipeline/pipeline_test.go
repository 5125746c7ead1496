package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/newsdigest/internal/collector"
	"github.com/LJTian/newsdigest/internal/processor"
)

var fixedNow = time.Date(2024, 2, 1, 15, 0, 0, 0, time.UTC)

func newProcessor(max int) *processor.Processor {
	return processor.NewProcessor(&processor.FuzzyDeduper{Threshold: processor.DefaultThreshold}, processor.Ranker{Max: max}, processor.Enricher{})
}

func TestRunNoSources(t *testing.T) {
	p := New(funcFetcher(nil), newProcessor(25), Config{Now: func() time.Time { return fixedNow }}, nil)

	d, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoNews))
	assert.NotNil(t, d.Items)
	assert.Empty(t, d.Items)
	assert.Equal(t, "2024-02-01", d.RunDate)
	assert.NotEmpty(t, d.RunID)
}

func TestRunAllSourcesEmpty(t *testing.T) {
	f := funcFetcher(func(ctx context.Context, src collector.Source, limit int) []collector.Candidate {
		return nil
	})
	p := New(f, newProcessor(25), Config{Sources: sourcesNamed("a", "b", "c")}, nil)

	d, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoNews)
	assert.Empty(t, d.Items)
	assert.Equal(t, 3, d.Stats.Sources)
}

func TestRunDedupesRanksAndEnriches(t *testing.T) {
	byName := map[string][]collector.Candidate{
		"La Nación": {
			{Title: "Senate approves new budget bill", Source: "La Nación", PublishedDate: "2024-01-31"},
			{Title: "tiny", Source: "La Nación", PublishedDate: "2024-02-01"},
		},
		"Infobae": {
			{Title: "Senate Approves New Budget Bill!!", Source: "Infobae", PublishedDate: "2024-02-01"},
			{Title: "Central bank keeps rates unchanged", Source: "Infobae", PublishedDate: "2024-02-01"},
		},
	}
	f := funcFetcher(func(ctx context.Context, src collector.Source, limit int) []collector.Candidate {
		return byName[src.Name]
	})
	p := New(f, newProcessor(25), Config{
		Sources: sourcesNamed("La Nación", "Infobae"),
		Fetch:   Options{Concurrency: 1},
		Now:     func() time.Time { return fixedNow },
	}, nil)

	d, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, d.Stats.Candidates)
	assert.Equal(t, 3, d.Stats.Kept)
	assert.Equal(t, 2, d.Stats.Unique)
	assert.Equal(t, 2, d.Stats.Final)
	require.Len(t, d.Items, 2)

	// 两条 Senate 只保留先到的一条；排序后 02-01 在前
	titles := []string{d.Items[0].Title, d.Items[1].Title}
	assert.ElementsMatch(t, []string{"Senate approves new budget bill", "Central bank keeps rates unchanged"}, titles)
	assert.Equal(t, "Central bank keeps rates unchanged", d.Items[0].Title)
	assert.Equal(t, 1, d.Items[0].ID)
	assert.Equal(t, 2, d.Items[1].ID)
	assert.Equal(t, fixedNow, d.GeneratedAt)

	total := 0
	for _, n := range d.Stats.Distribution {
		total += n
	}
	assert.Equal(t, d.Stats.Final, total)
}

func TestRunWithFeedServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(`<?xml version="1.0"?>
<rss version="2.0"><channel><title>t</title>
<item><title>Governors meet to discuss transport funding</title><description>&lt;p&gt;Talks continue&lt;/p&gt;</description><link>https://example.com/a</link></item>
<item><title>River Plate wins the derby at the Monumental</title><link>https://example.com/b</link></item>
</channel></rss>`))
	}))
	defer srv.Close()

	sources := []collector.Source{
		{Name: "Feed", Kind: collector.KindFeed, FeedURL: srv.URL},
		{Name: "Broken", Kind: collector.KindFeed, FeedURL: srv.URL + "/missing\x7f"},
	}
	p := New(collector.NewRouter(), newProcessor(25), Config{
		Sources: sources,
		Fetch:   Options{TaskTimeout: 2 * time.Second, Deadline: 5 * time.Second},
		Now:     func() time.Time { return fixedNow },
	}, nil)

	d, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, d.Items, 2)
	for _, it := range d.Items {
		assert.Equal(t, "Feed", it.Source)
		assert.Equal(t, "2024-02-01", it.PublishedDate, "missing dates default to the run date")
		assert.Equal(t, collector.OriginFeed, it.Origin)
	}
	assert.Equal(t, map[string]int{"Feed": 2}, d.Stats.Distribution)
}
