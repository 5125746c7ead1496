package collector

import (
	"context"
	"io"
	"net/http"

	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const defaultFeedPlaceholder = "No summary available"

// FeedFetcher 解析 RSS / Atom 订阅源
type FeedFetcher struct{}

func (f *FeedFetcher) Name() string {
	return "feed"
}

func (f *FeedFetcher) Fetch(ctx context.Context, sess *Session, src Source, limit int) []Candidate {
	log := sess.Log.With(zap.String("source", src.Name), zap.String("adapter", f.Name()))
	log.Debug("fetch feed", zap.String("url", src.FeedURL))

	feed, err := f.load(ctx, sess, src.FeedURL)
	if err != nil {
		log.Warn("feed fetch failed", zap.Error(err))
		return nil
	}
	if len(feed.Items) == 0 {
		log.Info("feed has no entries")
		return nil
	}

	entries := feed.Items
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	placeholder := src.Placeholder
	if placeholder == "" {
		placeholder = defaultFeedPlaceholder
	}

	results := make([]Candidate, 0, len(entries))
	for _, entry := range entries {
		c, ok := f.toCandidate(sess, src.Name, placeholder, entry)
		if !ok {
			continue
		}
		results = append(results, c)
	}

	log.Info("feed done", zap.Int("entries", len(entries)), zap.Int("count", len(results)))
	return results
}

func (f *FeedFetcher) load(ctx context.Context, sess *Session, feedURL string) (*gofeed.Feed, error) {
	if feedURL == "" {
		return nil, eris.New("feed url is empty")
	}
	if err := sess.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	req.Header.Set("User-Agent", sess.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := sess.HTTP.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "request feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("unexpected status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "parse feed")
	}
	return feed, nil
}

// toCandidate 处理单个条目；没有标题或标题过短的条目被跳过
func (f *FeedFetcher) toCandidate(sess *Session, source, placeholder string, entry *gofeed.Item) (Candidate, bool) {
	if entry == nil {
		return Candidate{}, false
	}
	title := Truncate(Clean(entry.Title), sess.Limits.TitleMax)
	if title == "" || RuneLen(title) < sess.Limits.MinTitle {
		return Candidate{}, false
	}

	summary := Clean(entry.Description)
	if summary == "" {
		summary = Clean(entry.Content)
	}
	summary = Truncate(summary, sess.Limits.SummaryMax)
	if summary == "" {
		summary = placeholder
	}

	date := sess.RunDate
	switch {
	case entry.PublishedParsed != nil:
		date = sess.DateOf(*entry.PublishedParsed)
	case entry.UpdatedParsed != nil:
		date = sess.DateOf(*entry.UpdatedParsed)
	}

	return Candidate{
		Title:         title,
		Summary:       summary,
		Source:        source,
		PublishedDate: date,
		URL:           entry.Link,
		Origin:        OriginFeed,
	}, true
}
