package collector

import (
	"context"

	"go.uber.org/zap"
)

// Router 是唯一的来源适配器：按 Source.Kind 选择抓取策略，
// 并在配置了 FallbackToPage 时，RSS 无结果后改抓同一来源的网页。
type Router struct {
	Feed Fetcher
	Page Fetcher
}

// NewRouter 使用默认的 FeedFetcher 与 PageFetcher
func NewRouter() *Router {
	return &Router{Feed: &FeedFetcher{}, Page: &PageFetcher{}}
}

func (r *Router) Name() string {
	return "router"
}

func (r *Router) Fetch(ctx context.Context, sess *Session, src Source, limit int) []Candidate {
	switch src.Kind {
	case KindFeed:
		items := r.Feed.Fetch(ctx, sess, src, limit)
		if len(items) > 0 || !src.FallbackToPage || src.PageURL == "" {
			return items
		}
		if ctx.Err() != nil {
			return nil
		}
		sess.Log.Info("feed empty, falling back to page", zap.String("source", src.Name))
		return r.Page.Fetch(ctx, sess, src, limit)
	case KindPage:
		return r.Page.Fetch(ctx, sess, src, limit)
	default:
		sess.Log.Warn("unknown source kind", zap.String("source", src.Name), zap.String("kind", string(src.Kind)))
		return nil
	}
}
