package collector

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// DefaultSelectors 是网页来源没有配置选择器时使用的通用标题选择器
var DefaultSelectors = []string{
	"h1 a", "h2 a", "h3 a",
	".headline a", ".title a",
	"article h2", "article h3",
}

// PageFetcher 通过 CSS 选择器 + “长链接文本”兜底从网页中提取标题
type PageFetcher struct{}

func (p *PageFetcher) Name() string {
	return "page"
}

// harvested 是回调里收集到的原始元素：文本和链接
type harvested struct {
	text string
	href string
}

func (p *PageFetcher) Fetch(ctx context.Context, sess *Session, src Source, limit int) []Candidate {
	log := sess.Log.With(zap.String("source", src.Name), zap.String("adapter", p.Name()))

	base, err := url.Parse(src.PageURL)
	if err != nil || base.Host == "" {
		log.Warn("invalid page url", zap.String("url", src.PageURL))
		return nil
	}
	domain := src.Domain
	if domain == "" {
		domain = base.Hostname()
	}

	found, err := p.harvest(ctx, sess, base.String(), src.Selectors, log)
	if err != nil {
		log.Warn("page fetch failed", zap.Error(err))
		return nil
	}

	placeholder := src.Placeholder
	if placeholder == "" {
		placeholder = "Story collected from the " + src.Name + " homepage"
	}

	results := p.toCandidates(sess, src.Name, placeholder, base, domain, found, limit)
	log.Info("page done", zap.Int("harvested", len(found)), zap.Int("count", len(results)))
	return results
}

// harvest 发起一次 GET，按选择器顺序收集元素，再用所有 a[href] 做兜底
func (p *PageFetcher) harvest(ctx context.Context, sess *Session, pageURL string, selectors []string, log *zap.Logger) ([]harvested, error) {
	opts := sess.Page
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}

	c := newHTMLCollector(ctx, sess, log)

	var found []harvested

	// colly 按注册顺序执行 OnHTML 回调，因此选择器的先后就是优先级
	for _, sel := range selectors {
		if _, err := cascadia.Compile(sel); err != nil {
			log.Debug("skip invalid selector", zap.String("selector", sel), zap.Error(err))
			continue
		}
		c.OnHTML(sel, func(e *colly.HTMLElement) {
			if e.Index >= opts.SelectorCap {
				return
			}
			found = append(found, harvested{text: e.Text, href: linkOf(e.DOM)})
		})
	}

	// 兜底：只看前 AnchorScan 个链接，保留文本长度像标题的
	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		if e.Index >= opts.AnchorScan {
			return
		}
		n := RuneLen(strings.TrimSpace(e.Text))
		if n > opts.AnchorMinLen && n < opts.AnchorMaxLen {
			found = append(found, harvested{text: e.Text, href: e.Attr("href")})
		}
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

// ctxTransport 把 ctx 绑定到 colly 发出的每个请求上，ctx 结束时请求随之中断
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *ctxTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// newHTMLCollector 创建一次性的 colly collector：浏览器 UA、超时、限速，请求受 ctx 控制
func newHTMLCollector(ctx context.Context, sess *Session, log *zap.Logger) *colly.Collector {
	c := colly.NewCollector(colly.UserAgent(sess.UserAgent))
	c.SetRequestTimeout(sess.PageTimeout)

	base := sess.HTTP.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.WithTransport(&ctxTransport{ctx: ctx, base: base})

	c.OnRequest(func(r *colly.Request) {
		if err := sess.Wait(ctx); err != nil {
			log.Debug("abort page request", zap.Error(err))
			r.Abort()
			return
		}
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", sess.AcceptLanguage)
	})
	return c
}

func (p *PageFetcher) toCandidates(sess *Session, source, placeholder string, base *url.URL, domain string, found []harvested, limit int) []Candidate {
	opts := sess.Page
	if opts.MaxHarvest > 0 && len(found) > opts.MaxHarvest {
		found = found[:opts.MaxHarvest]
	}

	seen := make(map[string]struct{}, len(found))
	results := make([]Candidate, 0, limit)
	for _, h := range found {
		title := Clean(h.text)
		if RuneLen(title) < opts.MinTitleLen || RuneLen(title) < sess.Limits.MinTitle {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}

		link, ok := resolveLink(base, h.href)
		if !ok || !sameSite(link, domain) {
			continue
		}

		results = append(results, Candidate{
			Title:         Truncate(title, sess.Limits.TitleMax),
			Summary:       placeholder,
			Source:        source,
			PublishedDate: sess.RunDate,
			URL:           link.String(),
			Origin:        OriginPage,
		})
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results
}

// linkOf 元素本身是链接时取 href，否则取第一个子链接
func linkOf(sel *goquery.Selection) string {
	if goquery.NodeName(sel) == "a" {
		if href, ok := sel.Attr("href"); ok {
			return href
		}
	}
	href, _ := sel.Find("a[href]").First().Attr("href")
	return href
}

// resolveLink 以 / 开头的相对路径按来源站点补全；其他非 http(s) 链接丢弃
func resolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return nil, false
	}
	lower := strings.ToLower(href)
	switch {
	case strings.HasPrefix(href, "/"):
		ref, err := url.Parse(href)
		if err != nil {
			return nil, false
		}
		return base.ResolveReference(ref), true
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		u, err := url.Parse(href)
		if err != nil || u.Host == "" {
			return nil, false
		}
		return u, true
	default:
		return nil, false
	}
}

// sameSite 比较 host 与配置的域名，忽略 www. 前缀并允许子域名
func sameSite(u *url.URL, domain string) bool {
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
	if host == "" || d == "" {
		return false
	}
	return host == d || strings.HasSuffix(host, "."+d)
}
