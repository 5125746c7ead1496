package collector

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	defaultMinParagraph = 50
	defaultLeadMax      = 300
	defaultContentMax   = 20000
)

// ErrNoContent 表示页面可以访问，但没有可用的正文段落
var ErrNoContent = eris.New("no article content found")

// Article 是从单篇文章页面提取出的正文
type Article struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Lead    string `json:"lead"`
	Content string `json:"content"`
	Length  int    `json:"length"`
}

// Extractor 抓取单篇文章并提取正文段落。
// 优先取 article 内的 p，页面没有 article 时退回到所有 p。
type Extractor struct {
	Session SessionOptions
	// MinParagraph 是导语段落的最短字符数（不含）
	MinParagraph int
	LeadMax      int
	ContentMax   int
}

func NewExtractor(opts SessionOptions) *Extractor {
	return &Extractor{
		Session:      opts,
		MinParagraph: defaultMinParagraph,
		LeadMax:      defaultLeadMax,
		ContentMax:   defaultContentMax,
	}
}

// Extract 对 rawURL 发起一次 GET。无法访问时返回错误，没有正文时返回 ErrNoContent。
func (x *Extractor) Extract(ctx context.Context, rawURL string) (Article, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Article{}, eris.Errorf("invalid article url %q", rawURL)
	}

	sess := NewSession(x.Session, time.Now())
	log := sess.Log.With(zap.String("url", u.String()))

	var (
		title      string
		paragraphs []string
	)
	c := newHTMLCollector(ctx, sess, log)
	c.OnHTML("html", func(e *colly.HTMLElement) {
		title = Clean(e.DOM.Find("title").First().Text())

		sel := e.DOM.Find("article p")
		if sel.Length() == 0 {
			sel = e.DOM.Find("p")
		}
		sel.Each(func(_ int, p *goquery.Selection) {
			if text := Clean(p.Text()); text != "" {
				paragraphs = append(paragraphs, text)
			}
		})
	})

	if err := c.Visit(u.String()); err != nil {
		return Article{}, eris.Wrap(err, "fetch article")
	}
	if err := ctx.Err(); err != nil {
		return Article{}, eris.Wrap(err, "fetch article")
	}

	a := x.assemble(u.String(), title, paragraphs)
	if a.Content == "" {
		log.Info("article has no paragraphs")
		return a, ErrNoContent
	}
	log.Info("article extracted", zap.Int("paragraphs", len(paragraphs)), zap.Int("length", a.Length))
	return a, nil
}

func (x *Extractor) assemble(pageURL, title string, paragraphs []string) Article {
	minPara := x.MinParagraph
	if minPara <= 0 {
		minPara = defaultMinParagraph
	}
	leadMax := x.LeadMax
	if leadMax <= 0 {
		leadMax = defaultLeadMax
	}
	contentMax := x.ContentMax
	if contentMax <= 0 {
		contentMax = defaultContentMax
	}

	a := Article{URL: pageURL, Title: title}
	for _, p := range paragraphs {
		if RuneLen(p) > minPara {
			a.Lead = Truncate(p, leadMax)
			break
		}
	}
	a.Content = Truncate(strings.Join(paragraphs, "\n\n"), contentMax)
	a.Length = RuneLen(a.Content)
	return a
}
