package collector

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultAcceptLanguage = "es-AR,es;q=0.9,en;q=0.8"
	defaultFeedTimeout    = 10 * time.Second
	defaultPageTimeout    = 8 * time.Second
	maxBodyBytes          = 4 << 20 // 4MB，防止超大响应
)

// Limits 控制各字段的截断长度
type Limits struct {
	TitleMax   int
	SummaryMax int
	// MinTitle 是归一化后标题的最小字符数，低于此值的条目直接丢弃
	MinTitle int
}

// DefaultLimits 标题 120、摘要 250、最短标题 6
func DefaultLimits() Limits {
	return Limits{TitleMax: 120, SummaryMax: 250, MinTitle: 6}
}

// PageOptions 控制网页抓取时的候选收集
type PageOptions struct {
	SelectorCap  int // 每个选择器最多取几个匹配
	AnchorScan   int // 兜底阶段只看前 N 个 a[href]
	AnchorMinLen int // 兜底阶段链接文本长度下限（不含）
	AnchorMaxLen int // 兜底阶段链接文本长度上限（不含）
	MinTitleLen  int
	MaxHarvest   int // 最多处理多少个收集到的元素
}

func DefaultPageOptions() PageOptions {
	return PageOptions{
		SelectorCap:  8,
		AnchorScan:   30,
		AnchorMinLen: 15,
		AnchorMaxLen: 150,
		MinTitleLen:  15,
		MaxHarvest:   20,
	}
}

// SessionOptions 用来构造每一轮运行的 Session
type SessionOptions struct {
	UserAgent      string
	AcceptLanguage string
	FeedTimeout    time.Duration
	PageTimeout    time.Duration
	// RatePerSecond <= 0 表示不限速
	RatePerSecond float64
	Burst         int
	Location      *time.Location
	Limits        Limits
	Page          PageOptions
	// Transport 为空时使用 http.DefaultTransport，测试里可以替换
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Session 是一轮运行的客户端配置：每轮创建一次，传给每一次适配器调用，运行结束即丢弃。
// 除了 limiter 之外不包含可变状态，limiter 本身是并发安全的。
type Session struct {
	RunID          string
	RunDate        string
	Location       *time.Location
	HTTP           *http.Client
	UserAgent      string
	AcceptLanguage string
	PageTimeout    time.Duration
	Limits         Limits
	Page           PageOptions
	Log            *zap.Logger

	limiter *rate.Limiter
}

// NewSession 以 now 作为本轮的运行日期
func NewSession(opts SessionOptions, now time.Time) *Session {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = DefaultAcceptLanguage
	}
	if opts.FeedTimeout <= 0 {
		opts.FeedTimeout = defaultFeedTimeout
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = defaultPageTimeout
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Limits == (Limits{}) {
		opts.Limits = DefaultLimits()
	}
	if opts.Page == (PageOptions{}) {
		opts.Page = DefaultPageOptions()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}

	runID := uuid.NewString()
	return &Session{
		RunID:          runID,
		RunDate:        now.In(opts.Location).Format(DateLayout),
		Location:       opts.Location,
		HTTP:           &http.Client{Timeout: opts.FeedTimeout, Transport: opts.Transport},
		UserAgent:      opts.UserAgent,
		AcceptLanguage: opts.AcceptLanguage,
		PageTimeout:    opts.PageTimeout,
		Limits:         opts.Limits,
		Page:           opts.Page,
		Log:            opts.Logger.With(zap.String("run_id", runID)),
		limiter:        limiter,
	}
}

// Wait 在发起请求前等待限速器放行；ctx 结束时返回错误
func (s *Session) Wait(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}

// DateOf 把时间转换为本轮时区下的自然日
func (s *Session) DateOf(t time.Time) string {
	return t.In(s.Location).Format(DateLayout)
}
