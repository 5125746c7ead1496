package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LJTian/newsdigest/internal/collector"
	"github.com/LJTian/newsdigest/internal/pipeline"
	"github.com/LJTian/newsdigest/internal/processor"
)

const (
	defaultLimit = 25
	maxLimit     = 100
)

// NewsReader 读取最近一轮的结果，*storage.Store 实现了它
type NewsReader interface {
	ListNews(ctx context.Context, source string, limit int) ([]processor.NewsItem, error)
	SourceDistribution(ctx context.Context) (map[string]int, error)
}

// ArticleExtractor 提取单篇文章正文，*collector.Extractor 实现了它
type ArticleExtractor interface {
	Extract(ctx context.Context, url string) (collector.Article, error)
}

// Trigger 手动触发一轮采集，*scheduler.Scheduler 实现了它
type Trigger interface {
	RunOnce(ctx context.Context) (pipeline.Digest, error)
}

type Server struct {
	news      NewsReader
	trigger   Trigger
	extractor ArticleExtractor
	log       *zap.Logger
}

// NewServer trigger 可以为空，此时不注册 POST /api/v1/runs
func NewServer(news NewsReader, trigger Trigger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{news: news, trigger: trigger, log: logger}
}

// WithExtractor 启用 POST /api/v1/extract，需在 RegisterRoutes 之前调用
func (s *Server) WithExtractor(x ArticleExtractor) *Server {
	s.extractor = x
	return s
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news", s.listNews)
		v1.GET("/sources", s.sources)
		if s.trigger != nil {
			v1.POST("/runs", s.run)
		}
		if s.extractor != nil {
			v1.POST("/extract", s.extract)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"code":    code,
		"message": message,
	})
}

func (s *Server) listNews(c *gin.Context) {
	source := c.Query("source")

	limitStr := c.DefaultQuery("limit", strconv.Itoa(defaultLimit))
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	items, err := s.news.ListNews(c.Request.Context(), source, limit)
	if err != nil {
		s.log.Error("list news failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	if items == nil {
		items = []processor.NewsItem{}
	}
	ok(c, items)
}

func (s *Server) sources(c *gin.Context) {
	dist, err := s.news.SourceDistribution(c.Request.Context())
	if err != nil {
		s.log.Error("source distribution failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, dist)
}

// run 同步执行一轮，返回统计信息
func (s *Server) run(c *gin.Context) {
	d, err := s.trigger.RunOnce(c.Request.Context())
	switch {
	case errors.Is(err, pipeline.ErrNoNews):
		fail(c, http.StatusServiceUnavailable, "no_news", "no news collected from any source")
		return
	case err != nil:
		s.log.Error("manual run failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	ok(c, gin.H{
		"runId":   d.RunID,
		"runDate": d.RunDate,
		"stats":   d.Stats,
	})
}

type extractRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// extract 抓取单篇文章并返回正文
func (s *Server) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "bad_request", "a valid url is required")
		return
	}

	a, err := s.extractor.Extract(c.Request.Context(), req.URL)
	switch {
	case errors.Is(err, collector.ErrNoContent):
		fail(c, http.StatusUnprocessableEntity, "no_content", "no article content found")
		return
	case err != nil:
		s.log.Warn("extract article failed", zap.String("url", req.URL), zap.Error(err))
		fail(c, http.StatusBadGateway, "fetch_failed", "could not fetch the article")
		return
	}
	ok(c, a)
}
