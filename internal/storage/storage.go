package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/newsdigest/internal/collector"
	"github.com/LJTian/newsdigest/internal/pipeline"
	"github.com/LJTian/newsdigest/internal/processor"
)

const (
	// LatestDigestKey 缓存最近一轮的完整结果
	LatestDigestKey = "news:digest:latest"
	DefaultCacheTTL = 5 * time.Minute
)

// Source 描述一个配置的新闻来源
type Source struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"size:128;uniqueIndex" json:"name"`
	Kind    string `gorm:"size:16" json:"kind"` // feed / page
	BaseURL string `gorm:"size:512" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DigestItem 是最近一轮结果中的一条。每轮保存时整表替换。
type DigestItem struct {
	ID            uint           `gorm:"primaryKey" json:"-"`
	RunID         string         `gorm:"size:40;index" json:"runId"`
	RunDate       string         `gorm:"size:10;index" json:"runDate"`
	Position      int            `gorm:"index" json:"id"`
	Title         string         `gorm:"size:512" json:"title"`
	Summary       string         `gorm:"size:1024" json:"summary"`
	Source        string         `gorm:"size:128;index" json:"source"`
	PublishedDate string         `gorm:"size:10;index" json:"date"`
	URL           string         `gorm:"size:1024" json:"url"`
	Origin        string         `gorm:"size:8" json:"origin"`
	Verdict       string         `gorm:"size:32" json:"verdict"`
	Annotations   datatypes.JSON `gorm:"type:jsonb" json:"annotations"`

	CreatedAt time.Time `json:"createdAt"`
}

// marshalDigest 序列化写入缓存的结果，测试中可替换
var marshalDigest = func(d pipeline.Digest) ([]byte, error) {
	return json.Marshal(d)
}

type Store struct {
	DB       *gorm.DB
	Redis    *redis.Client
	CacheTTL time.Duration
	log      *zap.Logger
}

func NewStore(dsn, redisAddr string, cacheTTL time.Duration, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, eris.Wrap(err, "open postgres")
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed", zap.String("addr", redisAddr), zap.Error(err))
		}
	}

	s, err := NewStoreWithDB(db, rdb, cacheTTL, logger)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return s, nil
}

// NewStoreWithDB 使用已打开的连接建表并构造 Store，rdb 可以为空
func NewStoreWithDB(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&Source{}, &DigestItem{}); err != nil {
		return nil, eris.Wrap(err, "auto migrate")
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	return &Store{DB: db, Redis: rdb, CacheTTL: cacheTTL, log: logger}, nil
}

// Close 关闭数据库连接池和 Redis 客户端
func (s *Store) Close() error {
	var errs []error
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			errs = append(errs, eris.Wrap(err, "close redis"))
		}
	}
	if sqlDB, err := s.DB.DB(); err != nil {
		errs = append(errs, eris.Wrap(err, "get sql db"))
	} else if err := sqlDB.Close(); err != nil {
		errs = append(errs, eris.Wrap(err, "close postgres"))
	}
	return errors.Join(errs...)
}

func (s *Store) Name() string {
	return "postgres"
}

// EnsureSource 确保某个来源存在
func (s *Store) EnsureSource(ctx context.Context, src collector.Source) (*Source, error) {
	row := &Source{}
	err := s.DB.WithContext(ctx).Where("name = ?", src.Name).First(row).Error
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, eris.Wrapf(err, "query source %s", src.Name)
	}

	row = &Source{
		Name:    src.Name,
		Kind:    string(src.Kind),
		BaseURL: sourceURL(src),
		Status:  "active",
	}
	if err := s.DB.WithContext(ctx).Create(row).Error; err != nil {
		return nil, eris.Wrapf(err, "create source %s", src.Name)
	}
	return row, nil
}

func sourceURL(src collector.Source) string {
	if src.Kind == collector.KindFeed && src.FeedURL != "" {
		return src.FeedURL
	}
	return src.PageURL
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断，确保不超过字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func toRows(d pipeline.Digest) ([]DigestItem, error) {
	rows := make([]DigestItem, 0, len(d.Items))
	for _, it := range d.Items {
		ann, err := json.Marshal(it.Annotations)
		if err != nil {
			return nil, eris.Wrapf(err, "marshal annotations of item %d", it.ID)
		}
		rows = append(rows, DigestItem{
			RunID:         d.RunID,
			RunDate:       d.RunDate,
			Position:      it.ID,
			Title:         truncateRunesDB(toValidUTF8(it.Title), 512),
			Summary:       truncateRunesDB(toValidUTF8(it.Summary), 1024),
			Source:        it.Source,
			PublishedDate: it.PublishedDate,
			URL:           truncateRunesDB(it.URL, 1024),
			Origin:        string(it.Origin),
			Verdict:       string(it.Verdict),
			Annotations:   datatypes.JSON(ann),
		})
	}
	return rows, nil
}

func fromRow(r DigestItem) processor.NewsItem {
	it := processor.NewsItem{
		ID:            r.Position,
		Title:         r.Title,
		Summary:       r.Summary,
		Source:        r.Source,
		PublishedDate: r.PublishedDate,
		URL:           r.URL,
		Origin:        collector.Origin(r.Origin),
		Verdict:       processor.Verdict(r.Verdict),
	}
	if len(r.Annotations) > 0 {
		// 注解解析失败不影响条目本身
		_ = json.Unmarshal(r.Annotations, &it.Annotations)
	}
	return it
}

// Save 在一个事务里替换整份快照，提交后刷新 Redis 缓存
func (s *Store) Save(ctx context.Context, d pipeline.Digest) error {
	rows, err := toRows(d)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&DigestItem{}).Error; err != nil {
			return eris.Wrap(err, "clear previous digest")
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return eris.Wrap(err, "insert digest items")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.Redis != nil {
		s.refreshCache(ctx, d)
	}

	s.log.Info("digest saved", zap.String("run_id", d.RunID), zap.Int("items", len(rows)))
	return nil
}

// refreshCache 写入最新结果；失败时删除旧缓存，避免读到过期数据
func (s *Store) refreshCache(ctx context.Context, d pipeline.Digest) {
	bs, err := marshalDigest(d)
	if err != nil {
		s.log.Warn("marshal digest for cache failed", zap.String("run_id", d.RunID), zap.Error(err))
		s.dropCache(ctx)
		return
	}
	if err := s.Redis.Set(ctx, LatestDigestKey, bs, s.CacheTTL).Err(); err != nil {
		s.log.Warn("cache digest failed", zap.String("run_id", d.RunID), zap.Error(err))
		s.dropCache(ctx)
	}
}

func (s *Store) dropCache(ctx context.Context) {
	if err := s.Redis.Del(ctx, LatestDigestKey).Err(); err != nil {
		s.log.Warn("drop stale digest cache failed", zap.Error(err))
	}
}

// cachedDigest 读取 Redis 中的最近一轮结果；未命中或解析失败时返回 false
func (s *Store) cachedDigest(ctx context.Context) (pipeline.Digest, bool) {
	var d pipeline.Digest
	if s.Redis == nil {
		return d, false
	}
	bs, err := s.Redis.Get(ctx, LatestDigestKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Debug("read digest cache failed", zap.Error(err))
		}
		return d, false
	}
	if err := json.Unmarshal(bs, &d); err != nil {
		return d, false
	}
	return d, true
}

// ListNews 返回最近一轮的条目（按最终排名），可按来源过滤。优先读 Redis，未命中再查库。
func (s *Store) ListNews(ctx context.Context, source string, limit int) ([]processor.NewsItem, error) {
	if d, ok := s.cachedDigest(ctx); ok {
		return filterItems(d.Items, source, limit), nil
	}

	var rows []DigestItem
	db := s.DB.WithContext(ctx).Model(&DigestItem{})
	if source != "" {
		db = db.Where("source = ?", source)
	}
	if limit > 0 {
		db = db.Limit(limit)
	}
	if err := db.Order("position ASC").Find(&rows).Error; err != nil {
		return nil, eris.Wrap(err, "list digest items")
	}

	out := make([]processor.NewsItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromRow(r))
	}
	return out, nil
}

// SourceDistribution 返回最近一轮结果中每个来源的条数
func (s *Store) SourceDistribution(ctx context.Context) (map[string]int, error) {
	if d, ok := s.cachedDigest(ctx); ok {
		return distribution(d.Items), nil
	}

	var rows []struct {
		Source string
		N      int
	}
	err := s.DB.WithContext(ctx).
		Model(&DigestItem{}).
		Select("source, COUNT(*) AS n").
		Group("source").
		Scan(&rows).Error
	if err != nil {
		return nil, eris.Wrap(err, "source distribution")
	}

	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Source] = r.N
	}
	return out, nil
}

func filterItems(items []processor.NewsItem, source string, limit int) []processor.NewsItem {
	out := make([]processor.NewsItem, 0, len(items))
	for _, it := range items {
		if source != "" && it.Source != source {
			continue
		}
		out = append(out, it)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func distribution(items []processor.NewsItem) map[string]int {
	out := make(map[string]int)
	for _, it := range items {
		out[it.Source]++
	}
	return out
}
