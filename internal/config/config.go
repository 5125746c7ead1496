package config

import (
	"strings"
	"time"
	// 精简镜像里可能没有系统时区库
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/LJTian/newsdigest/internal/collector"
	"github.com/LJTian/newsdigest/internal/pipeline"
	"github.com/LJTian/newsdigest/internal/processor"
)

// EnvPrefix 环境变量前缀，例如 NEWSDIGEST_APP_PORT、NEWSDIGEST_STORE_POSTGRES_DSN
const EnvPrefix = "NEWSDIGEST"

type Config struct {
	App         AppConfig      `mapstructure:"app"`
	Fetch       FetchConfig    `mapstructure:"fetch"`
	Page        PageConfig     `mapstructure:"page"`
	Text        TextConfig     `mapstructure:"text"`
	Dedup       DedupConfig    `mapstructure:"dedup"`
	Rank        RankConfig     `mapstructure:"rank"`
	Store       StoreConfig    `mapstructure:"store"`
	Schedule    ScheduleConfig `mapstructure:"schedule"`
	Log         LogConfig      `mapstructure:"log"`
	SourcesFile string         `mapstructure:"sources_file"`
}

type AppConfig struct {
	Port string `mapstructure:"port" validate:"required"`
	// 同时配置用户名和密码时启用 Basic Auth
	BasicUser string `mapstructure:"basic_user"`
	BasicPass string `mapstructure:"basic_pass"`
	Timezone  string `mapstructure:"timezone" validate:"required"`
}

type FetchConfig struct {
	Concurrency    int           `mapstructure:"concurrency" validate:"min=1"`
	TaskTimeout    time.Duration `mapstructure:"task_timeout" validate:"gt=0"`
	Deadline       time.Duration `mapstructure:"deadline" validate:"gt=0"`
	PageTimeout    time.Duration `mapstructure:"page_timeout" validate:"gt=0"`
	PerSourceLimit int           `mapstructure:"per_source_limit" validate:"min=1"`
	UserAgent      string        `mapstructure:"user_agent"`
	AcceptLanguage string        `mapstructure:"accept_language"`
	RatePerSecond  float64       `mapstructure:"rate_per_second" validate:"min=0"`
	Burst          int           `mapstructure:"burst" validate:"min=0"`
}

type PageConfig struct {
	SelectorCap  int `mapstructure:"selector_cap" validate:"min=1"`
	AnchorScan   int `mapstructure:"anchor_scan" validate:"min=0"`
	AnchorMinLen int `mapstructure:"anchor_min_len" validate:"min=0"`
	AnchorMaxLen int `mapstructure:"anchor_max_len" validate:"gtfield=AnchorMinLen"`
	MinTitleLen  int `mapstructure:"min_title_len" validate:"min=0"`
	MaxHarvest   int `mapstructure:"max_harvest" validate:"min=1"`
}

type TextConfig struct {
	TitleMax   int `mapstructure:"title_max" validate:"min=1"`
	SummaryMax int `mapstructure:"summary_max" validate:"min=1"`
	MinTitle   int `mapstructure:"min_title" validate:"min=1"`
}

type DedupConfig struct {
	Policy    string  `mapstructure:"policy" validate:"oneof=fuzzy prefix"`
	Threshold float64 `mapstructure:"threshold" validate:"gt=0,lte=1"`
	KeyLen    int     `mapstructure:"key_len" validate:"min=1"`
}

type RankConfig struct {
	MaxItems int `mapstructure:"max_items" validate:"min=1"`
}

type StoreConfig struct {
	PostgresDSN string        `mapstructure:"postgres_dsn"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	OutputPath  string        `mapstructure:"output_path" validate:"required"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", "9000")
	v.SetDefault("app.basic_user", "")
	v.SetDefault("app.basic_pass", "")
	v.SetDefault("app.timezone", "America/Argentina/Buenos_Aires")

	v.SetDefault("fetch.concurrency", pipeline.DefaultConcurrency)
	v.SetDefault("fetch.task_timeout", pipeline.DefaultTaskTimeout)
	v.SetDefault("fetch.deadline", pipeline.DefaultDeadline)
	v.SetDefault("fetch.page_timeout", 8*time.Second)
	v.SetDefault("fetch.per_source_limit", pipeline.DefaultPerSourceLimit)
	v.SetDefault("fetch.user_agent", collector.DefaultUserAgent)
	v.SetDefault("fetch.accept_language", collector.DefaultAcceptLanguage)
	v.SetDefault("fetch.rate_per_second", 8)
	v.SetDefault("fetch.burst", 4)

	page := collector.DefaultPageOptions()
	v.SetDefault("page.selector_cap", page.SelectorCap)
	v.SetDefault("page.anchor_scan", page.AnchorScan)
	v.SetDefault("page.anchor_min_len", page.AnchorMinLen)
	v.SetDefault("page.anchor_max_len", page.AnchorMaxLen)
	v.SetDefault("page.min_title_len", page.MinTitleLen)
	v.SetDefault("page.max_harvest", page.MaxHarvest)

	limits := collector.DefaultLimits()
	v.SetDefault("text.title_max", limits.TitleMax)
	v.SetDefault("text.summary_max", limits.SummaryMax)
	v.SetDefault("text.min_title", limits.MinTitle)

	v.SetDefault("dedup.policy", processor.PolicyFuzzy)
	v.SetDefault("dedup.threshold", processor.DefaultThreshold)
	v.SetDefault("dedup.key_len", processor.DefaultKeyLen)

	v.SetDefault("rank.max_items", processor.DefaultMaxItems)

	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.output_path", "data/real_news.json")
	v.SetDefault("store.cache_ttl", 5*time.Minute)

	v.SetDefault("schedule.cron", "*/30 * * * *")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("sources_file", "")
}

// Load 读取配置：默认值 < config.yaml < NEWSDIGEST_* 环境变量。
// file 为空时在当前目录查找可选的 config.yaml。
func Load(file string) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: validate")
	}

	return &cfg, nil
}

// Location 解析配置的时区，用于确定运行日期
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", c.App.Timezone)
	}
	return loc, nil
}

// SessionOptions 生成每轮运行的客户端配置
func (c *Config) SessionOptions(logger *zap.Logger) (collector.SessionOptions, error) {
	loc, err := c.Location()
	if err != nil {
		return collector.SessionOptions{}, err
	}
	return collector.SessionOptions{
		UserAgent:      c.Fetch.UserAgent,
		AcceptLanguage: c.Fetch.AcceptLanguage,
		FeedTimeout:    c.Fetch.TaskTimeout,
		PageTimeout:    c.Fetch.PageTimeout,
		RatePerSecond:  c.Fetch.RatePerSecond,
		Burst:          c.Fetch.Burst,
		Location:       loc,
		Limits: collector.Limits{
			TitleMax:   c.Text.TitleMax,
			SummaryMax: c.Text.SummaryMax,
			MinTitle:   c.Text.MinTitle,
		},
		Page: collector.PageOptions{
			SelectorCap:  c.Page.SelectorCap,
			AnchorScan:   c.Page.AnchorScan,
			AnchorMinLen: c.Page.AnchorMinLen,
			AnchorMaxLen: c.Page.AnchorMaxLen,
			MinTitleLen:  c.Page.MinTitleLen,
			MaxHarvest:   c.Page.MaxHarvest,
		},
		Logger: logger,
	}, nil
}

func (c *Config) FetchOptions() pipeline.Options {
	return pipeline.Options{
		Concurrency:    c.Fetch.Concurrency,
		TaskTimeout:    c.Fetch.TaskTimeout,
		Deadline:       c.Fetch.Deadline,
		PerSourceLimit: c.Fetch.PerSourceLimit,
	}
}

// NewProcessor 按配置组装去重、排序、富化
func (c *Config) NewProcessor() (*processor.Processor, error) {
	d, err := processor.NewDeduper(c.Dedup.Policy, c.Dedup.Threshold, c.Dedup.KeyLen)
	if err != nil {
		return nil, eris.Wrap(err, "config: dedup")
	}
	return processor.NewProcessor(d, processor.Ranker{Max: c.Rank.MaxItems}, processor.Enricher{}), nil
}
