package config

import (
	_ "embed"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/LJTian/newsdigest/internal/collector"
)

//go:embed sources.yaml
var defaultSources []byte

// SourceEntry 是来源配置文件中的一项
type SourceEntry struct {
	Name           string   `yaml:"name" validate:"required"`
	Kind           string   `yaml:"kind" validate:"required,oneof=feed page"`
	FeedURL        string   `yaml:"feed_url" validate:"omitempty,http_url"`
	PageURL        string   `yaml:"page_url" validate:"omitempty,http_url"`
	Selectors      []string `yaml:"selectors" validate:"dive,required"`
	Domain         string   `yaml:"domain" validate:"omitempty,hostname"`
	Placeholder    string   `yaml:"placeholder"`
	FallbackToPage bool     `yaml:"fallback_to_page"`
}

func (e SourceEntry) check(v *validator.Validate) error {
	if err := v.Struct(e); err != nil {
		return err
	}
	switch collector.Kind(e.Kind) {
	case collector.KindFeed:
		if e.FeedURL == "" {
			return eris.New("feed source needs feed_url")
		}
	case collector.KindPage:
		if e.PageURL == "" {
			return eris.New("page source needs page_url")
		}
	}
	return nil
}

func (e SourceEntry) toSource() collector.Source {
	return collector.Source{
		Name:           strings.TrimSpace(e.Name),
		Kind:           collector.Kind(e.Kind),
		FeedURL:        e.FeedURL,
		PageURL:        e.PageURL,
		Selectors:      e.Selectors,
		Domain:         e.Domain,
		Placeholder:    e.Placeholder,
		FallbackToPage: e.FallbackToPage,
	}
}

// LoadSources 读取来源配置。path 为空时使用内置的默认来源表。
// 不合法的条目记录日志后跳过；文件本身无法读取或解析时返回错误。
func LoadSources(path string, logger *zap.Logger) ([]collector.Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	data := defaultSources
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "config: read sources file %s", path)
		}
		data = bs
	}
	return ParseSources(data, logger)
}

func ParseSources(data []byte, logger *zap.Logger) ([]collector.Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var entries []SourceEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrap(err, "config: parse sources")
	}

	v := validator.New()
	seen := make(map[string]struct{}, len(entries))
	out := make([]collector.Source, 0, len(entries))
	for i, e := range entries {
		if err := e.check(v); err != nil {
			logger.Warn("skip invalid source", zap.Int("index", i), zap.String("name", e.Name), zap.Error(err))
			continue
		}
		src := e.toSource()
		if _, dup := seen[src.Name]; dup {
			logger.Warn("skip duplicate source", zap.String("name", src.Name))
			continue
		}
		seen[src.Name] = struct{}{}
		out = append(out, src)
	}
	return out, nil
}
