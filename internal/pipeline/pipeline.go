package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LJTian/newsdigest/internal/collector"
	"github.com/LJTian/newsdigest/internal/processor"
)

// ErrNoNews 表示所有来源都没有产出候选条目（包括来源列表为空）
var ErrNoNews = eris.New("no news collected from any source")

type Stats struct {
	Sources    int `json:"sources"`
	Candidates int `json:"candidates"`
	Kept       int `json:"kept"`
	Unique     int `json:"unique"`
	Final      int `json:"final"`
	// Distribution 是最终列表中每个来源的条数
	Distribution map[string]int `json:"distribution"`
}

// Digest 是一轮运行的完整产出
type Digest struct {
	RunID       string               `json:"runId"`
	RunDate     string               `json:"runDate"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Items       []processor.NewsItem `json:"items"`
	Stats       Stats                `json:"stats"`
}

type Config struct {
	Session collector.SessionOptions
	Fetch   Options
	Sources []collector.Source
	// Now 为空时使用 time.Now，测试里固定时间
	Now func() time.Time
}

// Pipeline 串起一轮完整的运行：并发抓取 → 过滤 → 去重 → 排序截断 → 富化
type Pipeline struct {
	cfg  Config
	orch *Orchestrator
	proc *processor.Processor
	log  *zap.Logger
}

func New(fetcher collector.Fetcher, proc *processor.Processor, cfg Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = logger
	}
	return &Pipeline{
		cfg:  cfg,
		orch: NewOrchestrator(fetcher, cfg.Fetch, logger),
		proc: proc,
		log:  logger,
	}
}

func (p *Pipeline) Sources() []collector.Source {
	return p.cfg.Sources
}

// Run 执行一轮。没有任何候选时返回空 Digest 和 ErrNoNews，除此之外不会返回错误。
func (p *Pipeline) Run(ctx context.Context) (Digest, error) {
	now := p.cfg.Now()
	sess := collector.NewSession(p.cfg.Session, now)
	log := p.log.With(zap.String("run_id", sess.RunID))

	digest := Digest{
		RunID:       sess.RunID,
		RunDate:     sess.RunDate,
		GeneratedAt: now,
		Items:       []processor.NewsItem{},
		Stats: Stats{
			Sources:      len(p.cfg.Sources),
			Distribution: map[string]int{},
		},
	}

	log.Info("run started", zap.Int("sources", len(p.cfg.Sources)), zap.String("run_date", sess.RunDate))

	cands := p.orch.Run(ctx, sess, p.cfg.Sources)
	digest.Stats.Candidates = len(cands)
	if len(cands) == 0 {
		log.Warn("no candidates collected")
		return digest, ErrNoNews
	}

	kept := processor.FromCandidates(cands, sess.Limits.MinTitle)
	final, unique := p.proc.Process(kept)

	digest.Items = final
	digest.Stats.Kept = len(kept)
	digest.Stats.Unique = unique
	digest.Stats.Final = len(final)
	for _, it := range final {
		digest.Stats.Distribution[it.Source]++
	}

	log.Info("run finished",
		zap.Int("candidates", digest.Stats.Candidates),
		zap.Int("kept", digest.Stats.Kept),
		zap.Int("unique", digest.Stats.Unique),
		zap.Int("final", digest.Stats.Final),
	)
	return digest, nil
}
