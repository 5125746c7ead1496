package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LJTian/newsdigest/internal/collector"
)

const (
	DefaultConcurrency    = 4
	DefaultTaskTimeout    = 10 * time.Second
	DefaultDeadline       = 25 * time.Second
	DefaultPerSourceLimit = 3
)

// Options 控制一轮并发抓取
type Options struct {
	Concurrency    int
	TaskTimeout    time.Duration
	Deadline       time.Duration
	PerSourceLimit int
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.TaskTimeout <= 0 {
		o.TaskTimeout = DefaultTaskTimeout
	}
	if o.Deadline <= 0 {
		o.Deadline = DefaultDeadline
	}
	if o.PerSourceLimit <= 0 {
		o.PerSourceLimit = DefaultPerSourceLimit
	}
	return o
}

// Orchestrator 对所有来源并发调用同一个 Fetcher，汇总候选条目。
// 单个来源失败或超时不影响其它来源；全局截止时间一到立即返回已收集的结果。
type Orchestrator struct {
	fetcher collector.Fetcher
	opts    Options
	log     *zap.Logger
}

func NewOrchestrator(f collector.Fetcher, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{fetcher: f, opts: opts.withDefaults(), log: logger}
}

func (o *Orchestrator) Options() Options {
	return o.opts
}

// Run 返回按完成先后排列的候选条目。截止时间之后到达的结果会被丢弃。
func (o *Orchestrator) Run(ctx context.Context, sess *collector.Session, sources []collector.Source) []collector.Candidate {
	if len(sources) == 0 {
		return nil
	}
	log := o.log
	if sess != nil && sess.RunID != "" {
		log = log.With(zap.String("run_id", sess.RunID))
	}

	runCtx, cancel := context.WithTimeout(ctx, o.opts.Deadline)
	defer cancel()

	col := &collection{}
	done := make(chan struct{})

	// 提交任务放在独立 goroutine 中：SetLimit 满时 g.Go 会阻塞，不能卡住下面的 select
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(o.opts.Concurrency)
		for _, src := range sources {
			if runCtx.Err() != nil {
				log.Warn("deadline reached before source was scheduled", zap.String("source", src.Name))
				continue
			}
			src := src
			g.Go(func() error {
				o.runTask(runCtx, sess, src, col, log)
				return nil
			})
		}
		_ = g.Wait()
	}()

	start := time.Now()
	select {
	case <-done:
	case <-runCtx.Done():
		log.Warn("fetch deadline reached, returning partial results",
			zap.Duration("deadline", o.opts.Deadline),
			zap.Duration("elapsed", time.Since(start)),
		)
	}

	items := col.seal()
	log.Info("fetch round done",
		zap.Int("sources", len(sources)),
		zap.Int("candidates", len(items)),
	)
	return items
}

func (o *Orchestrator) runTask(runCtx context.Context, sess *collector.Session, src collector.Source, col *collection, log *zap.Logger) {
	log = log.With(zap.String("source", src.Name))

	taskCtx, cancel := context.WithTimeout(runCtx, o.opts.TaskTimeout)
	defer cancel()

	// 缓冲为 1：超时后适配器仍可写入并退出，结果被丢弃
	result := make(chan []collector.Candidate, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("fetcher panicked", zap.String("panic", fmt.Sprint(r)))
				result <- nil
			}
		}()
		result <- o.fetcher.Fetch(taskCtx, sess, src, o.opts.PerSourceLimit)
	}()

	select {
	case items := <-result:
		if len(items) > o.opts.PerSourceLimit {
			items = items[:o.opts.PerSourceLimit]
		}
		if !col.add(items) {
			log.Warn("source finished after the deadline, result dropped", zap.Int("count", len(items)))
			return
		}
		log.Info("source fetched", zap.Int("count", len(items)))
	case <-taskCtx.Done():
		if runCtx.Err() != nil {
			log.Warn("source abandoned at deadline")
			return
		}
		log.Warn("source timed out", zap.Duration("timeout", o.opts.TaskTimeout))
	}
}

// collection 是唯一的共享可变状态：加锁追加，seal 之后拒绝写入
type collection struct {
	mu      sync.Mutex
	items   []collector.Candidate
	sealed  bool
	dropped int
}

func (c *collection) add(items []collector.Candidate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		c.dropped += len(items)
		return false
	}
	c.items = append(c.items, items...)
	return true
}

func (c *collection) seal() []collector.Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	out := make([]collector.Candidate, len(c.items))
	copy(out, c.items)
	return out
}

func (c *collection) droppedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
