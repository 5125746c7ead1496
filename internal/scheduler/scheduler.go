package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/LJTian/newsdigest/internal/pipeline"
	"github.com/LJTian/newsdigest/internal/storage"
)

// Runner 执行一轮完整的采集，*pipeline.Pipeline 实现了它
type Runner interface {
	Run(ctx context.Context) (pipeline.Digest, error)
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	sinks  []storage.Sink
	log    *zap.Logger

	// StartupDelay 是 Start 之后首轮运行前的等待时间
	StartupDelay time.Duration

	// 定时与首轮运行使用的 ctx，Stop 时取消
	ctx    context.Context
	cancel context.CancelFunc
	first  *time.Timer

	// 同一时间只跑一轮，定时触发与手动触发互斥
	mu sync.Mutex
}

func New(spec string, runner Runner, sinks []storage.Sink, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:         c,
		runner:       runner,
		sinks:        sinks,
		log:          logger,
		StartupDelay: 15 * time.Second,
		ctx:          ctx,
		cancel:       cancel,
	}

	_, err := c.AddFunc(spec, func() {
		_, _ = s.RunOnce(s.ctx)
	})
	if err != nil {
		cancel()
		return nil, eris.Wrapf(err, "invalid cron spec %q", spec)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与服务启动争抢资源
	s.first = time.AfterFunc(s.StartupDelay, func() {
		_, _ = s.RunOnce(s.ctx)
	})
}

// Stop 取消尚未开始的首轮运行，中断正在执行的定时任务并等待其结束
func (s *Scheduler) Stop() {
	if s.first != nil {
		s.first.Stop()
	}
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunOnce 执行一轮并把结果交给所有 Sink。
// 没有新闻时不覆盖已有结果；单个 Sink 失败只记录日志，不影响其它 Sink。
func (s *Scheduler) RunOnce(ctx context.Context) (pipeline.Digest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("start collect job")
	start := time.Now()

	d, err := s.runner.Run(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoNews) {
			s.log.Warn("no news collected, keeping previous results", zap.String("run_id", d.RunID))
		} else {
			s.log.Error("collect job failed", zap.Error(err))
		}
		return d, err
	}

	for _, sink := range s.sinks {
		if err := sink.Save(ctx, d); err != nil {
			s.log.Error("sink save failed", zap.String("sink", sink.Name()), zap.Error(err))
			continue
		}
		s.log.Info("sink saved", zap.String("sink", sink.Name()), zap.Int("items", len(d.Items)))
	}

	s.log.Info("collect job done",
		zap.String("run_id", d.RunID),
		zap.Int("items", len(d.Items)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return d, nil
}
