package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/newsdigest/internal/pipeline"
	"github.com/LJTian/newsdigest/internal/processor"
	"github.com/LJTian/newsdigest/internal/storage"
)

type stubRunner struct {
	digest pipeline.Digest
	err    error
	calls  atomic.Int32
}

func (r *stubRunner) Run(ctx context.Context) (pipeline.Digest, error) {
	r.calls.Add(1)
	return r.digest, r.err
}

// blockingRunner 一直阻塞到 ctx 结束，记录结束原因
type blockingRunner struct {
	started chan struct{}
	done    chan error
}

func (r *blockingRunner) Run(ctx context.Context) (pipeline.Digest, error) {
	close(r.started)
	<-ctx.Done()
	r.done <- ctx.Err()
	return pipeline.Digest{}, ctx.Err()
}

type recordingSink struct {
	name string
	err  error

	mu    sync.Mutex
	saved []pipeline.Digest
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Save(ctx context.Context, d pipeline.Digest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, d)
	return nil
}

func digestWith(titles ...string) pipeline.Digest {
	items := make([]processor.NewsItem, 0, len(titles))
	for i, t := range titles {
		items = append(items, processor.NewsItem{ID: i + 1, Title: t, Source: "Clarín"})
	}
	return pipeline.Digest{RunID: "r1", Items: items}
}

func TestRunOnceSavesToAllSinks(t *testing.T) {
	runner := &stubRunner{digest: digestWith("Senate approves new budget bill")}
	broken := &recordingSink{name: "broken", err: eris.New("disk full")}
	file := &recordingSink{name: "file"}

	s, err := New("*/30 * * * *", runner, []storage.Sink{broken, file}, nil)
	require.NoError(t, err)

	d, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, d.Items, 1)
	assert.EqualValues(t, 1, runner.calls.Load())
	require.Len(t, file.saved, 1, "a failing sink does not stop the others")
	assert.Equal(t, "r1", file.saved[0].RunID)
}

func TestRunOnceNoNewsKeepsSinks(t *testing.T) {
	runner := &stubRunner{err: pipeline.ErrNoNews}
	file := &recordingSink{name: "file"}

	s, err := New("@every 1h", runner, []storage.Sink{file}, nil)
	require.NoError(t, err)

	_, err = s.RunOnce(context.Background())
	assert.True(t, errors.Is(err, pipeline.ErrNoNews))
	assert.Empty(t, file.saved)
}

func TestNewRejectsBadCronExpr(t *testing.T) {
	_, err := New("not a cron spec", &stubRunner{}, nil, nil)
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", &stubRunner{digest: digestWith("x")}, nil, nil)
	require.NoError(t, err)
	s.StartupDelay = 0

	s.Start()
	s.Stop()
}

func TestStopCancelsPendingStartupRun(t *testing.T) {
	runner := &stubRunner{digest: digestWith("x")}
	s, err := New("@every 1h", runner, nil, nil)
	require.NoError(t, err)
	s.StartupDelay = 50 * time.Millisecond

	s.Start()
	s.Stop()

	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, runner.calls.Load())
}

func TestStopCancelsRunningJob(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}), done: make(chan error, 1)}
	s, err := New("@every 1h", runner, nil, nil)
	require.NoError(t, err)
	s.StartupDelay = 0

	s.Start()
	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("startup run did not begin")
	}
	s.Stop()

	select {
	case err := <-runner.done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("running job was not cancelled")
	}
}
