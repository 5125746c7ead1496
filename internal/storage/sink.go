package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/LJTian/newsdigest/internal/pipeline"
	"github.com/LJTian/newsdigest/internal/processor"
)

// DefaultOutputPath 是 collect 命令默认写入的文件
const DefaultOutputPath = "data/real_news.json"

// Sink 接收一轮运行的最终结果，条目顺序与字段原样交付
type Sink interface {
	Name() string
	Save(ctx context.Context, d pipeline.Digest) error
}

// FileSink 把最终列表写成缩进的 JSON 数组。
// 先写同目录下的临时文件再 rename，读者不会看到写了一半的文件。
type FileSink struct {
	Path string
}

func NewFileSink(path string) *FileSink {
	if path == "" {
		path = DefaultOutputPath
	}
	return &FileSink{Path: path}
}

func (f *FileSink) Name() string {
	return "file"
}

func (f *FileSink) Save(ctx context.Context, d pipeline.Digest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	items := d.Items
	if items == nil {
		items = []processor.NewsItem{}
	}
	bs, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal news items")
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "create output dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".news-*.json")
	if err != nil {
		return eris.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(bs, '\n')); err != nil {
		_ = tmp.Close()
		return eris.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return eris.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return eris.Wrapf(err, "rename to %s", f.Path)
	}
	return nil
}
