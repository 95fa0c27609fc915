package backend

import (
	"context"
	"io"

	"github.com/alanbriolat/extractor"
)

// progressReader reports how much of a request body the transport has consumed, and stops early if the context is
// cancelled.
type progressReader struct {
	ctx      context.Context
	r        io.Reader
	loaded   int64
	total    int64
	progress extractor.ProgressFunc
}

func newProgressReader(ctx context.Context, r io.Reader, total int64, progress extractor.ProgressFunc) *progressReader {
	return &progressReader{ctx: ctx, r: r, total: total, progress: progress}
}

func (r *progressReader) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	n, err = r.r.Read(p)
	if n > 0 {
		r.loaded += int64(n)
		r.report()
	}
	return n, err
}

func (r *progressReader) report() {
	if r.progress != nil {
		r.progress(r.loaded, r.total)
	}
}

// progressWriter discards data but counts it, so it can be the last writer in an io.MultiWriter to track how much
// has been successfully written elsewhere.
type progressWriter struct {
	written  int64
	total    int64
	progress extractor.ProgressFunc
}

func (w *progressWriter) Write(p []byte) (n int, err error) {
	n = len(p)
	w.written += int64(n)
	if w.progress != nil {
		w.progress(w.written, w.total)
	}
	return n, nil
}
