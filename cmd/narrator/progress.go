package main

import (
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// frameProgress keeps one progress bar per render pass.
type frameProgress struct {
	mu    sync.Mutex
	out   io.Writer
	bar   *progressbar.ProgressBar
	label string
	total int
}

func newFrameProgress(out io.Writer) *frameProgress {
	return &frameProgress{out: out}
}

// Update starts a new bar whenever the language or frame total changes.
func (p *frameProgress) Update(language string, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || p.label != language || p.total != total || done == 1 {
		p.finishLocked()
		p.label, p.total = language, total
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionSetDescription("frames "+language),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetRenderBlankState(true),
			progressbar.OptionOnCompletion(func() { io.WriteString(p.out, "\n") }),
		)
	}
	_ = p.bar.Set(done)
}

func (p *frameProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finishLocked()
}

func (p *frameProgress) finishLocked() {
	if p.bar != nil && !p.bar.IsFinished() {
		_ = p.bar.Finish()
	}
	p.bar = nil
}
