package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/Nate-Smithline/LedgerTerminal/internal/engine"
)

// ProgressSink renders a categorization event stream as a progress bar and
// a closing summary.
type ProgressSink struct {
	writer   io.Writer
	bar      *progressbar.ProgressBar
	failures []engine.ErrorEvent
	done     *engine.DoneEvent
	mu       sync.Mutex
}

// NewProgressSink creates a sink writing to w.
func NewProgressSink(w io.Writer) *ProgressSink {
	return &ProgressSink{writer: w}
}

// Emit implements engine.Sink.
func (p *ProgressSink) Emit(event engine.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch e := event.(type) {
	case engine.StatusEvent:
		p.clear()
		_, err := fmt.Fprintln(p.writer, e.Message)
		return err
	case engine.ProgressEvent:
		p.initProgressBar(e.Total)
		if e.Current != "" {
			p.bar.Describe(e.Current)
		}
		if err := p.bar.Set(e.Completed); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	case engine.ErrorEvent:
		p.failures = append(p.failures, e)
	case engine.DoneEvent:
		p.done = &e
		if p.bar != nil {
			_ = p.bar.Finish()
		}
		return p.writeSummary(e)
	}
	return nil
}

func (p *ProgressSink) initProgressBar(total int) {
	if p.bar != nil {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Categorizing transactions..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func (p *ProgressSink) clear() {
	if p.bar != nil {
		_ = p.bar.Clear()
	}
}

func (p *ProgressSink) writeSummary(done engine.DoneEvent) error {
	summary := fmt.Sprintf("\nCategorized %d of %d transactions (%d from cache, %d failed)\n",
		done.Successful, done.Total, done.CachedCount, done.Failed)
	summary += fmt.Sprintf("Tokens: %d in, %d out\n", done.TotalInputTokens, done.TotalOutputTokens)
	for _, f := range p.failures {
		summary += fmt.Sprintf("  x %s (%s): %s\n", f.Vendor, f.ID, f.Message)
	}
	_, err := fmt.Fprint(p.writer, summary)
	return err
}

// Failures returns the per-transaction errors seen so far.
func (p *ProgressSink) Failures() []engine.ErrorEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]engine.ErrorEvent(nil), p.failures...)
}

// Done returns the final totals, or nil before the stream has finished.
func (p *ProgressSink) Done() *engine.DoneEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
