// Package cli renders categorization runs in a terminal.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler cancels a run on SIGINT/SIGTERM and tells the user what
// was kept.
type InterruptHandler struct {
	writer      io.Writer
	signals     chan os.Signal
	resumeHint  string
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a handler writing to writer (stderr when nil).
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stderr
	}
	return &InterruptHandler{writer: writer}
}

// HandleInterrupts returns a context canceled on the first interrupt signal
// or when ctx itself ends. resumeHint, when set, is shown as the command
// that picks up the remaining work.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, resumeHint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	h.resumeHint = resumeHint
	h.signals = make(chan os.Signal, 1)
	signal.Notify(h.signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(h.signals)
		select {
		case <-h.signals:
			h.interrupt()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

func (h *InterruptHandler) interrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.interrupted {
		return
	}
	h.interrupted = true
	h.showInterruptMessage()
}

func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\nCategorization interrupted. Batches already sent will finish and be saved.\n"
	if h.resumeHint != "" {
		msg += "Resume with: " + h.resumeHint + "\n"
	}
	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted reports whether a signal canceled the run.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
