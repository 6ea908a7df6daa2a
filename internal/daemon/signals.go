package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalHandler turns OS signals into shutdown and reload events.
// SIGINT and SIGTERM stop the daemon; SIGHUP re-reads the schedule table.
type SignalHandler struct {
	signals chan os.Signal
	done    chan struct{}
}

// NewSignalHandler creates a new signal handler.
func NewSignalHandler() *SignalHandler {
	return &SignalHandler{
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
}

// Setup registers signal handlers.
func (h *SignalHandler) Setup() {
	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
}

// Run blocks until a shutdown signal arrives, ctx is canceled or Stop is
// called. reload is invoked for every SIGHUP in between. It returns the
// shutdown signal, or nil.
func (h *SignalHandler) Run(ctx context.Context, reload func()) os.Signal {
	for {
		select {
		case sig := <-h.signals:
			if sig == syscall.SIGHUP {
				if reload != nil {
					reload()
				}
				continue
			}
			return sig
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		}
	}
}

// Stop makes Run return.
func (h *SignalHandler) Stop() {
	signal.Stop(h.signals)
	close(h.done)
}

// Cleanup unregisters the handlers.
func (h *SignalHandler) Cleanup() {
	signal.Stop(h.signals)
}

func signalReload(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(syscall.SIGHUP)
}
