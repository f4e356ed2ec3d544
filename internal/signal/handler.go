// Package signal turns SIGINT/SIGTERM into an emergency stop for the running agent.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ForceExitCode is the process exit code used when a second interrupt arrives.
const ForceExitCode = 130

// Handler listens for interrupt signals. The first signal runs the registered
// stop callbacks and cancels the handler context; a second signal exits the process.
type Handler struct {
	ctx         context.Context //nolint:containedctx // handler owns the context lifecycle
	cancel      context.CancelFunc
	interrupted chan struct{}
	done        chan struct{}
	sigChan     chan os.Signal

	mu        sync.Mutex
	onStop    []func()
	signals   int
	stopOnce  sync.Once
	forceExit func(code int)
}

// NewHandler creates a signal handler that listens for SIGINT and SIGTERM.
//
//	h := signal.NewHandler(ctx, func() { controller.Cancel(ctx) })
//	defer h.Stop()
//	result := controller.Run(h.Context(), task)
func NewHandler(parent context.Context, onStop ...func()) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		done:        make(chan struct{}),
		sigChan:     make(chan os.Signal, 1),
		onStop:      onStop,
		forceExit:   os.Exit,
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.listen()

	return h
}

// Context returns the context cancelled on the first signal.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted returns a channel that closes when the first signal is received.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// OnStop registers another callback for the first signal.
func (h *Handler) OnStop(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onStop = append(h.onStop, fn)
}

// Stop stops listening for signals and cancels the context. It is idempotent.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
		h.cancel()
	})
}

// handleSignal processes one received signal.
func (h *Handler) handleSignal() {
	h.mu.Lock()
	h.signals++
	count := h.signals
	callbacks := append([]func(){}, h.onStop...)
	h.mu.Unlock()

	if count > 1 {
		h.forceExit(ForceExitCode)
		return
	}

	// Callbacks run before the context is cancelled so they can still use it.
	for _, fn := range callbacks {
		fn()
	}
	h.cancel()
	close(h.interrupted)
}

func (h *Handler) listen() {
	for {
		select {
		case <-h.done:
			return
		case <-h.sigChan:
			h.handleSignal()
		}
	}
}
