package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/jelatinone/scholarfind/internal/events"
)

// clearScreen moves the cursor home and wipes the terminal before each
// repaint, giving a live, in-place status view.
const clearScreen = "\033[2J\033[H"

// Renderer repaints a one-line-per-task status view whenever a task
// publishes a state or message change. It is the sole consumer of the
// event stream, so task goroutines never block on terminal I/O.
type Renderer struct {
	out     io.Writer
	reports func() []string

	mu   sync.Mutex
	done chan struct{}
}

// NewRenderer builds a renderer writing to out. reports returns the
// current status line for every task, in a stable order.
func NewRenderer(out io.Writer, reports func() []string) *Renderer {
	return &Renderer{
		out:     out,
		reports: reports,
		done:    make(chan struct{}),
	}
}

// Run drains the stream until it is closed, repainting on every event,
// then paints one final frame. Call Wait to block until that happens.
func (r *Renderer) Run(stream *events.Stream) {
	defer close(r.done)
	for range stream.Events() {
		r.paint()
	}
	r.paint()
}

// Wait blocks until Run has consumed the closed stream.
func (r *Renderer) Wait() {
	<-r.done
}

func (r *Renderer) paint() {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprint(r.out, clearScreen)
	for _, line := range r.reports() {
		fmt.Fprintln(r.out, line)
	}
}
