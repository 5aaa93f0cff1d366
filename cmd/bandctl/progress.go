package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/srg/bandlink/internal/groutine"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// progressLine redraws a single status line, e.g. "Looking for aa:01 (scanning 7s)".
// With a budget the seconds count down, otherwise they count up.
//
// A progressLine is single-use: Stop must be called exactly once after start.
type progressLine struct {
	w      io.Writer
	prefix string
	phase  atomic.Value // string
	budget time.Duration

	mu    sync.Mutex // guards writes to w
	start time.Time
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

// startProgress begins redrawing on w. It returns an inert progressLine when
// w is not a terminal so piped output stays clean.
func startProgress(w io.Writer, prefix, phase string, budget time.Duration) *progressLine {
	return newProgress(w, prefix, phase, budget, isTerminal(w))
}

func newProgress(w io.Writer, prefix, phase string, budget time.Duration, enabled bool) *progressLine {
	p := &progressLine{w: w, prefix: prefix, budget: budget}
	p.phase.Store(phase)
	if !enabled {
		return p
	}

	p.start = time.Now()
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.draw()

	groutine.Go(context.Background(), "progress", func(context.Context) {
		defer close(p.done)
		ticker := time.NewTicker(progressUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-p.stop:
				return
			case <-ticker.C:
				p.draw()
			}
		}
	})
	return p
}

// Phase switches the label and restarts the clock with a new budget.
func (p *progressLine) Phase(phase string, budget time.Duration) {
	p.mu.Lock()
	p.budget = budget
	p.start = time.Now()
	p.mu.Unlock()
	p.phase.Store(phase)
}

func (p *progressLine) seconds() int {
	elapsed := time.Since(p.start)
	if p.budget <= 0 {
		return int(elapsed.Seconds())
	}
	remaining := p.budget - elapsed
	if remaining <= 0 {
		return 0
	}
	// 3.7s left shows as 4s
	return int(remaining.Seconds() + 0.5)
}

func (p *progressLine) draw() {
	p.mu.Lock()
	defer p.mu.Unlock()

	phase := p.phase.Load().(string)
	if s := p.seconds(); s > 0 {
		fmt.Fprintf(p.w, "\r%s (%s %ds)   ", p.prefix, phase, s)
	} else {
		fmt.Fprintf(p.w, "\r%s (%s...)   ", p.prefix, phase)
	}
}

// Stop ends the redraw loop and clears the line. Safe to call more than once.
func (p *progressLine) Stop() {
	if p.stop == nil {
		return
	}
	p.once.Do(func() {
		close(p.stop)
		<-p.done
		p.mu.Lock()
		fmt.Fprint(p.w, clearLineSequence)
		p.mu.Unlock()
	})
}
