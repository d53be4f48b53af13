// internal/console/pipeline.go

// Package console mirrors the EC console log into a host-side ring and
// serves it to readers.
//
// A periodic drain takes an EC console snapshot and then pulls chunks
// with CONSOLE_READ/recent until the EC has nothing more or the ring is
// full. Readers block until data arrives unless they ask not to.
package console

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/ecdebug/internal/ec"
	"github.com/tamzrod/ecdebug/internal/work"
)

const DefaultPollInterval = 10 * time.Second

var (
	// ErrWouldBlock is returned by a non-blocking read of an empty buffer.
	ErrWouldBlock = errors.New("console: no data available")

	// ErrClosed is returned once the pipeline is closed and drained.
	ErrClosed = errors.New("console: pipeline closed")
)

// Commander performs EC exchanges. Satisfied by *ec.Channel.
type Commander interface {
	Transfer(cmd *ec.Command) (int, error)
	MaxResponse() int
}

// State of the pipeline.
type State int

const (
	StateActive State = iota
	StateSuspended
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	State            State
	Buffered         int
	Capacity         int
	Appended         uint64
	Dropped          uint64
	Drains           uint64
	Errors           uint64
	OverflowEpisodes uint64
	LastDrain        time.Time
	LastError        error
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	shift  uint
	period time.Duration
	logger *slog.Logger
}

func WithBufferShift(shift uint) Option {
	return func(o *options) { o.shift = shift }
}

func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.period = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Pipeline owns the ring, the reusable read command and the drain job.
type Pipeline struct {
	ch     Commander
	logger *slog.Logger
	period time.Duration
	work   *work.DelayedWork

	mu       sync.Mutex
	readable *sync.Cond
	ring     *Ring
	readCmd  *ec.Command
	state    State
	overflow bool
	stats    Stats
}

// New allocates the ring and binds the drain job to pool. Draining
// starts with Start.
func New(ch Commander, pool *work.Pool, opts ...Option) (*Pipeline, error) {
	o := options{
		shift:  DefaultBufferShift,
		period: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.period <= 0 {
		return nil, errors.New("console: poll interval must be > 0")
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	size := ch.MaxResponse()
	if size < 1 {
		return nil, fmt.Errorf("console: unusable max response %d", size)
	}
	ring, err := NewRing(o.shift)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		ch:      ch,
		logger:  o.logger,
		period:  o.period,
		ring:    ring,
		readCmd: ec.NewCommand(ec.CmdConsoleRead, 1, ec.ConsoleReadParamsSize, size),
	}
	p.readable = sync.NewCond(&p.mu)
	p.work = work.NewDelayedWork(pool, p.Drain)
	return p, nil
}

// Start schedules the first drain immediately.
func (p *Pipeline) Start() {
	p.work.Schedule(0)
}

// Drain runs one drain tick and reschedules the next one. A suspended
// or closed pipeline neither talks to the EC nor reschedules, which
// covers a forced drain that lost a race with Suspend.
func (p *Pipeline) Drain() {
	if p.State() != StateActive {
		return
	}
	defer p.reschedule()

	snapshot := ec.NewCommand(ec.CmdConsoleSnapshot, 0, 0, 0)
	if _, err := p.ch.Transfer(snapshot); err != nil {
		p.noteError("console snapshot failed", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Drains++
	p.stats.LastDrain = time.Now()
	p.stats.LastError = nil

	size := p.ch.MaxResponse()
	for {
		if p.ring.Space() == 0 {
			p.markOverflow()
			return
		}

		p.readCmd.InSize = uint32(min(size, len(p.readCmd.Data)))
		clear(p.readCmd.Data)
		p.readCmd.Data[0] = ec.ConsoleReadRecent

		n, err := p.ch.Transfer(p.readCmd)
		if err != nil {
			p.stats.Errors++
			p.stats.LastError = err
			p.logger.Debug("console read failed", "error", err)
			return
		}

		chunk := p.readCmd.Data[:n]
		if n == 0 || chunk[0] == 0 {
			return
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			chunk = chunk[:i]
		}

		if dropped := p.ring.Write(chunk); dropped > 0 {
			p.stats.Dropped += uint64(dropped)
			p.markOverflow()
		}
		p.stats.Appended += uint64(len(chunk))
		p.readable.Broadcast()
	}
}

func (p *Pipeline) reschedule() {
	if p.State() == StateActive {
		p.work.Schedule(p.period)
	}
}

// markOverflow logs once per continuous overflow episode.
// Called with p.mu held.
func (p *Pipeline) markOverflow() {
	if p.overflow {
		return
	}
	p.overflow = true
	p.stats.OverflowEpisodes++
	p.logger.Info("console buffer full, some logs may have been dropped",
		"capacity", p.ring.Cap(),
	)
}

func (p *Pipeline) noteError(msg string, err error) {
	p.mu.Lock()
	p.stats.Errors++
	p.stats.LastError = err
	p.mu.Unlock()
	p.logger.Debug(msg, "error", err)
}

// Read copies buffered console bytes into buf.
//
// An empty buffer returns ErrWouldBlock when nonblock is set. Otherwise
// Read waits for data, ctx cancellation or Close. A single Read never
// returns bytes past the end of the ring storage.
func (p *Pipeline) Read(ctx context.Context, buf []byte, nonblock bool) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !nonblock && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			p.mu.Lock()
			p.readable.Broadcast()
			p.mu.Unlock()
		})
		defer stop()
	}

	for p.ring.Len() == 0 {
		switch {
		case p.state == StateClosed:
			return 0, ErrClosed
		case nonblock:
			return 0, ErrWouldBlock
		case ctx.Err() != nil:
			return 0, ctx.Err()
		}
		p.readable.Wait()
	}

	n := p.ring.Read(buf)
	if n > 0 {
		p.overflow = false
	}
	return n, nil
}

// Readable reports whether a Read would return data without waiting.
// Meant for a poll hook; the FUSE node does not implement poll and
// relies on O_NONBLOCK reads instead.
func (p *Pipeline) Readable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ring.Len() > 0
}

// ForceDrain runs a drain now on the caller's goroutine and waits for
// it. Used on EC panic so the last console lines are captured. A
// suspended or closed pipeline is left alone.
func (p *Pipeline) ForceDrain() {
	p.mu.Lock()
	active := p.state == StateActive
	p.mu.Unlock()
	if !active {
		return
	}
	p.work.Modify(0)
	p.work.Flush()
}

// Suspend cancels the drain job and waits for a running tick to finish.
// Buffered data stays readable.
func (p *Pipeline) Suspend() {
	p.mu.Lock()
	if p.state != StateActive {
		p.mu.Unlock()
		return
	}
	p.state = StateSuspended
	p.mu.Unlock()

	p.work.Cancel()
}

// Resume schedules an immediate drain.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	if p.state != StateSuspended {
		p.mu.Unlock()
		return
	}
	p.state = StateActive
	p.mu.Unlock()

	p.work.Schedule(0)
}

// Close stops draining and wakes blocked readers. Buffered bytes can
// still be read; after that Read returns ErrClosed.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.state == StateClosed {
		p.mu.Unlock()
		return
	}
	p.state = StateClosed
	p.readable.Broadcast()
	p.mu.Unlock()

	p.work.Close()
}

// State returns the lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.State = p.state
	s.Buffered = p.ring.Len()
	s.Capacity = p.ring.Cap() - 1
	return s
}
