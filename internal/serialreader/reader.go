package serialreader

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/service"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

const (
	framePrefix = "UID:"

	// DefaultSettleDelay is how long a freshly opened board needs after the
	// DTR reset before it emits frames.
	DefaultSettleDelay = 2 * time.Second
)

var (
	ErrNoDevice     = errors.New("reader device unavailable")
	ErrDisconnected = errors.New("reader disconnected")
)

// Processor is the decision surface the reader forwards tags to.
type Processor interface {
	ProcessScan(ctx context.Context, tagID string) (types.Outcome, error)
}

type Config struct {
	// PortName pins the device. Empty means discover on every attempt.
	PortName string
	BaudRate int

	// Attempts bounds each connection round; Pause separates attempts.
	Attempts int
	Pause    time.Duration

	SettleDelay time.Duration
}

type Option func(*Reader)

func WithOpener(o Opener) Option { return func(r *Reader) { r.open = o } }

func WithDiscoverer(d Discoverer) Option { return func(r *Reader) { r.discover = d } }

// WithConnectionHook is called whenever the reader connects or drops.
func WithConnectionHook(fn func(connected bool, port string)) Option {
	return func(r *Reader) { r.onConn = fn }
}

// Reader is the serial transport: it owns the device connection, turns
// UID frames into scans and writes each response back to the device.
type Reader struct {
	cfg      Config
	engine   Processor
	logger   *zap.Logger
	open     Opener
	discover Discoverer
	onConn   func(bool, string)

	mu        sync.RWMutex
	connected bool
	port      string
}

func New(engine Processor, cfg Config, logger *zap.Logger, opts ...Option) *Reader {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Pause <= 0 {
		// go-retry panics on a non-positive constant.
		cfg.Pause = time.Millisecond
	}
	r := &Reader{
		cfg:      cfg,
		engine:   engine,
		logger:   logger,
		open:     OpenSerial,
		discover: func() string { return "" },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connected reports whether a device session is live, and on which port.
func (r *Reader) Connected() (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connected, r.port
}

func (r *Reader) setConnected(v bool, port string) {
	r.mu.Lock()
	r.connected, r.port = v, port
	r.mu.Unlock()
	if r.onConn != nil {
		r.onConn(v, port)
	}
}

// Run serves the device until ctx is cancelled. A dropped session triggers
// a fresh connection round; Run gives up with ErrNoDevice only when a whole
// round fails. Cancellation returns nil.
func (r *Reader) Run(ctx context.Context) error {
	for {
		port, name, err := r.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrNoDevice, err)
		}

		r.logger.Info("reader connected", zap.String("port", name), zap.Int("baud", r.cfg.BaudRate))
		r.setConnected(true, name)
		err = r.session(ctx, port)
		r.setConnected(false, name)

		if ctx.Err() != nil {
			return nil
		}
		r.logger.Warn("reader session ended, reconnecting", zap.String("port", name), zap.Error(err))
	}
}

func (r *Reader) connect(ctx context.Context) (Port, string, error) {
	var (
		port Port
		name string
		try  int
	)
	backoff := retry.WithMaxRetries(uint64(r.cfg.Attempts-1), retry.NewConstant(r.cfg.Pause))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		try++
		name = r.cfg.PortName
		if name == "" {
			name = r.discover()
		}
		if name == "" {
			r.logger.Warn("no reader port found", zap.Int("attempt", try))
			return retry.RetryableError(errors.New("no port discovered"))
		}

		p, err := r.open(name, r.cfg.BaudRate)
		if err != nil {
			r.logger.Warn("reader connect failed",
				zap.String("port", name),
				zap.Int("attempt", try),
				zap.Int("max_attempts", r.cfg.Attempts),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		port = p
		return nil
	})
	return port, name, err
}

// session waits for the board to settle, then reads frames until the port
// fails or ctx is cancelled.
func (r *Reader) session(ctx context.Context, port Port) error {
	defer port.Close()

	// Closing the port is the only way to unblock a pending Read.
	stop := context.AfterFunc(ctx, func() { _ = port.Close() })
	defer stop()

	if r.cfg.SettleDelay > 0 {
		t := time.NewTimer(r.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		tag, ok := ParseFrame(scanner.Text())
		if !ok {
			continue
		}
		if err := r.handle(ctx, port, tag); err != nil {
			return err
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	return fmt.Errorf("%w: %w", ErrDisconnected, err)
}

// handle processes one tag. Store failures drop the scan; a failed write
// ends the session.
func (r *Reader) handle(ctx context.Context, port Port, tag string) error {
	out, err := r.engine.ProcessScan(ctx, tag)
	switch {
	case errors.Is(err, service.ErrJournal):
		r.logger.Error("scan journal failed", zap.String("tag", tag), zap.Error(err))
	case err != nil:
		r.logger.Error("scan dropped", zap.String("tag", tag), zap.Error(err))
		return nil
	}

	r.logger.Info("scan processed",
		zap.String("tag", tag),
		zap.String("response", out.Response),
		zap.String("summary", out.Summary),
		zap.String("source", "serial"))

	if _, err := io.WriteString(port, out.Response+"\n"); err != nil {
		return fmt.Errorf("%w: write: %w", ErrDisconnected, err)
	}
	return nil
}

// ParseFrame extracts the tag from a "UID:<tag>" line.
func ParseFrame(line string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), framePrefix)
	if !ok {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}
