package serialreader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/service"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store/memory"
)

// fakePort serves scripted input, records writes and unblocks on Close.
type fakePort struct {
	r *io.PipeReader

	mu      sync.Mutex
	written bytes.Buffer
	closed  bool
}

func newFakePort(input string) *fakePort {
	pr, pw := io.Pipe()
	go func() {
		_, _ = io.WriteString(pw, input)
		_ = pw.Close()
	}()
	return &fakePort{r: pr}
}

// newBlockingPort never produces data until closed.
func newBlockingPort() *fakePort {
	pr, _ := io.Pipe()
	return &fakePort{r: pr}
}

func (p *fakePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.r.Close()
}

func (p *fakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

func newEngine(t *testing.T) (*service.Engine, *memory.UserStore, *memory.JournalStore) {
	t.Helper()
	users := memory.NewUserStore()
	journal := memory.NewJournalStore()
	return service.NewEngine(users, journal, service.EngineConfig{MasterKey: "M1"}), users, journal
}

func testConfig() Config {
	return Config{PortName: "/dev/ttyFAKE", BaudRate: 9600, Attempts: 2, Pause: time.Millisecond}
}

func TestParseFrame(t *testing.T) {
	cases := []struct {
		line string
		tag  string
		ok   bool
	}{
		{"UID:04A1B2C3", "04A1B2C3", true},
		{"UID: 04A1B2C3\r", "04A1B2C3", true},
		{"  UID:abc  ", "abc", true},
		{"UID:", "", false},
		{"Reader ready", "", false},
		{"uid:lower", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		tag, ok := ParseFrame(tc.line)
		assert.Equal(t, tc.ok, ok, tc.line)
		assert.Equal(t, tc.tag, tag, tc.line)
	}
}

func TestMatchPort(t *testing.T) {
	ports := []*enumerator.PortDetails{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, Product: "USB2.0-Serial CH340"},
		{Name: "/dev/ttyACM0", IsUSB: true, Product: "Arduino Uno"},
	}

	t.Run("Should pick the first port matching any keyword", func(t *testing.T) {
		assert.Equal(t, "/dev/ttyUSB0", matchPort(ports, []string{"arduino", "ch340"}, "COM3"))
	})

	t.Run("Should match case-insensitively", func(t *testing.T) {
		assert.Equal(t, "/dev/ttyACM0", matchPort(ports, []string{"ARDUINO"}, "COM3"))
	})

	t.Run("Should fall back when nothing matches", func(t *testing.T) {
		assert.Equal(t, "COM3", matchPort(ports, []string{"ftdi"}, "COM3"))
		assert.Equal(t, "COM3", matchPort(nil, []string{"arduino"}, "COM3"))
	})
}

func TestRun_ProcessesFramesAndWritesResponses(t *testing.T) {
	eng, users, journal := newEngine(t)
	port := newFakePort("Reader ready\nUID:M1\nUID:TAG1\r\nnoise\nUID:M1\nUID:TAG1\nUID:TAG2\n")

	opens := 0
	r := New(eng, testConfig(), zap.NewNop(), WithOpener(func(name string, baud int) (Port, error) {
		opens++
		if opens == 1 {
			return port, nil
		}
		return nil, errors.New("unplugged")
	}))

	err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrNoDevice)

	lines := strings.Split(strings.TrimSpace(port.Written()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "MASTER_KEY:ACTIVE", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "REGISTERED:User_"))
	assert.Equal(t, "MASTER_KEY:INACTIVE", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "ACCESS_GRANTED:User_"))
	assert.Equal(t, "ACCESS_DENIED", lines[4])

	n, err := users.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, journal.Events(), 5)
	assert.Equal(t, 3, opens, "one session plus a failed reconnect round of two attempts")
}

func TestRun_StoreFailureDropsScanAndKeepsServing(t *testing.T) {
	eng, users, _ := newEngine(t)
	users.SetUnavailable(true)
	port := newFakePort("UID:TAG1\nUID:M1\n")

	opened := false
	r := New(eng, testConfig(), zap.NewNop(), WithOpener(func(string, int) (Port, error) {
		if opened {
			return nil, errors.New("gone")
		}
		opened = true
		return port, nil
	}))

	_ = r.Run(context.Background())
	assert.Equal(t, "MASTER_KEY:ACTIVE\n", port.Written(), "failed scan gets no response")
}

func TestRun_JournalFailureStillResponds(t *testing.T) {
	eng, _, journal := newEngine(t)
	journal.SetUnavailable(true)
	port := newFakePort("UID:TAG9\n")

	opened := false
	r := New(eng, testConfig(), zap.NewNop(), WithOpener(func(string, int) (Port, error) {
		if opened {
			return nil, errors.New("gone")
		}
		opened = true
		return port, nil
	}))

	_ = r.Run(context.Background())
	assert.Equal(t, "ACCESS_DENIED\n", port.Written())
}

func TestRun_RetriesAndRediscovers(t *testing.T) {
	eng, _, _ := newEngine(t)
	cfg := testConfig()
	cfg.PortName = ""
	cfg.Attempts = 5

	var discovered, tried []string
	candidates := []string{"", "COM3", "/dev/ttyUSB0"}
	r := New(eng, cfg, zap.NewNop(),
		WithDiscoverer(func() string {
			name := candidates[min(len(discovered), len(candidates)-1)]
			discovered = append(discovered, name)
			return name
		}),
		WithOpener(func(name string, _ int) (Port, error) {
			tried = append(tried, name)
			if name == "/dev/ttyUSB0" {
				return newFakePort(""), nil
			}
			return nil, errors.New("busy")
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	var states []bool
	r.onConn = func(c bool, port string) {
		states = append(states, c)
		if !c {
			cancel()
		}
	}

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, []string{"", "COM3", "/dev/ttyUSB0"}, discovered)
	assert.Equal(t, []string{"COM3", "/dev/ttyUSB0"}, tried, "empty discovery is not opened")
	assert.Equal(t, []bool{true, false}, states)
}

func TestRun_GivesUpAfterBoundedAttempts(t *testing.T) {
	eng, _, _ := newEngine(t)
	cfg := testConfig()
	cfg.Attempts = 5

	calls := 0
	r := New(eng, cfg, zap.NewNop(), WithOpener(func(string, int) (Port, error) {
		calls++
		return nil, errors.New("no such device")
	}))

	err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrNoDevice)
	assert.Equal(t, 5, calls)
	connected, _ := r.Connected()
	assert.False(t, connected)
}

func TestRun_CancelUnblocksRead(t *testing.T) {
	eng, _, _ := newEngine(t)
	port := newBlockingPort()

	r := New(eng, testConfig(), zap.NewNop(), WithOpener(func(string, int) (Port, error) {
		return port, nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		c, name := r.Connected()
		return c && name == "/dev/ttyFAKE"
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	port.mu.Lock()
	assert.True(t, port.closed)
	port.mu.Unlock()
}

func TestRun_CancelDuringSettleDelay(t *testing.T) {
	eng, _, _ := newEngine(t)
	cfg := testConfig()
	cfg.SettleDelay = time.Hour

	r := New(eng, cfg, zap.NewNop(), WithOpener(func(string, int) (Port, error) {
		return newBlockingPort(), nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, r.Run(ctx))
}
