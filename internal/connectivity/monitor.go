package connectivity

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/eshaffer321/docvault-go/internal/observable"
	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/pkg/errors"
)

// ProbeFunc reports nil when the network path is usable
type ProbeFunc func(ctx context.Context) error

// MonitorOptions configures a Monitor
type MonitorOptions struct {
	// Probe checks reachability. Defaults to a TCP dial of Address.
	Probe ProbeFunc

	// Address is host:port dialed by the default probe
	Address string

	Interval time.Duration
	Timeout  time.Duration
	Logger   types.Logger
}

// Monitor polls a probe and publishes the result
type Monitor struct {
	opts   MonitorOptions
	online *observable.Value[bool]

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ Observer = (*Monitor)(nil)

// NewMonitor creates a Monitor. It reports online until the first probe says otherwise.
func NewMonitor(opts MonitorOptions) (*Monitor, error) {
	// Set defaults
	if opts.Interval == 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Probe == nil {
		if opts.Address == "" {
			return nil, errors.New("monitor needs a probe or an address")
		}
		opts.Probe = DialProbe(opts.Address, opts.Timeout)
	}

	return &Monitor{
		opts:   opts,
		online: observable.New(true),
	}, nil
}

// AddressFor derives a dialable host:port from a base URL
func AddressFor(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", errors.Wrap(err, "invalid base URL")
	}
	if u.Host == "" {
		return "", errors.Errorf("base URL %q has no host", baseURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	port := "443"
	if u.Scheme == "http" {
		port = "80"
	}
	return net.JoinHostPort(u.Hostname(), port), nil
}

// DialProbe returns a probe that opens and closes a TCP connection to address
func DialProbe(address string, timeout time.Duration) ProbeFunc {
	dialer := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context) error {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

func (m *Monitor) Online() bool {
	return m.online.Get()
}

func (m *Monitor) Subscribe() (<-chan bool, func()) {
	return m.online.Watch()
}

// Start probes once and then every Interval until Stop or ctx is done
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	m.mu.Unlock()

	m.Check(ctx)

	m.wg.Add(1)
	go m.loop(ctx, stopCh)
}

// Stop ends the polling loop
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
}

// Check runs the probe once and publishes the outcome
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	err := m.opts.Probe(probeCtx)
	cancel()

	online := err == nil
	if m.online.Set(online) && m.opts.Logger != nil {
		if online {
			m.opts.Logger.Info("Connectivity restored")
		} else {
			m.opts.Logger.Warn("Connectivity lost", "error", err)
		}
	}
	return online
}

func (m *Monitor) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
