package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/godbus/dbus/v5"
)

// DefaultTimeout bounds every call whose context carries no deadline.
const DefaultTimeout = 5 * time.Second

// Client defines the bus operations the rest of the module depends on.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/client_mock.go -package=mocks github.com/genricoloni/mediaplayer/internal/bus Client
type Client interface {
	// Close closes the connection
	Close() error

	// AddMatchSignal adds a signal match rule
	AddMatchSignal(options ...dbus.MatchOption) error

	// Signal registers a channel to receive signals.
	// The channel is closed when the connection goes away.
	Signal(ch chan<- *dbus.Signal)

	// RemoveSignal unregisters a channel added with Signal
	RemoveSignal(ch chan<- *dbus.Signal)

	// ListNames returns all names on the bus
	ListNames(ctx context.Context) ([]string, error)

	// GetProperty reads a property of the MPRIS object exported by service
	GetProperty(ctx context.Context, service, iface, prop string) (dbus.Variant, error)

	// SetProperty writes a property of the MPRIS object exported by service
	SetProperty(ctx context.Context, service, iface, prop string, value any) error

	// CallMethod calls iface.method on the object at path and waits for the reply
	CallMethod(ctx context.Context, service string, path dbus.ObjectPath, iface, method string, args ...any) error
}

// SessionClient is the godbus implementation of Client on a private
// session bus connection
type SessionClient struct {
	conn    *dbus.Conn
	timeout time.Duration
}

// NewSessionClient opens a private connection to the session bus.
// The caller owns the connection and must Close it.
func NewSessionClient(timeout time.Duration) (*SessionClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w: %w", domain.ErrConnection, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &SessionClient{conn: conn, timeout: timeout}, nil
}

// Close closes the connection
func (c *SessionClient) Close() error {
	return c.conn.Close()
}

// AddMatchSignal adds a signal match rule
func (c *SessionClient) AddMatchSignal(options ...dbus.MatchOption) error {
	if err := c.conn.AddMatchSignal(options...); err != nil {
		return c.wrap("add match", err)
	}
	return nil
}

// Signal registers a channel to receive signals
func (c *SessionClient) Signal(ch chan<- *dbus.Signal) {
	c.conn.Signal(ch)
}

// RemoveSignal unregisters a channel added with Signal
func (c *SessionClient) RemoveSignal(ch chan<- *dbus.Signal) {
	c.conn.RemoveSignal(ch)
}

// ListNames returns all names on the bus
func (c *SessionClient) ListNames(ctx context.Context) ([]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var names []string
	if err := c.conn.BusObject().CallWithContext(ctx, ListNamesMethod, 0).Store(&names); err != nil {
		return nil, c.wrap("list names", err)
	}
	return names, nil
}

// GetProperty reads a property of the MPRIS object exported by service
func (c *SessionClient) GetProperty(ctx context.Context, service, iface, prop string) (dbus.Variant, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var v dbus.Variant
	obj := c.conn.Object(service, MprisPath)
	if err := obj.CallWithContext(ctx, PropGet, 0, iface, prop).Store(&v); err != nil {
		return dbus.Variant{}, c.wrap(fmt.Sprintf("get %s.%s on %s", iface, prop, service), err)
	}
	return v, nil
}

// SetProperty writes a property of the MPRIS object exported by service
func (c *SessionClient) SetProperty(ctx context.Context, service, iface, prop string, value any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	obj := c.conn.Object(service, MprisPath)
	if err := obj.CallWithContext(ctx, PropSet, 0, iface, prop, dbus.MakeVariant(value)).Err; err != nil {
		return c.wrap(fmt.Sprintf("set %s.%s on %s", iface, prop, service), err)
	}
	return nil
}

// CallMethod calls iface.method on the object at path and waits for the reply
func (c *SessionClient) CallMethod(ctx context.Context, service string, path dbus.ObjectPath, iface, method string, args ...any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	obj := c.conn.Object(service, path)
	if err := obj.CallWithContext(ctx, iface+"."+method, 0, args...).Err; err != nil {
		return c.wrap(fmt.Sprintf("call %s.%s on %s", iface, method, service), err)
	}
	return nil
}

func (c *SessionClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// wrap classifies err as a connection or a transport failure
func (c *SessionClient) wrap(op string, err error) error {
	if errors.Is(err, dbus.ErrClosed) || !c.conn.Connected() {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConnection, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrTransport, err)
}
