package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/genricoloni/mediaplayer/internal/bus"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// DefaultTimeout is how long a control call waits for the player to answer
const DefaultTimeout = 500 * time.Millisecond

// MaxPositionSeconds is the largest position whose microsecond value fits an int64
const MaxPositionSeconds = math.MaxInt64 / 1_000_000

// Controller sends playback commands to MPRIS players
type Controller struct {
	logger  *zap.Logger
	client  bus.Client
	source  domain.SnapshotSource
	timeout time.Duration
}

// New creates a controller. source provides the default player when a
// command names none.
func New(logger *zap.Logger, client bus.Client, source domain.SnapshotSource, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{
		logger:  logger,
		client:  client,
		source:  source,
		timeout: timeout,
	}
}

// Control runs a zero-argument action on player, or on the highest
// priority player of the latest snapshot when player is empty
func (c *Controller) Control(ctx context.Context, action domain.Action, player string) error {
	if _, err := domain.ParseAction(string(action)); err != nil {
		return err
	}

	target, err := c.resolve(player)
	if err != nil {
		return err
	}

	c.logger.Debug("Sending action", zap.String("player", target), zap.String("action", string(action)))
	return c.call(ctx, target, string(action))
}

// SetVolume sets the Volume property. level must be within [0, 1].
func (c *Controller) SetVolume(ctx context.Context, level float64, player string) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return &domain.InvalidArgumentError{Field: "volume", Message: "must be between 0 and 1"}
	}

	target, err := c.resolve(player)
	if err != nil {
		return err
	}

	c.logger.Debug("Setting volume", zap.String("player", target), zap.Float64("volume", level))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err = c.client.SetProperty(ctx, target, bus.MprisPlayerIface, "Volume", level)
	return c.acknowledge(target, "Volume", err)
}

// SetPosition moves playback to an absolute position in seconds. Players
// without a usable track id get a relative Seek instead.
func (c *Controller) SetPosition(ctx context.Context, seconds int64, player string) error {
	if seconds < 0 {
		return &domain.InvalidArgumentError{Field: "position", Message: "cannot be negative"}
	}
	if seconds > MaxPositionSeconds {
		return &domain.InvalidArgumentError{Field: "position", Message: "out of range"}
	}

	target, err := c.resolve(player)
	if err != nil {
		return err
	}

	metadata, err := c.client.GetProperty(ctx, target, bus.MprisPlayerIface, "Metadata")
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}

	positionUs := seconds * 1_000_000
	id := trackID(metadata)
	if id != "" && id != bus.MprisNoTrack {
		c.logger.Debug("Setting position",
			zap.String("player", target),
			zap.String("track", id),
			zap.Int64("position", positionUs))
		return c.call(ctx, target, "SetPosition", dbus.ObjectPath(id), positionUs)
	}

	var current int64
	if v, err := c.client.GetProperty(ctx, target, bus.MprisPlayerIface, "Position"); err == nil {
		current, _ = v.Value().(int64)
	} else if errors.Is(err, domain.ErrConnection) {
		return err
	}

	offset := positionUs - current
	c.logger.Debug("No track id, seeking instead",
		zap.String("player", target),
		zap.Int64("offset", offset))
	return c.call(ctx, target, "Seek", offset)
}

// resolve picks the explicit player or the first entry of the latest snapshot
func (c *Controller) resolve(player string) (string, error) {
	if player != "" {
		return player, nil
	}
	active, ok := c.source.Latest().Active()
	if !ok {
		return "", domain.ErrNoPlayer
	}
	return active.BusURI, nil
}

// call invokes a Player method with the short control timeout
func (c *Controller) call(ctx context.Context, target, method string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.client.CallMethod(ctx, target, bus.MprisPath, bus.MprisPlayerIface, method, args...)
	return c.acknowledge(target, method, err)
}

// acknowledge treats a timeout as success. The player may still act on
// the command after the deadline.
func (c *Controller) acknowledge(target, what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Debug("Player did not acknowledge in time",
			zap.String("player", target),
			zap.String("command", what))
		return nil
	}
	return err
}

// trackID reads mpris:trackid. Players send an object path or, incorrectly,
// a plain string.
func trackID(metadata dbus.Variant) string {
	m, ok := metadata.Value().(map[string]dbus.Variant)
	if !ok {
		return ""
	}
	v, ok := m["mpris:trackid"]
	if !ok {
		return ""
	}
	switch id := v.Value().(type) {
	case dbus.ObjectPath:
		return string(id)
	case string:
		return id
	default:
		return ""
	}
}
