package monitor

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/mediaplayer/internal/bus"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"go.uber.org/zap"
)

// Builder discovers MPRIS players on the bus and turns them into a sorted snapshot
type Builder struct {
	logger *zap.Logger
	client bus.Client

	mu     sync.RWMutex
	latest domain.Snapshot // Last successfully built snapshot
}

// NewBuilder creates a snapshot builder on top of a bus client
func NewBuilder(logger *zap.Logger, client bus.Client) *Builder {
	return &Builder{
		logger: logger,
		client: client,
	}
}

// Build lists every MPRIS player and returns the visible ones, highest
// priority first. Stopped players are left out.
//
// A player that fails to answer is skipped with a warning so one
// misbehaving player cannot hide the others. Failing to list names or
// losing the connection aborts the whole build.
func (b *Builder) Build(ctx context.Context) (domain.Snapshot, error) {
	start := time.Now()

	names, err := b.client.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	snapshot := make(domain.Snapshot, 0)
	for _, name := range names {
		if !strings.Contains(name, bus.MprisMarker) {
			continue
		}

		info, visible, err := b.buildPlayer(ctx, name)
		if err != nil {
			if errors.Is(err, domain.ErrConnection) || ctx.Err() != nil {
				return nil, err
			}
			b.logger.Warn("Skipping player that failed to answer",
				zap.String("player", name),
				zap.Error(err))
			continue
		}
		if !visible {
			continue
		}
		snapshot = append(snapshot, info)
	}

	slices.SortStableFunc(snapshot, func(x, y domain.PlayerInfo) int {
		return cmp.Compare(x.Status.Priority(), y.Status.Priority())
	})

	b.mu.Lock()
	b.latest = slices.Clone(snapshot)
	b.mu.Unlock()

	b.logger.Debug("Snapshot built",
		zap.Int("players", len(snapshot)),
		zap.Duration("elapsed", time.Since(start)))

	return snapshot, nil
}

// Latest returns a copy of the last snapshot returned by Build
func (b *Builder) Latest() domain.Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.latest)
}

// buildPlayer queries one player. visible is false for stopped players.
func (b *Builder) buildPlayer(ctx context.Context, name string) (info domain.PlayerInfo, visible bool, err error) {
	statusVariant, err := b.client.GetProperty(ctx, name, bus.MprisPlayerIface, "PlaybackStatus")
	if err != nil {
		return info, false, fmt.Errorf("failed to get playback status: %w", err)
	}

	status := parseStatus(statusVariant)
	if status == domain.StatusStopped {
		return info, false, nil
	}

	metadataVariant, err := b.client.GetProperty(ctx, name, bus.MprisPlayerIface, "Metadata")
	if err != nil {
		return info, false, fmt.Errorf("failed to get metadata: %w", err)
	}

	info = domain.PlayerInfo{
		BusURI: name,
		Status: status,
	}
	parseMetadata(&info, metadataMap(metadataVariant))

	// Position is optional: several players answer NotSupported
	positionVariant, err := b.client.GetProperty(ctx, name, bus.MprisPlayerIface, "Position")
	switch {
	case err == nil:
		info.Position, _ = MicrosToSeconds(positionVariant.Value())
	case errors.Is(err, domain.ErrConnection):
		return info, false, err
	default:
		b.logger.Debug("Position unavailable, using 0",
			zap.String("player", name),
			zap.Error(err))
	}

	return info, true, nil
}
