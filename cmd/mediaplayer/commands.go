package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/genricoloni/mediaplayer/internal/domain"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

// playerControl is the part of the engine used by the control command
type playerControl interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
	Control(ctx context.Context, action domain.Action, player string) error
	SetVolume(ctx context.Context, level float64, player string) error
	SetPosition(ctx context.Context, seconds int64, player string) error
}

type snapshotter interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

type coverGenerator interface {
	Generate(ctx context.Context, imageData []byte, outputPath string) (string, error)
}

// controlOptions holds the optional control operations; nil means not requested
type controlOptions struct {
	position *int64
	action   *domain.Action
	volume   *float64
}

func (o controlOptions) empty() bool {
	return o.position == nil && o.action == nil && o.volume == nil
}

// runControl applies the position, then the action, then the volume. Every
// requested operation is attempted and the failures are combined.
func runControl(ctx context.Context, ctl playerControl, opts controlOptions, player string) error {
	if player == "" {
		// The controller targets the first player of the latest snapshot
		if _, err := ctl.Snapshot(ctx); err != nil {
			return err
		}
	}

	var errs error
	if opts.position != nil {
		errs = multierr.Append(errs, ctl.SetPosition(ctx, *opts.position, player))
	}
	if opts.action != nil {
		errs = multierr.Append(errs, ctl.Control(ctx, *opts.action, player))
	}
	if opts.volume != nil {
		errs = multierr.Append(errs, ctl.SetVolume(ctx, *opts.volume, player))
	}
	return errs
}

// runArt writes a thumbnail of the selected player's cover and prints its path
func runArt(ctx context.Context, src snapshotter, f domain.Fetcher, gen coverGenerator, player, output string, stdout io.Writer) error {
	snapshot, err := src.Snapshot(ctx)
	if err != nil {
		return err
	}

	var (
		info  domain.PlayerInfo
		found bool
	)
	if player == "" {
		info, found = snapshot.Active()
	} else {
		info, found = snapshot.Find(player)
	}
	if !found {
		if player == "" {
			return fmt.Errorf("art: %w", domain.ErrNoPlayer)
		}
		return fmt.Errorf("art: %s: %w", player, domain.ErrNoPlayer)
	}
	if info.ArtURL == "" {
		return fmt.Errorf("art: %s has no artwork", info.BusURI)
	}

	data, err := f.Fetch(ctx, info.ArtURL)
	if err != nil {
		return fmt.Errorf("art: %w", err)
	}

	path, err := gen.Generate(ctx, data, output)
	if err != nil {
		return fmt.Errorf("art: %w", err)
	}

	_, err = fmt.Fprintln(stdout, path)
	return err
}

// writeSnapshot prints snapshot in the requested format. An empty snapshot
// is printed as an empty list.
func writeSnapshot(w io.Writer, snapshot domain.Snapshot, format string) error {
	if snapshot == nil {
		snapshot = domain.Snapshot{}
	}

	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snapshot); err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		return enc.Close()
	default:
		data, err := json.MarshalIndent(snapshot, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
}
