package monitor

import (
	"math"
	"strings"

	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/godbus/dbus/v5"
)

// MPRIS metadata keys
const (
	keyTitle  = "xesam:title"
	keyArtist = "xesam:artist"
	keyAlbum  = "xesam:album"
	keyArtURL = "mpris:artUrl"
	keyLength = "mpris:length"
)

const microsPerSecond = 1_000_000

// parseStatus converts a PlaybackStatus variant. Unknown strings pass through.
func parseStatus(v dbus.Variant) domain.PlayerStatus {
	s, ok := v.Value().(string)
	if !ok || s == "" {
		return domain.StatusUnknown
	}
	return domain.PlayerStatus(s)
}

// metadataMap returns the metadata dictionary, or an empty map for
// players that send something else
func metadataMap(v dbus.Variant) map[string]dbus.Variant {
	m, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return map[string]dbus.Variant{}
	}
	return m
}

// parseMetadata fills the descriptive fields of info from an MPRIS metadata map
func parseMetadata(info *domain.PlayerInfo, metadata map[string]dbus.Variant) {
	info.Title = stringValue(metadata, keyTitle)
	info.Album = stringValue(metadata, keyAlbum)
	info.ArtURL = stringValue(metadata, keyArtURL)
	info.Artist = artistValue(metadata)

	if v, ok := metadata[keyLength]; ok {
		info.Duration, _ = MicrosToSeconds(v.Value())
	}
}

func stringValue(metadata map[string]dbus.Variant, key string) string {
	v, ok := metadata[key]
	if !ok {
		return ""
	}
	s, _ := v.Value().(string)
	return s
}

// artistValue joins xesam:artist. Some non-compliant players send a plain string.
func artistValue(metadata map[string]dbus.Variant) string {
	v, ok := metadata[keyArtist]
	if !ok {
		return ""
	}
	switch artists := v.Value().(type) {
	case []string:
		return strings.Join(artists, ", ")
	case []any:
		names := make([]string, 0, len(artists))
		for _, a := range artists {
			if s, ok := a.(string); ok {
				names = append(names, s)
			}
		}
		return strings.Join(names, ", ")
	case string:
		return artists
	default:
		return ""
	}
}

// MicrosToSeconds converts a microsecond count to whole seconds, rounding
// half away from zero. It reports false for non-numeric, negative,
// non-finite or out of range input, in which case the result is 0.
func MicrosToSeconds(raw any) (int64, bool) {
	var us float64
	switch n := raw.(type) {
	case int64:
		us = float64(n)
	case uint64:
		us = float64(n)
	case int32:
		us = float64(n)
	case uint32:
		us = float64(n)
	case int:
		us = float64(n)
	case int16:
		us = float64(n)
	case uint16:
		us = float64(n)
	case byte:
		us = float64(n)
	case float64:
		us = n
	case dbus.Variant:
		return MicrosToSeconds(n.Value())
	default:
		return 0, false
	}
	if math.IsNaN(us) || math.IsInf(us, 0) || us < 0 {
		return 0, false
	}
	seconds := math.Round(us / microsPerSecond)
	if seconds >= math.MaxInt64 {
		return 0, false
	}
	return int64(seconds), true
}
