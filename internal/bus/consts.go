package bus

import "github.com/godbus/dbus/v5"

// Well-known names used to talk to the bus daemon and to MPRIS players.
const (
	DBusInterface   = "org.freedesktop.DBus"
	DBusPropIface   = DBusInterface + ".Properties"
	ListNamesMethod = DBusInterface + ".ListNames"

	PropGet = DBusPropIface + ".Get"
	PropSet = DBusPropIface + ".Set"

	PropertiesChangedMember = "PropertiesChanged"
	NameOwnerChangedMember  = "NameOwnerChanged"
	PropertiesChangedSignal = DBusPropIface + "." + PropertiesChangedMember
	NameOwnerChangedSignal  = DBusInterface + "." + NameOwnerChangedMember

	// MprisMarker identifies MPRIS2 services among all bus names
	MprisMarker      = "org.mpris.MediaPlayer2"
	MprisPlayerIface = MprisMarker + ".Player"

	// MprisNoTrack is the track id meaning "no current track".
	// SetPosition is ignored by players for it.
	MprisNoTrack = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
)

// MprisPath is the object path every MPRIS player exports.
const MprisPath dbus.ObjectPath = "/org/mpris/MediaPlayer2"
