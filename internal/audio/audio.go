package audio

import (
	"github.com/decred/slog"
)

// ListDevices lists the available output devices.
func ListDevices(log slog.Logger) ([]Device, error) {
	actx, err := newAudioContext()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := actx.free(); err != nil {
			log.Warnf("Unable to free %s audio context: %v", actx.name(), err)
		}
	}()
	return actx.listDevices(log)
}

// FindDevice returns the output device with the given id or nil if it does
// not exist.
func FindDevice(id DeviceID, log slog.Logger) *Device {
	devices, err := ListDevices(log)
	if err != nil {
		log.Debugf("Unable to list devices: %v", err)
		return nil
	}
	for i := range devices {
		if devices[i].ID == id {
			out := new(Device)
			*out = devices[i]
			return out
		}
	}
	return nil
}
