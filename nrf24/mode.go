package nrf24

// handle is the ownership slot every mode embeds. A transition moves the
// Device out of the slot; a mode with an empty slot is spent.
type handle struct {
	dev *Device
}

// Device returns the underlying device for raw register access. It
// panics if the mode has been transitioned away from.
func (h *handle) Device() *Device {
	if h.dev == nil {
		panic("nrf24: mode used after transition")
	}
	return h.dev
}

// take moves the device out, leaving the mode spent.
func (h *handle) take() *Device {
	d := h.Device()
	h.dev = nil
	return d
}

// Mode names, as reported by Name.
const (
	ModeStandby = "standby"
	ModeRx      = "rx"
	ModeTx      = "tx"
)
