package sx1262

import "errors"

// Sentinel errors returned by Device methods, matching spec.md §4.4's
// error set and the usbprotocol.UsbError / ErrXxx pattern from the pack.
var (
	ErrTimeout        = errors.New("sx1262: timeout")
	ErrCrcError       = errors.New("sx1262: crc error")
	ErrTransmitFailed = errors.New("sx1262: transmit failed")
	ErrReceiveFailed  = errors.New("sx1262: receive failed")
	ErrInvalidConfig  = errors.New("sx1262: invalid config")
	ErrBusyTimeout    = errors.New("sx1262: busy timeout")
	ErrSpiError       = errors.New("sx1262: spi error")
	ErrNotInitialised = errors.New("sx1262: not initialised")
)
