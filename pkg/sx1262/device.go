package sx1262

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/librescoot/walkie-textie/pkg/protocol"
)

// RxPollIntervalMs mirrors original_source/src/tasks/lora.rs's
// RX_POLL_INTERVAL_MS radio task poll cadence; callers drive it, not this
// package.
const RxPollIntervalMs = 500

// busyPollInterval is how often BUSY is sampled while waiting for it to
// drop low.
const busyPollInterval = 200 * time.Microsecond

// defaultBusyTimeout bounds every transaction's wait for BUSY==low.
const defaultBusyTimeout = 100 * time.Millisecond

// state is the driver's view of the radio's operating mode.
type state int

const (
	stateUninitialised state = iota
	stateStandby
	stateTX
	stateRX
)

// Radio is the capability set the dispatcher needs from a radio
// implementation (spec.md §9's "trait-dispatch to compile-time
// polymorphism" note) — satisfied both by *Device and by
// sx1262mock.Radio in tests.
type Radio interface {
	Transmit(data []byte) error
	Receive(timeout time.Duration) (protocol.Response, error)
	Configure(cfg protocol.RadioConfig) error
	SetStandby() error
}

// Device drives a single SX1262 over SPI plus three discrete GPIO lines.
// It owns no goroutine; callers (the radio task, dispatcher.RunRadioTask)
// serialise all access, matching spec.md §5's "the radio is owned by
// exactly one task" invariant.
type Device struct {
	conn spi.Conn
	nrst gpio.PinOut
	busy gpio.PinIn
	dio1 gpio.PinIn

	log *slog.Logger

	state  state
	cfg    protocol.RadioConfig
	stats  Stats
}

// Stats is the supplemental read-only diagnostic accessor carried over
// from original_source/src/lora's GetStats/GetDeviceErrors surface.
type Stats struct {
	PacketsReceived uint32
	PacketsSent     uint32
	CrcErrors       uint32
}

// New constructs a Device. conn is the SPI connection with NSS already
// bound as its chip-select; nrst/busy/dio1 are the three discrete control
// lines described in spec.md §4.4.
func New(conn spi.Conn, nrst gpio.PinOut, busy gpio.PinIn, dio1 gpio.PinIn, logger *slog.Logger) *Device {
	if logger == nil {
		logger = slog.Default()
	}
	return &Device{
		conn: conn,
		nrst: nrst,
		busy: busy,
		dio1: dio1,
		log:  logger.With("lib", "sx1262"),
		state: stateUninitialised,
	}
}

// waitBusyLow polls BUSY until it reads low or timeout elapses.
func (d *Device) waitBusyLow(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if d.busy.Read() == gpio.Low {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrBusyTimeout
		}
		time.Sleep(busyPollInterval)
	}
}

// exec performs one SPI transaction: wait BUSY low, transfer opcode+args.
// Write-only commands (readLen==0) send just opcode+args. Read commands
// additionally clock out a NOP byte after the opcode before the read
// phase, since the chip only starts shifting out the status byte and
// payload one byte after the opcode. See original_source/src/lora/
// driver.rs's read_command vs write_command split.
func (d *Device) exec(opcode byte, args []byte, readLen int) ([]byte, error) {
	log := d.log.With("func", "exec", "params", fmt.Sprintf("opcode=0x%02X argsLen=%d readLen=%d", opcode, len(args), readLen))

	if err := d.waitBusyLow(defaultBusyTimeout); err != nil {
		log.Warn("busy timeout", "err", err)
		return nil, err
	}

	var tx []byte
	var argOffset int
	if readLen == 0 {
		tx = make([]byte, 1+len(args))
		tx[0] = opcode
		argOffset = 1
	} else {
		tx = make([]byte, 2+len(args)+readLen)
		tx[0] = opcode
		// tx[1] is a NOP byte clocked out while the chip digests the opcode.
		argOffset = 2
	}
	copy(tx[argOffset:], args)
	rx := make([]byte, len(tx))

	if err := d.conn.Tx(tx, rx); err != nil {
		log.Warn("spi transfer failed", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrSpiError, err)
	}

	if readLen == 0 {
		log.Debug("ok")
		return nil, nil
	}
	// rx[0] is garbage clocked out during the opcode-send phase; rx[1] is
	// the chip's status byte. The payload starts at rx[2+len(args)].
	out := rx[2+len(args):]
	log.Debug("ok", "return", fmt.Sprintf("% X", out))
	return out, nil
}

// cmd is exec without a read phase, for pure write commands.
func (d *Device) cmd(opcode byte, args ...byte) error {
	_, err := d.exec(opcode, args, 0)
	return err
}

// Reset performs a hardware reset: NRST low >=10ms, high, then wait for
// BUSY to settle (spec.md §4.4 init step 1).
func (d *Device) Reset() error {
	d.log.With("func", "Reset").Debug("resetting")
	if err := d.nrst.Out(gpio.Low); err != nil {
		return fmt.Errorf("%w: %v", ErrSpiError, err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.nrst.Out(gpio.High); err != nil {
		return fmt.Errorf("%w: %v", ErrSpiError, err)
	}
	time.Sleep(20 * time.Millisecond)
	return d.waitBusyLow(defaultBusyTimeout)
}

// SetStandby puts the radio in standby with the RC oscillator.
func (d *Device) SetStandby() error {
	if err := d.cmd(opSetStandby, standbyRC); err != nil {
		return err
	}
	d.state = stateStandby
	return nil
}

func (d *Device) setPacketType(t PacketType) error {
	return d.cmd(opSetPacketType, byte(t))
}

func (d *Device) setDIO3AsTCXOCtrl(voltageCode byte, timeoutSteps uint32) error {
	return d.cmd(opSetDIO3AsTCXOCtrl, voltageCode,
		byte(timeoutSteps>>16), byte(timeoutSteps>>8), byte(timeoutSteps))
}

func (d *Device) setDIO2AsRfSwitchCtrl(enable bool) error {
	v := byte(0)
	if enable {
		v = 1
	}
	return d.cmd(opSetDIO2AsRfSwitchCtrl, v)
}

func (d *Device) writeRegister(addr uint16, data ...byte) error {
	args := append([]byte{byte(addr >> 8), byte(addr)}, data...)
	return d.cmd(opWriteRegister, args...)
}

func (d *Device) setBufferBaseAddress(txBase, rxBase byte) error {
	return d.cmd(opSetBufferBaseAddress, txBase, rxBase)
}

func (d *Device) setDioIrqParams(irqMask, dio1Mask, dio2Mask, dio3Mask uint16) error {
	args := []byte{
		byte(irqMask >> 8), byte(irqMask),
		byte(dio1Mask >> 8), byte(dio1Mask),
		byte(dio2Mask >> 8), byte(dio2Mask),
		byte(dio3Mask >> 8), byte(dio3Mask),
	}
	return d.cmd(opSetDioIrqParams, args...)
}

func (d *Device) getIrqStatus() (uint16, error) {
	out, err := d.exec(opGetIrqStatus, nil, 2)
	if err != nil {
		return 0, err
	}
	return uint16(out[0])<<8 | uint16(out[1]), nil
}

func (d *Device) clearIrqStatus(mask uint16) error {
	return d.cmd(opClearIrqStatus, byte(mask>>8), byte(mask))
}

// Init performs the spec.md §4.4 initialisation sequence and arms
// continuous RX.
func (d *Device) Init(cfg protocol.RadioConfig) error {
	log := d.log.With("func", "Init")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := d.Reset(); err != nil {
		return err
	}
	if err := d.SetStandby(); err != nil {
		return err
	}
	// TCXO: 1.8V (code 0x02), ~5ms startup (0x000140 steps of 15.625us).
	if err := d.setDIO3AsTCXOCtrl(0x02, 0x000140); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.setDIO2AsRfSwitchCtrl(true); err != nil {
		return err
	}
	ocp := byte(140 / 2.5)
	if ocp > 63 {
		ocp = 63
	}
	if err := d.writeRegister(regOCP, ocp); err != nil {
		return err
	}
	if err := d.setPacketType(PacketTypeLoRa); err != nil {
		return err
	}
	if err := d.setBufferBaseAddress(0x00, 0x80); err != nil {
		return err
	}
	if err := d.Configure(cfg); err != nil {
		return err
	}
	if err := d.armContinuousRx(); err != nil {
		return err
	}
	log.Info("initialised", "config", cfg)
	return nil
}
