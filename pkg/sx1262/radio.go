package sx1262

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/librescoot/walkie-textie/pkg/protocol"
)

func (d *Device) setRfFrequency(freqHz uint32) error {
	reg := rfFrequencyRegister(freqHz)
	return d.cmd(opSetRfFrequency, byte(reg>>24), byte(reg>>16), byte(reg>>8), byte(reg))
}

func (d *Device) setModulationParams(cfg protocol.RadioConfig) error {
	bw, err := loraBandwidthCode(cfg.BandwidthKHz)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cr, err := loraCodingRateCode(cfg.CodingRate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	ldro := byte(0)
	if cfg.LowDataRateOptimize() {
		ldro = 1
	}
	return d.cmd(opSetModulationParams, cfg.SpreadingFactor, bw, cr, ldro)
}

func (d *Device) setPacketParams(payloadLength byte, crcOn bool) error {
	crc := byte(0)
	if crcOn {
		crc = 1
	}
	// preambleLength=8 (2 bytes), headerType=0x00 (explicit), payloadLength,
	// crcOn, invertIQ=0x00 (standard).
	return d.cmd(opSetPacketParams,
		0x00, 0x08, // preamble length, MSB/LSB
		0x00, // explicit header
		payloadLength,
		crc,
		0x00, // standard IQ
	)
}

func (d *Device) setPaConfig() error {
	// High-power PA for the SX1262: paDutyCycle=0x04, hpMax=0x07,
	// deviceSel=0x00 (SX1262), paLut=0x01 — spec.md §4.4.
	return d.cmd(opSetPaConfig, 0x04, 0x07, 0x00, 0x01)
}

func (d *Device) setTxParams(dbm int8) error {
	// Ramp time 200us = 0x04. Power register is the signed dBm value in
	// two's complement.
	return d.cmd(opSetTxParams, byte(dbm), 0x04)
}

// Configure puts the radio in standby, then programs its RF frequency,
// modulation parameters, PA config and TX power from cfg. Packet
// parameters are not set here; Transmit and Receive program them.
func (d *Device) Configure(cfg protocol.RadioConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := d.SetStandby(); err != nil {
		return err
	}
	if err := d.setRfFrequency(cfg.FrequencyHz); err != nil {
		return err
	}
	if err := d.setModulationParams(cfg); err != nil {
		return err
	}
	if err := d.setPaConfig(); err != nil {
		return err
	}
	if err := d.setTxParams(cfg.TxPowerDBm); err != nil {
		return err
	}
	d.cfg = cfg
	return nil
}

func (d *Device) getRxBufferStatus() (payloadLen, startPtr byte, err error) {
	out, err := d.exec(opGetRxBufferStatus, nil, 2)
	if err != nil {
		return 0, 0, err
	}
	return out[0], out[1], nil
}

func (d *Device) getPacketStatus() (rssi int16, snr int8, err error) {
	out, err := d.exec(opGetPacketStatus, nil, 3)
	if err != nil {
		return 0, 0, err
	}
	// spec.md §4.4: rssi = -raw0/2 (dBm), snr = raw1/4 (dB, signed).
	rssi = -int16(out[0]) / 2
	snr = int8(out[1]) / 4
	return rssi, snr, nil
}

func (d *Device) readBuffer(offset, length byte) ([]byte, error) {
	log := d.log.With("func", "readBuffer")
	if err := d.waitBusyLow(defaultBusyTimeout); err != nil {
		return nil, err
	}
	tx := make([]byte, 3+int(length))
	tx[0] = opReadBuffer
	tx[1] = offset
	rx := make([]byte, len(tx))
	if err := d.conn.Tx(tx, rx); err != nil {
		log.Warn("spi transfer failed", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrSpiError, err)
	}
	return rx[3:], nil
}

func (d *Device) writeBuffer(offset byte, data []byte) error {
	args := append([]byte{offset}, data...)
	return d.cmd(opWriteBuffer, args...)
}

// armContinuousRx puts the radio into continuous receive mode (spec.md
// §4.4 init step 9, and the end of every public operation per §4.4's
// state machine).
func (d *Device) armContinuousRx() error {
	if err := d.setPacketParams(255, true); err != nil {
		return err
	}
	if err := d.setDioIrqParams(IrqRxDone|IrqTimeout|IrqCrcErr, IrqRxDone|IrqTimeout|IrqCrcErr, 0, 0); err != nil {
		return err
	}
	if err := d.clearIrqStatus(IrqAll); err != nil {
		return err
	}
	if err := d.cmd(opSetRx, 0xFF, 0xFF, 0xFF); err != nil {
		return err
	}
	d.state = stateRX
	return nil
}

// Transmit sends data (1..256 bytes) and blocks until TX completes, a
// software deadline of 10s elapses, or the radio reports failure. It
// always leaves the radio in continuous RX on return, per spec.md §4.4.
func (d *Device) Transmit(data []byte) error {
	log := d.log.With("func", "Transmit", "params", fmt.Sprintf("len=%d", len(data)))
	if d.state == stateUninitialised {
		return ErrNotInitialised
	}
	if len(data) < 1 || len(data) > 256 {
		return fmt.Errorf("%w: payload length %d out of range 1..256", ErrInvalidConfig, len(data))
	}

	if err := d.SetStandby(); err != nil {
		return err
	}
	if err := d.setPacketParams(byte(len(data)), true); err != nil {
		return err
	}
	if err := d.writeBuffer(0x00, data); err != nil {
		return err
	}
	if err := d.setDioIrqParams(IrqTxDone, IrqTxDone, 0, 0); err != nil {
		return err
	}
	if err := d.clearIrqStatus(IrqAll); err != nil {
		return err
	}
	if err := d.cmd(opSetTx, 0x00, 0x00, 0x00); err != nil {
		return err
	}
	d.state = stateTX

	deadline := time.Now().Add(10 * time.Second)
	for d.dio1.Read() != gpio.High {
		if time.Now().After(deadline) {
			log.Warn("tx deadline exceeded")
			_ = d.armContinuousRx()
			return ErrTimeout
		}
		time.Sleep(busyPollInterval)
	}

	irq, err := d.getIrqStatus()
	if err != nil {
		_ = d.armContinuousRx()
		return err
	}
	if err := d.clearIrqStatus(IrqAll); err != nil {
		_ = d.armContinuousRx()
		return err
	}
	if err := d.armContinuousRx(); err != nil {
		return err
	}
	if irq&IrqTxDone == 0 {
		log.Warn("tx_done not set", "irq", fmt.Sprintf("0x%04X", irq))
		return ErrTransmitFailed
	}
	d.stats.PacketsSent++
	log.Info("tx complete")
	return nil
}

// Receive performs a one-shot receive with the given timeout (or blocks
// indefinitely when timeout<=0, encoded as the radio's continuous-RX
// sentinel). It returns protocol.RxPacketResponse on success.
func (d *Device) Receive(timeout time.Duration) (protocol.Response, error) {
	if d.state == stateUninitialised {
		return protocol.Response{}, ErrNotInitialised
	}

	if err := d.SetStandby(); err != nil {
		return protocol.Response{}, err
	}
	if err := d.setPacketParams(255, true); err != nil {
		return protocol.Response{}, err
	}
	if err := d.setDioIrqParams(IrqRxDone|IrqTimeout|IrqCrcErr, IrqRxDone|IrqTimeout|IrqCrcErr, 0, 0); err != nil {
		return protocol.Response{}, err
	}
	if err := d.clearIrqStatus(IrqAll); err != nil {
		return protocol.Response{}, err
	}

	var rxTimeoutSteps uint32 = 0xFFFFFF
	var softDeadline time.Duration
	if timeout > 0 {
		steps := uint32(timeout.Milliseconds() * 1000 / 16)
		if steps > 0xFFFFFF {
			steps = 0xFFFFFF
		}
		rxTimeoutSteps = steps
		softDeadline = timeout + time.Second
	}
	if err := d.cmd(opSetRx, byte(rxTimeoutSteps>>16), byte(rxTimeoutSteps>>8), byte(rxTimeoutSteps)); err != nil {
		return protocol.Response{}, err
	}
	d.state = stateRX

	deadline := time.Now().Add(softDeadline)
	for d.dio1.Read() != gpio.High {
		if softDeadline > 0 && time.Now().After(deadline) {
			_ = d.armContinuousRx()
			return protocol.Response{}, ErrTimeout
		}
		time.Sleep(busyPollInterval)
	}

	irq, err := d.getIrqStatus()
	if err != nil {
		_ = d.armContinuousRx()
		return protocol.Response{}, err
	}
	if err := d.clearIrqStatus(IrqAll); err != nil {
		_ = d.armContinuousRx()
		return protocol.Response{}, err
	}

	switch {
	case irq&IrqTimeout != 0:
		_ = d.armContinuousRx()
		return protocol.Response{}, ErrTimeout
	case irq&IrqCrcErr != 0:
		d.stats.CrcErrors++
		_ = d.armContinuousRx()
		return protocol.Response{}, ErrCrcError
	case irq&IrqRxDone != 0:
		payloadLen, startPtr, err := d.getRxBufferStatus()
		if err != nil {
			_ = d.armContinuousRx()
			return protocol.Response{}, err
		}
		data, err := d.readBuffer(startPtr, payloadLen)
		if err != nil {
			_ = d.armContinuousRx()
			return protocol.Response{}, err
		}
		rssi, snr, err := d.getPacketStatus()
		if err != nil {
			_ = d.armContinuousRx()
			return protocol.Response{}, err
		}
		if err := d.armContinuousRx(); err != nil {
			return protocol.Response{}, err
		}
		d.stats.PacketsReceived++
		return protocol.RxPacketResponse(data, rssi, snr), nil
	default:
		_ = d.armContinuousRx()
		return protocol.Response{}, ErrReceiveFailed
	}
}

// Stats returns the locally tracked diagnostic counters (supplemental
// feature, not exposed over the wire protocol — see DESIGN.md) without
// touching the radio. RefreshStats folds in the radio's own on-chip
// counters (GetStats), and ClearDeviceErrors clears the chip-side error
// register; there is no ResetStats or GetDeviceErrors call.
func (d *Device) Stats() Stats {
	return d.stats
}

// RefreshStats folds the radio's on-chip packet counters into the
// locally tracked Stats and returns the merged view.
func (d *Device) RefreshStats() (Stats, error) {
	out, err := d.exec(opGetStats, nil, 6)
	if err != nil {
		return Stats{}, err
	}
	hwReceived := uint32(out[0])<<8 | uint32(out[1])
	hwCrcErrors := uint32(out[2])<<8 | uint32(out[3])
	if hwReceived > d.stats.PacketsReceived {
		d.stats.PacketsReceived = hwReceived
	}
	if hwCrcErrors > d.stats.CrcErrors {
		d.stats.CrcErrors = hwCrcErrors
	}
	return d.stats, nil
}

// ClearDeviceErrors clears the radio's on-chip error register.
func (d *Device) ClearDeviceErrors() error {
	return d.cmd(opClearDeviceErrors, 0x00, 0x00)
}

var _ Radio = (*Device)(nil)
