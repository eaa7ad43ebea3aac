package protocol

import "fmt"

// RadioConfig is immutable per-boot (spec.md §3, §6). The zero value is
// invalid; use DefaultRadioConfig or construct explicitly and call
// Validate.
type RadioConfig struct {
	FrequencyHz    uint32
	SpreadingFactor uint8 // 7..12
	BandwidthKHz    float32
	CodingRate      uint8 // 5..8, meaning 4/5..4/8
	TxPowerDBm      int8  // -9..+22
}

// DefaultRadioConfig returns the spec.md §6 compile-time defaults:
// 869.525 MHz, SF11, 250 kHz bandwidth, CR 4/8, +22 dBm.
func DefaultRadioConfig() RadioConfig {
	return RadioConfig{
		FrequencyHz:     869525000,
		SpreadingFactor: 11,
		BandwidthKHz:    250,
		CodingRate:      8,
		TxPowerDBm:      22,
	}
}

var validBandwidthsKHz = [...]float32{7.8, 10.4, 15.6, 20.8, 31.25, 41.7, 62.5, 125, 250, 500}

// Validate checks the RadioConfig invariants from spec.md §3.
func (c RadioConfig) Validate() error {
	if c.SpreadingFactor < 7 || c.SpreadingFactor > 12 {
		return fmt.Errorf("protocol: spreading factor %d out of range 7..12", c.SpreadingFactor)
	}
	if c.CodingRate < 5 || c.CodingRate > 8 {
		return fmt.Errorf("protocol: coding rate %d out of range 5..8", c.CodingRate)
	}
	if c.TxPowerDBm < -9 || c.TxPowerDBm > 22 {
		return fmt.Errorf("protocol: tx power %d dBm out of range -9..22", c.TxPowerDBm)
	}
	ok := false
	for _, bw := range validBandwidthsKHz {
		if bw == c.BandwidthKHz {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("protocol: bandwidth %g kHz is not one of the supported values", c.BandwidthKHz)
	}
	return nil
}

// LowDataRateOptimize reports whether the low-data-rate optimisation flag
// is implied by this configuration: set when SF>=11 and BW<=125 kHz.
func (c RadioConfig) LowDataRateOptimize() bool {
	return c.SpreadingFactor >= 11 && c.BandwidthKHz <= 125
}
