package sx1262

import "fmt"

// loraBandwidthCode maps a kHz bandwidth value to the SX1262 datasheet's
// LoRa bandwidth code, grounded on the Regeneric sx126x driver's
// loraBandwidth() lookup.
func loraBandwidthCode(khz float32) (byte, error) {
	switch khz {
	case 7.8:
		return 0x00, nil
	case 10.4:
		return 0x08, nil
	case 15.6:
		return 0x01, nil
	case 20.8:
		return 0x09, nil
	case 31.25:
		return 0x02, nil
	case 41.7:
		return 0x0A, nil
	case 62.5:
		return 0x03, nil
	case 125:
		return 0x04, nil
	case 250:
		return 0x05, nil
	case 500:
		return 0x06, nil
	default:
		return 0, fmt.Errorf("sx1262: unsupported bandwidth %g kHz", khz)
	}
}

// loraCodingRateCode maps CR 5..8 (4/5..4/8) to its register code.
func loraCodingRateCode(cr uint8) (byte, error) {
	if cr < 5 || cr > 8 {
		return 0, fmt.Errorf("sx1262: unsupported coding rate %d", cr)
	}
	return cr - 4, nil
}

// rfFrequencyNom and rfFrequencyXtal implement
// freq_reg = round(freq_hz * 2^25 / 32_000_000), spec.md §4.4.
const (
	rfFrequencyNom  = 1 << 25
	rfFrequencyXtal = 32_000_000
)

func rfFrequencyRegister(freqHz uint32) uint32 {
	return uint32((uint64(freqHz)*rfFrequencyNom + rfFrequencyXtal/2) / rfFrequencyXtal)
}
