package frame

import "github.com/sigurn/crc16"

var xmodemTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// CRC16 computes CRC-16/XMODEM (polynomial 0x1021, init 0x0000, no
// reflection, no final XOR) over data.
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, xmodemTable)
}
