package sx1262

// Opcodes, named after the SX1262 datasheet's command set, grounded on the
// Regeneric sx126x driver's constant set.
const (
	opSetSleep            = 0x84
	opSetStandby          = 0x80
	opSetFs               = 0xC1
	opSetTx               = 0x83
	opSetRx               = 0x82
	opStopTimerOnPreamble  = 0x9F
	opSetRxDutyCycle       = 0x94
	opSetCad               = 0xC5
	opSetTxContinuousWave  = 0xD1
	opSetTxInfinitePreamble = 0xD2
	opSetRegulatorMode    = 0x96
	opCalibrate            = 0x89
	opCalibrateImage       = 0x98
	opSetPaConfig          = 0x95
	opSetRxTxFallbackMode  = 0x93
	opSetDioIrqParams      = 0x08
	opGetIrqStatus         = 0x12
	opClearIrqStatus       = 0x02
	opSetDIO2AsRfSwitchCtrl = 0x9D
	opSetDIO3AsTCXOCtrl     = 0x97
	opSetRfFrequency        = 0x86
	opSetPacketType         = 0x8A
	opGetPacketType         = 0x11
	opSetTxParams           = 0x8E
	opSetModulationParams   = 0x8B
	opSetPacketParams       = 0x8C
	opSetCadParams          = 0x88
	opSetBufferBaseAddress  = 0x8F
	opSetLoRaSymbNumTimeout = 0xA0
	opGetStatus             = 0xC0
	opGetRxBufferStatus     = 0x13
	opGetPacketStatus       = 0x14
	opGetRssiInst           = 0x15
	opGetStats              = 0x10
	opResetStats            = 0x00
	opGetDeviceErrors       = 0x17
	opClearDeviceErrors     = 0x07
	opWriteRegister         = 0x0D
	opReadRegister          = 0x1D
	opWriteBuffer           = 0x0E
	opReadBuffer            = 0x1E
)

// PacketType values.
const (
	PacketTypeGFSK PacketType = 0x00
	PacketTypeLoRa PacketType = 0x01
)

// PacketType selects FSK or LoRa modulation; only LoRa is exercised by
// this driver.
type PacketType byte

// IRQ mask bits (SX1262 IrqMask register).
const (
	IrqTxDone           uint16 = 1 << 0
	IrqRxDone           uint16 = 1 << 1
	IrqPreambleDetected uint16 = 1 << 2
	IrqSyncWordValid    uint16 = 1 << 3
	IrqHeaderValid      uint16 = 1 << 4
	IrqHeaderErr        uint16 = 1 << 5
	IrqCrcErr           uint16 = 1 << 6
	IrqCadDone          uint16 = 1 << 7
	IrqCadDetected      uint16 = 1 << 8
	IrqTimeout          uint16 = 1 << 9
	IrqAll              uint16 = 0x03FF
)

// Registers referenced directly by address (outside the command set).
const (
	regOCP            = 0x08E7
	regSyncWordMSB    = 0x0740
	regRxGain         = 0x08AC
)

// Standby oscillator selection for SetStandby.
const (
	standbyRC   = 0x00
	standbyXOSC = 0x01
)
