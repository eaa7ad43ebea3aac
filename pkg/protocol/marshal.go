package protocol

import (
	"errors"
	"fmt"

	"github.com/librescoot/walkie-textie/pkg/frame"
)

// ErrInvalidVersion, ErrInvalidLength, ErrCrc and ErrInvalidCommand mirror
// the ResponseStatus values of the same name and are returned by Parse;
// callers that need a ResponseStatus for a reply should use StatusFor.
var (
	ErrInvalidVersion = errors.New("protocol: invalid version byte")
	ErrInvalidLength  = errors.New("protocol: invalid payload length")
	ErrCrc            = errors.New("protocol: crc mismatch")
	ErrInvalidCommand = errors.New("protocol: unknown command id")
)

// StatusFor maps a Parse error (or a COBS decode error) to the
// ResponseStatus a transport reader should reply with.
func StatusFor(err error) ResponseStatus {
	switch {
	case errors.Is(err, ErrInvalidVersion):
		return StatusInvalidVersion
	case errors.Is(err, ErrInvalidLength):
		return StatusInvalidLength
	case errors.Is(err, ErrInvalidCommand):
		return StatusInvalidCommand
	default:
		return StatusCrcError
	}
}

func buildFrame(id byte, payload []byte) []byte {
	buf := make([]byte, 4, 4+len(payload)+2)
	buf[0] = ProtocolVersion
	buf[1] = id
	buf[2] = byte(len(payload))
	buf[3] = byte(len(payload) >> 8)
	buf = append(buf, payload...)
	crc := frame.CRC16(buf)
	buf = append(buf, byte(crc), byte(crc>>8))
	return buf
}

// BuildCommand lays out and CRCs a command frame (pre-COBS).
func BuildCommand(c Command) ([]byte, error) {
	var payload []byte
	switch c.Kind {
	case CommandGetVersion, CommandReboot:
	case CommandLoraTx:
		if len(c.Data) < 1 || len(c.Data) > 256 {
			return nil, fmt.Errorf("protocol: LoraTx payload length %d out of range 1..256", len(c.Data))
		}
		payload = c.Data
	default:
		return nil, fmt.Errorf("protocol: unknown command kind %v", c.Kind)
	}
	return buildFrame(c.ID(), payload), nil
}

// BuildResponse lays out and CRCs a response frame (pre-COBS).
func BuildResponse(r Response) ([]byte, error) {
	var payload []byte
	switch r.Kind {
	case ResponseVersion:
		payload = []byte{r.Major, r.Minor, r.Patch}
	case ResponseTxComplete:
	case ResponseRxPacket:
		if len(r.Data) > 256 {
			return nil, fmt.Errorf("protocol: RxPacket payload length %d exceeds 256", len(r.Data))
		}
		payload = make([]byte, len(r.Data)+3)
		copy(payload, r.Data)
		urssi := uint16(r.RSSI)
		payload[len(r.Data)] = byte(urssi)
		payload[len(r.Data)+1] = byte(urssi >> 8)
		payload[len(r.Data)+2] = byte(r.SNR)
	case ResponseError:
		payload = []byte{byte(r.Status), r.OriginalCommandID}
	default:
		return nil, fmt.Errorf("protocol: unknown response kind %v", r.Kind)
	}
	return buildFrame(r.ID(), payload), nil
}

// ParseCommand validates and decodes a pre-COBS command frame per spec.md
// §4.3.
func ParseCommand(buf []byte) (Command, error) {
	id, payload, err := parseFrame(buf)
	if err != nil {
		return Command{}, err
	}
	switch id {
	case CommandIDGetVersion:
		if len(payload) != 0 {
			return Command{}, ErrInvalidLength
		}
		return Command{Kind: CommandGetVersion}, nil
	case CommandIDReboot:
		if len(payload) != 0 {
			return Command{}, ErrInvalidLength
		}
		return Command{Kind: CommandReboot}, nil
	case CommandIDLoraTx:
		if len(payload) < 1 || len(payload) > 256 {
			return Command{}, ErrInvalidLength
		}
		return Command{Kind: CommandLoraTx, Data: payload}, nil
	default:
		return Command{}, ErrInvalidCommand
	}
}

// ParseResponse validates and decodes a pre-COBS response frame.
func ParseResponse(buf []byte) (Response, error) {
	id, payload, err := parseFrame(buf)
	if err != nil {
		return Response{}, err
	}
	switch id {
	case ResponseIDVersion:
		if len(payload) != 3 {
			return Response{}, ErrInvalidLength
		}
		return Response{Kind: ResponseVersion, Major: payload[0], Minor: payload[1], Patch: payload[2]}, nil
	case ResponseIDTxComplete:
		if len(payload) != 0 {
			return Response{}, ErrInvalidLength
		}
		return Response{Kind: ResponseTxComplete}, nil
	case ResponseIDRxPacket:
		if len(payload) < 3 {
			return Response{}, ErrInvalidLength
		}
		n := len(payload) - 3
		rssi := int16(uint16(payload[n]) | uint16(payload[n+1])<<8)
		snr := int8(payload[n+2])
		var data []byte
		if n > 0 {
			data = payload[:n]
		}
		return Response{Kind: ResponseRxPacket, Data: data, RSSI: rssi, SNR: snr}, nil
	case ResponseIDError:
		if len(payload) != 2 {
			return Response{}, ErrInvalidLength
		}
		return Response{Kind: ResponseError, Status: ResponseStatus(payload[0]), OriginalCommandID: payload[1]}, nil
	default:
		return Response{}, ErrInvalidCommand
	}
}

// parseFrame implements the common header/CRC validation shared by
// ParseCommand and ParseResponse, returning the frame id and payload.
func parseFrame(buf []byte) (byte, []byte, error) {
	if len(buf) < 6 {
		return 0, nil, ErrInvalidLength
	}
	if buf[0] != ProtocolVersion {
		return 0, nil, ErrInvalidVersion
	}
	length := int(buf[2]) | int(buf[3])<<8
	if len(buf) < 4+length+2 {
		return 0, nil, ErrInvalidLength
	}
	want := uint16(buf[4+length]) | uint16(buf[4+length+1])<<8
	got := frame.CRC16(buf[:4+length])
	if want != got {
		return 0, nil, ErrCrc
	}
	return buf[1], buf[4 : 4+length], nil
}
