package protocol

// protocol.go = wire format shared by the tank server and its controllers.
//
//	request:  [1 byte L] [L bytes JSON Header] [Header.Len bytes JSON Payload]
//	response: JSON Response '\n'

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// MaxHeaderSize is the largest header the single length byte can describe
	MaxHeaderSize = math.MaxUint8
	// MaxPayloadSize caps Header.Len so a bad header cannot make us allocate gigabytes
	MaxPayloadSize = 64 * 1024
	// WireMax is the full scale of a normalized 16-bit register
	WireMax = math.MaxUint16

	// ResponseType is the msg_type of every response the server sends
	ResponseType = "input-register"
	// RequestType is the msg_type controllers put in their headers (not used to branch)
	RequestType = "holding-register"
)

var (
	ErrMalformedFrame  = errors.New("malformed frame")
	ErrHeaderTooLong   = errors.New("header longer than 255 bytes")
	ErrPayloadTooLarge = errors.New("payload length out of range")
)

// Header describes the payload that follows it
type Header struct {
	Len     int32  `json:"len"`
	MsgType string `json:"msg_type"`
}

// Payload carries the outflow command in X; Y is reserved
type Payload struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// Response is the server's report of the normalized tank level and inflow
type Response struct {
	MsgType    string `json:"msg_type"`
	Address    int32  `json:"address"`
	TankLevel  uint16 `json:"tank_level"`
	TankInflow uint16 `json:"tank_inflow"`
}

// ToWire maps v in [0, ceiling] onto [0, 65535], rounding and saturating.
func ToWire(v, ceiling float64) uint16 {
	if !(ceiling > 0) || math.IsNaN(v) {
		return 0
	}
	scaled := math.Round(v / ceiling * WireMax)
	if scaled <= 0 {
		return 0
	}
	if scaled >= WireMax {
		return WireMax
	}
	return uint16(scaled)
}

// FromWire is the inverse of ToWire.
func FromWire(w uint16, ceiling float64) float64 {
	return float64(w) / WireMax * ceiling
}

// Saturate clamps a decoded int32 register into the uint16 range.
func Saturate(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > WireMax {
		return WireMax
	}
	return uint16(v)
}

// EncodeRequest builds one complete request frame.
func EncodeRequest(msgType string, x, y int32) ([]byte, error) {
	payload, err := json.Marshal(Payload{X: x, Y: y})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	header, err := json.Marshal(Header{Len: int32(len(payload)), MsgType: msgType})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(header) > MaxHeaderSize {
		return nil, ErrHeaderTooLong
	}

	frame := make([]byte, 0, 1+len(header)+len(payload))
	frame = append(frame, byte(len(header)))
	frame = append(frame, header...)
	frame = append(frame, payload...)
	return frame, nil
}

// ReadHeader reads the length byte and the header it announces.
// io.EOF is returned untouched when the stream ends before the length byte.
func ReadHeader(r *bufio.Reader) (Header, error) {
	var h Header
	n, err := r.ReadByte()
	if err != nil {
		return h, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return h, fmt.Errorf("%w: header: %w", ErrMalformedFrame, err)
	}
	if err := json.Unmarshal(buf, &h); err != nil {
		return h, fmt.Errorf("%w: header: %w", ErrMalformedFrame, err)
	}
	return h, nil
}

// ReadPayload reads exactly h.Len bytes and decodes them.
func ReadPayload(r *bufio.Reader, h Header) (Payload, error) {
	var p Payload
	if h.Len < 0 || h.Len > MaxPayloadSize {
		return p, fmt.Errorf("%w: %w: %d", ErrMalformedFrame, ErrPayloadTooLarge, h.Len)
	}
	buf := make([]byte, h.Len)
	if _, err := io.ReadFull(r, buf); err != nil {
		return p, fmt.Errorf("%w: payload: %w", ErrMalformedFrame, err)
	}
	if err := json.Unmarshal(buf, &p); err != nil {
		return p, fmt.Errorf("%w: payload: %w", ErrMalformedFrame, err)
	}
	return p, nil
}

// ReadRequest reads one full frame.
func ReadRequest(r *bufio.Reader) (Header, Payload, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return h, Payload{}, err
	}
	p, err := ReadPayload(r, h)
	return h, p, err
}

// EncodeResponse marshals a response and appends the newline delimiter.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return append(data, '\n'), nil
}

// ReadResponse reads one newline-terminated response.
func ReadResponse(r *bufio.Reader) (Response, error) {
	var resp Response
	line, err := r.ReadBytes('\n')
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return resp, fmt.Errorf("%w: response: %w", ErrMalformedFrame, err)
	}
	return resp, nil
}
