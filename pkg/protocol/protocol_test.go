package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reader(b []byte) *bufio.Reader {
	return bufio.NewReader(bytes.NewReader(b))
}

func TestToWire(t *testing.T) {
	tests := []struct {
		name    string
		v       float64
		ceiling float64
		want    uint16
	}{
		{"zero", 0, 40, 0},
		{"full scale", 40, 40, 65535},
		{"half tank", 1000, 2000, 32768}, // 32767.5 rounds half away from zero
		{"above ceiling saturates", 50, 40, 65535},
		{"negative saturates", -3, 40, 0},
		{"zero ceiling", 10, 0, 0},
		{"nan value", math.NaN(), 40, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToWire(tt.v, tt.ceiling))
		})
	}
}

func TestFromWire_RoundTrip(t *testing.T) {
	const ceiling = 40.0
	assert.Equal(t, ceiling, FromWire(65535, ceiling))
	assert.Equal(t, 0.0, FromWire(0, ceiling))

	quantum := ceiling / WireMax
	for _, v := range []float64{0, 0.001, 7.3, 19.99, 20, 33.333, 40} {
		got := FromWire(ToWire(v, ceiling), ceiling)
		assert.InDelta(t, v, got, quantum, "v=%v", v)
	}
	for _, w := range []uint16{0, 1, 32767, 65534, 65535} {
		assert.Equal(t, w, ToWire(FromWire(w, ceiling), ceiling))
	}
}

func TestSaturate(t *testing.T) {
	assert.Equal(t, uint16(0), Saturate(-1))
	assert.Equal(t, uint16(32767), Saturate(32767))
	assert.Equal(t, uint16(65535), Saturate(70000))
}

func TestEncodeRequest_ReadRequest(t *testing.T) {
	frame, err := EncodeRequest(RequestType, 32767, 12)
	require.NoError(t, err)
	require.Equal(t, int(frame[0]), bytes.IndexByte(frame, '}')) // header ends right before payload

	h, p, err := ReadRequest(reader(frame))
	require.NoError(t, err)
	assert.Equal(t, RequestType, h.MsgType)
	assert.Equal(t, Payload{X: 32767, Y: 12}, p)
}

func TestEncodeRequest_HeaderTooLong(t *testing.T) {
	_, err := EncodeRequest(strings.Repeat("x", 300), 1, 1)
	assert.ErrorIs(t, err, ErrHeaderTooLong)
}

func TestReadRequest_HandWrittenFrame(t *testing.T) {
	header := `{"len":15,"msg_type":"anything"}`
	payload := `{"x":5,"y":-1} ` // trailing space counts toward len
	frame := append([]byte{byte(len(header))}, header+payload...)

	h, p, err := ReadRequest(reader(frame))
	require.NoError(t, err)
	assert.Equal(t, int32(15), h.Len)
	assert.Equal(t, Payload{X: 5, Y: -1}, p)
}

func TestReadRequest_Errors(t *testing.T) {
	valid, err := EncodeRequest(RequestType, 1, 2)
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame []byte
		isEOF bool
		want  error
	}{
		{name: "empty stream", frame: nil, isEOF: true},
		{name: "truncated header", frame: valid[:5], want: ErrMalformedFrame},
		{name: "truncated payload", frame: valid[:len(valid)-2], want: ErrMalformedFrame},
		{name: "header not json", frame: append([]byte{3}, "abc"...), want: ErrMalformedFrame},
		{name: "zero length header", frame: []byte{0}, want: ErrMalformedFrame},
		{
			name:  "payload not json",
			frame: append([]byte{byte(len(`{"len":3,"msg_type":""}`))}, `{"len":3,"msg_type":""}xyz`...),
			want:  ErrMalformedFrame,
		},
		{
			name:  "negative len",
			frame: append([]byte{byte(len(`{"len":-1,"msg_type":""}`))}, `{"len":-1,"msg_type":""}`...),
			want:  ErrPayloadTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadRequest(reader(tt.frame))
			require.Error(t, err)
			if tt.isEOF {
				assert.True(t, errors.Is(err, io.EOF))
				assert.False(t, errors.Is(err, ErrMalformedFrame))
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrMalformedFrame)
		})
	}
}

func TestResponse_EncodeRead(t *testing.T) {
	want := Response{MsgType: ResponseType, Address: 0, TankLevel: 32767, TankInflow: 32768}
	data, err := EncodeResponse(want)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])
	assert.JSONEq(t, `{"msg_type":"input-register","address":0,"tank_level":32767,"tank_inflow":32768}`, string(data))

	got, err := ReadResponse(reader(data))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
