// Package feed streams notification and status events to subscribed
// dashboard clients over WebSocket.
package feed

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Frame compression tags. The first byte of every binary frame
// identifies how the remaining payload is encoded.
const (
	compressionNone byte = 0
	compressionZstd byte = 1
)

// Package-level encoder/decoder, safe for concurrent use.
var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("feed: init zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("feed: init zstd decoder: %v", err))
	}
}

// EncodeFrame compresses a JSON payload into a tagged binary frame.
// Payloads too small to benefit from compression are sent as-is.
func EncodeFrame(payload []byte) []byte {
	if len(payload) < 128 {
		return append([]byte{compressionNone}, payload...)
	}
	compressed := encoder.EncodeAll(payload, make([]byte, 1, len(payload)/2+1))
	compressed[0] = compressionZstd
	return compressed
}

// DecodeFrame returns the payload of a tagged binary frame.
func DecodeFrame(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, fmt.Errorf("feed: empty frame")
	}
	switch frame[0] {
	case compressionNone:
		return frame[1:], nil
	case compressionZstd:
		return decoder.DecodeAll(frame[1:], nil)
	default:
		return nil, fmt.Errorf("feed: unsupported compression tag: %d", frame[0])
	}
}
