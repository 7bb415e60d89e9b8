// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how a frame payload is compressed. The value
// is the frame's first byte.
type Compression byte

const (
	CompressionNone   Compression = 0x00
	CompressionLZ4    Compression = 0x01
	CompressionZstd   Compression = 0x02
	CompressionSnappy Compression = 0x03
)

// String returns the configuration name of the algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("compression(0x%02x)", byte(c))
	}
}

// ParseCompression maps a configuration name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "snappy":
		return CompressionSnappy, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}

// frameHeaderLength is the fixed size of a frame header: 1 byte
// compression tag + 4 bytes payload length.
const frameHeaderLength = 5

// MaxFrameLength is the largest payload accepted, before and after
// decompression. A page with a few thousand elements is well under
// 1 MB.
const MaxFrameLength = 16 * 1024 * 1024

// ErrFrameTooLarge is returned when a frame exceeds MaxFrameLength.
var ErrFrameTooLarge = errors.New("transport: frame exceeds maximum length")

// ErrMalformedFrame is returned for a frame that was read in full but
// whose body could not be decoded. The stream stays aligned on the next
// frame header.
var ErrMalformedFrame = errors.New("transport: malformed frame")

var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxFrameLength))
	})
)

// FrameCodec frames payloads for the wire. The zero value sends every
// payload uncompressed.
type FrameCodec struct {
	// Compression is applied to payloads of at least Threshold bytes.
	// The result is kept only when it is smaller than the input.
	Compression Compression
	Threshold   int
}

// Encode returns the complete frame for payload:
// [1 byte compression tag] [4 bytes length, big-endian] [payload].
func (c FrameCodec) Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxFrameLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	tag := CompressionNone
	body := payload
	if c.Compression != CompressionNone && len(payload) >= c.Threshold {
		compressed, err := compress(c.Compression, payload)
		if err != nil {
			return nil, err
		}
		if len(compressed) < len(payload) {
			tag = c.Compression
			body = compressed
		}
	}

	frame := make([]byte, frameHeaderLength+len(body))
	frame[0] = byte(tag)
	binary.BigEndian.PutUint32(frame[1:frameHeaderLength], uint32(len(body)))
	copy(frame[frameHeaderLength:], body)
	return frame, nil
}

// WriteFrame writes one framed payload to w.
func (c FrameCodec) WriteFrame(w io.Writer, payload []byte) error {
	frame, err := c.Encode(payload)
	if err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r and returns its decompressed
// payload. Any compression tag is accepted regardless of the local
// codec's setting. Decompression failures wrap ErrMalformedFrame; a
// short read or an oversize header does not, since the stream can no
// longer be trusted.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	tag := Compression(header[0])
	length := binary.BigEndian.Uint32(header[1:frameHeaderLength])
	if length > MaxFrameLength {
		return nil, fmt.Errorf("%w: header declares %d bytes", ErrFrameTooLarge, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame payload: %w", err)
	}
	payload, err := decompress(tag, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	return payload, nil
}

// DecodeFrame parses a frame that arrived as one message, as on a
// WebSocket. Trailing bytes are an error. Every error wraps
// ErrMalformedFrame because message boundaries survive a bad frame.
func DecodeFrame(frame []byte) ([]byte, error) {
	reader := bytes.NewReader(frame)
	payload, err := ReadFrame(reader)
	if err != nil {
		if errors.Is(err, ErrMalformedFrame) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedFrame, reader.Len())
	}
	return payload, nil
}

func compress(algorithm Compression, payload []byte) ([]byte, error) {
	switch algorithm {
	case CompressionZstd:
		encoder, err := zstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return encoder.EncodeAll(payload, nil), nil
	case CompressionLZ4:
		var buffer bytes.Buffer
		writer := lz4.NewWriter(&buffer)
		if _, err := writer.Write(payload); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buffer.Bytes(), nil
	case CompressionSnappy:
		return snappy.Encode(nil, payload), nil
	default:
		return nil, fmt.Errorf("cannot compress with %s", algorithm)
	}
}

func decompress(tag Compression, body []byte) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return body, nil
	case CompressionZstd:
		decoder, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		payload, err := decoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return checkDecompressed(payload)
	case CompressionLZ4:
		reader := io.LimitReader(lz4.NewReader(bytes.NewReader(body)), MaxFrameLength+1)
		payload, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return checkDecompressed(payload)
	case CompressionSnappy:
		length, err := snappy.DecodedLen(body)
		if err != nil {
			return nil, fmt.Errorf("snappy decompress: %w", err)
		}
		if length > MaxFrameLength {
			return nil, fmt.Errorf("%w: decompresses to %d bytes", ErrFrameTooLarge, length)
		}
		payload, err := snappy.Decode(nil, body)
		if err != nil {
			return nil, fmt.Errorf("snappy decompress: %w", err)
		}
		return payload, nil
	default:
		return nil, fmt.Errorf("unknown compression tag 0x%02x", byte(tag))
	}
}

func checkDecompressed(payload []byte) ([]byte, error) {
	if len(payload) > MaxFrameLength {
		return nil, fmt.Errorf("%w: decompresses to more than %d bytes", ErrFrameTooLarge, MaxFrameLength)
	}
	return payload, nil
}
