package segment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the block compression used by a segment.
type Codec uint32

const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return "none"
	}
}

// ParseCodec maps a configuration value to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	}
	return CodecNone, fmt.Errorf("unknown compression codec %q", s)
}

var (
	zstdEncoders sync.Pool
	zstdDecoders sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoders.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoders.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// Every block starts with [rawLen uint32][packedLen uint32]. packedLen 0
// means the payload is stored as is.
const blockHeaderSize = 8

func encodeBlock(data []byte, codec Codec) ([]byte, error) {
	var packed []byte
	switch codec {
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		packed = buf[:n]
	case CodecZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		packed = enc.EncodeAll(data, nil)
		zstdEncoders.Put(enc)
	}

	out := make([]byte, blockHeaderSize, blockHeaderSize+len(data))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(data)))
	if len(packed) == 0 || len(packed) >= len(data) {
		return append(out, data...), nil
	}
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(packed)))
	return append(out, packed...), nil
}

func decodeBlock(block []byte, codec Codec) ([]byte, error) {
	if len(block) < blockHeaderSize {
		return nil, errors.New("block shorter than its header")
	}
	rawLen := binary.LittleEndian.Uint32(block[0:4])
	packedLen := binary.LittleEndian.Uint32(block[4:8])
	payload := block[blockHeaderSize:]

	if packedLen == 0 {
		if uint32(len(payload)) < rawLen {
			return nil, errors.New("stored block truncated")
		}
		return payload[:rawLen], nil
	}
	if uint32(len(payload)) < packedLen {
		return nil, errors.New("compressed block truncated")
	}
	payload = payload[:packedLen]
	raw := make([]byte, rawLen)

	switch codec {
	case CodecLZ4:
		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if uint32(n) != rawLen {
			return nil, errors.New("lz4 decompressed size mismatch")
		}
		return raw, nil
	case CodecZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer zstdDecoders.Put(dec)
		out, err := dec.DecodeAll(payload, raw[:0])
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if uint32(len(out)) != rawLen {
			return nil, errors.New("zstd decompressed size mismatch")
		}
		return out, nil
	}
	return nil, fmt.Errorf("compressed block in segment with codec %s", codec)
}
