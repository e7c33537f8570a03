package columnar

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the block codec recorded in the file header. All
// column blocks of a file share one codec.
type Compression uint32

const (
	// CompressionNone stores blocks verbatim.
	CompressionNone Compression = 0
	// CompressionZstd favors ratio and is the default for snapshot tables.
	CompressionZstd Compression = 1
	// CompressionLZ4 favors decode speed.
	CompressionLZ4 Compression = 2
)

// String implements fmt.Stringer.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint32(c))
	}
}

func codecByID(id uint32) (Compression, bool) {
	switch Compression(id) {
	case CompressionNone, CompressionZstd, CompressionLZ4:
		return Compression(id), true
	default:
		return 0, false
	}
}

// Zstd encoder/decoder pools. EncodeAll/DecodeAll on a shared instance
// are safe but serialize internally; pooling keeps loads parallel.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}

	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))

	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}

	dec, _ := zstd.NewReader(nil)

	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compressBlock encodes a raw column block. If the codec does not shrink
// the block it is stored verbatim; the reader detects that case by
// comparing the directory's compressed and raw sizes.
func compressBlock(raw []byte, codec Compression) ([]byte, error) {
	if codec == CompressionNone || len(raw) == 0 {
		return raw, nil
	}

	var compressed []byte

	switch codec {
	case CompressionZstd:
		enc := getZstdEncoder()
		defer putZstdEncoder(enc)

		compressed = enc.EncodeAll(raw, nil)
	case CompressionLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(raw)))

		n, err := lz4.CompressBlock(raw, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}

		if n == 0 { // incompressible
			return raw, nil
		}

		compressed = buf[:n]
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCodec, uint32(codec))
	}

	if len(compressed) >= len(raw) {
		return raw, nil
	}

	return compressed, nil
}

// decompressBlock restores a column block. Blocks whose stored size equals
// the raw size were written verbatim regardless of the file codec.
func decompressBlock(block []byte, rawSize int, codec Compression) ([]byte, error) {
	if codec == CompressionNone || len(block) == rawSize {
		if len(block) != rawSize {
			return nil, fmt.Errorf("%w: block size %d, want %d", ErrCorrupted, len(block), rawSize)
		}

		return block, nil
	}

	switch codec {
	case CompressionZstd:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)

		raw, err := dec.DecodeAll(block, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupted, err)
		}

		if len(raw) != rawSize {
			return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorrupted, len(raw), rawSize)
		}

		return raw, nil
	case CompressionLZ4:
		raw := make([]byte, rawSize)

		n, err := lz4.UncompressBlock(block, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %v", ErrCorrupted, err)
		}

		if n != rawSize {
			return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrCorrupted, n, rawSize)
		}

		return raw, nil
	default:
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCodec, uint32(codec))
	}
}
