package columnar

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	// FormatMagic identifies topology table files (ASCII: "TTC0").
	FormatMagic = 0x54544330

	// FormatVersion is the current table format version.
	FormatVersion uint32 = 1

	// HeaderSize is the size of the file header in bytes.
	HeaderSize = 64

	// descSize is the serialized size of one column directory entry.
	descSize = 48

	// maxNameLen is the maximum column name length (NUL padded on disk).
	maxNameLen = 16
)

var (
	// ErrInvalidMagic is returned when a file has an invalid magic number.
	ErrInvalidMagic = errors.New("columnar: invalid magic number")

	// ErrInvalidVersion is returned when a file has an unsupported version.
	ErrInvalidVersion = errors.New("columnar: unsupported format version")

	// ErrCorrupted is returned when a file fails checksum or bounds validation.
	ErrCorrupted = errors.New("columnar: file corrupted")

	// ErrUnknownCodec is returned when the header names a codec this build
	// does not know.
	ErrUnknownCodec = errors.New("columnar: unknown block codec")

	// ErrColumnNotFound is returned when a requested column is absent.
	ErrColumnNotFound = errors.New("columnar: column not found")

	// ErrColumnType is returned when a column is decoded as the wrong type.
	ErrColumnType = errors.New("columnar: column type mismatch")
)

// ColumnType describes the encoding of a column block.
type ColumnType uint32

const (
	// TypeUint32 is a fixed-width 32-bit unsigned integer column.
	TypeUint32 ColumnType = 0
	// TypeString is a variable-width UTF-8 string column.
	TypeString ColumnType = 1
)

// Header is the 64-byte header at the start of every table file.
//
// All multi-byte fields are little-endian.
type Header struct {
	Magic       uint32 // 0x54544330 ("TTC0")
	Version     uint32 // Format version (currently 1)
	Flags       uint32 // Feature flags (none defined yet)
	Codec       uint32 // Block codec (see Compression)
	ColumnCount uint32 // Number of column blocks
	RowCount    uint64 // Rows in every column
	DirOffset   uint64 // Offset of the column directory
	Checksum    uint32 // CRC32 of the first 56 header bytes
}

// Validate checks that the header identifies a readable file.
func (h *Header) Validate() error {
	if h.Magic != FormatMagic {
		return ErrInvalidMagic
	}
	if h.Version > FormatVersion {
		return ErrInvalidVersion
	}
	if _, ok := codecByID(h.Codec); !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownCodec, h.Codec)
	}
	return nil
}

// WriteTo writes the header to w, computing the checksum.
func (h *Header) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], h.Codec)
	binary.LittleEndian.PutUint32(buf[16:20], h.ColumnCount)
	binary.LittleEndian.PutUint64(buf[24:32], h.RowCount)
	binary.LittleEndian.PutUint64(buf[32:40], h.DirOffset)

	// Checksum covers the first 56 bytes (excludes checksum + reserved).
	h.Checksum = crc32.ChecksumIEEE(buf[:56])
	binary.LittleEndian.PutUint32(buf[56:60], h.Checksum)

	n, err := w.Write(buf)
	return int64(n), err
}

// ReadFrom reads and validates the header from r.
func (h *Header) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		return int64(n), err
	}

	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.Flags = binary.LittleEndian.Uint32(buf[8:12])
	h.Codec = binary.LittleEndian.Uint32(buf[12:16])
	h.ColumnCount = binary.LittleEndian.Uint32(buf[16:20])
	h.RowCount = binary.LittleEndian.Uint64(buf[24:32])
	h.DirOffset = binary.LittleEndian.Uint64(buf[32:40])
	h.Checksum = binary.LittleEndian.Uint32(buf[56:60])

	if h.Checksum != crc32.ChecksumIEEE(buf[:56]) {
		return int64(n), fmt.Errorf("%w: header checksum mismatch", ErrCorrupted)
	}

	return int64(n), h.Validate()
}

// ColumnDesc is one entry of the column directory at the file tail.
type ColumnDesc struct {
	Name           string
	Type           ColumnType
	Offset         uint64 // Block offset from file start
	CompressedSize uint64
	RawSize        uint64
	Checksum       uint32 // CRC32 of the compressed block
}

func (d *ColumnDesc) marshal(buf []byte) error {
	if len(d.Name) == 0 || len(d.Name) >= maxNameLen {
		return fmt.Errorf("columnar: column name %q must be 1..%d bytes", d.Name, maxNameLen-1)
	}
	copy(buf[0:maxNameLen], d.Name)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(d.Type))
	binary.LittleEndian.PutUint64(buf[20:28], d.Offset)
	binary.LittleEndian.PutUint64(buf[28:36], d.CompressedSize)
	binary.LittleEndian.PutUint64(buf[36:44], d.RawSize)
	binary.LittleEndian.PutUint32(buf[44:48], d.Checksum)
	return nil
}

func (d *ColumnDesc) unmarshal(buf []byte) {
	name := buf[0:maxNameLen]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	d.Name = string(name)
	d.Type = ColumnType(binary.LittleEndian.Uint32(buf[16:20]))
	d.Offset = binary.LittleEndian.Uint64(buf[20:28])
	d.CompressedSize = binary.LittleEndian.Uint64(buf[28:36])
	d.RawSize = binary.LittleEndian.Uint64(buf[36:44])
	d.Checksum = binary.LittleEndian.Uint32(buf[44:48])
}
