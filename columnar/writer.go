package columnar

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// Writer assembles a table file column by column. Columns are written in
// insertion order; every column must carry exactly the row count the
// writer was created with.
//
// Thread safety: not safe for concurrent use.
type Writer struct {
	rows   int
	codec  Compression
	descs  []ColumnDesc
	blocks [][]byte
	names  map[string]struct{}
}

// NewWriter creates a writer for a table with the given row count.
func NewWriter(rows int, codec Compression) *Writer {
	return &Writer{
		rows:  rows,
		codec: codec,
		names: make(map[string]struct{}),
	}
}

// PutUint32 adds a u32 column.
func (w *Writer) PutUint32(name string, values []uint32) error {
	if len(values) != w.rows {
		return fmt.Errorf("columnar: column %q has %d rows, want %d", name, len(values), w.rows)
	}

	raw := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], v)
	}

	return w.addColumn(name, TypeUint32, raw)
}

// PutString adds a str column: (rows+1) u32 offsets followed by the
// concatenated UTF-8 blob.
func (w *Writer) PutString(name string, values []string) error {
	if len(values) != w.rows {
		return fmt.Errorf("columnar: column %q has %d rows, want %d", name, len(values), w.rows)
	}

	var blobLen int
	for _, v := range values {
		blobLen += len(v)
	}

	if uint64(blobLen) > math.MaxUint32 {
		return fmt.Errorf("columnar: column %q blob exceeds 4 GiB", name)
	}

	raw := make([]byte, (len(values)+1)*4+blobLen)
	blob := raw[(len(values)+1)*4:]

	var off uint32
	for i, v := range values {
		binary.LittleEndian.PutUint32(raw[i*4:], off)
		copy(blob[off:], v)
		off += uint32(len(v))
	}
	binary.LittleEndian.PutUint32(raw[len(values)*4:], off)

	return w.addColumn(name, TypeString, raw)
}

func (w *Writer) addColumn(name string, typ ColumnType, raw []byte) error {
	if _, ok := w.names[name]; ok {
		return fmt.Errorf("columnar: duplicate column %q", name)
	}

	block, err := compressBlock(raw, w.codec)
	if err != nil {
		return err
	}

	desc := ColumnDesc{
		Name:           name,
		Type:           typ,
		CompressedSize: uint64(len(block)),
		RawSize:        uint64(len(raw)),
		Checksum:       crc32.ChecksumIEEE(block),
	}

	// Validate the name eagerly so Put reports it, not WriteTo.
	if err := desc.marshal(make([]byte, descSize)); err != nil {
		return err
	}

	w.names[name] = struct{}{}
	w.descs = append(w.descs, desc)
	w.blocks = append(w.blocks, block)

	return nil
}

// WriteTo writes the header, column blocks and directory to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	offset := uint64(HeaderSize)
	for i := range w.descs {
		w.descs[i].Offset = offset
		offset += w.descs[i].CompressedSize
	}

	header := Header{
		Magic:       FormatMagic,
		Version:     FormatVersion,
		Codec:       uint32(w.codec),
		ColumnCount: uint32(len(w.descs)),
		RowCount:    uint64(w.rows),
		DirOffset:   offset,
	}

	written, err := header.WriteTo(dst)
	if err != nil {
		return written, err
	}

	for _, block := range w.blocks {
		n, err := dst.Write(block)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	dir := make([]byte, len(w.descs)*descSize)
	for i := range w.descs {
		if err := w.descs[i].marshal(dir[i*descSize:]); err != nil {
			return written, err
		}
	}

	n, err := dst.Write(dir)
	written += int64(n)

	return written, err
}
