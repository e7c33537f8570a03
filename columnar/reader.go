package columnar

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
)

// Table is a decoded table file. It may alias the byte slice passed to
// Decode; the caller keeps that slice alive for the lifetime of the table.
//
// Thread safety: safe for concurrent reads.
type Table struct {
	header Header
	codec  Compression
	order  []string
	cols   map[string]tableColumn
}

type tableColumn struct {
	desc  ColumnDesc
	block []byte
}

// Decode parses a table file. It validates the header, the column
// directory and every block checksum up front; column payloads are
// decompressed on request.
func Decode(data []byte) (*Table, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: file too small (%d bytes)", ErrCorrupted, len(data))
	}

	var header Header
	if _, err := header.ReadFrom(bytes.NewReader(data[:HeaderSize])); err != nil {
		return nil, err
	}

	if header.RowCount > math.MaxUint32 {
		return nil, fmt.Errorf("%w: row count %d", ErrCorrupted, header.RowCount)
	}

	dirSize := uint64(header.ColumnCount) * descSize
	if header.DirOffset < HeaderSize || header.DirOffset+dirSize > uint64(len(data)) {
		return nil, fmt.Errorf("%w: directory out of bounds", ErrCorrupted)
	}

	codec, _ := codecByID(header.Codec) // Validate checked the id

	t := &Table{
		header: header,
		codec:  codec,
		cols:   make(map[string]tableColumn, header.ColumnCount),
	}

	dir := data[header.DirOffset : header.DirOffset+dirSize]
	for i := uint32(0); i < header.ColumnCount; i++ {
		var desc ColumnDesc
		desc.unmarshal(dir[i*descSize:])

		if desc.Offset < HeaderSize || desc.Offset+desc.CompressedSize > header.DirOffset {
			return nil, fmt.Errorf("%w: column %q block out of bounds", ErrCorrupted, desc.Name)
		}

		block := data[desc.Offset : desc.Offset+desc.CompressedSize]
		if crc32.ChecksumIEEE(block) != desc.Checksum {
			return nil, fmt.Errorf("%w: column %q block checksum mismatch", ErrCorrupted, desc.Name)
		}

		if _, ok := t.cols[desc.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrCorrupted, desc.Name)
		}

		t.cols[desc.Name] = tableColumn{desc: desc, block: block}
		t.order = append(t.order, desc.Name)
	}

	return t, nil
}

// Rows returns the table row count.
func (t *Table) Rows() int {
	return int(t.header.RowCount)
}

// Columns returns the column names in file order.
func (t *Table) Columns() []string {
	return t.order
}

// Uint32Column decompresses and decodes a u32 column.
func (t *Table) Uint32Column(name string) ([]uint32, error) {
	col, err := t.column(name, TypeUint32)
	if err != nil {
		return nil, err
	}

	raw, err := decompressBlock(col.block, int(col.desc.RawSize), t.codec)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}

	rows := t.Rows()
	if len(raw) != rows*4 {
		return nil, fmt.Errorf("%w: column %q has %d bytes, want %d", ErrCorrupted, name, len(raw), rows*4)
	}

	values := make([]uint32, rows)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(raw[i*4:])
	}

	return values, nil
}

// StringColumn decompresses and decodes a str column.
func (t *Table) StringColumn(name string) ([]string, error) {
	col, err := t.column(name, TypeString)
	if err != nil {
		return nil, err
	}

	raw, err := decompressBlock(col.block, int(col.desc.RawSize), t.codec)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", name, err)
	}

	rows := t.Rows()
	offsetsLen := (rows + 1) * 4
	if len(raw) < offsetsLen {
		return nil, fmt.Errorf("%w: column %q offset table truncated", ErrCorrupted, name)
	}

	blob := raw[offsetsLen:]
	if uint64(len(blob)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: column %q blob exceeds 4 GiB", ErrCorrupted, name)
	}

	if last := binary.LittleEndian.Uint32(raw[rows*4:]); last != uint32(len(blob)) {
		return nil, fmt.Errorf("%w: column %q final offset %d, want %d", ErrCorrupted, name, last, len(blob))
	}

	values := make([]string, rows)

	prev := uint32(0)
	for i := 0; i < rows; i++ {
		start := binary.LittleEndian.Uint32(raw[i*4:])
		end := binary.LittleEndian.Uint32(raw[(i+1)*4:])

		if start < prev || end < start || end > uint32(len(blob)) {
			return nil, fmt.Errorf("%w: column %q offsets not monotone", ErrCorrupted, name)
		}

		values[i] = string(blob[start:end])
		prev = start
	}

	return values, nil
}

func (t *Table) column(name string, typ ColumnType) (tableColumn, error) {
	col, ok := t.cols[name]
	if !ok {
		return tableColumn{}, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}

	if col.desc.Type != typ {
		return tableColumn{}, fmt.Errorf("%w: column %q is type %d, want %d", ErrColumnType, name, col.desc.Type, typ)
	}

	return col, nil
}
