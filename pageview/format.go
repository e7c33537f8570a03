package pageview

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhoshtr/topictrends/core"
)

// Day files carry an 8-byte magic (version in the last byte), a u32
// article count and one little-endian u64 per article dense id.
var fileMagic = [8]byte{'T', 'T', 'P', 'V', 0, 0, 0, 1}

const headerLen = 12

var (
	ErrBadMagic  = errors.New("pageview: bad day file magic")
	ErrTruncated = errors.New("pageview: truncated day file")
)

// DayPath returns the location of one day vector under dataDir:
// <wiki>/pageviews/<YYYY>/<MM>/<DD>.bin.
func DayPath(dataDir, wiki string, d core.Date) string {
	return filepath.Join(dataDir, wiki, "pageviews",
		fmt.Sprintf("%04d", d.Year),
		fmt.Sprintf("%02d", d.Month),
		fmt.Sprintf("%02d.bin", d.Day))
}

// EncodeDay serializes a day vector. The ETL emits this layout; the
// engine only ever reads it, so the encoder mainly serves fixtures and
// backfill tooling.
func EncodeDay(views []uint64) []byte {
	buf := make([]byte, headerLen+8*len(views))
	copy(buf, fileMagic[:])
	binary.LittleEndian.PutUint32(buf[8:headerLen], uint32(len(views)))

	for i, v := range views {
		binary.LittleEndian.PutUint64(buf[headerLen+8*i:], v)
	}

	return buf
}

// WriteDay writes one encoded day vector to its place under dataDir.
func WriteDay(dataDir, wiki string, d core.Date, views []uint64) error {
	path := DayPath(dataDir, wiki, d)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, EncodeDay(views), 0o644)
}

// ReadCount validates the header and overall file length and returns the
// article count the file was written against.
func ReadCount(data []byte) (int, error) {
	if len(data) < headerLen {
		return 0, ErrTruncated
	}
	if !bytes.Equal(data[:len(fileMagic)], fileMagic[:]) {
		return 0, ErrBadMagic
	}

	n := int(binary.LittleEndian.Uint32(data[8:headerLen]))
	if len(data) != headerLen+8*n {
		return 0, ErrTruncated
	}

	return n, nil
}
