package core

import (
	"fmt"
	"strconv"
	"strings"
)

// QID is a Wikidata identifier with the leading "Q" stripped.
// QIDs are stable across languages and across topology refreshes; they are
// the only identifier that crosses the engine boundary.
type QID uint32

// ParseQID parses "Q42" or "42" into a QID.
func ParseQID(s string) (QID, error) {
	t := strings.TrimPrefix(s, "Q")
	if t == "" {
		return 0, fmt.Errorf("core: empty qid %q", s)
	}
	v, err := strconv.ParseUint(t, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("core: invalid qid %q: %w", s, err)
	}
	return QID(v), nil
}

// String returns the canonical Wikidata form, e.g. "Q42".
func (q QID) String() string {
	return "Q" + strconv.FormatUint(uint64(q), 10)
}

// InvalidDense marks an unassigned dense slot in page-id resolution maps.
// Dense ids themselves are plain uint32 indexes assigned in snapshot append
// order; they are corpus-local and must never leak across the engine
// boundary.
const InvalidDense = ^uint32(0)
