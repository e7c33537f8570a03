package corpus

import (
	"github.com/santhoshtr/topictrends/core"
)

// DenseIdMap assigns contiguous dense ids to QIDs in stream append order.
// Dense ids are internal to one corpus and never survive a refresh. Two
// maps exist per corpus, one for articles and one for categories.
//
// The map is populated by the loader and immutable afterwards; reads are
// safe from any goroutine.
type DenseIdMap struct {
	kind   IDKind
	dense  map[core.QID]uint32
	qids   []core.QID
	titles []string
}

func newDenseIdMap(kind IDKind, capacity int) *DenseIdMap {
	return &DenseIdMap{
		kind:   kind,
		dense:  make(map[core.QID]uint32, capacity),
		qids:   make([]core.QID, 0, capacity),
		titles: make([]string, 0, capacity),
	}
}

// add registers a QID. Duplicate QIDs keep the first dense id; the second
// return reports whether a new id was assigned.
func (m *DenseIdMap) add(qid core.QID, title string) (uint32, bool) {
	if dense, ok := m.dense[qid]; ok {
		return dense, false
	}

	dense := uint32(len(m.qids))
	m.dense[qid] = dense
	m.qids = append(m.qids, qid)
	m.titles = append(m.titles, title)

	return dense, true
}

// Dense translates a QID to its dense id.
func (m *DenseIdMap) Dense(qid core.QID) (uint32, error) {
	dense, ok := m.dense[qid]
	if !ok {
		return core.InvalidDense, &ErrUnknownQID{Kind: m.kind, QID: qid}
	}
	return dense, nil
}

// QID translates a dense id back to its QID. Dense ids originate inside
// the engine, so an out-of-range value is a programmer error and panics.
func (m *DenseIdMap) QID(dense uint32) core.QID {
	return m.qids[dense]
}

// Title returns the page title recorded for a dense id. Titles serve
// diagnostics and title search; the aggregation hot path never reads them.
func (m *DenseIdMap) Title(dense uint32) string {
	return m.titles[dense]
}

// Len returns the number of dense ids assigned.
func (m *DenseIdMap) Len() int {
	return len(m.qids)
}
