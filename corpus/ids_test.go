package corpus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshtr/topictrends/core"
)

func TestDenseIdMap_AppendOrder(t *testing.T) {
	m := newDenseIdMap(KindArticle, 4)

	qids := []core.QID{42, 7, 1000, 3}
	for i, qid := range qids {
		dense, added := m.add(qid, "title")
		assert.True(t, added)
		assert.Equal(t, uint32(i), dense)
	}

	require.Equal(t, len(qids), m.Len())
	for i, qid := range qids {
		dense, err := m.Dense(qid)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), dense)
		assert.Equal(t, qid, m.QID(dense))
	}
}

func TestDenseIdMap_DuplicateKeepsFirst(t *testing.T) {
	m := newDenseIdMap(KindCategory, 2)

	first, added := m.add(9, "first title")
	require.True(t, added)

	second, added := m.add(9, "second title")
	assert.False(t, added)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "first title", m.Title(first))
}

func TestDenseIdMap_UnknownQID(t *testing.T) {
	m := newDenseIdMap(KindArticle, 0)

	dense, err := m.Dense(404)
	assert.Equal(t, core.InvalidDense, dense)

	var unknown *ErrUnknownQID
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, KindArticle, unknown.Kind)
	assert.Equal(t, core.QID(404), unknown.QID)
}
