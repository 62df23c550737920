package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefMap(t *testing.T) {
	refs := newRefMap()
	refs.put(modelCategory, "abc", 7)

	got := refs.get(modelCategory, "abc")
	require.NotNil(t, got)
	assert.Equal(t, int64(7), *got)

	assert.Nil(t, refs.get(modelCategory, "missing"))
	assert.Nil(t, refs.get(modelCard, "abc"))
	assert.Nil(t, refs.get(modelCategory, ""))
}

func TestBackupRecordReaders(t *testing.T) {
	// Round through JSON so values arrive the way a real restore sees them.
	raw := []byte(`{
		"description": "Aluguel",
		"amount": "1500.00",
		"due_day": 10,
		"active": true,
		"scheduled_date": "2024-01-10",
		"realized_date": null
	}`)
	var rec backupRecord
	require.NoError(t, json.Unmarshal(raw, &rec))

	assert.Equal(t, "Aluguel", recString(rec, "description"))
	assert.Equal(t, 10, recInt(rec, "due_day"))
	assert.True(t, recBool(rec, "active"))

	amount, err := recDecimal(rec, "amount")
	require.NoError(t, err)
	assert.Equal(t, "1500", amount.String())

	d, err := recDate(rec, "scheduled_date")
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Year())

	p, err := recDatePtr(rec, "realized_date")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = recDate(rec, "missing")
	assert.Error(t, err)
}

func TestIDRef(t *testing.T) {
	uuids := map[int64]string{1: "aaa", 2: "bbb"}
	one := int64(1)
	three := int64(3)

	assert.Equal(t, "aaa", idRef(uuids, &one))
	assert.Nil(t, idRef(uuids, &three))
	assert.Nil(t, idRef(uuids, nil))
}
