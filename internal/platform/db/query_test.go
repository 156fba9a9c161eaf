package db

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectUsesDollarPlaceholders(t *testing.T) {
	stmt := Select("id", "venue_id").
		From("shifts").
		Where(sq.Eq{"employee_id": int64(4)}).
		Where(sq.Eq{"venue_id": []int64{1, 2}}).
		OrderBy("id")

	query, args, err := stmt.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, venue_id FROM shifts WHERE employee_id = $1 AND venue_id IN ($2,$3) ORDER BY id", query)
	assert.Equal(t, []any{int64(4), int64(1), int64(2)}, args)
}

func TestSelectWithoutConditions(t *testing.T) {
	query, args, err := Select("id").From("messages").Where(sq.NotEq{"venue_id": nil}).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM messages WHERE venue_id IS NOT NULL", query)
	assert.Empty(t, args)
}
