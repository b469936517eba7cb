package db

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delivery-system/pkg/types"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, EscapeLike("100%"))
	assert.Equal(t, `a\_b`, EscapeLike("a_b"))
	assert.Equal(t, `c:\\x`, EscapeLike(`c:\x`))
}

func TestApplyListParams(t *testing.T) {
	base := sq.Select("id").From("services").PlaceholderFormat(sq.Dollar)

	t.Run("без пагинации и поиска", func(t *testing.T) {
		query, args, err := ApplyListParams(base, types.Filter{Limit: 10}).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT id FROM services", query)
		assert.Empty(t, args)
	})

	t.Run("поиск и пагинация", func(t *testing.T) {
		filter := types.Filter{Search: "груз", Limit: 20, Offset: 40, WithPagination: true}
		query, args, err := ApplyListParams(base, filter, "name").ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT id FROM services WHERE (name ILIKE $1) LIMIT 20 OFFSET 40", query)
		assert.Equal(t, []interface{}{"%груз%"}, args)
	})
}
