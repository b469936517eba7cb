package db

import (
	"strings"

	sq "github.com/Masterminds/squirrel"

	"delivery-system/pkg/types"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike экранирует служебные символы LIKE, чтобы поиск шел по подстроке как есть.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// ApplySearch добавляет регистронезависимый поиск подстроки по одной из колонок.
func ApplySearch(builder sq.SelectBuilder, search string, searchColumns ...string) sq.SelectBuilder {
	if search == "" || len(searchColumns) == 0 {
		return builder
	}
	pattern := "%" + EscapeLike(search) + "%"
	conditions := make(sq.Or, 0, len(searchColumns))
	for _, col := range searchColumns {
		conditions = append(conditions, sq.ILike{col: pattern})
	}
	return builder.Where(conditions)
}

// ApplyListParams применяет поиск и, если запрошено, пагинацию.
func ApplyListParams(builder sq.SelectBuilder, filter types.Filter, searchColumns ...string) sq.SelectBuilder {
	builder = ApplySearch(builder, filter.Search, searchColumns...)
	return ApplyPagination(builder, filter)
}

func ApplyPagination(builder sq.SelectBuilder, filter types.Filter) sq.SelectBuilder {
	if filter.WithPagination {
		if filter.Limit > 0 {
			builder = builder.Limit(uint64(filter.Limit))
		}
		if filter.Offset >= 0 {
			builder = builder.Offset(uint64(filter.Offset))
		}
	}
	return builder
}
