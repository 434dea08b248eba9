package hydrate

import (
	"context"
	"fmt"

	"evalserver/internal/infra"
)

// SQLQuerier adapts an infra.SQLExecutor to the Querier contract, mapping the
// first result row by column name.
type SQLQuerier struct {
	SQL infra.SQLExecutor
}

func (q *SQLQuerier) QueryValues(ctx context.Context, query string) (map[string]string, error) {
	rows, err := q.SQL.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("query returned no rows")
	}

	values, err := rows.Values()
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(values))
	for i, field := range rows.FieldDescriptions() {
		if values[i] == nil {
			continue
		}
		out[string(field.Name)] = fmt.Sprint(values[i])
	}
	return out, rows.Err()
}
