package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/pjtatlow/terminus/internal/condition"
	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/errs"
)

// Suggestion is one typeahead result, ordered for display.
type Suggestion struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

// Typeahead returns the candidate values for table.column that contain
// matching as a substring, formatted for a typeahead widget. It consults,
// in order: the column's datatype if it's an in(...) condition, its
// structure's from(...) foreign column, or its structure's under(...)
// subtree — whichever applies.
func Typeahead(ctx context.Context, q Queryer, cfg *config.Config, tableName, columnName, matching string) ([]Suggestion, error) {
	table, ok := cfg.Tables[tableName]
	if !ok {
		return nil, errs.NewConfigError("undefined table '%s'", tableName)
	}
	col := table.Column(columnName)
	if col == nil {
		return nil, errs.NewConfigError("undefined column '%s.%s'", tableName, columnName)
	}

	datatype := cfg.Datatypes[col.Datatype]
	if datatype != nil && datatype.ParsedCondition != nil &&
		datatype.ParsedCondition.Kind == condition.KindFunction && datatype.ParsedCondition.Func == "in" {
		var values []string
		for _, arg := range datatype.ParsedCondition.Args {
			if strings.Contains(arg.Text, matching) {
				values = append(values, arg.Text)
			}
		}
		return toSuggestions(values), nil
	}

	if ftable, fcolumn, ok := col.Foreign(); ok {
		values, err := queryLike(ctx, q, ftable, fcolumn, matching)
		if err != nil {
			return nil, err
		}
		return toSuggestions(values), nil
	}

	if ttable, tcolumn, rootValue, ok := col.Under(); ok {
		treeTable, ok := cfg.Tables[ttable]
		if !ok {
			return nil, errs.NewConfigError("undefined table '%s'", ttable)
		}
		parentColumn, ok := findTreeParent(treeTable, tcolumn)
		if !ok {
			return nil, errs.NewValidationError("no tree: '%s.%s' found", ttable, tcolumn)
		}
		values, err := queryUnderSubtree(ctx, q, ttable, tcolumn, parentColumn, rootValue, matching)
		if err != nil {
			return nil, err
		}
		return toSuggestions(values), nil
	}

	return toSuggestions(nil), nil
}

func toSuggestions(values []string) []Suggestion {
	suggestions := make([]Suggestion, len(values))
	for i, v := range values {
		suggestions[i] = Suggestion{ID: v, Label: v, Order: i + 1}
	}
	return suggestions
}

func findTreeParent(table *config.Table, childColumn string) (parentColumn string, ok bool) {
	for _, colName := range table.ColumnOrder {
		col := table.Column(colName)
		if child, ok := col.TreeChild(); ok && child == childColumn {
			return col.Name, true
		}
	}
	return "", false
}

func likePattern(matching string) string {
	if matching == "" {
		return "%"
	}
	return "%" + matching + "%"
}

func queryLike(ctx context.Context, q Queryer, table, column, matching string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT `%s` FROM `%s` WHERE `%s` LIKE ?", column, table, column), likePattern(matching))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// queryUnderSubtree returns the values of childColumn in the subtree
// rooted at rootValue: rootValue itself and every row that descends from
// it through parentColumn, filtered by matching.
func queryUnderSubtree(ctx context.Context, q Queryer, table, childColumn, parentColumn, rootValue, matching string) ([]string, error) {
	query := fmt.Sprintf(`WITH RECURSIVE tree AS (
  SELECT `+"`%s`"+`, `+"`%s`"+` FROM `+"`%s`"+` WHERE `+"`%s`"+` = ?
  UNION ALL
  SELECT t1.`+"`%s`"+`, t1.`+"`%s`"+` FROM `+"`%s`"+` t1 JOIN tree t2 ON t2.`+"`%s`"+` = t1.`+"`%s`"+`
)
SELECT `+"`%s`"+` FROM tree WHERE `+"`%s`"+` LIKE ?`,
		childColumn, parentColumn, table, childColumn,
		childColumn, parentColumn, table, childColumn, parentColumn,
		childColumn, childColumn,
	)
	rows, err := q.QueryContext(ctx, query, rootValue, likePattern(matching))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
