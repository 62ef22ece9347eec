package validate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pjtatlow/terminus/internal/ddl"
)

// Queryer is the narrow slice of *sql.DB/*sql.Tx that Phase B/C checks
// need. Both satisfy it, so the same code runs whether or not a fallback
// is happening inside an already-open transaction.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PendingTreeEdge is an (child, parent) pair validated earlier in the
// current chunk but not yet persisted, which tree cycle checks must
// consider alongside whatever is already in the table.
type PendingTreeEdge struct {
	Child  string
	Parent string
}

// CheckTreeCycle simulates inserting parentVal into a tree's parent
// column for the row whose child column holds childVal, and reports
// whether doing so would create a cycle: that happens iff childVal equals
// parentVal or already appears as an ancestor of parentVal in the
// transitive closure of child->parent edges over the persisted table plus
// pending. Rows whose parent is NULL end the ancestor chain.
func CheckTreeCycle(ctx context.Context, q Queryer, tableName string, edge ddl.TreeEdge, parentVal, childVal string, pending []PendingTreeEdge) (cycle bool, trace string, err error) {
	var extraSelects []string
	var extraArgs []any
	for _, p := range pending {
		extraSelects = append(extraSelects, "SELECT ? AS child, ? AS parent")
		extraArgs = append(extraArgs, p.Child, p.Parent)
	}

	var baseCTE string
	if len(extraSelects) == 0 {
		baseCTE = fmt.Sprintf("SELECT `%s` AS child, `%s` AS parent FROM `%s`", edge.Child, edge.Parent, tableName)
	} else {
		baseCTE = fmt.Sprintf("SELECT `%s` AS child, `%s` AS parent FROM `%s`\nUNION\n%s",
			edge.Child, edge.Parent, tableName, strings.Join(extraSelects, "\nUNION\n"))
	}

	query := fmt.Sprintf(`WITH RECURSIVE base AS (
%s
),
tree AS (
  SELECT child, parent FROM base WHERE child = ?
  UNION ALL
  SELECT b.child, b.parent FROM base b JOIN tree t ON t.parent = b.child
)
SELECT child, parent FROM tree`, baseCTE)

	args := append(append([]any{}, extraArgs...), parentVal)
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return false, "", err
	}
	defer rows.Close()

	var pairs [][2]string
	found := parentVal == childVal
	for rows.Next() {
		var child string
		var parent sql.NullString
		if err := rows.Scan(&child, &parent); err != nil {
			return false, "", err
		}
		pairs = append(pairs, [2]string{child, parent.String})
		if parent.Valid && parent.String == childVal {
			found = true
		}
	}
	if err := rows.Err(); err != nil {
		return false, "", err
	}
	if !found {
		return false, "", nil
	}

	pairs = append(pairs, [2]string{childVal, parentVal})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = fmt.Sprintf("(%s: %s, %s: %s)", edge.Child, p[0], edge.Parent, p[1])
	}
	return true, strings.Join(parts, ", "), nil
}

// CheckForeignKey reports whether value exists in ftable.fcolumn.
func CheckForeignKey(ctx context.Context, q Queryer, ftable, fcolumn, value string) (bool, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SELECT 1 FROM `%s` WHERE `%s` = ? LIMIT 1", ftable, fcolumn), value)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// CheckUnique reports whether value already exists in table.column among
// persisted rows, excluding excludeRowNumber when hasExclude is set (used
// by row updates, which must not conflict with their own prior value).
func CheckUnique(ctx context.Context, q Queryer, table, column, value string, excludeRowNumber int, hasExclude bool) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM `%s` WHERE `%s` = ?", table, column)
	args := []any{value}
	if hasExclude {
		query += " AND `row_number` <> ?"
		args = append(args, excludeRowNumber)
	}
	query += " LIMIT 1"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}
