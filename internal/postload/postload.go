// Package postload implements the checks that must wait until every
// chunk of a table has been persisted: tree foreign-key completeness and
// "under" subtree containment, both of which compare one row's column
// against the full set of already-loaded rows. Offending cells are
// patched in place: their typed column is set to NULL and their _meta
// sibling rewritten with the new failure appended, preserving the
// original value.
package postload

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/ddl"
	"github.com/pjtatlow/terminus/internal/validate"
)

// patch is one cell rewrite to apply once every check for a table has run.
type patch struct {
	RowNumber int
	Column    string
	Meta      []byte
}

// Check runs the tree-foreign-key and under-subtree checks for table and
// applies every resulting patch inside a single transaction. cfg supplies
// the under constraints' tree-parent lookups.
func Check(ctx context.Context, tx *sql.Tx, cfg *config.Config, tableName string, constraints *ddl.Constraints) error {
	var patches []patch

	for _, edge := range constraints.Tree {
		found, err := checkTreeForeignKey(ctx, tx, tableName, edge)
		if err != nil {
			return err
		}
		patches = append(patches, found...)
	}

	for _, under := range constraints.Under {
		found, err := checkUnder(ctx, tx, cfg, tableName, under)
		if err != nil {
			return err
		}
		patches = append(patches, found...)
	}

	for _, p := range patches {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE `%s` SET `%s` = NULL, `%s_meta` = JSON(?) WHERE `row_number` = ?", tableName, p.Column, p.Column),
			string(p.Meta), p.RowNumber,
		); err != nil {
			return err
		}
	}
	return nil
}

// checkTreeForeignKey finds every row whose tree-parent value does not
// appear anywhere in the tree's child column.
func checkTreeForeignKey(ctx context.Context, tx *sql.Tx, tableName string, edge ddl.TreeEdge) ([]patch, error) {
	query := fmt.Sprintf(`SELECT t1.row_number, t1.%s, t1.%s
FROM %s t1
WHERE (t1.%s IS NOT NULL OR t1.%s IS NOT NULL)
  AND NOT EXISTS (SELECT 1 FROM %s t2 WHERE t2.%s = t1.%s)`,
		quote(edge.Parent), quote(edge.Parent+"_meta"), quote(tableName),
		quote(edge.Parent), quote(edge.Parent+"_meta"),
		quote(tableName), quote(edge.Child), quote(edge.Parent))

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patches []patch
	for rows.Next() {
		rowNumber, parentVal, messages, metaValue, nulltype, err := scanCellRow(rows)
		if err != nil {
			return nil, err
		}
		if nulltype != "" {
			continue
		}
		effectiveVal := parentVal.String
		if !parentVal.Valid {
			// The typed column is already NULL from an unrelated failure;
			// recover the original text from its meta and re-check that
			// instead of flagging a value we never actually had.
			effectiveVal = metaValue
			exists, err := existsInColumn(ctx, tx, tableName, edge.Child, effectiveVal)
			if err != nil {
				return nil, err
			}
			if exists {
				continue
			}
		}

		meta, err := buildPatchedMeta(messages, effectiveVal, "tree:foreign",
			fmt.Sprintf("Value %s of column %s is not in column %s", effectiveVal, edge.Parent, edge.Child))
		if err != nil {
			return nil, err
		}
		patches = append(patches, patch{RowNumber: rowNumber, Column: edge.Parent, Meta: meta})
	}
	return patches, rows.Err()
}

// checkUnder finds every row whose column value either does not appear in
// the tree's child column at all, or is a strict ancestor of the under
// constraint's root value. A value that is in the tree but neither an
// ancestor of the root nor inside the root's subtree is not flagged.
func checkUnder(ctx context.Context, tx *sql.Tx, cfg *config.Config, tableName string, under ddl.UnderConstraint) ([]patch, error) {
	treeTable, ok := cfg.Tables[under.TTable]
	if !ok {
		return nil, fmt.Errorf("undefined table '%s'", under.TTable)
	}
	parentColumn, ok := findTreeParentColumn(treeTable, under.TColumn)
	if !ok {
		return nil, fmt.Errorf("no tree: '%s.%s' found", under.TTable, under.TColumn)
	}

	query := fmt.Sprintf(`WITH RECURSIVE tree AS (
  SELECT %s, %s FROM %s WHERE %s = ?
  UNION ALL
  SELECT t1.%s, t1.%s FROM %s t1 JOIN tree t2 ON t2.%s = t1.%s
)
SELECT t1.row_number, t1.%s, t1.%s,
  CASE WHEN t1.%s IN (SELECT %s FROM %s) THEN 1 ELSE 0 END,
  CASE WHEN t1.%s IN (SELECT %s FROM tree) THEN 0 ELSE 1 END
FROM %s t1`,
		quote(under.TColumn), quote(parentColumn), quote(under.TTable), quote(under.TColumn),
		quote(under.TColumn), quote(parentColumn), quote(under.TTable), quote(parentColumn), quote(under.TColumn),
		quote(under.Column), quote(under.Column+"_meta"),
		quote(under.Column), quote(under.TColumn), quote(under.TTable),
		quote(under.Column), quote(parentColumn),
		quote(tableName),
	)

	rows, err := tx.QueryContext(ctx, query, under.Value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patches []patch
	for rows.Next() {
		var rowNumber int
		var columnVal sql.NullString
		var metaRaw []byte
		var inTree, notAbove int
		if err := rows.Scan(&rowNumber, &columnVal, &metaRaw, &inTree, &notAbove); err != nil {
			return nil, err
		}
		_, messages, metaValue, nulltype, err := validate.ParseMetaJSON(orDefaultMeta(metaRaw))
		if err != nil {
			return nil, err
		}
		if nulltype != "" {
			continue
		}
		effectiveVal := columnVal.String
		if !columnVal.Valid {
			effectiveVal = metaValue
		}

		switch {
		case inTree == 0:
			meta, err := buildPatchedMeta(messages, effectiveVal, "under:not-in-tree",
				fmt.Sprintf("Value %s of column %s is not in %s.%s", effectiveVal, under.Column, under.TTable, under.TColumn))
			if err != nil {
				return nil, err
			}
			patches = append(patches, patch{RowNumber: rowNumber, Column: under.Column, Meta: meta})
		case notAbove == 0:
			meta, err := buildPatchedMeta(messages, effectiveVal, "under:not-under",
				fmt.Sprintf("Value '%s' of column %s is not under '%s'", effectiveVal, under.Column, under.Value))
			if err != nil {
				return nil, err
			}
			patches = append(patches, patch{RowNumber: rowNumber, Column: under.Column, Meta: meta})
		}
	}
	return patches, rows.Err()
}

func findTreeParentColumn(table *config.Table, childColumn string) (string, bool) {
	for _, colName := range table.ColumnOrder {
		col := table.Column(colName)
		if child, ok := col.TreeChild(); ok && child == childColumn {
			return col.Name, true
		}
	}
	return "", false
}

func quote(identifier string) string {
	return "`" + identifier + "`"
}

func existsInColumn(ctx context.Context, tx *sql.Tx, tableName, column, value string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ? LIMIT 1", quote(tableName), quote(column)), value)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// scanCellRow reads the (row_number, value, meta) shape shared by the
// tree-foreign-key query and decodes the cell's current metadata.
func scanCellRow(rows *sql.Rows) (rowNumber int, value sql.NullString, messages []validate.Message, metaValue, nulltype string, err error) {
	var metaRaw []byte
	if err = rows.Scan(&rowNumber, &value, &metaRaw); err != nil {
		return
	}
	_, messages, metaValue, nulltype, err = validate.ParseMetaJSON(orDefaultMeta(metaRaw))
	return rowNumber, value, messages, metaValue, nulltype, err
}

func orDefaultMeta(raw []byte) []byte {
	if len(raw) == 0 {
		return []byte(`{"valid": true, "messages": []}`)
	}
	return raw
}

// buildPatchedMeta marks a cell invalid, preserves its value, and appends
// a new failure message to whatever it already carried.
func buildPatchedMeta(messages []validate.Message, value, rule, message string) ([]byte, error) {
	messages = append(messages, validate.Message{Rule: rule, Level: "error", Message: message})
	cell := &validate.Cell{Value: value, Valid: false, Messages: messages}
	return cell.MetaJSON(true)
}
