package validate

import (
	"context"
	"fmt"

	"github.com/pjtatlow/terminus/internal/ddl"
)

// chunkContext accumulates the valid values and tree edges seen so far in
// a chunk, so later rows can be checked against earlier ones in the same
// chunk without a round trip to the not-yet-persisted rows.
type chunkContext struct {
	uniqueValues map[string]map[string]bool    // column -> values of valid prior rows
	treeEdges    map[string][]PendingTreeEdge  // tree parent column -> (child,parent) pairs seen so far
}

func newChunkContext() *chunkContext {
	return &chunkContext{
		uniqueValues: map[string]map[string]bool{},
		treeEdges:    map[string][]PendingTreeEdge{},
	}
}

func (c *chunkContext) record(row *Row, constraints *ddl.Constraints) {
	for _, col := range constraints.UniqueEnforcingColumns() {
		cell := row.Cell(col)
		if cell == nil || !cell.Valid {
			continue
		}
		if c.uniqueValues[col] == nil {
			c.uniqueValues[col] = map[string]bool{}
		}
		c.uniqueValues[col][cell.Value] = true
	}
	for _, edge := range constraints.Tree {
		parentCell, childCell := row.Cell(edge.Parent), row.Cell(edge.Child)
		if parentCell != nil && childCell != nil && parentCell.Valid && childCell.Valid {
			c.treeEdges[edge.Parent] = append(c.treeEdges[edge.Parent], PendingTreeEdge{Child: childCell.Value, Parent: parentCell.Value})
		}
	}
}

// CheckChunk runs Phase B (tree) and Phase C (foreign key, uniqueness) on
// every row of a chunk, in source order, against the persisted table plus
// whatever earlier rows of this same chunk have already validated. The
// loader does not call it; it runs CheckTreesOnly before a bulk insert and
// CheckConstraintsOnly when the insert is rejected.
func CheckChunk(ctx context.Context, q Queryer, tableName string, constraints *ddl.Constraints, rows []*Row) error {
	chunkCtx := newChunkContext()
	for _, row := range rows {
		if err := checkRowTrees(ctx, q, tableName, constraints, row, chunkCtx); err != nil {
			return err
		}
		if err := checkRowConstraints(ctx, q, tableName, constraints, row, chunkCtx, 0, false); err != nil {
			return err
		}
		chunkCtx.record(row, constraints)
	}
	return nil
}

// CheckTreesOnly runs just Phase B over a chunk. The persistence protocol
// runs this eagerly, before attempting a bulk insert, since tree cycles
// can't be caught by the database's own constraints.
func CheckTreesOnly(ctx context.Context, q Queryer, tableName string, constraints *ddl.Constraints, rows []*Row) error {
	chunkCtx := newChunkContext()
	for _, row := range rows {
		if err := checkRowTrees(ctx, q, tableName, constraints, row, chunkCtx); err != nil {
			return err
		}
		chunkCtx.record(row, constraints)
	}
	return nil
}

// CheckConstraintsOnly runs just Phase C over a chunk — the fallback path
// invoked once a bulk insert has already been rejected for an integrity
// violation the database itself detected.
func CheckConstraintsOnly(ctx context.Context, q Queryer, tableName string, constraints *ddl.Constraints, rows []*Row) error {
	chunkCtx := newChunkContext()
	for _, row := range rows {
		if err := checkRowConstraints(ctx, q, tableName, constraints, row, chunkCtx, 0, false); err != nil {
			return err
		}
		chunkCtx.record(row, constraints)
	}
	return nil
}

// CheckNewRow runs Phase B/C for a single row being inserted standalone
// (outside the chunked loader), with no exclusion and no sibling rows to
// compare against other than what's already persisted.
func CheckNewRow(ctx context.Context, q Queryer, tableName string, constraints *ddl.Constraints, row *Row) error {
	chunkCtx := newChunkContext()
	if err := checkRowTrees(ctx, q, tableName, constraints, row, chunkCtx); err != nil {
		return err
	}
	return checkRowConstraints(ctx, q, tableName, constraints, row, chunkCtx, 0, false)
}

// CheckUpdatedRow runs Phase B/C for a single row being updated in place,
// excluding its own prior values from the uniqueness check.
func CheckUpdatedRow(ctx context.Context, q Queryer, tableName string, constraints *ddl.Constraints, row *Row, rowNumber int) error {
	chunkCtx := newChunkContext()
	if err := checkRowTrees(ctx, q, tableName, constraints, row, chunkCtx); err != nil {
		return err
	}
	return checkRowConstraints(ctx, q, tableName, constraints, row, chunkCtx, rowNumber, true)
}

func checkRowTrees(ctx context.Context, q Queryer, tableName string, constraints *ddl.Constraints, row *Row, chunkCtx *chunkContext) error {
	for _, edge := range constraints.Tree {
		parentCell := row.Cell(edge.Parent)
		if parentCell == nil || parentCell.Nulltype != "" {
			continue
		}
		childCell := row.Cell(edge.Child)
		if childCell == nil {
			continue
		}
		cyc, trace, err := CheckTreeCycle(ctx, q, tableName, edge, parentCell.Value, childCell.Value, chunkCtx.treeEdges[edge.Parent])
		if err != nil {
			return err
		}
		if cyc {
			parentCell.Valid = false
			parentCell.Messages = append(parentCell.Messages, Message{
				Rule:    "tree:cycle",
				Level:   "error",
				Message: fmt.Sprintf("Cyclic dependency: %s for tree(%s) of %s", trace, edge.Parent, edge.Child),
			})
		}
	}
	return nil
}

func checkRowConstraints(ctx context.Context, q Queryer, tableName string, constraints *ddl.Constraints, row *Row, chunkCtx *chunkContext, excludeRowNumber int, hasExclude bool) error {
	treeChildren := map[string]bool{}
	for _, edge := range constraints.Tree {
		treeChildren[edge.Child] = true
	}
	uniqueCols := map[string]bool{}
	for _, col := range constraints.Unique {
		uniqueCols[col] = true
	}

	for _, colName := range row.ColumnOrder {
		cell := row.Cell(colName)
		if cell == nil || cell.Nulltype != "" {
			continue
		}

		for _, fk := range constraints.Foreign {
			if fk.Column != colName {
				continue
			}
			ok, err := CheckForeignKey(ctx, q, fk.FTable, fk.FColumn, cell.Value)
			if err != nil {
				return err
			}
			if !ok {
				cell.Valid = false
				cell.Messages = append(cell.Messages, Message{
					Rule:    "key:foreign",
					Level:   "error",
					Message: fmt.Sprintf("Value %s of column %s is not in %s.%s", cell.Value, colName, fk.FTable, fk.FColumn),
				})
			}
		}

		isPrimary := constraints.Primary == colName
		isUnique := !isPrimary && uniqueCols[colName]
		isTreeChild := treeChildren[colName]
		if !isPrimary && !isUnique && !isTreeChild {
			continue
		}

		duplicate := chunkCtx.uniqueValues[colName][cell.Value]
		if !duplicate {
			var err error
			duplicate, err = CheckUnique(ctx, q, tableName, colName, cell.Value, excludeRowNumber, hasExclude)
			if err != nil {
				return err
			}
		}
		if !duplicate {
			continue
		}
		cell.Valid = false
		message := fmt.Sprintf("Values of %s must be unique", colName)
		if isPrimary {
			cell.Messages = append(cell.Messages, Message{Rule: "key:primary", Level: "error", Message: message})
		} else if isUnique {
			cell.Messages = append(cell.Messages, Message{Rule: "key:unique", Level: "error", Message: message})
		}
		if isTreeChild {
			cell.Messages = append(cell.Messages, Message{Rule: "tree:child-unique", Level: "error", Message: message})
		}
	}
	return nil
}
