package cmd

import "github.com/pjtatlow/terminus/internal/validate"

// allCellsValid reports whether every cell of row passed validation.
func allCellsValid(row *validate.Row) bool {
	for _, col := range row.ColumnOrder {
		if cell := row.Cell(col); cell != nil && !cell.Valid {
			return false
		}
	}
	return true
}
