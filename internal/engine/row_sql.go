package engine

import (
	"fmt"
	"strings"

	"github.com/pjtatlow/terminus/internal/validate"
)

// cellStorage returns the typed-column value (nil when the cell carries a
// nulltype or is invalid) and the _meta JSON to store alongside it (nil
// for a plain valid cell, which stores SQL NULL for its meta sibling).
func cellStorage(cell *validate.Cell) (value any, metaJSON []byte, err error) {
	if cell == nil {
		return nil, nil, nil
	}
	typedIsNull := cell.Nulltype != "" || !cell.Valid
	if !typedIsNull {
		value = cell.Value
	}
	metaJSON, err = cell.MetaJSON(typedIsNull)
	return value, metaJSON, err
}

// buildInsertSQL generates a single multi-row INSERT statement covering
// every row, with each column's _meta sibling wrapped in SQLite's JSON()
// constructor (or stored as NULL for a plain valid cell).
func buildInsertSQL(tableName string, columnOrder []string, rows []*validate.Row) (string, []any, error) {
	columnNames := make([]string, 0, len(columnOrder)*2+1)
	columnNames = append(columnNames, "`row_number`")
	for _, col := range columnOrder {
		columnNames = append(columnNames, fmt.Sprintf("`%s`", col), fmt.Sprintf("`%s_meta`", col))
	}

	var valueTuples []string
	var args []any
	for _, row := range rows {
		placeholders := make([]string, 0, len(columnOrder)*2+1)
		placeholders = append(placeholders, "?")
		args = append(args, row.RowNumber)
		for _, col := range columnOrder {
			value, metaJSON, err := cellStorage(row.Cell(col))
			if err != nil {
				return "", nil, err
			}
			placeholders = append(placeholders, "?")
			args = append(args, value)
			if metaJSON == nil {
				placeholders = append(placeholders, "NULL")
			} else {
				placeholders = append(placeholders, "JSON(?)")
				args = append(args, string(metaJSON))
			}
		}
		valueTuples = append(valueTuples, "("+strings.Join(placeholders, ", ")+")")
	}

	query := fmt.Sprintf("INSERT INTO `%s` (%s) VALUES\n%s",
		tableName, strings.Join(columnNames, ", "), strings.Join(valueTuples, ",\n"))
	return query, args, nil
}

// buildUpdateSQL generates a parameterized UPDATE statement for a single
// row, setting every column's value and _meta sibling, keyed by
// row_number.
func buildUpdateSQL(tableName string, columnOrder []string, row *validate.Row) (string, []any, error) {
	var assignments []string
	var args []any
	for _, col := range columnOrder {
		value, metaJSON, err := cellStorage(row.Cell(col))
		if err != nil {
			return "", nil, err
		}
		assignments = append(assignments, fmt.Sprintf("`%s` = ?", col))
		args = append(args, value)
		if metaJSON == nil {
			assignments = append(assignments, fmt.Sprintf("`%s_meta` = NULL", col))
		} else {
			assignments = append(assignments, fmt.Sprintf("`%s_meta` = JSON(?)", col))
			args = append(args, string(metaJSON))
		}
	}
	args = append(args, row.RowNumber)
	query := fmt.Sprintf("UPDATE `%s` SET %s WHERE `row_number` = ?", tableName, strings.Join(assignments, ", "))
	return query, args, nil
}
