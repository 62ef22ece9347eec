package validate

import (
	"fmt"

	"github.com/pjtatlow/terminus/internal/condition"
	"github.com/pjtatlow/terminus/internal/config"
)

// IntraRow runs Phase A on every cell of row: nulltype classification
// first (every rule check needs to see every cell's nulltype before any
// of them run), then rule checks (which always run), then datatype checks
// (skipped for a cell once a nulltype has been assigned to it). It
// touches only cfg and row.
func IntraRow(cfg *config.Config, table *config.Table, row *Row) {
	for _, colName := range row.ColumnOrder {
		col := table.Column(colName)
		if col == nil {
			continue
		}
		checkNulltype(col, row.Cell(colName))
	}

	for _, colName := range row.ColumnOrder {
		col := table.Column(colName)
		if col == nil {
			continue
		}
		cell := row.Cell(colName)
		checkRules(cfg, table.Name, colName, row, cell)
		if cell.Nulltype == "" {
			checkDatatype(cfg, col, cell)
		}
	}
}

func checkNulltype(col *config.Column, cell *Cell) {
	if col.Nulltype == "" || col.NulltypePredicate == nil {
		return
	}
	if col.NulltypePredicate(cell.Value) {
		cell.Nulltype = col.Nulltype
	}
}

func checkDatatype(cfg *config.Config, col *config.Column, cell *Cell) {
	primary, ok := cfg.Datatypes[col.Datatype]
	if !ok || primary.Predicate == nil {
		return
	}
	if primary.Predicate(cell.Value) {
		return
	}
	cell.Valid = false

	// Collect condition-bearing ancestors nearest-to-furthest, then
	// report them furthest-to-nearest (most general constraint first).
	var ancestors []*config.Datatype
	for parent := primary.Parent; parent != ""; {
		dt, ok := cfg.Datatypes[parent]
		if !ok {
			break
		}
		if dt.Name != primary.Name && dt.Predicate != nil {
			ancestors = append(ancestors, dt)
		}
		parent = dt.Parent
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		dt := ancestors[i]
		if !dt.Predicate(cell.Value) {
			cell.Messages = append(cell.Messages, Message{
				Rule:    "datatype:" + dt.Name,
				Level:   "error",
				Message: fmt.Sprintf("%s should be %s", col.Name, dt.Description),
			})
		}
	}
	if primary.Description != "" {
		cell.Messages = append(cell.Messages, Message{
			Rule:    "datatype:" + primary.Name,
			Level:   "error",
			Message: fmt.Sprintf("%s should be %s", col.Name, primary.Description),
		})
	}
}

// checkRules evaluates every rule whose when-column is columnName against
// cell, and on failure records the message against the then-column's
// cell — the cell that actually violates the constraint — rather than
// the when-column's cell.
func checkRules(cfg *config.Config, tableName, columnName string, row *Row, cell *Cell) {
	rules := cfg.RulesByWhen[tableName+"."+columnName]
	for i, rule := range rules {
		if !ruleConditionHolds(rule.WhenCondition, rule.WhenPredicate, cell) {
			continue
		}
		thenCell := row.Cell(rule.ThenColumn)
		if thenCell == nil {
			continue
		}
		if !ruleConditionHolds(rule.ThenCondition, rule.ThenPredicate, thenCell) {
			thenCell.Valid = false
			thenCell.Messages = append(thenCell.Messages, Message{
				Rule:    fmt.Sprintf("rule:%s-%d", rule.ThenColumn, i+1),
				Level:   rule.Level,
				Message: rule.Description,
			})
		}
	}
}

// ruleConditionHolds evaluates a rule's when/then condition against a
// cell. "null" and "not null" are literals interpreted against nulltype
// presence rather than compiled predicates.
func ruleConditionHolds(conditionText string, predicate condition.Predicate, cell *Cell) bool {
	switch conditionText {
	case "null":
		return cell.Nulltype != ""
	case "not null":
		return cell.Nulltype == ""
	default:
		if predicate == nil {
			return false
		}
		return predicate(cell.Value)
	}
}
