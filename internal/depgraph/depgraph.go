// Package depgraph orders tables for loading so that every foreign or
// under-key dependency is satisfied before it is needed, and rejects
// cyclic tree or cross-table structures before any schema is created.
package depgraph

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/errs"
	"github.com/pjtatlow/terminus/internal/set"
)

// CheckTreeCycles verifies, for a single table, that its tree constraints
// (child -> parent edges) form a forest rather than containing a cycle.
// It is run once per table, independent of cross-table ordering.
func CheckTreeCycles(table *config.Table) error {
	edges := map[string]string{} // child column -> parent column
	for _, colName := range table.ColumnOrder {
		col := table.Column(colName)
		child, ok := col.TreeChild()
		if !ok {
			continue
		}
		edges[child] = colName
	}

	levels := map[string]int{}
	var walk func(col string, pending set.Set[string]) error
	walk = func(col string, pending set.Set[string]) error {
		if _, done := levels[col]; done {
			return nil
		}
		if pending.Contains(col) {
			cycle := slices.Collect(pending.Values())
			cycle = append(cycle, col)
			return errs.NewCycleError(
				fmt.Sprintf("tree cycle in table '%s': %s", table.Name, strings.Join(cycle, " -> ")),
				cycle,
			)
		}
		parent, hasParent := edges[col]
		if !hasParent {
			levels[col] = 0
			return nil
		}
		pending.Add(col)
		if err := walk(parent, pending); err != nil {
			return err
		}
		pending.Remove(col)
		levels[col] = levels[parent] + 1
		return nil
	}

	for child := range edges {
		if err := walk(child, set.New[string]()); err != nil {
			return err
		}
	}
	return nil
}

// CheckUnderReferences verifies that every `under(ttable.tcolumn, value)`
// structure refers to a column that is in fact the child of a `tree`
// constraint on ttable, independent of load order.
func CheckUnderReferences(cfg *config.Config) error {
	for _, tableName := range cfg.TableOrder {
		table := cfg.Tables[tableName]
		for _, colName := range table.ColumnOrder {
			col := table.Column(colName)
			ttable, tcolumn, _, ok := col.Under()
			if !ok {
				continue
			}
			target, ok := cfg.Tables[ttable]
			if !ok {
				return errs.NewConfigError("under(%s.%s) in column '%s.%s' refers to undefined table '%s'", ttable, tcolumn, tableName, colName, ttable)
			}
			if !isTreeChild(target, tcolumn) {
				return errs.NewConfigError("under(%s.%s) in column '%s.%s' does not refer to the child column of a tree constraint on '%s'", ttable, tcolumn, tableName, colName, ttable)
			}
		}
	}
	return nil
}

func isTreeChild(table *config.Table, column string) bool {
	for _, colName := range table.ColumnOrder {
		if child, ok := table.Column(colName).TreeChild(); ok && child == column {
			return true
		}
	}
	return false
}

// Order computes a foreign/under-safe table loading order: if table A has
// a foreign key or an under-key into table B, B precedes A in the
// returned slice. Tables are visited in alphabetical order of name and
// each is emitted right after its not-yet-emitted dependencies, so the
// output is deterministic; a dependency can thereby precede an unrelated
// table whose name sorts before it. A cross-table cycle is reported with
// the tables on it and the columns whose foreign or under edges form it.
func Order(cfg *config.Config) ([]string, error) {
	if err := CheckUnderReferences(cfg); err != nil {
		return nil, err
	}
	for _, tableName := range cfg.TableOrder {
		if err := CheckTreeCycles(cfg.Tables[tableName]); err != nil {
			return nil, err
		}
	}

	requires := map[string]set.Set[string]{}
	edgeColumns := map[[2]string][]string{} // (table, dependency) -> "table.column" entries creating that edge
	for _, tableName := range cfg.TableOrder {
		requires[tableName] = set.New[string]()
	}
	for _, tableName := range cfg.TableOrder {
		table := cfg.Tables[tableName]
		for _, colName := range table.ColumnOrder {
			col := table.Column(colName)
			if ftable, _, ok := col.Foreign(); ok && ftable != tableName {
				requires[tableName].Add(ftable)
				edge := [2]string{tableName, ftable}
				edgeColumns[edge] = append(edgeColumns[edge], tableName+"."+colName)
			}
			if utable, _, _, ok := col.Under(); ok && utable != tableName {
				requires[tableName].Add(utable)
				edge := [2]string{tableName, utable}
				edgeColumns[edge] = append(edgeColumns[edge], tableName+"."+colName)
			}
		}
	}

	sorted := append([]string(nil), cfg.TableOrder...)
	slices.Sort(sorted)

	visited := set.New[string]()
	order := make([]string, 0, len(sorted))

	var visit func(table string, pending set.Set[string]) error
	visit = func(table string, pending set.Set[string]) error {
		if visited.Contains(table) {
			return nil
		}
		if pending.Contains(table) {
			cycle := slices.Collect(pending.Values())
			cycle = append(cycle, table)
			var columns []string
			for i := 0; i+1 < len(cycle); i++ {
				columns = append(columns, edgeColumns[[2]string{cycle[i], cycle[i+1]}]...)
			}
			return errs.NewCycleError(
				fmt.Sprintf("dependency cycle among tables: %s (columns: %s)", strings.Join(cycle, " -> "), strings.Join(columns, ", ")),
				cycle,
			)
		}
		pending.Add(table)
		deps := slices.Collect(requires[table].Values())
		slices.Sort(deps)
		for _, dep := range deps {
			if err := visit(dep, pending); err != nil {
				return err
			}
		}
		pending.Remove(table)
		visited.Add(table)
		order = append(order, table)
		return nil
	}

	for _, table := range sorted {
		if err := visit(table, set.New[string]()); err != nil {
			return nil, err
		}
	}
	return order, nil
}
