// Package ddl generates the SQL schema for a configured table: the main
// table, its column-dropped "_conflict" twin, the union "_view", and the
// constraint registry the validator consults at runtime.
package ddl

import (
	"fmt"
	"strings"

	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/errs"
)

var sqliteStorageTypes = map[string]bool{
	"text":    true,
	"integer": true,
	"real":    true,
	"blob":    true,
}

// ForeignKey is one `from(ftable.fcolumn)` constraint.
type ForeignKey struct {
	Column  string
	FTable  string
	FColumn string
}

// TreeEdge is one `tree(child)` constraint: Parent is the column the
// structure expression is declared on.
type TreeEdge struct {
	Parent string
	Child  string
}

// UnderConstraint is one `under(ttable.tcolumn, value)` constraint.
type UnderConstraint struct {
	Column  string
	TTable  string
	TColumn string
	Value   string
}

// Constraints is the registry the schema generator populates for a table,
// consulted by the router (primary/unique/tree-child columns) and the
// validator (foreign/tree/under checks).
type Constraints struct {
	Primary string // "" if none
	Unique  []string
	Foreign []ForeignKey
	Tree    []TreeEdge
	Under   []UnderConstraint
}

// UniqueEnforcingColumns returns every column whose invalidity routes the
// row to the conflict table: primary, unique, and tree-child columns.
func (c *Constraints) UniqueEnforcingColumns() []string {
	var cols []string
	if c.Primary != "" {
		cols = append(cols, c.Primary)
	}
	cols = append(cols, c.Unique...)
	for _, edge := range c.Tree {
		cols = append(cols, edge.Child)
	}
	return cols
}

// Schema is the generated DDL and derived constraint registry for one
// configured table.
type Schema struct {
	TableName   string
	Statements  []string // main table, conflict table, indexes, view
	Constraints *Constraints
	ColumnOrder []string // data column names, excluding row_number and *_meta
}

// Generate builds the DDL for table and returns it alongside the
// constraint registry the validator and router need at runtime.
func Generate(cfg *config.Config, tableName string) (*Schema, error) {
	table, ok := cfg.Tables[tableName]
	if !ok {
		return nil, errs.NewConfigError("undefined table '%s'", tableName)
	}

	constraints := &Constraints{}
	var mainColumnLines []string
	var conflictColumnLines []string

	for _, colName := range table.ColumnOrder {
		col := table.Column(colName)
		sqlType := cfg.SQLType(col.Datatype)
		if sqlType == "" {
			return nil, errs.NewConfigError("missing SQL type for datatype '%s'", col.Datatype)
		}
		if !sqliteStorageTypes[strings.ToLower(sqlType)] {
			return nil, errs.NewConfigError("unrecognized SQL type '%s' for datatype '%s'", sqlType, col.Datatype)
		}

		mainLine := fmt.Sprintf("  `%s` %s", colName, sqlType)
		conflictLine := fmt.Sprintf("  `%s` %s", colName, sqlType)

		if col.ParsedStructure != nil {
			switch {
			case col.IsPrimary():
				mainLine += " PRIMARY KEY"
				constraints.Primary = colName
			case col.IsUnique():
				mainLine += " UNIQUE"
				constraints.Unique = append(constraints.Unique, colName)
			default:
				if ftable, fcolumn, ok := col.Foreign(); ok {
					constraints.Foreign = append(constraints.Foreign, ForeignKey{Column: colName, FTable: ftable, FColumn: fcolumn})
				} else if child, ok := col.TreeChild(); ok {
					childCol := table.Column(child)
					if childCol == nil {
						return nil, errs.NewConfigError("could not determine SQL datatype for '%s' of tree(%s)", child, child)
					}
					childSQLType := cfg.SQLType(childCol.Datatype)
					if childSQLType != sqlType {
						return nil, errs.NewConfigError(
							"SQL type '%s' of '%s' in 'tree(%s)' for table '%s' does not match SQL type '%s' of parent '%s'",
							childSQLType, child, child, tableName, sqlType, colName,
						)
					}
					constraints.Tree = append(constraints.Tree, TreeEdge{Parent: colName, Child: child})
				} else if ttable, tcolumn, value, ok := col.Under(); ok {
					constraints.Under = append(constraints.Under, UnderConstraint{Column: colName, TTable: ttable, TColumn: tcolumn, Value: value})
				} else {
					return nil, errs.NewConfigError("unrecognized structure expression '%s' for column '%s.%s'", col.Structure, tableName, colName)
				}
			}
		}

		mainColumnLines = append(mainColumnLines, mainLine)
		conflictColumnLines = append(conflictColumnLines, conflictLine)
		mainColumnLines = append(mainColumnLines, fmt.Sprintf("  `%s_meta` TEXT", colName))
		conflictColumnLines = append(conflictColumnLines, fmt.Sprintf("  `%s_meta` TEXT", colName))
	}

	var statements []string
	statements = append(statements, buildCreateTable(tableName, mainColumnLines, constraints.Foreign))
	statements = append(statements, buildCreateTable(tableName+"_conflict", conflictColumnLines, nil))

	uniqueOrPrimary := map[string]bool{}
	if constraints.Primary != "" {
		uniqueOrPrimary[constraints.Primary] = true
	}
	for _, col := range constraints.Unique {
		uniqueOrPrimary[col] = true
	}
	for _, edge := range constraints.Tree {
		if !uniqueOrPrimary[edge.Child] {
			statements = append(statements, fmt.Sprintf(
				"CREATE UNIQUE INDEX `%s_%s_idx` ON `%s`(`%s`);", tableName, edge.Child, tableName, edge.Child,
			))
		}
	}
	statements = append(statements, fmt.Sprintf(
		"CREATE UNIQUE INDEX `%s_row_number_idx` ON `%s`(`row_number`);", tableName, tableName,
	))
	statements = append(statements, fmt.Sprintf(
		"CREATE UNIQUE INDEX `%s_conflict_row_number_idx` ON `%s_conflict`(`row_number`);", tableName, tableName,
	))
	statements = append(statements, buildView(tableName, table.ColumnOrder))

	return &Schema{
		TableName:   tableName,
		Statements:  statements,
		Constraints: constraints,
		ColumnOrder: table.ColumnOrder,
	}, nil
}

func buildCreateTable(tableName string, columnLines []string, foreignKeys []ForeignKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DROP TABLE IF EXISTS `%s`;\n", tableName)
	fmt.Fprintf(&b, "CREATE TABLE `%s` (\n", tableName)
	b.WriteString("  `row_number` INTEGER,\n")
	b.WriteString(strings.Join(columnLines, ",\n"))
	for _, fk := range foreignKeys {
		fmt.Fprintf(&b, ",\n  FOREIGN KEY (`%s`) REFERENCES `%s`(`%s`)", fk.Column, fk.FTable, fk.FColumn)
	}
	b.WriteString("\n);")
	return b.String()
}

func buildView(tableName string, columns []string) string {
	cols := make([]string, 0, len(columns)*2+1)
	cols = append(cols, "`row_number`")
	for _, col := range columns {
		cols = append(cols, fmt.Sprintf("`%s`", col), fmt.Sprintf("`%s_meta`", col))
	}
	colList := strings.Join(cols, ", ")
	return fmt.Sprintf(
		"DROP VIEW IF EXISTS `%s_view`;\nCREATE VIEW `%s_view` AS\nSELECT %s FROM `%s`\nUNION ALL\nSELECT %s FROM `%s_conflict`;",
		tableName, tableName, colList, tableName, colList, tableName,
	)
}
