// Package config reads the table, column, datatype, and rule special
// tables and assembles them into an immutable, shared configuration. It
// invokes internal/condition to compile every datatype condition and
// column structure expression up front, so that downstream validation
// never reparses a condition.
package config

import (
	"strings"

	"github.com/pjtatlow/terminus/internal/condition"
	"github.com/pjtatlow/terminus/internal/errs"
	"github.com/pjtatlow/terminus/internal/tsv"
	"github.com/spf13/afero"
)

// requiredDatatypes must be present in every configuration; the validator
// and schema generator both assume they exist.
var requiredDatatypes = []string{"text", "empty", "line", "word"}

// specialTableTypes enumerates the recognized values of the table table's
// "type" column, and whether each one must be declared.
var specialTableTypes = map[string]bool{
	"table":    true,
	"column":   true,
	"datatype": true,
	"rule":     false,
	"index":    false,
}

// Datatype is a named value constraint, optionally inheriting its SQL
// storage type from an ancestor (see Config.SQLType). Its Predicate is
// compiled from its own condition only and is nil when it has none.
type Datatype struct {
	Name        string
	Parent      string
	Condition   string
	SQLType     string
	Description string

	ParsedCondition *condition.Node
	Predicate       condition.Predicate
}

// Column belongs to exactly one table and carries its compiled nulltype
// and datatype predicates plus its parsed structure expression, if any.
type Column struct {
	Table       string
	Name        string
	Nulltype    string
	Datatype    string
	Structure   string
	Description string

	NulltypePredicate condition.Predicate
	DatatypePredicate condition.Predicate
	ParsedStructure   *condition.Node
}

// IsPrimary reports whether this column's structure is the `primary` label.
func (c *Column) IsPrimary() bool {
	return c.ParsedStructure != nil && c.ParsedStructure.Kind == condition.KindLabel && c.ParsedStructure.Label == "primary"
}

// IsUnique reports whether this column's structure is the `unique` label.
func (c *Column) IsUnique() bool {
	return c.ParsedStructure != nil && c.ParsedStructure.Kind == condition.KindLabel && c.ParsedStructure.Label == "unique"
}

// Foreign returns the referenced (table, column) of a `from(...)` structure
// and true, or zero values and false if this column is not a foreign key.
func (c *Column) Foreign() (table, column string, ok bool) {
	if c.ParsedStructure == nil || c.ParsedStructure.Kind != condition.KindFunction || c.ParsedStructure.Func != "from" {
		return "", "", false
	}
	field := c.ParsedStructure.Args[0]
	return field.Table, field.Column, true
}

// TreeChild returns the child column name of a `tree(...)` structure and
// true, or "" and false if this column is not a tree parent.
func (c *Column) TreeChild() (column string, ok bool) {
	if c.ParsedStructure == nil || c.ParsedStructure.Kind != condition.KindFunction || c.ParsedStructure.Func != "tree" {
		return "", false
	}
	return c.ParsedStructure.Args[0].Label, true
}

// Under returns the referenced (table, column) and root value of an
// `under(...)` structure and true, or zero values and false otherwise.
func (c *Column) Under() (table, column, value string, ok bool) {
	if c.ParsedStructure == nil || c.ParsedStructure.Kind != condition.KindFunction || c.ParsedStructure.Func != "under" {
		return "", "", "", false
	}
	field := c.ParsedStructure.Args[0]
	return field.Table, field.Column, c.ParsedStructure.Args[1].Text, true
}

// Table is one configured data table: its source path and the ordered set
// of columns declared for it.
type Table struct {
	Name string
	Path string
	Type string // "" for an ordinary data table, else a special-table role

	Columns     map[string]*Column
	ColumnOrder []string
}

// Column looks up a column by name, returning nil if undeclared.
func (t *Table) Column(name string) *Column {
	return t.Columns[name]
}

// Rule is a conditional cross-column constraint on a single table.
type Rule struct {
	Table         string
	WhenColumn    string
	WhenCondition string
	ThenColumn    string
	ThenCondition string
	Level         string
	Description   string

	WhenPredicate condition.Predicate // nil if WhenCondition is "null"/"not null"
	ThenPredicate condition.Predicate // nil if ThenCondition is "null"/"not null"
}

// Config is the fully loaded, validated, and compiled configuration. It is
// built once at startup and then shared read-only across every worker.
type Config struct {
	Tables      map[string]*Table
	TableOrder  []string
	Datatypes   map[string]*Datatype
	Special     map[string]string // role -> table name
	Rules       []*Rule
	RulesByWhen map[string][]*Rule // "table.column" -> rules whose when-column is that column
}

// ResolvePredicate implements condition.Resolver by looking up an
// already-compiled datatype's predicate, so a condition that names another
// datatype reuses its predicate instead of recompiling it.
func (c *Config) ResolvePredicate(name string) (condition.Predicate, bool) {
	dt, ok := c.Datatypes[name]
	if !ok || dt.Predicate == nil {
		return nil, false
	}
	return dt.Predicate, true
}

// SQLType climbs the datatype's ancestor chain and returns the first
// declared SQL storage type, or "" if none of its ancestors declare one.
func (c *Config) SQLType(datatype string) string {
	for datatype != "" {
		dt, ok := c.Datatypes[datatype]
		if !ok {
			return ""
		}
		if dt.SQLType != "" {
			return dt.SQLType
		}
		datatype = dt.Parent
	}
	return ""
}

// Load reads the table table at path plus the datatype, column, and
// optional rule/index tables it references, compiling every condition and
// structure expression along the way.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := &Config{
		Tables:      map[string]*Table{},
		Datatypes:   map[string]*Datatype{},
		Special:     map[string]string{},
		RulesByWhen: map[string][]*Rule{},
	}

	if err := loadTableTable(cfg, fs, path); err != nil {
		return nil, err
	}
	for role, required := range specialTableTypes {
		if required && cfg.Special[role] == "" {
			return nil, errs.NewConfigErrorIn(path, "missing required '%s' table", role)
		}
	}

	if err := loadDatatypeTable(cfg, fs); err != nil {
		return nil, err
	}
	for _, dt := range requiredDatatypes {
		if _, ok := cfg.Datatypes[dt]; !ok {
			return nil, errs.NewConfigErrorIn(path, "missing required datatype '%s'", dt)
		}
	}

	if err := loadColumnTable(cfg, fs); err != nil {
		return nil, err
	}

	if err := loadRuleTable(cfg, fs); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadTableTable(cfg *Config, fs afero.Fs, path string) error {
	rows, err := tsv.ReadAll(fs, path)
	if err != nil {
		return err
	}

	for _, row := range rows {
		for _, col := range []string{"table", "path", "type"} {
			if !hasColumn(row, col) {
				return errs.NewConfigErrorIn(path, "missing required column '%s'", col)
			}
		}
		name := row.Get("table")
		rowPath := row.Get("path")
		if strings.TrimSpace(name) == "" {
			return errs.NewConfigErrorIn(path, "missing required value for 'table'")
		}
		if strings.TrimSpace(rowPath) == "" {
			return errs.NewConfigErrorIn(path, "missing required value for 'path'")
		}

		typ := strings.TrimSpace(row.Get("type"))
		if typ == "table" && rowPath != path {
			return errs.NewConfigErrorIn(path, "special 'table' path '%s' does not match this path '%s'", rowPath, path)
		}
		if typ != "" {
			if _, recognized := specialTableTypes[typ]; !recognized {
				return errs.NewConfigErrorIn(path, "unrecognized table type '%s'", typ)
			}
			if cfg.Special[typ] != "" {
				return errs.NewConfigErrorIn(path, "multiple tables with type '%s' declared", typ)
			}
			cfg.Special[typ] = name
		}

		cfg.Tables[name] = &Table{
			Name:    name,
			Path:    rowPath,
			Type:    typ,
			Columns: map[string]*Column{},
		}
		cfg.TableOrder = append(cfg.TableOrder, name)
	}
	return nil
}

func loadDatatypeTable(cfg *Config, fs afero.Fs) error {
	path, err := specialTablePath(cfg, "datatype")
	if err != nil {
		return err
	}
	rows, err := tsv.ReadAll(fs, path)
	if err != nil {
		return err
	}

	for _, row := range rows {
		for _, col := range []string{"datatype", "parent", "condition", "SQL type"} {
			if !hasColumn(row, col) {
				return errs.NewConfigErrorIn(path, "missing required column '%s'", col)
			}
		}
		name := row.Get("datatype")
		if strings.TrimSpace(name) == "" {
			return errs.NewConfigErrorIn(path, "missing required value for 'datatype'")
		}

		dt := &Datatype{
			Name:        name,
			Parent:      strings.TrimSpace(row.Get("parent")),
			Condition:   strings.TrimSpace(row.Get("condition")),
			SQLType:     strings.TrimSpace(row.Get("SQL type")),
			Description: row.Get("description"),
		}
		cfg.Datatypes[name] = dt

		parsed, pred, err := compileCondition(cfg, dt.Condition)
		if err != nil {
			return errs.NewConfigErrorIn(path, "in datatype '%s': %v", name, err)
		}
		dt.ParsedCondition = parsed
		dt.Predicate = pred
	}
	return nil
}

func loadColumnTable(cfg *Config, fs afero.Fs) error {
	path, err := specialTablePath(cfg, "column")
	if err != nil {
		return err
	}
	rows, err := tsv.ReadAll(fs, path)
	if err != nil {
		return err
	}

	for _, row := range rows {
		for _, col := range []string{"table", "column", "nulltype", "datatype"} {
			if !hasColumn(row, col) {
				return errs.NewConfigErrorIn(path, "missing required column '%s'", col)
			}
		}
		tableName := row.Get("table")
		columnName := row.Get("column")
		datatypeName := row.Get("datatype")
		for name, value := range map[string]string{"table": tableName, "column": columnName, "datatype": datatypeName} {
			if strings.TrimSpace(value) == "" {
				return errs.NewConfigErrorIn(path, "missing required value for '%s'", name)
			}
		}

		table, ok := cfg.Tables[tableName]
		if !ok {
			return errs.NewConfigErrorIn(path, "undefined table '%s'", tableName)
		}
		nulltypeName := strings.TrimSpace(row.Get("nulltype"))
		if nulltypeName != "" {
			if _, ok := cfg.Datatypes[nulltypeName]; !ok {
				return errs.NewConfigErrorIn(path, "undefined nulltype '%s'", nulltypeName)
			}
		}
		if _, ok := cfg.Datatypes[datatypeName]; !ok {
			return errs.NewConfigErrorIn(path, "undefined datatype '%s'", datatypeName)
		}

		col := &Column{
			Table:       tableName,
			Name:        columnName,
			Nulltype:    nulltypeName,
			Datatype:    datatypeName,
			Structure:   strings.TrimSpace(row.Get("structure")),
			Description: row.Get("description"),
			DatatypePredicate: cfg.Datatypes[datatypeName].Predicate,
		}
		if nulltypeName != "" {
			col.NulltypePredicate = cfg.Datatypes[nulltypeName].Predicate
		}

		if col.Structure != "" {
			node, err := condition.Parse(col.Structure)
			if err != nil {
				return errs.NewConfigErrorIn(path, "while parsing structure '%s' for column '%s.%s': %v", col.Structure, tableName, columnName, err)
			}
			if !condition.IsStructural(node) {
				return errs.NewConfigErrorIn(path, "structure '%s' for column '%s.%s' is not a recognized structural expression", col.Structure, tableName, columnName)
			}
			col.ParsedStructure = node
		}

		table.Columns[columnName] = col
		table.ColumnOrder = append(table.ColumnOrder, columnName)
	}
	return nil
}

func loadRuleTable(cfg *Config, fs afero.Fs) error {
	roleTable := cfg.Special["rule"]
	if roleTable == "" {
		return nil
	}
	path, err := specialTablePath(cfg, "rule")
	if err != nil {
		return err
	}
	rows, err := tsv.ReadAll(fs, path)
	if err != nil {
		return err
	}

	required := []string{"table", "when column", "when condition", "then column", "then condition", "level", "description"}
	for _, row := range rows {
		for _, col := range required {
			if !hasColumn(row, col) || strings.TrimSpace(row.Get(col)) == "" {
				return errs.NewConfigErrorIn(path, "missing required value for '%s'", col)
			}
		}

		tableName := row.Get("table")
		table, ok := cfg.Tables[tableName]
		if !ok {
			return errs.NewConfigErrorIn(path, "undefined table '%s'", tableName)
		}
		whenColumn := row.Get("when column")
		thenColumn := row.Get("then column")
		if _, ok := table.Columns[whenColumn]; !ok {
			return errs.NewConfigErrorIn(path, "undefined column '%s.%s'", tableName, whenColumn)
		}
		if _, ok := table.Columns[thenColumn]; !ok {
			return errs.NewConfigErrorIn(path, "undefined column '%s.%s'", tableName, thenColumn)
		}

		whenCondition := row.Get("when condition")
		thenCondition := row.Get("then condition")
		_, whenPred, err := compileCondition(cfg, whenCondition)
		if err != nil {
			return errs.NewConfigErrorIn(path, "in rule for '%s.%s': %v", tableName, whenColumn, err)
		}
		_, thenPred, err := compileCondition(cfg, thenCondition)
		if err != nil {
			return errs.NewConfigErrorIn(path, "in rule for '%s.%s': %v", tableName, thenColumn, err)
		}

		rule := &Rule{
			Table:         tableName,
			WhenColumn:    whenColumn,
			WhenCondition: whenCondition,
			ThenColumn:    thenColumn,
			ThenCondition: thenCondition,
			Level:         row.Get("level"),
			Description:   row.Get("description"),
			WhenPredicate: whenPred,
			ThenPredicate: thenPred,
		}
		cfg.Rules = append(cfg.Rules, rule)
		key := tableName + "." + whenColumn
		cfg.RulesByWhen[key] = append(cfg.RulesByWhen[key], rule)
	}
	return nil
}

// compileCondition parses and compiles a condition string, special-casing
// the "null"/"not null" literals (and an empty string) which carry no
// predicate of their own — callers interpret those against nulltype
// presence instead.
func compileCondition(cfg *Config, conditionStr string) (*condition.Node, condition.Predicate, error) {
	if conditionStr == "" || conditionStr == "null" || conditionStr == "not null" {
		return nil, nil, nil
	}
	node, err := condition.Parse(conditionStr)
	if err != nil {
		return nil, nil, err
	}
	pred, err := condition.Compile(node, cfg)
	if err != nil {
		return nil, nil, err
	}
	return node, pred, nil
}

func specialTablePath(cfg *Config, role string) (string, error) {
	name := cfg.Special[role]
	if name == "" {
		return "", errs.NewConfigError("no '%s' table declared", role)
	}
	table, ok := cfg.Tables[name]
	if !ok {
		return "", errs.NewConfigError("special '%s' table '%s' is not declared in the table table", role, name)
	}
	return table.Path, nil
}

func hasColumn(row tsv.Row, name string) bool {
	_, ok := row.Values[name]
	return ok
}
