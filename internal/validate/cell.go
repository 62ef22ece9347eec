// Package validate implements the four-phase cell and row validation
// pipeline: intra-row checks (nulltype, rule, datatype), tree cycle
// detection, inter-row foreign/uniqueness constraints, and cell metadata
// finalization.
package validate

import (
	"encoding/json"
)

// Message is one validation failure recorded against a cell.
type Message struct {
	Rule    string `json:"rule"`
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Cell is the ephemeral per-value validation record. A "plain valid" cell
// (Valid, no Nulltype, no Messages) carries no metadata in storage; every
// other cell is serialized as JSON into its column's _meta sibling.
type Cell struct {
	Value    string
	Valid    bool
	Nulltype string
	Messages []Message
}

// NewCell starts a cell in the valid, unclassified state, as every
// incoming value does before any phase has examined it.
func NewCell(value string) *Cell {
	return &Cell{Value: value, Valid: true}
}

// IsPlainValid reports whether the cell needs no metadata at all.
func (c *Cell) IsPlainValid() bool {
	return c.Valid && c.Nulltype == "" && len(c.Messages) == 0
}

// metaJSON is the on-disk shape of a cell's _meta sibling.
type metaJSON struct {
	Valid    bool      `json:"valid"`
	Messages []Message `json:"messages"`
	Value    *string   `json:"value,omitempty"`
	Nulltype *string   `json:"nulltype,omitempty"`
}

// MetaJSON returns the cell's _meta column contents (Phase D), or nil if
// the cell is plain valid and should store SQL NULL instead. When the
// typed column itself will store NULL for an invalid value, Meta carries
// the original string so it is never lost.
func (c *Cell) MetaJSON(typedColumnIsNull bool) ([]byte, error) {
	if c.IsPlainValid() {
		return nil, nil
	}
	meta := metaJSON{
		Valid:    c.Valid,
		Messages: c.Messages,
	}
	if meta.Messages == nil {
		meta.Messages = []Message{}
	}
	if !c.Valid && typedColumnIsNull {
		v := c.Value
		meta.Value = &v
	}
	if c.Nulltype != "" {
		nt := c.Nulltype
		meta.Nulltype = &nt
	}
	return json.Marshal(meta)
}

// ParseMetaJSON decodes a stored _meta value back into its components, used
// by the post-load checker to recover an original value hidden behind a
// NULL-ed typed column.
func ParseMetaJSON(data []byte) (valid bool, messages []Message, value string, nulltype string, err error) {
	var meta metaJSON
	if err := json.Unmarshal(data, &meta); err != nil {
		return false, nil, "", "", err
	}
	if meta.Value != nil {
		value = *meta.Value
	}
	if meta.Nulltype != nil {
		nulltype = *meta.Nulltype
	}
	return meta.Valid, meta.Messages, value, nulltype, nil
}

// Row is an ordered mapping from column name to Cell, with a stable
// row_number assigned before Phase B.
type Row struct {
	RowNumber   int
	ColumnOrder []string
	Cells       map[string]*Cell
}

// NewRow builds a fresh row from raw string values in column order, each
// cell starting in the valid, unclassified state.
func NewRow(columnOrder []string, values map[string]string) *Row {
	cells := make(map[string]*Cell, len(columnOrder))
	for _, col := range columnOrder {
		cells[col] = NewCell(values[col])
	}
	return &Row{ColumnOrder: columnOrder, Cells: cells}
}

// Cell looks up a row's cell by column name.
func (r *Row) Cell(column string) *Cell {
	return r.Cells[column]
}
