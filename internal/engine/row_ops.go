package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/db"
	"github.com/pjtatlow/terminus/internal/ddl"
	"github.com/pjtatlow/terminus/internal/validate"
)

// InsertNewRow validates values as a brand new row of table (no exclusion
// for uniqueness checks), allocates the next row number, and inserts it
// directly — it does not route to the conflict table, since the caller
// names the table to insert into explicitly.
func InsertNewRow(ctx context.Context, client *db.Client, cfg *config.Config, table *config.Table, schema *ddl.Schema, values map[string]string) (*validate.Row, error) {
	tx, err := client.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var maxRowNumber sql.NullInt64
	if err = tx.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(`row_number`) FROM `%s`", table.Name)).Scan(&maxRowNumber); err != nil {
		return nil, err
	}
	newRowNumber := 1
	if maxRowNumber.Valid {
		newRowNumber = int(maxRowNumber.Int64) + 1
	}

	row := validate.NewRow(table.ColumnOrder, values)
	row.RowNumber = newRowNumber
	validate.IntraRow(cfg, table, row)

	if err = validate.CheckNewRow(ctx, tx, table.Name, schema.Constraints, row); err != nil {
		return nil, err
	}

	query, args, err := buildInsertSQL(table.Name, table.ColumnOrder, []*validate.Row{row})
	if err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return row, nil
}

// UpdateRow validates values against table.Name, excluding rowNumber's own
// prior value from uniqueness checks, then updates the row in place.
func UpdateRow(ctx context.Context, client *db.Client, cfg *config.Config, table *config.Table, schema *ddl.Schema, rowNumber int, values map[string]string) (*validate.Row, error) {
	tx, err := client.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := validate.NewRow(table.ColumnOrder, values)
	row.RowNumber = rowNumber
	validate.IntraRow(cfg, table, row)

	if err = validate.CheckUpdatedRow(ctx, tx, table.Name, schema.Constraints, row, rowNumber); err != nil {
		return nil, err
	}

	query, args, err := buildUpdateSQL(table.Name, table.ColumnOrder, row)
	if err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return row, nil
}
