// Package engine implements the chunk scheduler and row router/persister:
// it splits a table's input rows into fixed-size chunks, runs intra-row
// validation across a bounded worker pool, then serially runs tree and
// inter-row checks and persists each chunk in its own transaction.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"

	"github.com/pjtatlow/terminus/internal/config"
	"github.com/pjtatlow/terminus/internal/db"
	"github.com/pjtatlow/terminus/internal/ddl"
	"github.com/pjtatlow/terminus/internal/tsv"
	"github.com/pjtatlow/terminus/internal/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize matches the original loader's fixed chunk size.
const DefaultChunkSize = 300

// DefaultPoolSize returns the worker pool size Phase A should use: the
// number of available CPUs, falling back to 4 when that can't be
// determined.
func DefaultPoolSize() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 4
}

// Options configures a table load.
type Options struct {
	ChunkSize int
	PoolSize  int
	Log       *logrus.Entry
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.PoolSize <= 0 {
		o.PoolSize = DefaultPoolSize()
	}
	if o.Log == nil {
		o.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return o
}

// Result summarizes a completed table load.
type Result struct {
	TableName      string
	RowsInserted   int
	RowsConflicted int
	ChunksLoaded   int
}

// LoadTable reads tableRows (already parsed from the table's TSV source),
// validates and persists every row of table, and returns a summary. The
// schema named by table must already have been created via ddl.Generate
// and Client.ExecScript.
func LoadTable(ctx context.Context, client *db.Client, cfg *config.Config, table *config.Table, schema *ddl.Schema, tableRows []tsv.Row, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	log := opts.Log.WithField("table", table.Name)

	chunks := chunkRows(table.ColumnOrder, tableRows, opts.ChunkSize)
	log.WithField("chunks", len(chunks)).Debug("dispatching intra-row validation")

	if err := runIntraRowPhase(ctx, cfg, table, chunks, opts.PoolSize); err != nil {
		return nil, err
	}

	result := &Result{TableName: table.Name}
	for chunkNumber, rows := range chunks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		inserted, conflicted, err := persistChunk(ctx, client, schema, rows, log.WithField("chunk", chunkNumber))
		if err != nil {
			return result, fmt.Errorf("table %s, chunk %d: %w", table.Name, chunkNumber, err)
		}
		result.RowsInserted += inserted
		result.RowsConflicted += conflicted
		result.ChunksLoaded++
	}
	return result, nil
}

// chunkRows assigns row numbers (n + k*chunkSize, n starting at 1) and
// groups rows into fixed-size chunks in source order.
func chunkRows(columnOrder []string, tableRows []tsv.Row, chunkSize int) [][]*validate.Row {
	var chunks [][]*validate.Row
	for chunkNumber := 0; chunkNumber*chunkSize < len(tableRows); chunkNumber++ {
		start := chunkNumber * chunkSize
		end := start + chunkSize
		if end > len(tableRows) {
			end = len(tableRows)
		}
		chunk := make([]*validate.Row, 0, end-start)
		for i, raw := range tableRows[start:end] {
			row := validate.NewRow(columnOrder, raw.Values)
			row.RowNumber = (i + 1) + chunkNumber*chunkSize
			chunk = append(chunk, row)
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// runIntraRowPhase runs Phase A for every chunk concurrently, bounded by
// poolSize. Each chunk's results land in its own slice index, so no
// reorder buffer is needed: ascending-chunk-order delivery falls out of
// iterating the chunks slice afterward.
func runIntraRowPhase(ctx context.Context, cfg *config.Config, table *config.Table, chunks [][]*validate.Row, poolSize int) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(poolSize)
	for _, chunk := range chunks {
		chunk := chunk
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			for _, row := range chunk {
				validate.IntraRow(cfg, table, row)
			}
			return nil
		})
	}
	return eg.Wait()
}

// persistChunk runs Phase B eagerly, attempts an optimistic bulk insert,
// and falls back to explicit Phase C only if the database rejects it.
func persistChunk(ctx context.Context, client *db.Client, schema *ddl.Schema, rows []*validate.Row, log *logrus.Entry) (inserted, conflicted int, err error) {
	tx, err := client.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = validate.CheckTreesOnly(ctx, tx, schema.TableName, schema.Constraints, rows); err != nil {
		return 0, 0, err
	}

	mainRows, conflictRows := route(rows, schema.Constraints)
	if execErr := insertRows(ctx, tx, schema.TableName, schema.ColumnOrder, mainRows); execErr != nil {
		if !isIntegrityViolation(execErr) {
			err = execErr
			return 0, 0, err
		}
		log.Debug("bulk insert rejected, falling back to explicit constraint checks")
		if err = validate.CheckConstraintsOnly(ctx, tx, schema.TableName, schema.Constraints, rows); err != nil {
			return 0, 0, err
		}
		mainRows, conflictRows = route(rows, schema.Constraints)
		if err = insertRows(ctx, tx, schema.TableName, schema.ColumnOrder, mainRows); err != nil {
			return 0, 0, err
		}
	}
	if err = insertRows(ctx, tx, schema.TableName+"_conflict", schema.ColumnOrder, conflictRows); err != nil {
		return 0, 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}
	return len(mainRows), len(conflictRows), nil
}

// route partitions rows between the main and conflict tables: a row
// conflicts if any primary, unique, or tree-child cell is invalid.
func route(rows []*validate.Row, constraints *ddl.Constraints) (main, conflict []*validate.Row) {
	conflictColumns := map[string]bool{}
	for _, col := range constraints.UniqueEnforcingColumns() {
		conflictColumns[col] = true
	}
	for _, row := range rows {
		if hasConflict(row, conflictColumns) {
			conflict = append(conflict, row)
		} else {
			main = append(main, row)
		}
	}
	return main, conflict
}

func hasConflict(row *validate.Row, conflictColumns map[string]bool) bool {
	for col := range conflictColumns {
		if cell := row.Cell(col); cell != nil && !cell.Valid {
			return true
		}
	}
	return false
}

func isIntegrityViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// insertRows executes a single multi-row INSERT for rows, or nothing if
// rows is empty.
func insertRows(ctx context.Context, tx *sql.Tx, tableName string, columnOrder []string, rows []*validate.Row) error {
	if len(rows) == 0 {
		return nil
	}
	query, args, err := buildInsertSQL(tableName, columnOrder, rows)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}
