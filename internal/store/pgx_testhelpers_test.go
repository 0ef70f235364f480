package store

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"scenecast/internal/infra"
)

type call struct {
	query string
	args  []any
}

// fakeExecutor scripts one response per executor method. Store
// operations issue at most one statement, so that is enough.
type fakeExecutor struct {
	calls []call

	execTag pgconn.CommandTag
	execErr error

	rowVals []any
	rowFn   func(args []any) []any
	rowErr  error

	rows     *fakeRows
	queryErr error
}

func (f *fakeExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, call{query: query, args: args})
	return f.execTag, f.execErr
}

func (f *fakeExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	f.calls = append(f.calls, call{query: query, args: args})
	vals := f.rowVals
	if f.rowFn != nil {
		vals = f.rowFn(args)
	}
	return simpleRow{vals: vals, err: f.rowErr}
}

func (f *fakeExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	f.calls = append(f.calls, call{query: query, args: args})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rows == nil {
		return &fakeRows{}, nil
	}
	return f.rows, nil
}

type simpleRow struct {
	vals []any
	err  error
}

func (r simpleRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.vals)
}

// fakeRows walks scripted value rows. The rest of the pgx.Rows surface
// is inert.
type fakeRows struct {
	rows    [][]any
	idx     int
	scanErr error
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return assign(dest, r.rows[r.idx-1])
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

// assign copies scripted values into scan destinations, converting
// string-kinded values into named types like domain.JobStatus. A nil
// value leaves the destination at its zero value.
func assign(dest []any, vals []any) error {
	if len(dest) != len(vals) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(vals))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		elem := dv.Elem()
		sv := reflect.ValueOf(vals[i])
		if !sv.IsValid() {
			elem.Set(reflect.Zero(elem.Type()))
			continue
		}
		if !sv.Type().ConvertibleTo(elem.Type()) {
			return fmt.Errorf("scan: cannot store %T into %s", vals[i], elem.Type())
		}
		elem.Set(sv.Convert(elem.Type()))
	}
	return nil
}

var (
	_ infra.SQLExecutor = (*fakeExecutor)(nil)
	_ pgx.Rows          = (*fakeRows)(nil)
)
