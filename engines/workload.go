package engines

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"path/filepath"
	"sort"

	"github.com/darianmavgo/tabbench/formats"
	"github.com/darianmavgo/tabbench/tabular"
)

// The canonical workload:
//
//	SELECT name, AVG(age) AS avg_age, MAX(age) AS max_age, COUNT(*) AS count
//	FROM data GROUP BY name HAVING avg_age > 30
//	ORDER BY avg_age DESC, name ASC LIMIT 5
//
// plus an export of name, email, age for every row with age >= 50.
const (
	NameColumn  = "name"
	EmailColumn = "email"
	AgeColumn   = "age"

	AvgAgeThreshold = 30
	ExportMinAge    = 50
	TopLimit        = 5
)

// Plan is the projection one query of the workload reads.
type Plan struct {
	Columns []string
}

var (
	AggregatePlan = Plan{Columns: []string{NameColumn, AgeColumn}}
	ExportPlan    = Plan{Columns: []string{NameColumn, EmailColumn, AgeColumn}}
)

// RequiredColumns returns the union of the plans' columns in the order they
// appear in schema. Columns missing from schema are an input error.
func RequiredColumns(schema tabular.Schema, plans ...Plan) ([]string, error) {
	need := map[string]bool{}
	for _, p := range plans {
		for _, c := range p.Columns {
			if schema.Index(c) < 0 {
				return nil, tabular.NewInputError("", "plan", "required column %q not found in %v", c, schema.Names())
			}
			need[c] = true
		}
	}
	var cols []string
	for _, c := range schema {
		if need[c.Name] {
			cols = append(cols, c.Name)
		}
	}
	return cols, nil
}

// ExportPath is where an engine writes its filtered rows.
func ExportPath(outputDir, engine string, source, format tabular.FileType) string {
	return filepath.Join(outputDir, fmt.Sprintf("filtered_%s_%s%s", engine, source, format.Ext()))
}

// exactPrec holds any sum of float64 values without rounding: 2098 bits
// span the float64 exponent range, the rest absorbs carries.
const exactPrec = 2200

// groupKey keeps a null name apart from the empty string.
type groupKey struct {
	name  string
	valid bool
}

// groupAcc sums ages exactly, so the result does not depend on the order
// rows arrive in or on how they were split into chunks.
type groupAcc struct {
	isum    int64      // integer ages
	fsum    *big.Float // other finite ages; nil until the first one
	special float64    // NaN and infinite ages
	n       int64      // non-null ages
	max     float64
	count   int64 // rows
}

func (g *groupAcc) addBig(x *big.Float) {
	if g.fsum == nil {
		g.fsum = new(big.Float).SetPrec(exactPrec)
	}
	g.fsum.Add(g.fsum, x)
}

func (g *groupAcc) addInt(v int64) {
	if (v > 0 && g.isum > math.MaxInt64-v) || (v < 0 && g.isum < math.MinInt64-v) {
		g.addBig(new(big.Float).SetPrec(exactPrec).SetInt64(v))
		return
	}
	g.isum += v
}

func (g *groupAcc) addFloat(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		g.special += v
		return
	}
	g.addBig(new(big.Float).SetPrec(exactPrec).SetFloat64(v))
}

func (g *groupAcc) observe(age float64) {
	g.n++
	if age > g.max {
		g.max = age
	}
}

// avg rounds the exact sum once, then divides.
func (g *groupAcc) avg() float64 {
	var sum float64
	if g.fsum == nil {
		sum = float64(g.isum)
	} else {
		total := new(big.Float).SetPrec(exactPrec).SetInt64(g.isum)
		total.Add(total, g.fsum)
		sum, _ = total.Float64()
	}
	if g.special != 0 {
		sum += g.special
	}
	return sum / float64(g.n)
}

// Aggregator accumulates the group-by over any number of row batches.
// Partial aggregators built over disjoint chunks merge into the same result
// as one aggregator over all rows.
type Aggregator struct {
	groups map[groupKey]*groupAcc
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{groups: make(map[groupKey]*groupAcc)}
}

func (a *Aggregator) group(k groupKey) *groupAcc {
	g, ok := a.groups[k]
	if !ok {
		g = &groupAcc{max: math.Inf(-1)}
		a.groups[k] = g
	}
	return g
}

// Merge folds other into a.
func (a *Aggregator) Merge(other *Aggregator) {
	for k, o := range other.groups {
		g := a.group(k)
		g.addInt(o.isum)
		if o.fsum != nil {
			g.addBig(o.fsum)
		}
		g.special += o.special
		g.n += o.n
		g.count += o.count
		if o.max > g.max {
			g.max = o.max
		}
	}
}

// Len returns the number of groups seen.
func (a *Aggregator) Len() int { return len(a.groups) }

// Top applies HAVING, ORDER BY and LIMIT. Groups without a non-null age have
// no average and never pass HAVING. The null name sorts before every other
// name and is reported as Name "" with NullName set.
func (a *Aggregator) Top() []GroupStat {
	var out []GroupStat
	for k, g := range a.groups {
		if g.n == 0 {
			continue
		}
		avg := g.avg()
		if !(avg > AvgAgeThreshold) {
			continue
		}
		out = append(out, GroupStat{Name: k.name, NullName: !k.valid, AvgAge: avg, MaxAge: g.max, Count: g.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvgAge != out[j].AvgAge {
			return out[i].AvgAge > out[j].AvgAge
		}
		if out[i].NullName != out[j].NullName {
			return out[i].NullName
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > TopLimit {
		out = out[:TopLimit]
	}
	return out
}

// AggregateBinding evaluates the aggregate plan against rows of one schema.
type AggregateBinding struct {
	name, age int
}

// BindAggregate locates the aggregate plan's columns in schema.
func BindAggregate(schema tabular.Schema) (*AggregateBinding, error) {
	_, idx, err := schema.Project(AggregatePlan.Columns)
	if err != nil {
		return nil, err
	}
	return &AggregateBinding{name: idx[0], age: idx[1]}, nil
}

// Add feeds one row into agg. A non-numeric age is an input error.
func (b *AggregateBinding) Add(agg *Aggregator, row tabular.Row) error {
	var age float64
	isInt, hasAge := false, true
	switch v := row[b.age].(type) {
	case nil:
		hasAge = false
	case int64:
		age, isInt = float64(v), true
	default:
		f, _, err := tabular.AsFloat(v)
		if err != nil {
			return &tabular.InputError{Op: "aggregate", Err: fmt.Errorf("column %q: %w", AgeColumn, err)}
		}
		age = f
	}

	key := groupKey{valid: row[b.name] != nil}
	if key.valid {
		key.name = tabular.FormatValue(row[b.name])
	}
	g := agg.group(key)
	g.count++
	if !hasAge {
		return nil
	}
	if isInt {
		g.addInt(row[b.age].(int64))
	} else {
		g.addFloat(age)
	}
	g.observe(age)
	return nil
}

// AddFrame feeds every row of f into agg.
func (b *AggregateBinding) AddFrame(agg *Aggregator, f *tabular.Frame) error {
	for _, row := range f.Rows {
		if err := b.Add(agg, row); err != nil {
			return err
		}
	}
	return nil
}

// ExportBinding evaluates the export plan (filter and projection) against
// rows of one schema.
type ExportBinding struct {
	idx    []int
	age    int
	schema tabular.Schema
}

// BindExport locates the export plan's columns in schema.
func BindExport(schema tabular.Schema) (*ExportBinding, error) {
	out, idx, err := schema.Project(ExportPlan.Columns)
	if err != nil {
		return nil, err
	}
	return &ExportBinding{idx: idx, age: idx[2], schema: out}, nil
}

// Schema is the schema of exported rows.
func (b *ExportBinding) Schema() tabular.Schema { return b.schema }

// Match reports whether row passes age >= ExportMinAge. Null ages never pass.
func (b *ExportBinding) Match(row tabular.Row) (bool, error) {
	age, ok, err := tabular.AsFloat(row[b.age])
	if err != nil {
		return false, &tabular.InputError{Op: "filter", Err: fmt.Errorf("column %q: %w", AgeColumn, err)}
	}
	return ok && age >= ExportMinAge, nil
}

// Project copies the exported columns of row into out, which must have
// len(Schema()) elements.
func (b *ExportBinding) Project(row, out tabular.Row) {
	for i, j := range b.idx {
		out[i] = row[j]
	}
}

// Filter returns the matching rows of f, projected to the export schema.
func (b *ExportBinding) Filter(f *tabular.Frame) (*tabular.Frame, error) {
	out := tabular.NewFrame(b.schema)
	row := make(tabular.Row, len(b.schema))
	for _, r := range f.Rows {
		ok, err := b.Match(r)
		if err != nil {
			return nil, err
		}
		if ok {
			b.Project(r, row)
			out.Append(row)
		}
	}
	return out, nil
}

// Exporter streams matching rows into an export file.
type Exporter struct {
	binding *ExportBinding
	fw      *formats.FileWriter
	row     tabular.Row
}

// NewExporter starts the export file at path for rows of schema.
func NewExporter(path string, format tabular.FileType, schema tabular.Schema) (*Exporter, error) {
	b, err := BindExport(schema)
	if err != nil {
		return nil, err
	}
	fw, err := formats.CreateFile(path, format, b.Schema())
	if err != nil {
		return nil, err
	}
	return &Exporter{binding: b, fw: fw, row: make(tabular.Row, len(b.Schema()))}, nil
}

// Offer writes row when it passes the filter.
func (e *Exporter) Offer(row tabular.Row) error {
	ok, err := e.binding.Match(row)
	if err != nil || !ok {
		return err
	}
	e.binding.Project(row, e.row)
	return e.fw.WriteRow(e.row)
}

// WriteFiltered writes rows that are already filtered and projected.
func (e *Exporter) WriteFiltered(f *tabular.Frame) error {
	for _, row := range f.Rows {
		if err := e.fw.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// Rows returns the number of rows written.
func (e *Exporter) Rows() int64 { return e.fw.Rows() }

// Path returns the final file path.
func (e *Exporter) Path() string { return e.fw.Path }

// Close finalizes the file.
func (e *Exporter) Close() error { return e.fw.Close() }

// Abort discards the partial file.
func (e *Exporter) Abort() { e.fw.Abort() }

// ExportSource filters src into a new export file and returns the row count.
func ExportSource(ctx context.Context, src tabular.RowSource, path string, format tabular.FileType) (int64, error) {
	exp, err := NewExporter(path, format, src.Schema())
	if err != nil {
		return 0, err
	}
	if err := src.ScanRows(ctx, exp.Offer); err != nil {
		exp.Abort()
		return 0, err
	}
	if err := exp.Close(); err != nil {
		return 0, err
	}
	return exp.Rows(), nil
}

// AggregateSource runs the aggregate plan over src.
func AggregateSource(ctx context.Context, src tabular.RowSource) ([]GroupStat, error) {
	b, err := BindAggregate(src.Schema())
	if err != nil {
		return nil, err
	}
	agg := NewAggregator()
	err = src.ScanRows(ctx, func(row tabular.Row) error {
		return b.Add(agg, row)
	})
	if err != nil {
		return nil, err
	}
	return agg.Top(), nil
}
