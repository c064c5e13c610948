package render

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/wkalt/dapd/dap"
	"github.com/wkalt/dapd/das"
	"github.com/wkalt/dapd/dataset"
)

/*
Package render contains display renderers for datasets. Each renderer
implements dap.Renderer and is driven by dap.Render over a variable tree.

The ASCII renderer produces the DAP ".asc" form:

	Dataset: sample
	b, 42
	a[2][2]
	[0], 1, 2
	[1], 3, 4
	site.lat, 1.5
	obs.id, obs.name
	1, "x"
	2, "y"

Scalars print as "path, value". One-dimensional arrays print on one line;
higher ranks print a shape header followed by one line per index of the
leading dimensions. Sequences print a header of member paths and a line per
row. Grids print the array and then each map.

Numeric variables whose units attribute follows the CF time convention, such
as "hours since 2024-01-01T00:00:00Z", have each value followed by its RFC3339
timestamp in parentheses.
*/

////////////////////////////////////////////////////////////////////////////////

// ASCII renders variables as comma-separated text.
type ASCII struct {
	w     io.Writer
	attrs *das.Table
}

// NewASCII returns an ASCII renderer writing to w. Attributes may be nil.
func NewASCII(w io.Writer, attrs *das.Table) *ASCII {
	return &ASCII{w: w, attrs: attrs}
}

// WriteASCII renders a dataset.
func WriteASCII(w io.Writer, ds *dataset.Dataset) error {
	bw := bufio.NewWriter(w)
	if err := NewASCII(bw, ds.Attributes()).Write(ds.Name(), ds.Variables()); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}
	return nil
}

// Write renders a header line naming the dataset followed by each variable.
func (a *ASCII) Write(name string, vars []*dap.Variable) error {
	if err := a.line("Dataset: " + name); err != nil {
		return err
	}
	for _, v := range vars {
		if err := dap.Render(v, a); err != nil {
			return err
		}
	}
	return nil
}

// RenderScalar writes "path, value".
func (a *ASCII) RenderScalar(v *dap.Variable) error {
	return a.line(v.Path() + ", " + a.scalar(v))
}

// RenderArray writes an array.
func (a *ASCII) RenderArray(v *dap.Variable) error {
	template := v.Template()
	dims := v.Dims()
	if !template.Tag().IsScalar() {
		for i, x := range v.Data() {
			if err := a.line(v.Path() + index(i, dims)); err != nil {
				return err
			}
			if err := dap.Render(x.(*dap.Variable), a); err != nil {
				return err
			}
		}
		return nil
	}
	cf, isTime := a.timeUnits(v)
	format := func(x any) string {
		s := formatElement(template.Tag(), x)
		if isTime {
			s += cf.annotate(x)
		}
		return s
	}
	data := v.Data()
	if len(dims) == 1 {
		parts := append([]string{v.Path()}, mapStrings(data, format)...)
		return a.line(strings.Join(parts, ", "))
	}
	if err := a.line(v.Path() + shape(dims)); err != nil {
		return err
	}
	width := dims[len(dims)-1].Size
	if width == 0 {
		return nil
	}
	for start := 0; start < len(data); start += width {
		row := append([]string{index(start/width, dims[:len(dims)-1])}, mapStrings(data[start:start+width], format)...)
		if err := a.line(strings.Join(row, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// RenderStructure renders each member in order.
func (a *ASCII) RenderStructure(v *dap.Variable) error {
	for child := range v.Children() {
		if err := dap.Render(child, a); err != nil {
			return err
		}
	}
	return nil
}

// RenderSequence writes a header of scalar member paths and one line per row.
// Constructor members of a row are rendered after the row's line.
func (a *ASCII) RenderSequence(v *dap.Variable) error {
	header := []string{}
	for child := range v.Children() {
		if child.Tag().IsScalar() {
			header = append(header, child.Path())
		}
	}
	if len(header) > 0 {
		if err := a.line(strings.Join(header, ", ")); err != nil {
			return err
		}
	}
	rows := v.Rows()
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read rows of %s: %w", v.Path(), err)
		}
		values := []string{}
		nested := []*dap.Variable{}
		for _, m := range row {
			if m.Tag().IsScalar() {
				values = append(values, a.scalar(m))
			} else {
				nested = append(nested, m)
			}
		}
		if len(values) > 0 {
			if err := a.line(strings.Join(values, ", ")); err != nil {
				return err
			}
		}
		for _, m := range nested {
			if err := dap.Render(m, a); err != nil {
				return err
			}
		}
	}
}

// RenderGrid renders the array and then the maps.
func (a *ASCII) RenderGrid(v *dap.Variable) error {
	if err := a.RenderArray(v.Array()); err != nil {
		return err
	}
	for _, m := range v.Maps() {
		if err := a.RenderArray(m); err != nil {
			return err
		}
	}
	return nil
}

func (a *ASCII) line(s string) error {
	if _, err := io.WriteString(a.w, s+"\n"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (a *ASCII) scalar(v *dap.Variable) string {
	x, ok := v.Value()
	if !ok {
		return ""
	}
	s := formatElement(v.Tag(), x)
	if cf, ok := a.timeUnits(v); ok {
		s += cf.annotate(x)
	}
	return s
}

// timeUnits looks up a CF time units attribute for v. The array of a grid
// also inherits the grid's attributes, and a map those of the top-level
// variable it is named for.
func (a *ASCII) timeUnits(v *dap.Variable) (timeUnits, bool) {
	if a.attrs == nil || !v.Tag().IsNumeric() && !(v.Tag() == dap.Array && v.Template().Tag().IsNumeric()) {
		return timeUnits{}, false
	}
	paths := []string{v.Path()}
	if p := v.Parent(); p != nil && p.Tag() == dap.Grid {
		if p.Array() == v {
			paths = append(paths, p.Path())
		} else {
			paths = append(paths, v.Name())
		}
	}
	for _, path := range paths {
		attr, err := a.attrs.Lookup(path + ".units")
		if err != nil || attr.Type != dap.String || len(attr.Values) == 0 {
			continue
		}
		if cf, ok := parseTimeUnits(attr.Values[0].(string)); ok {
			return cf, true
		}
	}
	return timeUnits{}, false
}

func formatElement(tag dap.TypeTag, x any) string {
	if tag == dap.String || tag == dap.URL {
		return strconv.Quote(dap.FormatValue(x))
	}
	return dap.FormatValue(x)
}

func mapStrings(data []any, f func(any) string) []string {
	out := make([]string, len(data))
	for i, x := range data {
		out[i] = f(x)
	}
	return out
}

func shape(dims []dap.Dim) string {
	sb := &strings.Builder{}
	for _, d := range dims {
		fmt.Fprintf(sb, "[%d]", d.Size)
	}
	return sb.String()
}

// index formats flat row-major offset i as a subscript over dims.
func index(i int, dims []dap.Dim) string {
	subscripts := make([]int, len(dims))
	for k := len(dims) - 1; k >= 0; k-- {
		if dims[k].Size == 0 {
			continue
		}
		subscripts[k] = i % dims[k].Size
		i /= dims[k].Size
	}
	sb := &strings.Builder{}
	for _, s := range subscripts {
		fmt.Fprintf(sb, "[%d]", s)
	}
	return sb.String()
}

////////////////////////////////////////////////////////////////////////////////
// CF time

type timeUnits struct {
	unit time.Duration
	base time.Time
}

// nolint:gochecknoglobals
var timeUnitNames = map[string]time.Duration{
	"second":  time.Second,
	"seconds": time.Second,
	"sec":     time.Second,
	"secs":    time.Second,
	"s":       time.Second,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"min":     time.Minute,
	"mins":    time.Minute,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"hr":      time.Hour,
	"hrs":     time.Hour,
	"h":       time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"d":       24 * time.Hour,
}

// parseTimeUnits parses "<unit> since <timestamp>". A space between the date
// and the time is accepted, as is a trailing "UTC".
func parseTimeUnits(s string) (timeUnits, bool) {
	unit, since, ok := strings.Cut(strings.TrimSpace(s), " since ")
	if !ok {
		return timeUnits{}, false
	}
	scale, ok := timeUnitNames[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return timeUnits{}, false
	}
	since = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(since), "UTC"))
	since = strings.Replace(since, " ", "T", 1)
	base, err := iso8601.Parse([]byte(since))
	if err != nil {
		return timeUnits{}, false
	}
	return timeUnits{unit: scale, base: base}, true
}

func (u timeUnits) annotate(x any) string {
	f, err := dap.Coerce(dap.Float64, x)
	if err != nil || math.IsNaN(f.(float64)) || math.IsInf(f.(float64), 0) {
		return ""
	}
	offset := time.Duration(f.(float64) * float64(u.unit))
	return " (" + u.base.Add(offset).UTC().Format(time.RFC3339) + ")"
}
