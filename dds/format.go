package dds

import (
	"fmt"
	"io"
	"strings"

	"github.com/wkalt/dapd/dap"
)

const indentWidth = 4

// Format writes the DDS text for d to w.
func Format(w io.Writer, d *DDS) error {
	if _, err := io.WriteString(w, "Dataset {\n"); err != nil {
		return err
	}
	for _, v := range d.Variables {
		if err := FormatVariable(w, v, 1); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "} %s;\n", datasetName(d.Name))
	return err
}

// datasetName escapes each dot-separated segment of a dataset name. A name
// with empty segments is escaped whole.
func datasetName(name string) string {
	segments := strings.Split(name, ".")
	for i, segment := range segments {
		if segment == "" && len(segments) > 1 {
			return dap.EscapeName(name)
		}
		segments[i] = dap.EscapeName(segment)
	}
	return strings.Join(segments, ".")
}

// FormatVariable writes the declaration of v at the given indentation level.
func FormatVariable(w io.Writer, v *dap.Variable, indent int) error {
	return formatDecl(w, v, dap.EscapeName(v.Name()), nil, indent)
}

func formatDecl(w io.Writer, v *dap.Variable, name string, dims []dap.Dim, indent int) error {
	pad := strings.Repeat(" ", indent*indentWidth)
	switch v.Kind() {
	case dap.KindScalar:
		_, err := fmt.Fprintf(w, "%s%s %s%s;\n", pad, v.Tag(), name, formatDims(dims))
		return err
	case dap.KindArray:
		return formatDecl(w, v.Template(), name, v.Dims(), indent)
	case dap.KindStructure, dap.KindSequence:
		if _, err := fmt.Fprintf(w, "%s%s {\n", pad, v.Tag()); err != nil {
			return err
		}
		for child := range v.Children() {
			if err := FormatVariable(w, child, indent+1); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%s} %s%s;\n", pad, name, formatDims(dims))
		return err
	case dap.KindGrid:
		inner := strings.Repeat(" ", (indent+1)*indentWidth-2)
		if _, err := fmt.Fprintf(w, "%sGrid {\n%sArray:\n", pad, inner); err != nil {
			return err
		}
		if err := FormatVariable(w, v.Array(), indent+1); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%sMaps:\n", inner); err != nil {
			return err
		}
		for _, m := range v.Maps() {
			if err := FormatVariable(w, m, indent+1); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%s} %s;\n", pad, name)
		return err
	default:
		return fmt.Errorf("unsupported variable kind %s", v.Kind())
	}
}

func formatDims(dims []dap.Dim) string {
	sb := &strings.Builder{}
	for _, d := range dims {
		if d.Name != "" {
			fmt.Fprintf(sb, "[%s = %d]", dap.EscapeName(d.Name), d.Size)
			continue
		}
		fmt.Fprintf(sb, "[%d]", d.Size)
	}
	return sb.String()
}
