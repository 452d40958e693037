// Package render writes command output for the mstream CLI.
//
// The format is json, yaml or table. Without --format, a terminal gets a
// table and anything else gets json. --no-color only affects tables.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a --format value. The empty string means "pick a
// default" and is returned as is.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatTable, FormatYAML, "":
		return f, nil
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Table is implemented by values that lay out their own table.
type Table interface {
	Header() []string
	Rows() [][]string
}

// Renderer writes values in one format.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// New creates a renderer for stdout. An empty format resolves to table on
// a terminal and json otherwise.
func New(format string, noColor bool) (*Renderer, error) {
	return NewWithWriter(format, noColor, os.Stdout)
}

// NewWithWriter creates a renderer writing to out.
func NewWithWriter(format string, noColor bool, out io.Writer) (*Renderer, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if f == "" {
		f = FormatJSON
		if file, ok := out.(*os.File); ok && isatty.IsTerminal(file.Fd()) {
			f = FormatTable
		}
	}
	return &Renderer{format: f, noColor: noColor, out: out}, nil
}

// Format returns the resolved format.
func (r *Renderer) Format() Format { return r.format }

// Render writes data.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		return r.renderTable(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

func (r *Renderer) header(cols []string) string {
	line := strings.Join(cols, "\t")
	if r.noColor {
		return line
	}
	styled := make([]string, len(cols))
	for i, c := range cols {
		styled[i] = headerStyle.Render(c)
	}
	return strings.Join(styled, "\t")
}

func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	if t, ok := data.(Table); ok {
		writeRows(w, r.header(t.Header()), t.Rows())
		return w.Flush()
	}

	v := reflect.Indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			fmt.Fprintln(r.out, "(no results)")
			return nil
		}
		cols := columns(reflect.Indirect(v.Index(0)))
		rows := make([][]string, v.Len())
		for i := range rows {
			rows[i] = cells(reflect.Indirect(v.Index(i)), cols)
		}
		writeRows(w, r.header(cols), rows)
	case reflect.Struct, reflect.Map:
		cols := columns(v)
		vals := cells(v, cols)
		for i, c := range cols {
			fmt.Fprintf(w, "%s:\t%s\n", c, vals[i])
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	return w.Flush()
}

func writeRows(w io.Writer, header string, rows [][]string) {
	fmt.Fprintln(w, header)
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}

// columns returns the json names of a struct's fields, or the sorted keys
// of a map.
func columns(v reflect.Value) []string {
	var cols []string
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			if name := fieldName(t.Field(i)); name != "" {
				cols = append(cols, name)
			}
		}
	case reflect.Map:
		for _, k := range v.MapKeys() {
			cols = append(cols, fmt.Sprint(k.Interface()))
		}
		sort.Strings(cols)
	}
	return cols
}

func cells(v reflect.Value, cols []string) []string {
	out := make([]string, len(cols))
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		j := 0
		for i := 0; i < t.NumField() && j < len(out); i++ {
			if fieldName(t.Field(i)) == "" {
				continue
			}
			out[j] = formatValue(v.Field(i))
			j++
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			break
		}
		for i, c := range cols {
			if mv := v.MapIndex(reflect.ValueOf(c)); mv.IsValid() {
				out[i] = formatValue(mv)
			}
		}
	}
	return out
}

// fieldName returns the json name of an exported field, or "" for skipped
// fields.
func fieldName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return strings.ToLower(f.Name)
	}
	return name
}

func formatValue(v reflect.Value) string {
	if v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.String {
			items := make([]string, v.Len())
			for i := range items {
				items[i] = v.Index(i).String()
			}
			return strings.Join(items, ",")
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}
