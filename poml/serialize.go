package poml

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"gopkg.in/yaml.v3"
)

// Serializer turns tabular records into text for data-display components.
type Serializer interface {
	Serialize(records []map[string]any, columns []string, format string) (string, error)
}

// Table formats accepted by DefaultSerializer.
const (
	TableMarkdown = "markdown"
	TableHTML     = "html"
	TableCSV      = "csv"
	TableTSV      = "tsv"
	TableJSON     = "json"
	TableJSONL    = "jsonl"
	TableYAML     = "yaml"
	TableXML      = "xml"
	TableText     = "text"
)

// DefaultSerializer implements every table format listed above.
type DefaultSerializer struct{}

// Serialize renders records in format. Empty format means markdown. When
// columns is empty the union of record keys is used, sorted.
func (DefaultSerializer) Serialize(records []map[string]any, columns []string, format string) (string, error) {
	if len(columns) == 0 {
		columns = recordColumns(records)
	}
	switch strings.ToLower(format) {
	case "", TableMarkdown:
		return markdownTable(records, columns), nil
	case TableHTML:
		return htmlTable(records, columns), nil
	case TableCSV:
		return delimitedTable(records, columns, ',')
	case TableTSV:
		return delimitedTable(records, columns, '\t')
	case TableJSON:
		bs, err := json.MarshalIndent(projectRecords(records, columns), "", "  ")
		if err != nil {
			return "", err
		}
		return string(bs), nil
	case TableJSONL:
		var b strings.Builder
		for _, row := range projectRecords(records, columns) {
			bs, err := json.Marshal(row)
			if err != nil {
				return "", err
			}
			b.Write(bs)
			b.WriteByte('\n')
		}
		return strings.TrimRight(b.String(), "\n"), nil
	case TableYAML:
		bs, err := yaml.Marshal(projectRecords(records, columns))
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(bs), "\n"), nil
	case TableXML:
		return xmlTable(records, columns)
	case TableText:
		var b strings.Builder
		b.WriteString(strings.Join(columns, "\t"))
		for _, r := range records {
			b.WriteByte('\n')
			b.WriteString(strings.Join(rowCells(r, columns), "\t"))
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("%w: table format %q", ErrNotImplemented, format)
}

func recordColumns(records []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		for k := range r {
			seen[k] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func rowCells(r map[string]any, columns []string) []string {
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = Stringify(r[c])
	}
	return cells
}

func projectRecords(records []map[string]any, columns []string) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		row := make(map[string]any, len(columns))
		for _, c := range columns {
			row[c] = r[c]
		}
		out[i] = row
	}
	return out
}

var markdownCellEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

func markdownTable(records []map[string]any, columns []string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(escapeCells(columns), " | ") + " |\n")
	seps := make([]string, len(columns))
	for i := range seps {
		seps[i] = "---"
	}
	b.WriteString("| " + strings.Join(seps, " | ") + " |")
	for _, r := range records {
		b.WriteString("\n| " + strings.Join(escapeCells(rowCells(r, columns)), " | ") + " |")
	}
	return b.String()
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = markdownCellEscaper.Replace(c)
	}
	return out
}

func htmlTable(records []map[string]any, columns []string) string {
	var b strings.Builder
	b.WriteString("<table>\n  <thead>\n    <tr>")
	for _, c := range columns {
		b.WriteString("<th>" + html.EscapeString(c) + "</th>")
	}
	b.WriteString("</tr>\n  </thead>\n  <tbody>")
	for _, r := range records {
		b.WriteString("\n    <tr>")
		for _, cell := range rowCells(r, columns) {
			b.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("\n  </tbody>\n</table>")
	return b.String()
}

func delimitedTable(records []map[string]any, columns []string, comma rune) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = comma
	if err := w.Write(columns); err != nil {
		return "", err
	}
	for _, r := range records {
		if err := w.Write(rowCells(r, columns)); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

var xmlNameInvalid = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// xmlName makes s usable as an element name.
func xmlName(s string) string {
	name := xmlNameInvalid.ReplaceAllString(strings.TrimSpace(s), "_")
	if name == "" || !(name[0] == '_' || name[0] >= 'A' && name[0] <= 'Z' || name[0] >= 'a' && name[0] <= 'z') {
		name = "_" + name
	}
	return name
}

func xmlTable(records []map[string]any, columns []string) (string, error) {
	doc := etree.NewDocument()
	table := doc.CreateElement("table")
	for _, r := range records {
		row := table.CreateElement("row")
		for _, c := range columns {
			row.CreateElement(xmlName(c)).SetText(Stringify(r[c]))
		}
	}
	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// encodeValue renders a single value (object component) as json, yaml or xml.
func encodeValue(v any, format, root string) (string, error) {
	switch strings.ToLower(format) {
	case TableYAML:
		bs, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(bs), "\n"), nil
	case TableXML:
		doc := etree.NewDocument()
		appendXMLValue(doc.CreateElement(xmlName(root)), v)
		doc.Indent(2)
		out, err := doc.WriteToString()
		if err != nil {
			return "", err
		}
		return strings.TrimRight(out, "\n"), nil
	}
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

func appendXMLValue(el *etree.Element, v any) {
	switch val := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(val) {
			appendXMLValue(el.CreateElement(xmlName(k)), val[k])
		}
	case []any:
		for _, item := range val {
			appendXMLValue(el.CreateElement("item"), item)
		}
	default:
		el.SetText(Stringify(v))
	}
}

// tableData is a decoded tabular source.
type tableData struct {
	columns []string
	records []map[string]any
}

// parseDelimited decodes csv/tsv with a header row into records.
func parseDelimited(body, format string) ([]any, error) {
	td, err := parseTable(body, format)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(td.records))
	for i, r := range td.records {
		out[i] = r
	}
	return out, nil
}

func parseTable(body, format string) (tableData, error) {
	r := csv.NewReader(strings.NewReader(body))
	if format == TableTSV {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return tableData{}, err
	}
	if len(rows) == 0 {
		return tableData{}, nil
	}
	td := tableData{columns: rows[0]}
	for _, row := range rows[1:] {
		rec := make(map[string]any, len(td.columns))
		for i, c := range td.columns {
			if i < len(row) {
				rec[c] = coerceLiteral(row[i])
			}
		}
		td.records = append(td.records, rec)
	}
	return td, nil
}

// tableFromValue converts decoded JSON/YAML into records: an array of
// objects, an array of arrays (first row as header), or a single object.
func tableFromValue(v any) (tableData, bool) {
	switch val := v.(type) {
	case map[string]any:
		return tableData{records: []map[string]any{val}}, true
	case []map[string]any:
		return tableData{records: val}, true
	}
	rows, ok := toSlice(v)
	if !ok {
		return tableData{}, false
	}
	var td tableData
	for i, row := range rows {
		switch r := row.(type) {
		case map[string]any:
			td.records = append(td.records, r)
		default:
			cells, ok := toSlice(r)
			if !ok {
				return tableData{}, false
			}
			if i == 0 && td.columns == nil {
				for _, c := range cells {
					td.columns = append(td.columns, Stringify(c))
				}
				continue
			}
			rec := make(map[string]any, len(cells))
			for j, c := range cells {
				if j < len(td.columns) {
					rec[td.columns[j]] = c
				}
			}
			td.records = append(td.records, rec)
		}
	}
	return td, true
}
