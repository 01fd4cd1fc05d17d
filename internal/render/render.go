package render

import (
	"encoding/csv"
	"fmt"
	"html/template"
	"io"

	"github.com/chalantorn2/BookingSevenSmile-sub000/internal/report"
)

// WriteCSV writes the table as a flat CSV: one header line, then every group
// header, its rows and its subtotal, then the grand total.
func WriteCSV(w io.Writer, table report.Table) error {
	writer := csv.NewWriter(w)
	header := make([]string, 0, len(table.Columns)+1)
	header = append(header, "group")
	for _, c := range table.Columns {
		header = append(header, c.Label)
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, g := range table.Groups {
		for _, row := range g.Rows {
			if err := writer.Write(append([]string{g.Header}, row...)); err != nil {
				return err
			}
		}
		if len(g.Subtotal) > 0 {
			if err := writer.Write(append([]string{g.Header}, g.Subtotal...)); err != nil {
				return err
			}
		}
	}
	if len(table.GrandTotal) > 0 {
		if err := writer.Write(append([]string{""}, table.GrandTotal...)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// tableHTMLTmpl auto-escapes every cell, so customer-entered text is safe.
var tableHTMLTmpl = template.Must(template.New("table").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    tr.group td { background: #f3f3f3; font-weight: bold; }
    tr.subtotal td, tr.grand td { font-weight: bold; }
    tr.grand td { border-top: 2px solid #333; }
    h2 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>{{.Title}}</h2>
  <table>
    <thead><tr>{{range .Table.Columns}}<th>{{.Label}}</th>{{end}}</tr></thead>
    <tbody>
    {{- $span := len .Table.Columns}}
    {{- range .Table.Groups}}
      <tr class="group"><td colspan="{{$span}}">{{.Header}}</td></tr>
      {{- range .Rows}}
      <tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
      {{- end}}
      {{- if .Subtotal}}
      <tr class="subtotal">{{range .Subtotal}}<td>{{.}}</td>{{end}}</tr>
      {{- end}}
    {{- end}}
    {{- if .Table.GrandTotal}}
      <tr class="grand">{{range .Table.GrandTotal}}<td>{{.}}</td>{{end}}</tr>
    {{- end}}
    </tbody>
  </table>
</body>
</html>
`))

// WriteHTML renders a printable page for the table.
func WriteHTML(w io.Writer, table report.Table, title string) error {
	data := struct {
		Title string
		Table report.Table
	}{Title: title, Table: table}
	if err := tableHTMLTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}
