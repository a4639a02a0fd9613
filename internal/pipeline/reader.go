package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"salesmigrate/internal"
	"salesmigrate/internal/util"
)

var ErrUnsupportedInput = errors.New("unsupported input")

var reportExtensions = map[string]struct{}{
	".xlsx": {}, ".xlsm": {}, ".xls": {}, ".csv": {}, ".html": {}, ".htm": {}, ".pdf": {},
}

// Attachment is a named blob pulled out of a mail message.
type Attachment struct {
	FileName string
	Content  []byte
}

// ReadGrid loads the first sheet (or table, or page run) of a report file.
func ReadGrid(path string) (internal.Grid, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	grid, err := ReadGridBytes(filepath.Base(path), blob)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return grid, nil
}

// ReadGridBytes dispatches on the extension of name.
func ReadGridBytes(name string, content []byte) (internal.Grid, error) {
	var (
		grid internal.Grid
		err  error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		grid, err = readXLSX(content)
	case ".xls":
		// Legacy POS "xls" exports are frequently HTML tables with an xls suffix.
		grid, err = readXLSX(content)
		if err != nil {
			if htmlGrid, htmlErr := readHTMLTable(content); htmlErr == nil {
				grid, err = htmlGrid, nil
			}
		}
	case ".html", ".htm":
		grid, err = readHTMLTable(content)
	case ".csv":
		grid, err = readCSV(content)
	case ".pdf":
		grid, err = readPDF(content)
	case ".eml":
		grid, err = readEML(content)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, name)
	}
	if err != nil {
		return nil, err
	}
	return padGrid(grid), nil
}

func IsReportFile(name string) bool {
	_, ok := reportExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

func readXLSX(content []byte) (internal.Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	grid := make(internal.Grid, 0, len(rows))
	for r, row := range rows {
		out := make(internal.Row, len(row))
		for c, raw := range row {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			out[c] = excelCell(f, sheet, c+1, r+1, raw)
		}
		grid = append(grid, out)
	}
	return grid, nil
}

func excelCell(f *excelize.File, sheet string, col, row int, raw string) internal.Cell {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return internal.TextCell(raw)
	}
	kind, err := f.GetCellType(sheet, ref)
	if err != nil {
		return internal.TextCell(raw)
	}
	switch kind {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
		if v, ok := util.ParseNumber(raw); ok {
			return internal.SourceNumberCell(v, raw)
		}
	}
	return internal.TextCell(raw)
}

func readHTMLTable(content []byte) (internal.Grid, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if t.Find("tr").Length() > 0 {
			table = t
			return false
		}
		return true
	})
	if table == nil {
		return nil, fmt.Errorf("%w: no table in html document", ErrUnsupportedInput)
	}

	grid := internal.Grid{}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		row := internal.Row{}
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			row = append(row, inferCell(cell.Text()))
			span := 1
			if v, ok := cell.Attr("colspan"); ok {
				if n, ok := util.ParseNumber(v); ok && n > 1 {
					span = int(n)
				}
			}
			for i := 1; i < span; i++ {
				row = append(row, internal.Cell{})
			}
		})
		grid = append(grid, row)
	})
	return grid, nil
}

func readCSV(content []byte) (internal.Grid, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	grid := internal.Grid{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		row := make(internal.Row, len(record))
		for i, v := range record {
			row[i] = inferCell(v)
		}
		grid = append(grid, row)
	}
	return grid, nil
}

func readPDF(content []byte) (internal.Grid, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	grid := internal.Grid{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		grid = append(grid, pdfRows(p.Content().Text)...)
	}
	return grid, nil
}

// pdfRows groups glyphs into lines by baseline (top of page first) and
// splits each line into cells wherever the horizontal gap exceeds the
// glyph's font size.
func pdfRows(texts []pdf.Text) internal.Grid {
	lines := map[int64][]pdf.Text{}
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		key := int64(math.Round(t.Y))
		lines[key] = append(lines[key], t)
	}

	keys := make([]int64, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })

	grid := make(internal.Grid, 0, len(keys))
	for _, k := range keys {
		glyphs := lines[k]
		sort.SliceStable(glyphs, func(i, j int) bool { return glyphs[i].X < glyphs[j].X })

		row := internal.Row{}
		var cell strings.Builder
		end := 0.0
		for n, g := range glyphs {
			gap := g.FontSize
			if gap <= 0 {
				gap = 1
			}
			if n > 0 && g.X-end > gap {
				row = append(row, inferCell(cell.String()))
				cell.Reset()
			}
			cell.WriteString(g.S)
			end = g.X + g.W
		}
		if cell.Len() > 0 {
			row = append(row, inferCell(cell.String()))
		}
		grid = append(grid, row)
	}
	return grid
}

func readEML(content []byte) (internal.Grid, error) {
	attachments, html, err := MailReportAttachments(content)
	if err != nil {
		return nil, err
	}
	if len(attachments) > 0 {
		return ReadGridBytes(attachments[0].FileName, attachments[0].Content)
	}
	if strings.Contains(strings.ToLower(html), "<table") {
		return readHTMLTable([]byte(html))
	}
	return nil, fmt.Errorf("%w: message carries no report attachment", ErrUnsupportedInput)
}

// MailReportAttachments returns the spreadsheet-like attachments of a raw
// message in message order, plus the HTML body.
func MailReportAttachments(raw []byte) ([]Attachment, string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("parse message: %w", err)
	}

	out := []Attachment{}
	parts := append(append([]*enmime.Part{}, env.Attachments...), env.Inlines...)
	for _, att := range parts {
		name := strings.TrimSpace(att.FileName)
		if name == "" || !IsReportFile(name) {
			continue
		}
		out = append(out, Attachment{FileName: name, Content: att.Content})
	}
	return out, env.HTML, nil
}

func inferCell(text string) internal.Cell {
	text = util.CollapseSpaces(strings.ReplaceAll(text, "\u00a0", " "))
	if text == "" {
		return internal.Cell{}
	}
	if v, ok := util.ParseNumber(text); ok && looksNumeric(text) {
		return internal.SourceNumberCell(v, text)
	}
	return internal.TextCell(text)
}

// looksNumeric rejects tokens such as "(12)" or "Rs. 5" that ParseNumber
// accepts but that a report writes as text on purpose.
func looksNumeric(text string) bool {
	for _, r := range text {
		if (r < '0' || r > '9') && r != '.' && r != ',' && r != '-' {
			return false
		}
	}
	return true
}

func padGrid(grid internal.Grid) internal.Grid {
	width := 0
	for _, row := range grid {
		if len(row) > width {
			width = len(row)
		}
	}
	for i, row := range grid {
		if len(row) < width {
			padded := make(internal.Row, width)
			copy(padded, row)
			grid[i] = padded
		}
	}
	return grid
}
