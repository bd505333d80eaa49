package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Page is the extracted text of one page (or slide, or sheet).
type Page struct {
	Number int
	Text   string
}

type extractFunc func(filePath string) ([]Page, error)

var extractors = map[string]extractFunc{
	".pdf":  parsePDF,
	".docx": parseDOCX,
	".pptx": parsePPTX,
	".xlsx": parseXLSX,
	".xlsm": parseXLSM,
	".txt":  parseText,
	".md":   parseMarkdown,
}

var (
	xmlTagRe      = regexp.MustCompile(`<[^>]+>`)
	docxParaEndRe = regexp.MustCompile(`</w:p>`)
	slideNameRe   = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// Supported reports whether ext (with leading dot, any case) has an extractor.
func Supported(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// ExtractPages returns the non-empty pages of filePath in page order. Pages
// without extractable text are dropped; page numbers stay 1-indexed against
// the original document.
func ExtractPages(filePath string) ([]Page, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	extract, ok := extractors[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	pages, err := extract(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(filePath), err)
	}
	kept := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		kept = append(kept, p)
	}
	return kept, nil
}

func parsePDF(filePath string) ([]Page, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}
	numPages := reader.NumPage()
	checkPageCount(f, filePath, numPages)

	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Debug().Err(err).Str("file", filePath).Int("page", i).Msg("No extractable text on page")
			continue
		}
		pages = append(pages, Page{Number: i, Text: pageText})
	}
	return pages, nil
}

// checkPageCount compares the text reader's page count with pdfcpu's and
// reports whether they agree. A disagreement usually means a damaged
// cross-reference table, so page numbers in the index may be off.
func checkPageCount(rs io.ReadSeeker, filePath string, numPages int) bool {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return false
	}
	count, err := pdfapi.PageCount(rs, nil)
	if err != nil {
		log.Debug().Err(err).Str("file", filePath).Msg("pdfcpu could not count pages")
		return false
	}
	if count != numPages {
		log.Warn().Str("file", filePath).Int("reader_pages", numPages).Int("pdfcpu_pages", count).Msg("Page count mismatch")
		return false
	}
	return true
}

func parseDOCX(filePath string) ([]Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// DOCX has no page boundaries in its XML.
	content := r.Editable().GetContent()
	return []Page{{Number: 1, Text: xmlToText(docxParaEndRe.ReplaceAllString(content, "\n"))}}, nil
}

func parsePPTX(filePath string) ([]Page, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []Page
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		slideNum, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Number: slideNum, Text: extractTextFromXML(string(data))})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

func parseXLSX(filePath string) ([]Page, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var pages []Page
	for sheetNum, sheet := range f.Sheets {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Sheet: %s\n", sheet.Name)
		for _, row := range sheet.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			sb.WriteString(strings.TrimSpace(strings.Join(cells, "\t")))
			sb.WriteString("\n")
		}
		pages = append(pages, Page{Number: sheetNum + 1, Text: sb.String()})
	}
	return pages, nil
}

func parseXLSM(filePath string) ([]Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, err
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Sheet: %s\n", sheetName)
		for _, row := range rows {
			sb.WriteString(strings.TrimSpace(strings.Join(row, "\t")))
			sb.WriteString("\n")
		}
		pages = append(pages, Page{Number: sheetNum + 1, Text: sb.String()})
	}
	return pages, nil
}

// parseText treats form feeds as page breaks, which is what pdftotext and
// most print-to-text exports emit.
func parseText(filePath string) ([]Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var pages []Page
	for i, p := range strings.Split(string(data), "\f") {
		pages = append(pages, Page{Number: i + 1, Text: p})
	}
	return pages, nil
}

// parseMarkdown flattens each block of the document onto its own line so the
// chunker sees one paragraph per line, without markdown syntax.
func parseMarkdown(filePath string) ([]Page, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var lines []string
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindParagraph, ast.KindHeading, ast.KindTextBlock:
			lines = append(lines, inlineText(n, src))
			return ast.WalkSkipChildren, nil
		case ast.KindFencedCodeBlock, ast.KindCodeBlock:
			lines = append(lines, blockText(n, src, "\n"))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return []Page{{Number: 1, Text: strings.Join(lines, "\n")}}, nil
}

// inlineText keeps only the literal text of a block's inline children, so
// emphasis markers, link targets and raw HTML are dropped.
func inlineText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := c.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		case *ast.AutoLink:
			sb.Write(v.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}

func blockText(n ast.Node, src []byte, sep string) string {
	segs := n.Lines()
	parts := make([]string, 0, segs.Len())
	for i := 0; i < segs.Len(); i++ {
		seg := segs.At(i)
		parts = append(parts, strings.TrimSpace(string(seg.Value(src))))
	}
	return strings.Join(parts, sep)
}

func extractTextFromXML(xmlContent string) string {
	var out strings.Builder
	for _, para := range strings.Split(xmlContent, "</a:p>") {
		var line strings.Builder
		parts := strings.Split(para, "<a:t>")
		for i, part := range parts {
			if i == 0 {
				continue
			}
			if endIdx := strings.Index(part, "</a:t>"); endIdx >= 0 {
				line.WriteString(html.UnescapeString(part[:endIdx]))
			}
		}
		if line.Len() > 0 {
			out.WriteString(line.String())
			out.WriteString("\n")
		}
	}
	return out.String()
}

func xmlToText(content string) string {
	var buf bytes.Buffer
	for _, line := range strings.Split(xmlTagRe.ReplaceAllString(content, ""), "\n") {
		line = strings.TrimSpace(html.UnescapeString(line))
		if line == "" {
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	return buf.String()
}
