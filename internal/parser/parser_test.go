package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"claim-rag/internal/config"
)

// writePDF writes a PDF with one Helvetica text line per page. An empty
// string yields a page with an empty content stream.
func writePDF(t *testing.T, path string, pageTexts []string) {
	t.Helper()
	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	kids := make([]string, len(pageTexts))
	for i := range pageTexts {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageTexts)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	for i, text := range pageTexts {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i))
		content := ""
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestExtractPages_PDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.pdf")
	writePDF(t, path, []string{
		"Knee replacement is covered after 24 months.",
		"",
		"Dental treatment is excluded.",
	})

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 2, "blank page 2 is dropped")
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "Knee replacement is covered after 24 months.", strings.TrimSpace(pages[0].Text))
	assert.Equal(t, 3, pages[1].Number)
	assert.Equal(t, "Dental treatment is excluded.", strings.TrimSpace(pages[1].Text))
}

func TestCheckPageCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.pdf")
	writePDF(t, path, []string{"one", "two", "three"})

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, checkPageCount(f, path, 3))
	assert.False(t, checkPageCount(f, path, 2))
	assert.False(t, checkPageCount(strings.NewReader("not a pdf"), "junk.pdf", 1))
}

func TestIngestFile_PDFPageNumbers(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "rider.pdf"), []string{"", "Cancer care is covered in full.", "Ambulance charges up to 2000."})

	in, err := NewIngestor(config.IngestConfig{DataDir: dir, ChunkSize: 500, Extensions: []string{".pdf"}})
	require.NoError(t, err)
	chunks, err := in.IngestFile(filepath.Join(dir, "rider.pdf"))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 2, chunks[0].PageNumber)
	assert.Equal(t, "Cancer care is covered in full.", chunks[0].Text)
	assert.Equal(t, 3, chunks[1].PageNumber)
	assert.Equal(t, 1, chunks[1].ChunkID)
	assert.Equal(t, "rider.pdf", chunks[1].Source)
}

func TestExtractPages_DOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terms.docx")
	writeZip(t, path, map[string]string{
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document><w:body>` +
			`<w:p><w:r><w:t>Room rent is capped at 1% of the sum insured.</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t>Claims &amp; disputes go to the ombudsman.</w:t></w:r></w:p>` +
			`</w:body></w:document>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships></Relationships>`,
	})

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "Room rent is capped at 1% of the sum insured.\nClaims & disputes go to the ombudsman.\n", pages[0].Text)
}

func TestExtractPages_PPTX(t *testing.T) {
	slide := func(texts ...string) string {
		var sb strings.Builder
		sb.WriteString(`<p:sld><p:cSld><p:spTree>`)
		for _, s := range texts {
			fmt.Fprintf(&sb, `<a:p><a:r><a:t>%s</a:t></a:r></a:p>`, s)
		}
		sb.WriteString(`</p:spTree></p:cSld></p:sld>`)
		return sb.String()
	}
	path := filepath.Join(t.TempDir(), "briefing.pptx")
	writeZip(t, path, map[string]string{
		"ppt/slides/slide10.xml":            slide("Exclusions", "Cosmetic surgery"),
		"ppt/slides/slide2.xml":             slide("Waiting periods"),
		"ppt/slides/slide3.xml":             slide(),
		"ppt/slides/_rels/slide2.xml.rels":  `<Relationships/>`,
		"ppt/slideLayouts/slideLayout1.xml": slide("layout text is ignored"),
		"ppt/presentation.xml":              `<p:presentation/>`,
	})

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, Page{Number: 2, Text: "Waiting periods\n"}, pages[0])
	assert.Equal(t, Page{Number: 10, Text: "Exclusions\nCosmetic surgery\n"}, pages[1])
}

func TestExtractPages_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limits.xlsx")
	f := xlsx.NewFile()
	for _, sheet := range []struct {
		name string
		rows [][]string
	}{
		{"Limits", [][]string{{"Benefit", "Limit"}, {"ICU", "50000"}}},
		{"Notes", [][]string{{"Co-pay applies above age 60"}}},
	} {
		sh, err := f.AddSheet(sheet.name)
		require.NoError(t, err)
		for _, cells := range sheet.rows {
			row := sh.AddRow()
			for _, c := range cells {
				row.AddCell().SetString(c)
			}
		}
	}
	require.NoError(t, f.Save(path))

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, Page{Number: 1, Text: "Sheet: Limits\nBenefit\tLimit\nICU\t50000\n"}, pages[0])
	assert.Equal(t, Page{Number: 2, Text: "Sheet: Notes\nCo-pay applies above age 60\n"}, pages[1])
}

func TestExtractPages_XLSM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.xlsm")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Schedule"))
	require.NoError(t, f.SetSheetRow("Schedule", "A1", &[]any{"Procedure", "Cap"}))
	require.NoError(t, f.SetSheetRow("Schedule", "A2", &[]any{"Cataract", "40000"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, Page{Number: 1, Text: "Sheet: Schedule\nProcedure\tCap\nCataract\t40000\n"}, pages[0])
}
