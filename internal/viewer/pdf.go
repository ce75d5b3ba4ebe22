package viewer

import (
	"fmt"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFLoader handles PDF files, one viewer page per PDF page.
type PDFLoader struct{}

func (l *PDFLoader) Load(path string) ([][]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([][]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		// A page without extractable text stays in the sequence as empty.
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, splitParagraphs(text))
	}
	return pages, nil
}
