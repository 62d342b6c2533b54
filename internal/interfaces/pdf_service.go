package interfaces

// PDFService renders generated reports to PDF
type PDFService interface {
	// ConvertMarkdownToPDF converts markdown content to a PDF byte slice
	ConvertMarkdownToPDF(markdown, title string) ([]byte, error)

	// ValidatePDF checks that rendered bytes form a readable PDF and
	// returns its page count
	ValidatePDF(data []byte) (int, error)
}
