package pdf

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/ternarybob/finreview/internal/common"
)

// ValidatePDF checks that rendered bytes form a readable PDF and returns
// its page count. pdfcpu works on files, so the bytes go through a temp
// file.
func (s *Service) ValidatePDF(data []byte) (int, error) {
	const op = "pdf.validate"

	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return 0, common.E(common.KindInvalidInput, op, "data is not a PDF")
	}

	tempFile := filepath.Join(os.TempDir(), "finreview-pdf-"+uuid.NewString()+".pdf")
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return 0, common.Wrap(common.KindInternal, op, err)
	}
	defer os.Remove(tempFile)

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return 0, common.Wrap(common.KindInvalidInput, op, err)
	}

	s.logger.Debug().Int("page_count", pdfCtx.PageCount).Msg("PDF validated")
	return pdfCtx.PageCount, nil
}
