package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

// resolveRequest validates a generation request against the company catalog
// and builds the initial workflow state. Either the name or the code is
// enough when the company is tracked; untracked companies need both plus an
// industry.
func (s *Service) resolveRequest(ctx context.Context, req interfaces.ReportRequest) (*models.ReportState, error) {
	const op = "reports.resolve"

	name := strings.TrimSpace(req.CompanyName)
	code := strings.TrimSpace(req.CompanyCode)
	industry := strings.TrimSpace(req.Industry)

	if name == "" && code == "" {
		return nil, common.E(common.KindInvalidInput, op, "company_name or company_code is required")
	}
	if req.ReportPeriod == "" {
		return nil, common.E(common.KindInvalidInput, op, "report_period is required")
	}
	period, err := common.ResolvePeriod(req.ReportPeriod)
	if err != nil {
		return nil, err
	}

	if code != "" {
		parsed := common.ParseStockCode(code)
		if parsed.Code == "" {
			return nil, common.E(common.KindInvalidInput, op,
				fmt.Sprintf("unrecognizable stock code %q", code))
		}
		code = parsed.Code
		if company, lookupErr := s.storage.Companies().GetCompany(ctx, code); lookupErr == nil {
			if name == "" {
				name = company.Name
			}
			if industry == "" {
				industry = company.Industry
			}
		}
	} else {
		company, lookupErr := s.findByName(ctx, name)
		if lookupErr != nil {
			return nil, lookupErr
		}
		code = company.Code
		if industry == "" {
			industry = company.Industry
		}
	}

	if name == "" {
		name = code
	}
	if industry == "" {
		return nil, common.E(common.KindInvalidInput, op,
			fmt.Sprintf("industry is required for untracked company %s", code))
	}

	return &models.ReportState{
		CompanyName:  name,
		CompanyCode:  code,
		Industry:     industry,
		ReportPeriod: period,
		StartedAt:    time.Now(),
	}, nil
}

func (s *Service) findByName(ctx context.Context, name string) (*models.Company, error) {
	const op = "reports.resolve"

	companies, err := s.storage.Companies().ListCompanies(ctx)
	if err != nil {
		return nil, err
	}
	for _, company := range companies {
		if company.Name == name {
			return company, nil
		}
	}
	return nil, common.E(common.KindNotFound, op,
		fmt.Sprintf("company %q is not in the catalog; pass company_code instead", name))
}
