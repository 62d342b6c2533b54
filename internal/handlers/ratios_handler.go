package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

// RatiosHandler computes the thirteen financial ratios for one period.
type RatiosHandler struct {
	findata    interfaces.FinancialDataService
	indicators interfaces.IndicatorService
	logger     arbor.ILogger
}

// NewRatiosHandler creates the ratios handler.
func NewRatiosHandler(findata interfaces.FinancialDataService, indicators interfaces.IndicatorService, logger arbor.ILogger) *RatiosHandler {
	return &RatiosHandler{findata: findata, indicators: indicators, logger: logger}
}

type ratiosRequest struct {
	StockCode    string `json:"stock_code"`
	ReportPeriod string `json:"report_period"`
	ReportType   string `json:"report_type"`
}

// RatiosHandler serves POST /api/ratios.
func (h *RatiosHandler) RatiosHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req ratiosRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	code := common.ParseStockCode(req.StockCode)
	if code.Code == "" {
		WriteError(w, http.StatusBadRequest, "unrecognizable stock code")
		return
	}
	period, err := common.ResolvePeriod(req.ReportPeriod)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	data, err := h.findata.GetCompleteData(r.Context(), code.Code, period, true)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	var prevBalance *models.BalanceSheet
	if data.PreviousData != nil {
		prevBalance = data.PreviousData.BalanceSheet
	}
	report := h.indicators.ComputeRatios(data.IncomeStatement, data.BalanceSheet, data.CashFlow, prevBalance, period)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stock_code":    code.Code,
		"report_period": period,
		"ratios":        report,
		"formatted":     h.indicators.FormatRatios(report),
	})
}
