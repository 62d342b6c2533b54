// Package findata provides a client for the financial data service, the
// HTTP facade over the statements database. All statement queries are POST
// requests carrying a JSON body and return a {success, data, message}
// envelope.
package findata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/models"
)

const (
	// DefaultTimeout is the per-request timeout for single-statement calls.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 10

	// DefaultReportType selects consolidated statements.
	DefaultReportType = "A"

	healthTimeout = 5 * time.Second

	maxAttempts = 3
)

// Client is a financial data service client.
type Client struct {
	baseURL    string
	reportType string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

var _ interfaces.FinancialDataService = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout. The complete-data call always
// gets twice this budget.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithReportType sets the statement scope: "A" consolidated, "B" parent.
func WithReportType(reportType string) ClientOption {
	return func(c *Client) {
		if reportType != "" {
			c.reportType = reportType
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a financial data service client.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, common.E(common.KindInvalidInput, "findata.new", "base_url is required")
	}

	// Request deadlines come from per-call contexts so the complete-data
	// call can run past the single-statement timeout.
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		reportType: DefaultReportType,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     arbor.NewLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type statementRequest struct {
	StockCode    string `json:"stock_code"`
	ReportPeriod string `json:"report_period"`
	ReportType   string `json:"report_type"`
}

type periodsRequest struct {
	StockCode     string `json:"stock_code"`
	CurrentPeriod string `json:"current_period"`
	Count         int    `json:"count"`
}

type completeRequest struct {
	StockCode       string `json:"stock_code"`
	ReportPeriod    string `json:"report_period"`
	ReportType      string `json:"report_type"`
	IncludePrevious bool   `json:"include_previous"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// GetIncomeStatement fetches one period's income statement.
func (c *Client) GetIncomeStatement(ctx context.Context, stockCode, reportPeriod string) (*models.IncomeStatement, error) {
	m, err := c.fetchStatement(ctx, "findata.income_statement", "/api/income-statement", stockCode, reportPeriod)
	if err != nil {
		return nil, err
	}
	return models.DecodeIncomeStatement(m), nil
}

// GetBalanceSheet fetches one period's balance sheet.
func (c *Client) GetBalanceSheet(ctx context.Context, stockCode, reportPeriod string) (*models.BalanceSheet, error) {
	m, err := c.fetchStatement(ctx, "findata.balance_sheet", "/api/balance-sheet", stockCode, reportPeriod)
	if err != nil {
		return nil, err
	}
	return models.DecodeBalanceSheet(m), nil
}

// GetCashFlow fetches one period's cash flow statement.
func (c *Client) GetCashFlow(ctx context.Context, stockCode, reportPeriod string) (*models.CashFlow, error) {
	m, err := c.fetchStatement(ctx, "findata.cash_flow", "/api/cash-flow", stockCode, reportPeriod)
	if err != nil {
		return nil, err
	}
	return models.DecodeCashFlow(m), nil
}

// GetHistoricalPeriods lists up to count report periods before
// currentPeriod, newest first.
func (c *Client) GetHistoricalPeriods(ctx context.Context, stockCode, currentPeriod string, count int) ([]string, error) {
	const op = "findata.historical_periods"

	if stockCode == "" {
		return nil, common.E(common.KindInvalidInput, op, "stock code is required")
	}
	period, err := common.NormalizePeriod(currentPeriod)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 4
	}

	data, err := c.post(ctx, op, "/api/historical-periods", periodsRequest{
		StockCode:     stockCode,
		CurrentPeriod: period,
		Count:         count,
	}, c.timeout)
	if err != nil {
		return nil, err
	}

	var periods []string
	if err := json.Unmarshal(data, &periods); err != nil {
		return nil, common.Wrap(common.KindPermanentUpstream, op, err)
	}

	c.logger.Debug().
		Str("stock_code", stockCode).
		Int("periods", len(periods)).
		Msg("Fetched historical periods")
	return periods, nil
}

// GetCompleteData fetches all three statements in one call, with the
// prior-year comparison set when includePrevious is set. The upstream joins
// three tables for this, so the call gets twice the timeout.
func (c *Client) GetCompleteData(ctx context.Context, stockCode, reportPeriod string, includePrevious bool) (*models.CompleteData, error) {
	const op = "findata.complete_data"

	if stockCode == "" {
		return nil, common.E(common.KindInvalidInput, op, "stock code is required")
	}
	period, err := common.NormalizePeriod(reportPeriod)
	if err != nil {
		return nil, err
	}

	data, err := c.post(ctx, op, "/api/complete-data", completeRequest{
		StockCode:       stockCode,
		ReportPeriod:    period,
		ReportType:      c.reportType,
		IncludePrevious: includePrevious,
	}, 2*c.timeout)
	if err != nil {
		return nil, err
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, common.Wrap(common.KindPermanentUpstream, op, err)
	}

	complete := &models.CompleteData{}
	if fd := models.DecodeFinancialData(m); fd != nil {
		complete.FinancialData = *fd
	}
	if prev, ok := m["previous_period"].(string); ok {
		complete.PreviousPeriod = prev
	}
	if prev, ok := m["previous_data"].(map[string]interface{}); ok {
		complete.PreviousData = models.DecodeFinancialData(prev)
	}

	c.logger.Debug().
		Str("stock_code", stockCode).
		Str("period", period).
		Bool("has_previous", complete.PreviousData != nil).
		Msg("Fetched complete financial data")
	return complete, nil
}

// HealthCheck verifies the data service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "findata.health"

	reqCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return common.Wrap(common.KindInternal, op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.Wrap(common.KindTransientUpstream, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return common.E(common.KindTransientUpstream, op,
			fmt.Sprintf("health endpoint returned status %d", resp.StatusCode))
	}
	return nil
}

// fetchStatement runs a single-statement POST and returns the raw wire map
// for the alias-aware decoders.
func (c *Client) fetchStatement(ctx context.Context, op, path, stockCode, reportPeriod string) (map[string]interface{}, error) {
	if stockCode == "" {
		return nil, common.E(common.KindInvalidInput, op, "stock code is required")
	}
	period, err := common.NormalizePeriod(reportPeriod)
	if err != nil {
		return nil, err
	}

	data, err := c.post(ctx, op, path, statementRequest{
		StockCode:    stockCode,
		ReportPeriod: period,
		ReportType:   c.reportType,
	}, c.timeout)
	if err != nil {
		return nil, err
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, common.Wrap(common.KindPermanentUpstream, op, err)
	}
	return m, nil
}

// post retries transient failures (network errors, 5xx, 429) with
// exponential backoff. 4xx and no-data envelopes return immediately.
func (c *Client) post(ctx context.Context, op, path string, payload interface{}, timeout time.Duration) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, common.Wrap(common.KindCancelled, op, err)
		}
		if attempt > 0 {
			backoff := time.Duration(100<<attempt) * time.Millisecond
			c.logger.Warn().
				Str("path", path).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying financial data request")
			select {
			case <-ctx.Done():
				return nil, common.Wrap(common.KindCancelled, op, ctx.Err())
			case <-time.After(backoff):
			}
		}

		data, err := c.postOnce(ctx, op, path, payload, timeout)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !common.IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// postOnce sends one JSON request and unwraps the response envelope. A
// non-200 status is a transport error; success:false means the period has
// no data.
func (c *Client) postOnce(ctx context.Context, op, path string, payload interface{}, timeout time.Duration) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, common.Wrap(common.KindCancelled, op, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, common.Wrap(common.KindInternal, op, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, common.Wrap(common.KindInternal, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("path", path).Msg("Financial data request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The caller giving up and the request deadline expiring arrive
		// the same way; only the former is a cancellation.
		if ctx.Err() != nil {
			return nil, common.Wrap(common.KindCancelled, op, ctx.Err())
		}
		return nil, common.Wrap(common.KindTransientUpstream, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		kind := common.KindPermanentUpstream
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = common.KindTransientUpstream
		}
		return nil, common.E(kind, op,
			fmt.Sprintf("data service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, common.Wrap(common.KindPermanentUpstream, op, err)
	}
	if !env.Success {
		message := env.Message
		if message == "" {
			message = "no data for the requested period"
		}
		return nil, common.E(common.KindNotFound, op, message)
	}
	return env.Data, nil
}
