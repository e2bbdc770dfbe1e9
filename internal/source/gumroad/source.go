package gumroad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sale_inviter/internal/domain"
)

const (
	SourceID       = "gumroad"
	DefaultBaseURL = "https://api.gumroad.com/v2"

	afterDateLayout = "2006-01-02"
)

// Config holds Gumroad source configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxPages       int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Source lists sales from the Gumroad API.
type Source struct {
	httpClient     *http.Client
	baseURL        string
	maxPages       int
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// New creates a new Gumroad source.
func New(cfg Config, logger *slog.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Source{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		maxPages:       cfg.MaxPages,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("source", SourceID),
	}
}

// AfterDate returns the day-granularity lower bound sent to the API: one day
// before since, to absorb timezone skew. ok is false when since is the epoch
// sentinel and the full sales list must be requested.
func AfterDate(since time.Time) (after string, ok bool) {
	if domain.IsEpochSentinel(since) {
		return "", false
	}
	return since.UTC().AddDate(0, 0, -1).Format(afterDateLayout), true
}

// FetchSales lists sales, optionally bounded below by since. Sales are
// returned in upstream order. Any transport or API failure is an error.
func (s *Source) FetchSales(ctx context.Context, token string, since time.Time) ([]domain.Sale, error) {
	params := url.Values{}
	params.Set("access_token", token)

	if after, ok := AfterDate(since); ok {
		params.Set("after", after)
		s.logger.Info("requesting sales", "after", after)
	} else {
		s.logger.Info("requesting full sales list")
	}

	var all []APISale
	for page := 0; page < s.maxPages; page++ {
		var resp SalesResponse
		if err := s.getWithRetry(ctx, "/sales", params, &resp); err != nil {
			return nil, fmt.Errorf("fetch sales page %d: %w", page, err)
		}
		if !resp.Success {
			return nil, fmt.Errorf("fetch sales page %d: api reported failure: %s", page, resp.Message)
		}

		all = append(all, resp.Sales...)

		s.logger.Debug("fetched page",
			"page", page,
			"sales", len(resp.Sales),
			"total", len(all),
		)

		if resp.NextPageKey == "" {
			break
		}
		params.Set("page_key", resp.NextPageKey)
	}

	return s.transform(all), nil
}

// VerifyToken checks the token against the user endpoint.
func (s *Source) VerifyToken(ctx context.Context, token string) domain.ConnectionCheck {
	params := url.Values{}
	params.Set("access_token", token)

	var resp UserResponse
	if err := s.doRequest(ctx, "/user", params, &resp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Message != "" {
			return domain.ConnectionCheck{Error: statusErr.Message}
		}
		return domain.ConnectionCheck{Error: err.Error()}
	}
	if !resp.Success {
		return domain.ConnectionCheck{Error: "Token invalid or unknown error"}
	}

	user := resp.User.Name
	if user == "" {
		user = resp.User.Email
	}
	return domain.ConnectionCheck{
		Success: true,
		User:    user,
		Email:   resp.User.Email,
	}
}

func (s *Source) getWithRetry(ctx context.Context, path string, params url.Values, out any) error {
	var err error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = s.doRequest(ctx, path, params, out)
		if err == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return err
		}

		if attempt == s.maxAttempts {
			break
		}

		backoff := s.calculateBackoff(attempt)
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("after %d attempts: %w", s.maxAttempts, err)
}

func (s *Source) doRequest(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := s.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "SaleInviter/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", redactToken(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func (s *Source) calculateBackoff(attempt int) time.Duration {
	backoff := s.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if s.maxBackoff > 0 && backoff > s.maxBackoff {
		backoff = s.maxBackoff
	}
	return backoff
}

func (s *Source) transform(sales []APISale) []domain.Sale {
	out := make([]domain.Sale, 0, len(sales))

	for _, sale := range sales {
		createdAt, err := time.Parse(time.RFC3339, sale.CreatedAt)
		if err != nil && sale.CreatedAt != "" {
			s.logger.Warn("failed to parse sale date",
				"sale_id", sale.ID,
				"created_at", sale.CreatedAt,
			)
		}

		out = append(out, domain.Sale{
			ID:           sale.ID,
			CreatedAt:    createdAt,
			ProductName:  sale.ProductName,
			Email:        sale.Email,
			CustomFields: []domain.CustomField(sale.CustomFields),
		})
	}

	return out
}

// errorMessage pulls the "message" field out of a Gumroad error body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}

// redactToken keeps the access token out of url.Error messages.
func redactToken(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, parseErr := url.Parse(urlErr.URL); parseErr == nil {
			q := u.Query()
			if q.Has("access_token") {
				q.Set("access_token", "REDACTED")
				u.RawQuery = q.Encode()
				return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
			}
		}
	}
	return err
}
