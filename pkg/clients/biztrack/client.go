package biztrack

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/biztrack/console/internal/config"
	"github.com/biztrack/console/internal/domain/models"
	"github.com/biztrack/console/internal/session"
)

// Client exposes every remote operation the console performs. It is the sole
// channel to the BizTrack service; no other component issues network calls.
type Client interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error)
	Me(ctx context.Context) (*models.User, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	CreateCustomer(ctx context.Context, req models.CustomerCreate) (*models.Customer, error)
	ListSales(ctx context.Context) ([]models.Sale, error)
	CreateSale(ctx context.Context, req models.SaleCreate) (*models.Sale, error)
	Summary(ctx context.Context, rng models.Range) (*models.Summary, error)
	ExportCSV(ctx context.Context, rng models.Range) ([]byte, string, error)
	ListStaff(ctx context.Context) ([]models.StaffMember, error)
	CreateStaff(ctx context.Context, req models.StaffCreate) (*models.StaffMember, error)
}

// APIClient is a resty-backed implementation of Client. It reads the session
// store before each call and attaches the bearer token when one is present.
type APIClient struct {
	httpClient *resty.Client
	tokens     session.Store
}

// NewClient builds a BizTrack API client using the provided configuration.
func NewClient(cfg config.APIConfig, tokens session.Store) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)

	if cfg.RetryCount > 0 {
		restyClient.SetRetryCount(cfg.RetryCount)
	}

	restyClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if token, ok := tokens.Get(); ok {
			req.SetHeader("Authorization", "Bearer "+token)
		}
		return nil
	})

	return &APIClient{httpClient: restyClient, tokens: tokens}
}

// Login exchanges credentials for a token. A 401 here means wrong
// credentials, not an expired session, so it classifies as a plain failure.
func (c *APIClient) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	result := new(models.TokenResponse)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		Post("/auth/login")
	if err := classifyPublic(resp, err); err != nil {
		return nil, err
	}
	return result, nil
}

// Register creates a business plus its owner account and returns a token.
func (c *APIClient) Register(ctx context.Context, req models.RegisterRequest) (*models.TokenResponse, error) {
	result := new(models.TokenResponse)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		Post("/auth/register")
	if err := classifyPublic(resp, err); err != nil {
		return nil, err
	}
	return result, nil
}

// Me returns the authenticated account.
func (c *APIClient) Me(ctx context.Context) (*models.User, error) {
	result := new(models.User)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		Get("/users/me")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return result, nil
}

// ListCustomers fetches all customers of the business.
func (c *APIClient) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	result := new([]models.Customer)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		Get("/customers")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return *result, nil
}

// CreateCustomer registers a new customer and returns it with its id.
func (c *APIClient) CreateCustomer(ctx context.Context, req models.CustomerCreate) (*models.Customer, error) {
	result := new(models.Customer)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		Post("/customers")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSales fetches the sales history, most recent first.
func (c *APIClient) ListSales(ctx context.Context) ([]models.Sale, error) {
	result := new([]models.Sale)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		Get("/sales")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return *result, nil
}

// CreateSale records a transaction. req.CustomerID may be nil for walk-ins.
func (c *APIClient) CreateSale(ctx context.Context, req models.SaleCreate) (*models.Sale, error) {
	result := new(models.Sale)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		Post("/sales")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return result, nil
}

// Summary fetches the aggregated analytics for the given range.
func (c *APIClient) Summary(ctx context.Context, rng models.Range) (*models.Summary, error) {
	result := new(models.Summary)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("range", string(rng)).
		SetResult(result).
		Get("/sales/summary")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return result, nil
}

// ExportCSV downloads the server-produced CSV for the range as an opaque
// blob, returning the payload and the filename suggested by the service.
func (c *APIClient) ExportCSV(ctx context.Context, rng models.Range) ([]byte, string, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("range", string(rng)).
		Get("/sales/export")
	if err := classify(resp, err); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("sales_%s.csv", rng)
	if disposition := resp.Header().Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				filename = name
			}
		}
	}

	return resp.Body(), filename, nil
}

// ListStaff fetches the staff accounts. Owner-only: staff callers get
// ErrForbidden, which the staff screen handles without touching the session.
func (c *APIClient) ListStaff(ctx context.Context) ([]models.StaffMember, error) {
	result := new([]models.StaffMember)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(result).
		Get("/users/staff")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return *result, nil
}

// CreateStaff adds a staff account. Owner-only.
func (c *APIClient) CreateStaff(ctx context.Context, req models.StaffCreate) (*models.StaffMember, error) {
	result := new(models.StaffMember)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		Post("/users/staff")
	if err := classify(resp, err); err != nil {
		return nil, err
	}
	return result, nil
}

// classify turns a transport result into the three-way outcome used across
// the console: nil (success), ErrAuthFailed / ErrForbidden, or *APIError. The
// client only classifies; reacting to ErrAuthFailed is the session guard's
// job, so a workflow mid-flight can still decide its own response.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("biztrack api: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code < http.StatusBadRequest:
		return nil
	case code == http.StatusUnauthorized:
		return ErrAuthFailed
	case code == http.StatusForbidden:
		return ErrForbidden
	default:
		return &APIError{StatusCode: code, Message: normalizeDetail(resp.Body(), code)}
	}
}

// classifyPublic is classify for unauthenticated routes, where a 401 carries
// no session meaning and surfaces inline like any other rejection.
func classifyPublic(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("biztrack api: %w", err)
	}

	if code := resp.StatusCode(); code >= http.StatusBadRequest {
		return &APIError{StatusCode: code, Message: normalizeDetail(resp.Body(), code)}
	}
	return nil
}
