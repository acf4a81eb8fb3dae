package stub

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/biztrack/console/internal/domain/models"
)

const ctxAccountKey = "stub.account"

// Handler serves the BizTrack remote contract over the in-memory store.
type Handler struct {
	store  *Store
	logger *zap.Logger
	now    func() time.Time
}

// NewHandler constructs the HTTP handler adapter.
func NewHandler(store *Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

func detail(message string) gin.H {
	return gin.H{"detail": message}
}

// fieldDetail renders a validation failure the way the production service
// does: a list of located field errors.
func fieldDetail(field, message string) gin.H {
	return gin.H{"detail": []gin.H{{
		"loc":  []string{"body", field},
		"msg":  message,
		"type": "value_error",
	}}}
}

// Register creates a business and its owner account.
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detail("invalid request body"))
		return
	}
	if req.BusinessName == "" || req.Name == "" || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusUnprocessableEntity, detail("all fields are required"))
		return
	}

	token, err := h.store.Register(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, detail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, models.TokenResponse{AccessToken: token})
}

// Login exchanges credentials for a bearer token.
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detail("invalid request body"))
		return
	}

	token, err := h.store.Login(req)
	if err != nil {
		c.JSON(http.StatusUnauthorized, detail("Incorrect email or password"))
		return
	}
	c.JSON(http.StatusOK, models.TokenResponse{AccessToken: token})
}

// AuthRequired resolves the bearer token; absent or unknown tokens get 401.
func (h *Handler) AuthRequired(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, detail("Could not validate credentials"))
		return
	}

	acct, err := h.store.Authenticate(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, detail("Could not validate credentials"))
		return
	}

	c.Set(ctxAccountKey, acct)
	c.Next()
}

func currentAccount(c *gin.Context) account {
	return c.MustGet(ctxAccountKey).(account)
}

// Me returns the authenticated account.
func (h *Handler) Me(c *gin.Context) {
	acct := currentAccount(c)
	c.JSON(http.StatusOK, models.User{Name: acct.Name, Role: acct.Role})
}

// ListCustomers returns the business's customers.
func (h *Handler) ListCustomers(c *gin.Context) {
	acct := currentAccount(c)
	c.JSON(http.StatusOK, h.store.ListCustomers(acct.BusinessID))
}

// CreateCustomer registers a customer.
func (h *Handler) CreateCustomer(c *gin.Context) {
	var req models.CustomerCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detail("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusUnprocessableEntity, fieldDetail("name", "field required"))
		return
	}

	acct := currentAccount(c)
	c.JSON(http.StatusOK, h.store.AddCustomer(acct.BusinessID, req))
}

// ListSales returns the sales history, most recent first.
func (h *Handler) ListSales(c *gin.Context) {
	acct := currentAccount(c)
	c.JSON(http.StatusOK, h.store.ListSales(acct.BusinessID))
}

// CreateSale records a transaction.
func (h *Handler) CreateSale(c *gin.Context) {
	var req models.SaleCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detail("invalid request body"))
		return
	}
	if req.Amount <= 0 {
		c.JSON(http.StatusUnprocessableEntity, fieldDetail("amount", "ensure this value is greater than 0"))
		return
	}

	acct := currentAccount(c)
	c.JSON(http.StatusOK, h.store.AddSale(acct.BusinessID, req, h.now()))
}

func parseRangeQuery(c *gin.Context) models.Range {
	rng, err := models.ParseRange(c.DefaultQuery("range", string(models.DefaultRange)))
	if err != nil {
		return models.DefaultRange
	}
	return rng
}

// Summary returns the aggregated analytics for the requested range.
func (h *Handler) Summary(c *gin.Context) {
	acct := currentAccount(c)
	c.JSON(http.StatusOK, h.store.Summarize(acct.BusinessID, parseRangeQuery(c), h.now()))
}

// Export streams the range's sales as a CSV attachment.
func (h *Handler) Export(c *gin.Context) {
	acct := currentAccount(c)
	rng := parseRangeQuery(c)
	rows := h.store.ExportRows(acct.BusinessID, rng, h.now())

	var buf strings.Builder
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "amount", "payment_method", "customer_id", "customer_name", "created_at_utc"})
	for _, row := range rows {
		_ = w.Write(row)
	}
	w.Flush()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="sales_%s.csv"`, rng))
	c.Data(http.StatusOK, "text/csv", []byte(buf.String()))
}

// ListStaff is owner-only; staff callers get 403, never a session teardown.
func (h *Handler) ListStaff(c *gin.Context) {
	acct := currentAccount(c)
	if acct.Role != models.RoleOwner {
		c.JSON(http.StatusForbidden, detail("Only the owner can manage staff"))
		return
	}
	c.JSON(http.StatusOK, h.store.ListStaff(acct.BusinessID))
}

// CreateStaff adds a staff account. Owner-only.
func (h *Handler) CreateStaff(c *gin.Context) {
	acct := currentAccount(c)
	if acct.Role != models.RoleOwner {
		c.JSON(http.StatusForbidden, detail("Only the owner can manage staff"))
		return
	}

	var req models.StaffCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, detail("invalid request body"))
		return
	}
	for field, value := range map[string]string{
		"name": req.Name, "email": req.Email, "password": req.Password, "role": req.Role,
	} {
		if value == "" {
			c.JSON(http.StatusUnprocessableEntity, fieldDetail(field, "field required"))
			return
		}
	}

	member, err := h.store.AddStaff(acct.BusinessID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, detail(err.Error()))
		return
	}
	c.JSON(http.StatusOK, member)
}
