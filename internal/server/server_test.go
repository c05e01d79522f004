package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	auditrepository "github.com/smallbiznis/visadesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/visadesk/internal/audit/service"
	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
	authrepository "github.com/smallbiznis/visadesk/internal/auth/repository"
	authservice "github.com/smallbiznis/visadesk/internal/auth/service"
	"github.com/smallbiznis/visadesk/internal/auth/token"
	"github.com/smallbiznis/visadesk/internal/authorization"
	catalogservice "github.com/smallbiznis/visadesk/internal/catalog/service"
	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/smallbiznis/visadesk/internal/docnumber"
	invoicedomain "github.com/smallbiznis/visadesk/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/visadesk/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/visadesk/internal/invoice/service"
	"github.com/smallbiznis/visadesk/internal/observability"
	orderdomain "github.com/smallbiznis/visadesk/internal/order/domain"
	orderrepository "github.com/smallbiznis/visadesk/internal/order/repository"
	orderservice "github.com/smallbiznis/visadesk/internal/order/service"
	paymentdomain "github.com/smallbiznis/visadesk/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/visadesk/internal/payment/repository"
	paymentservice "github.com/smallbiznis/visadesk/internal/payment/service"
	"github.com/smallbiznis/visadesk/internal/providers/pdf"
	"github.com/smallbiznis/visadesk/internal/storage"
	"github.com/smallbiznis/visadesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	env    *testutil.Env
	cat    testutil.Catalog
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := testutil.NewEnv(t)
	log := zap.NewNop()
	cfg := config.Config{
		Environment:     "test",
		UploadDir:       t.TempDir(),
		AuthJWTSecret:   "test-secret",
		AuthJWTIssuer:   "visadesk",
		AuthJWTAudience: "visadesk-admin",
		AuthTokenTTL:    time.Hour,
	}

	audit := auditservice.NewService(auditservice.Params{
		DB:    env.DB,
		Log:   log,
		GenID: env.Node,
		Clock: env.Clock,
		Repo:  auditrepository.Provide(),
	})
	enforcer, err := authorization.NewEnforcer(env.DB)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{
		DB:       env.DB,
		Log:      log,
		GenID:    env.Node,
		Clock:    env.Clock,
		Enforcer: enforcer,
		AuditSvc: audit,
	})
	require.NoError(t, authz.EnsureDefaults(context.Background()))

	issuer, err := token.NewIssuer(cfg, env.Clock)
	require.NoError(t, err)
	auth := authservice.New(authservice.Params{
		DB:       env.DB,
		Log:      log,
		GenID:    env.Node,
		Clock:    env.Clock,
		Repo:     authrepository.Provide(),
		Tokens:   issuer,
		AuthzSvc: authz,
		AuditSvc: audit,
	})
	_, err = auth.EnsureAdmin(context.Background(), authdomain.CreateUserRequest{
		Username: "admin",
		Password: "admin-pass",
		Name:     "Administrator",
	})
	require.NoError(t, err)

	uploads, err := storage.NewLocalStore(cfg, log)
	require.NoError(t, err)
	numbers := docnumber.New(env.Clock)

	srv := NewServer(ServerParams{
		Gin:      NewEngine(cfg, observability.Config{Environment: "test"}, nil),
		Cfg:      cfg,
		Log:      log,
		AuthSvc:  auth,
		AuthzSvc: authz,
		AuditSvc: audit,
		CatalogSvc: catalogservice.New(catalogservice.Params{
			DB:       env.DB,
			Log:      log,
			GenID:    env.Node,
			Clock:    env.Clock,
			Business: env.Business,
			AuditSvc: audit,
		}),
		OrderSvc: orderservice.New(orderservice.Params{
			DB:       env.DB,
			Log:      log,
			GenID:    env.Node,
			Clock:    env.Clock,
			Repo:     orderrepository.Provide(),
			Numbers:  numbers,
			Business: env.Business,
			AuditSvc: audit,
		}),
		InvoiceSvc: invoiceservice.New(invoiceservice.Params{
			DB:       env.DB,
			Log:      log,
			GenID:    env.Node,
			Clock:    env.Clock,
			Repo:     invoicerepository.Provide(),
			Numbers:  numbers,
			Business: env.Business,
			PDF:      pdf.New(),
			AuditSvc: audit,
		}),
		PaymentSvc: paymentservice.New(paymentservice.Params{
			DB:          env.DB,
			Log:         log,
			GenID:       env.Node,
			Clock:       env.Clock,
			Repo:        paymentrepository.Provide(),
			InvoiceRepo: invoicerepository.Provide(),
			Vouchers:    uploads,
			Business:    env.Business,
			AuditSvc:    audit,
		}),
		Business: env.Business,
		Uploads:  uploads,
	})

	ts := &testServer{t: t, engine: srv.Engine(), env: env, cat: env.SeedCatalog(t, "100.00")}
	ts.token = ts.login("admin", "admin-pass")
	return ts
}

func (ts *testServer) login(username, password string) string {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data authdomain.LoginResult `json:"data"`
	}
	decode(ts.t, rec, &resp)
	require.NotEmpty(ts.t, resp.Data.Token)
	return resp.Data.Token
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	decode(t, rec, &resp)
	return resp.Error
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	rec = ts.do(http.MethodGet, "/api/orders", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("x-access-token", ts.token)
	alt := httptest.NewRecorder()
	ts.engine.ServeHTTP(alt, req)
	assert.Equal(t, http.StatusOK, alt.Code)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "admin",
		"password": "nope-nope",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeListsRolePermissions(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/auth/me", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data struct {
			User        authdomain.User `json:"user"`
			Permissions []string        `json:"permissions"`
		} `json:"data"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "admin", resp.Data.User.Username)
	assert.Contains(t, resp.Data.Permissions, authorization.PermPaymentReview)
}

func TestUpdateOwnProfile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPut, "/api/auth/me", ts.token, map[string]string{"name": "Front Desk"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Data authdomain.User `json:"data"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "Front Desk", resp.Data.Name)
	assert.Equal(t, "admin", resp.Data.Username)

	rec = ts.do(http.MethodPut, "/api/auth/me", ts.token, map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPut, "/api/auth/me", "", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidationErrorEnvelope(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/orders", ts.token, map[string]any{
		"customer_id": ts.cat.Passport.ID.String(),
		"agent_id":    ts.cat.Agent.ID.String(),
		"items":       []any{},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_items", payload.Errors[0].Code)
	assert.Equal(t, "items", payload.Errors[0].Field)

	rec = ts.do(http.MethodGet, "/api/orders/"+ts.env.Node.Generate().String(), ts.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Type)
}

func TestOrderToPaidInvoiceFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/orders", ts.token, map[string]any{
		"customer_id": ts.cat.Passport.ID.String(),
		"agent_id":    ts.cat.Agent.ID.String(),
		"order_date":  "2024-05-01",
		"items": []map[string]any{{
			"product_id":             ts.cat.Product.ID.String(),
			"product_quote_id":       ts.cat.Quote.ID.String(),
			"agent_product_price_id": ts.cat.Price.ID.String(),
			"quantity":               2,
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Data orderdomain.CreateOrderResponse `json:"data"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "ORD202405010001", created.Data.OrderNo)

	rec = ts.do(http.MethodPost, "/api/invoices", ts.token, map[string]any{
		"customer_id": ts.cat.Passport.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var invoice struct {
		Data invoicedomain.Invoice `json:"data"`
	}
	decode(t, rec, &invoice)
	invoiceID := invoice.Data.ID.String()

	rec = ts.do(http.MethodPost, "/api/invoices/"+invoiceID+"/orders", ts.token, map[string]any{
		"orderIds": []string{created.Data.ID},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var linked struct {
		Data invoicedomain.LinkOrdersResponse `json:"data"`
	}
	decode(t, rec, &linked)
	assert.Equal(t, 1, linked.Data.Linked)
	assert.Equal(t, "200.00", linked.Data.Invoice.TotalAmount.StringFixed(2))

	rec = ts.do(http.MethodPost, "/api/invoices/"+invoiceID+"/orders", ts.token, map[string]any{
		"orderIds": []string{created.Data.ID},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	payment := ts.submitPayment(invoiceID, "120", "receipt.png")
	assert.Equal(t, paymentdomain.StatusPending, payment.Status)
	require.True(t, strings.HasPrefix(payment.VoucherPath, storage.PublicPrefix+"/"), payment.VoucherPath)

	rec = ts.do(http.MethodGet, payment.VoucherPath, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fake-png", rec.Body.String())

	rec = ts.do(http.MethodPut, "/api/payments/"+payment.ID.String()+"/review", ts.token, map[string]string{
		"status": "approved",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/invoices/"+invoiceID, ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var row struct {
		Data invoicedomain.InvoiceRow `json:"data"`
	}
	decode(t, rec, &row)
	assert.Equal(t, invoicedomain.StatusPartiallyPaid, row.Data.Status)
	assert.Equal(t, "120.00", row.Data.PaidAmount.StringFixed(2))
	assert.Equal(t, "80.00", row.Data.UnpaidAmount.StringFixed(2))
	assert.Equal(t, "Alice Tan", row.Data.CustomerName)

	rec = ts.do(http.MethodPut, "/api/payments/"+payment.ID.String()+"/review", ts.token, map[string]string{
		"status": "rejected",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(http.MethodPost, "/api/invoices/"+invoiceID+"/payments", ts.token, map[string]any{
		"amount":         "90",
		"payment_method": "cash",
		"payment_date":   "2024-05-02",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "amount_exceeds_unpaid", decodeError(t, rec).Errors[0].Code)

	rec = ts.do(http.MethodGet, "/api/invoices/"+invoiceID+"/pdf", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

	rec = ts.do(http.MethodGet, "/api/system/operation-logs?action=payment.review", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var logs struct {
		Total int64 `json:"total"`
	}
	decode(t, rec, &logs)
	assert.Equal(t, int64(1), logs.Total)
}

func (ts *testServer) submitPayment(invoiceID, amount, filename string) paymentdomain.Payment {
	ts.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(ts.t, w.WriteField("amount", amount))
	require.NoError(ts.t, w.WriteField("payment_method", "bank_transfer"))
	require.NoError(ts.t, w.WriteField("payment_date", "2024-05-01"))
	part, err := w.CreateFormFile("voucher", filename)
	require.NoError(ts.t, err)
	_, err = part.Write([]byte("fake-png"))
	require.NoError(ts.t, err)
	require.NoError(ts.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/invoices/"+invoiceID+"/payments", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.token)
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data paymentdomain.Payment `json:"data"`
	}
	decode(ts.t, rec, &resp)
	return resp.Data
}

func TestOperatorCannotReviewPayments(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/system/users", ts.token, map[string]string{
		"username": "olive",
		"password": "operator-pass",
		"name":     "Olive",
		"role":     authorization.RoleOperator,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	operator := ts.login("olive", "operator-pass")

	rec = ts.do(http.MethodGet, "/api/orders", operator, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPut, "/api/payments/"+ts.env.Node.Generate().String()+"/review", operator, map[string]string{
		"status": "approved",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/system/users", operator, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodPost, "/api/system/users", ts.token, map[string]string{
		"username": "olive",
		"password": "operator-pass",
		"name":     "Olive again",
		"role":     authorization.RoleOperator,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDisabledUserTokenIsRejected(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/system/users", ts.token, map[string]string{
		"username": "frank",
		"password": "finance-pass",
		"name":     "Frank",
		"role":     authorization.RoleFinance,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var user struct {
		Data authdomain.User `json:"data"`
	}
	decode(t, rec, &user)
	finance := ts.login("frank", "finance-pass")

	rec = ts.do(http.MethodPut, "/api/system/users/"+user.Data.ID.String()+"/status", ts.token, map[string]string{
		"status": string(authdomain.UserStatusDisabled),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/invoices", finance, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
