package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/myxl-gateway/internal/gateway"
	gwerr "github.com/example/myxl-gateway/pkg/errors"
)

// MockGateway implements Gateway and State for testing.
type MockGateway struct {
	SetAPIKeyFunc       func(key string) (gateway.OKResult, error)
	RequestOTPFunc      func(ctx context.Context, contact string) (gateway.MessageResult, error)
	SubmitOTPFunc       func(ctx context.Context, contact, code string) (gateway.SubmitResult, error)
	StatusFunc          func(ctx context.Context) (gateway.StatusResult, error)
	XUTPackagesFunc     func(ctx context.Context) (gateway.PackagesResult, error)
	PackageFunc         func(ctx context.Context, code string) (gateway.PackageResult, error)
	PurchaseQRISFunc    func(ctx context.Context, code string, price int64) (gateway.QRISResult, error)
	PurchaseEWalletFunc func(ctx context.Context, in gateway.EWalletInput) (gateway.EWalletResult, error)

	KeySet bool
	Active *int64
	called bool
}

func (m *MockGateway) SetAPIKey(key string) (gateway.OKResult, error) {
	m.called = true
	if m.SetAPIKeyFunc != nil {
		return m.SetAPIKeyFunc(key)
	}
	return gateway.OKResult{OK: true}, nil
}

func (m *MockGateway) RequestOTP(ctx context.Context, contact string) (gateway.MessageResult, error) {
	m.called = true
	if m.RequestOTPFunc != nil {
		return m.RequestOTPFunc(ctx, contact)
	}
	return gateway.MessageResult{OK: true, Message: gateway.MsgOTPSent}, nil
}

func (m *MockGateway) SubmitOTP(ctx context.Context, contact, code string) (gateway.SubmitResult, error) {
	m.called = true
	if m.SubmitOTPFunc != nil {
		return m.SubmitOTPFunc(ctx, contact, code)
	}
	return gateway.SubmitResult{OK: true}, nil
}

func (m *MockGateway) Status(ctx context.Context) (gateway.StatusResult, error) {
	m.called = true
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return gateway.StatusResult{}, nil
}

func (m *MockGateway) XUTPackages(ctx context.Context) (gateway.PackagesResult, error) {
	m.called = true
	if m.XUTPackagesFunc != nil {
		return m.XUTPackagesFunc(ctx)
	}
	return gateway.PackagesResult{}, nil
}

func (m *MockGateway) Package(ctx context.Context, code string) (gateway.PackageResult, error) {
	m.called = true
	if m.PackageFunc != nil {
		return m.PackageFunc(ctx, code)
	}
	return gateway.PackageResult{}, nil
}

func (m *MockGateway) PurchaseQRIS(ctx context.Context, code string, price int64) (gateway.QRISResult, error) {
	m.called = true
	if m.PurchaseQRISFunc != nil {
		return m.PurchaseQRISFunc(ctx, code, price)
	}
	return gateway.QRISResult{}, nil
}

func (m *MockGateway) PurchaseEWallet(ctx context.Context, in gateway.EWalletInput) (gateway.EWalletResult, error) {
	m.called = true
	if m.PurchaseEWalletFunc != nil {
		return m.PurchaseEWalletFunc(ctx, in)
	}
	return gateway.EWalletResult{}, nil
}

func (m *MockGateway) APIKeySet() bool { return m.KeySet }

func (m *MockGateway) ActiveUser() (int64, bool) {
	if m.Active == nil {
		return 0, false
	}
	return *m.Active, true
}

func newTestRouter(t *testing.T) (*MockGateway, http.Handler, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	mock := &MockGateway{}
	h := NewRouter(Deps{Gateway: mock, State: mock, Log: logrus.NewEntry(logger)})
	return mock, h, hook
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func postMultipart(t *testing.T, h http.Handler, path string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSetAPIKeyMissingField(t *testing.T) {
	mock, h, _ := newTestRouter(t)

	w := postForm(h, "/api/api-key", url.Values{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, mock.called)

	detail := decode(t, w)["detail"].([]any)
	require.Len(t, detail, 1)
	assert.Equal(t, []any{"body", "api_key"}, detail[0].(map[string]any)["loc"])
}

func TestSetAPIKeyMultipart(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	var got string
	mock.SetAPIKeyFunc = func(key string) (gateway.OKResult, error) {
		got = key
		return gateway.OKResult{OK: true}, nil
	}

	w := postMultipart(t, h, "/api/api-key", map[string]string{"api_key": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "secret", got)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = postMultipart(t, h, "/api/api-key", map[string]string{"other": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestPurchaseEWalletMultipart(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	var got gateway.EWalletInput
	mock.PurchaseEWalletFunc = func(_ context.Context, in gateway.EWalletInput) (gateway.EWalletResult, error) {
		got = in
		return gateway.EWalletResult{OK: true, TransactionID: "tx"}, nil
	}

	w := postMultipart(t, h, "/api/purchase/ewallet", map[string]string{
		"code": "PKG", "price": "7000", "wallet_number": "0812", "method": "OVO",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, gateway.EWalletInput{Code: "PKG", Price: 7000, WalletNumber: "0812", Method: "OVO"}, got)
}

func TestSetAPIKeyBlankIsBadRequest(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	mock.SetAPIKeyFunc = func(key string) (gateway.OKResult, error) {
		assert.Equal(t, "  ", key)
		return gateway.OKResult{}, gwerr.InvalidInput("API key kosong.")
	}

	w := postForm(h, "/api/api-key", url.Values{"api_key": {"  "}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "API key kosong.", decode(t, w)["detail"])
}

func TestRequestOTPPrecondition(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	mock.RequestOTPFunc = func(context.Context, string) (gateway.MessageResult, error) {
		return gateway.MessageResult{}, gwerr.Precondition("Set MYXL_API_KEY terlebih dahulu.")
	}

	w := postForm(h, "/api/login/request-otp", url.Values{"contact": {"6281234567890"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Set MYXL_API_KEY terlebih dahulu.", decode(t, w)["detail"])
}

func TestSubmitOTP(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	active := int64(6281234567890)
	mock.SubmitOTPFunc = func(_ context.Context, contact, code string) (gateway.SubmitResult, error) {
		assert.Equal(t, "6281234567890", contact)
		assert.Equal(t, "123456", code)
		return gateway.SubmitResult{OK: true, ActiveUser: &active}, nil
	}

	w := postForm(h, "/api/login/submit-otp", url.Values{"contact": {"6281234567890"}, "otp": {"123456"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"active_user":6281234567890}`, w.Body.String())

	w = postForm(h, "/api/login/submit-otp", url.Values{"contact": {"6281234567890"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestMeNotLoggedInIs200(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	mock.StatusFunc = func(context.Context) (gateway.StatusResult, error) {
		return gateway.StatusResult{OK: false, Message: gateway.MsgNoActiveUser}, nil
	}

	w := get(h, "/api/me")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":false,"message":"Belum login / belum ada user aktif."}`, w.Body.String())
}

func TestMeWithBalance(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	active := int64(1)
	mock.StatusFunc = func(context.Context) (gateway.StatusResult, error) {
		return gateway.StatusResult{OK: true, Balance: json.RawMessage(`{"remaining":5}`), ActiveUser: &active}, nil
	}

	w := get(h, "/api/me")
	assert.JSONEq(t, `{"ok":true,"balance":{"remaining":5},"active_user":1}`, w.Body.String())
}

func TestPackageRequiresCode(t *testing.T) {
	mock, h, _ := newTestRouter(t)

	w := get(h, "/api/package")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	mock.PackageFunc = func(_ context.Context, code string) (gateway.PackageResult, error) {
		return gateway.PackageResult{OK: true, Package: json.RawMessage(`{"code":"` + code + `"}`)}, nil
	}
	w = get(h, "/api/package?code=XUT1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"package":{"code":"XUT1"}}`, w.Body.String())
}

func TestPackagesXUTBadRequest(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	mock.XUTPackagesFunc = func(context.Context) (gateway.PackagesResult, error) {
		return gateway.PackagesResult{}, gwerr.BadRequest(gateway.MsgNoPackages)
	}

	w := get(h, "/api/packages/xut")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, gateway.MsgNoPackages, decode(t, w)["detail"])
}

func TestPurchaseQRIS(t *testing.T) {
	mock, h, hook := newTestRouter(t)
	mock.PurchaseQRISFunc = func(_ context.Context, code string, price int64) (gateway.QRISResult, error) {
		assert.Equal(t, "PKG", code)
		assert.Equal(t, int64(25000), price)
		return gateway.QRISResult{OK: true, TransactionID: "tx", QRIS: "000201", QRISPNGBase64: "iVBOR"}, nil
	}

	w := postForm(h, "/api/purchase/qris", url.Values{"code": {"PKG"}, "price": {"25000"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"transaction_id":"tx","qris":"000201","qris_png_base64":"iVBOR"}`, w.Body.String())

	w = postForm(h, "/api/purchase/qris", url.Values{"code": {"PKG"}, "price": {"murah"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	mock.PurchaseQRISFunc = func(context.Context, string, int64) (gateway.QRISResult, error) {
		return gateway.QRISResult{}, gwerr.ServerError(gateway.MsgQRISSettleFail)
	}
	w = postForm(h, "/api/purchase/qris", url.Values{"code": {"PKG"}, "price": {"1"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, gateway.MsgQRISSettleFail, decode(t, w)["detail"])
	assert.NotEmpty(t, hook.AllEntries())
}

func TestPurchaseQRISPriceParsing(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	var got int64
	mock.PurchaseQRISFunc = func(_ context.Context, _ string, price int64) (gateway.QRISResult, error) {
		got = price
		return gateway.QRISResult{OK: true}, nil
	}

	for in, want := range map[string]int64{"100": 100, " 100": 100, "+5": 5, "-5": -5} {
		w := postForm(h, "/api/purchase/qris", url.Values{"code": {"PKG"}, "price": {in}})
		require.Equal(t, http.StatusOK, w.Code, "price %q: %s", in, w.Body.String())
		assert.Equal(t, want, got, "price %q", in)
	}

	for _, in := range []string{"", "1.5", "12abc"} {
		w := postForm(h, "/api/purchase/qris", url.Values{"code": {"PKG"}, "price": {in}})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "price %q", in)
	}
}

func TestPurchaseUnhandledHidesCause(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	mock.PurchaseQRISFunc = func(context.Context, string, int64) (gateway.QRISResult, error) {
		return gateway.QRISResult{}, gwerr.Unhandled("SETTLE_QRIS", assert.AnError)
	}

	w := postForm(h, "/api/purchase/qris", url.Values{"code": {"PKG"}, "price": {"1"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal Server Error", decode(t, w)["detail"])
}

func TestPurchaseEWalletDefaultMethod(t *testing.T) {
	mock, h, _ := newTestRouter(t)
	var got gateway.EWalletInput
	mock.PurchaseEWalletFunc = func(_ context.Context, in gateway.EWalletInput) (gateway.EWalletResult, error) {
		got = in
		return gateway.EWalletResult{OK: true, TransactionID: "tx-w"}, nil
	}

	w := postForm(h, "/api/purchase/ewallet", url.Values{"code": {"PKG"}, "price": {"5000"}, "wallet_number": {"0812"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, gateway.EWalletInput{Code: "PKG", Price: 5000, WalletNumber: "0812", Method: "DANA"}, got)

	w = postForm(h, "/api/purchase/ewallet", url.Values{"code": {"PKG"}, "price": {"5000"}, "wallet_number": {"0812"}, "method": {"OVO"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OVO", got.Method)

	w = postForm(h, "/api/purchase/ewallet", url.Values{"code": {"PKG"}, "price": {"5000"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUnmatchedRoutesAreLogged(t *testing.T) {
	_, h, hook := newTestRouter(t)

	for path, code := range map[string]int{"/api/purchase/qris": http.StatusMethodNotAllowed, "/nope": http.StatusNotFound} {
		hook.Reset()
		w := get(h, path)
		assert.Equal(t, code, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)

		entry := hook.LastEntry()
		require.NotNil(t, entry, path)
		assert.Equal(t, "http request", entry.Message)
		assert.Equal(t, code, entry.Data["status"])
		assert.Equal(t, path, entry.Data["path"])
		assert.NotEmpty(t, entry.Data["request_id"])
	}
}

func TestPagesReflectState(t *testing.T) {
	mock, h, _ := newTestRouter(t)

	w := get(h, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "belum diset")
	assert.Contains(t, w.Body.String(), "tidak ada")

	active := int64(6281234567890)
	mock.KeySet, mock.Active = true, &active

	w = get(h, "/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "terpasang")
	assert.Contains(t, w.Body.String(), "6281234567890")
	assert.Contains(t, w.Body.String(), "purchase-qris-form")

	w = get(h, "/login")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "Set MYXL_API_KEY")
}

func TestHealthAndRequestID(t *testing.T) {
	_, h, _ := newTestRouter(t)

	w := get(h, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, false, body["api_key_set"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	_, h, _ := newTestRouter(t)
	_ = get(h, "/healthz")

	w := get(h, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "myxl_requests_total")
}
