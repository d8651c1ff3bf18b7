package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/example/myxl-gateway/internal/auth"
	"github.com/example/myxl-gateway/internal/clients"
	"github.com/example/myxl-gateway/internal/credential"
	"github.com/example/myxl-gateway/internal/queue"
)

var ErrMockUpstream = errors.New("upstream error")

// MockUpstream implements AuthAPI, CatalogAPI and PaymentAPI. Unset funcs
// return zero values; every call is counted.
type MockUpstream struct {
	RequestOTPFunc         func(ctx context.Context, contact string) error
	SubmitOTPFunc          func(ctx context.Context, apiKey, contact, code string) (auth.Tokens, error)
	BalanceFunc            func(ctx context.Context, apiKey, idToken string) (json.RawMessage, error)
	XUTPackagesFunc        func(ctx context.Context, apiKey string, tokens auth.Tokens) ([]json.RawMessage, error)
	PackageFunc            func(ctx context.Context, apiKey string, tokens auth.Tokens, code string) (json.RawMessage, error)
	PaymentMethodsFunc     func(ctx context.Context, apiKey string, tokens auth.Tokens, conf, target string) (clients.Negotiation, error)
	SettleQRISFunc         func(ctx context.Context, req clients.SettleRequest) (string, error)
	QRISCodeFunc           func(ctx context.Context, apiKey string, tokens auth.Tokens, txID string) (string, error)
	SettleMultipaymentFunc func(ctx context.Context, req clients.SettleRequest) (string, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockUpstream) hit(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = map[string]int{}
	}
	m.calls[name]++
}

func (m *MockUpstream) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *MockUpstream) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *MockUpstream) RequestOTP(ctx context.Context, contact string) error {
	m.hit("RequestOTP")
	if m.RequestOTPFunc != nil {
		return m.RequestOTPFunc(ctx, contact)
	}
	return nil
}

func (m *MockUpstream) SubmitOTP(ctx context.Context, apiKey, contact, code string) (auth.Tokens, error) {
	m.hit("SubmitOTP")
	if m.SubmitOTPFunc != nil {
		return m.SubmitOTPFunc(ctx, apiKey, contact, code)
	}
	return auth.Tokens{RefreshToken: "r-" + contact, IDToken: "id-" + contact}, nil
}

func (m *MockUpstream) Balance(ctx context.Context, apiKey, idToken string) (json.RawMessage, error) {
	m.hit("Balance")
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx, apiKey, idToken)
	}
	return json.RawMessage(`{"remaining":50000}`), nil
}

func (m *MockUpstream) XUTPackages(ctx context.Context, apiKey string, tokens auth.Tokens) ([]json.RawMessage, error) {
	m.hit("XUTPackages")
	if m.XUTPackagesFunc != nil {
		return m.XUTPackagesFunc(ctx, apiKey, tokens)
	}
	return nil, nil
}

func (m *MockUpstream) Package(ctx context.Context, apiKey string, tokens auth.Tokens, code string) (json.RawMessage, error) {
	m.hit("Package")
	if m.PackageFunc != nil {
		return m.PackageFunc(ctx, apiKey, tokens, code)
	}
	return nil, nil
}

func (m *MockUpstream) PaymentMethods(ctx context.Context, apiKey string, tokens auth.Tokens, conf, target string) (clients.Negotiation, error) {
	m.hit("PaymentMethods")
	if m.PaymentMethodsFunc != nil {
		return m.PaymentMethodsFunc(ctx, apiKey, tokens, conf, target)
	}
	return clients.Negotiation{TokenPayment: "tp", Timestamp: 1700000000}, nil
}

func (m *MockUpstream) SettleQRIS(ctx context.Context, req clients.SettleRequest) (string, error) {
	m.hit("SettleQRIS")
	if m.SettleQRISFunc != nil {
		return m.SettleQRISFunc(ctx, req)
	}
	return "", nil
}

func (m *MockUpstream) QRISCode(ctx context.Context, apiKey string, tokens auth.Tokens, txID string) (string, error) {
	m.hit("QRISCode")
	if m.QRISCodeFunc != nil {
		return m.QRISCodeFunc(ctx, apiKey, tokens, txID)
	}
	return "", nil
}

func (m *MockUpstream) SettleMultipayment(ctx context.Context, req clients.SettleRequest) (string, error) {
	m.hit("SettleMultipayment")
	if m.SettleMultipaymentFunc != nil {
		return m.SettleMultipaymentFunc(ctx, req)
	}
	return "", nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.PurchaseEvent
	err    error
}

func (p *recordingPublisher) PublishPurchase(_ context.Context, ev queue.PurchaseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc     *Service
	up      *MockUpstream
	reg     *auth.Registry
	events  *recordingPublisher
	renders int
	logHook *test.Hook
	setKey  func(string)
}

// newFixture builds a service whose credential resolves from nothing
// unless apiKey is non-empty.
func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()
	cred := credential.NewResolver("MYXL_GATEWAY_TEST_UNSET", t.TempDir(), "api.key")
	reg := auth.NewRegistry(cred, auth.NewMemoryStore())

	logger, hook := test.NewNullLogger()
	f := &fixture{
		up:      &MockUpstream{},
		reg:     reg,
		events:  &recordingPublisher{},
		logHook: hook,
	}
	f.setKey = func(k string) { _ = cred.Set(k) }
	f.svc = New(Deps{
		Registry: reg,
		Auth:     f.up,
		Catalog:  f.up,
		Payment:  f.up,
		Render: func(payload string) (string, error) {
			f.renders++
			return "PNG(" + payload + ")", nil
		},
		Events: f.events,
		Log:    logrus.NewEntry(logger),
	})
	if apiKey != "" {
		f.setKey(apiKey)
	}
	return f
}

// login stores tokens for number and makes it active.
func (f *fixture) login(t *testing.T, number int64) {
	t.Helper()
	if err := f.reg.Store.Save(context.Background(), number, auth.Tokens{RefreshToken: "r", IDToken: "id"}); err != nil {
		t.Fatal(err)
	}
	f.reg.SetActiveUser(number)
}
