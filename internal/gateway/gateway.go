// Package gateway sequences login and purchase calls against the upstream
// MyXL API on behalf of the single process-wide session.
//
// Every operation checks its local preconditions (credential, active
// session) before the first upstream call. Upstream failures are only
// inspected at fixed checkpoints (empty transaction id, empty QRIS
// payload); anything else an upstream returns as an error surfaces as an
// Unhandled failure. Nothing is retried.
package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/myxl-gateway/internal/auth"
	"github.com/example/myxl-gateway/internal/clients"
	"github.com/example/myxl-gateway/internal/queue"
	m "github.com/example/myxl-gateway/pkg/metrics"
)

const serviceName = "gateway"

// User-facing messages.
const (
	MsgOTPSent           = "OTP dikirim (cek SMS MyXL Anda)."
	MsgNoActiveUser      = "Belum login / belum ada user aktif."
	MsgNotLoggedIn       = "Belum login."
	MsgNoPackages        = "Tidak ada token aktif atau gagal memuat paket."
	MsgQRISSettleFail    = "Gagal membuat transaksi QRIS."
	MsgQRISCodeFail      = "Gagal mengambil QRIS code."
	MsgEWalletSettleFail = "Gagal membuat transaksi eWallet."
)

// DefaultWalletMethod is used when an eWallet purchase names no method.
const DefaultWalletMethod = "DANA"

type AuthAPI interface {
	RequestOTP(ctx context.Context, contact string) error
	SubmitOTP(ctx context.Context, apiKey, contact, code string) (auth.Tokens, error)
}

type CatalogAPI interface {
	Balance(ctx context.Context, apiKey, idToken string) (json.RawMessage, error)
	XUTPackages(ctx context.Context, apiKey string, tokens auth.Tokens) ([]json.RawMessage, error)
	Package(ctx context.Context, apiKey string, tokens auth.Tokens, code string) (json.RawMessage, error)
}

type PaymentAPI interface {
	PaymentMethods(ctx context.Context, apiKey string, tokens auth.Tokens, tokenConfirmation, target string) (clients.Negotiation, error)
	SettleQRIS(ctx context.Context, req clients.SettleRequest) (string, error)
	QRISCode(ctx context.Context, apiKey string, tokens auth.Tokens, txID string) (string, error)
	SettleMultipayment(ctx context.Context, req clients.SettleRequest) (string, error)
}

// Renderer turns a QRIS payload into a base64 PNG.
type Renderer func(payload string) (string, error)

type Deps struct {
	Registry *auth.Registry
	Auth     AuthAPI
	Catalog  CatalogAPI
	Payment  PaymentAPI
	Render   Renderer
	Events   queue.Publisher
	Log      *logrus.Entry
}

type Service struct {
	reg     *auth.Registry
	auth    AuthAPI
	catalog CatalogAPI
	payment PaymentAPI
	render  Renderer
	events  queue.Publisher
	log     *logrus.Entry
}

func New(d Deps) *Service {
	s := &Service{
		reg:     d.Registry,
		auth:    d.Auth,
		catalog: d.Catalog,
		payment: d.Payment,
		render:  d.Render,
		events:  d.Events,
		log:     d.Log,
	}
	if s.events == nil {
		s.events = queue.Nop{}
	}
	if s.log == nil {
		s.log = logrus.WithField("service", serviceName)
	}
	return s
}

// APIKeySet reports whether a credential resolves.
func (s *Service) APIKeySet() bool { return s.reg.Credential.IsSet() }

func (s *Service) ActiveUser() (int64, bool) { return s.reg.ActiveUser() }

func step(name string, err error) {
	status := "SUCCESS"
	if err != nil {
		status = "FAILED"
	}
	m.IncRequest(serviceName, status, name)
}

// publishPurchase is best effort: the transaction already exists upstream.
func (s *Service) publishPurchase(ctx context.Context, ev queue.PurchaseEvent) {
	m.IncPurchase(ev.Method)
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.PublishPurchase(pctx, ev); err != nil {
		step("PUBLISH_EVENT", err)
		s.log.WithError(err).WithField("transaction_id", ev.TransactionID).Warn("publish purchase event")
		return
	}
	step("PUBLISH_EVENT", nil)
}
