package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/example/myxl-gateway/internal/auth"
	"github.com/example/myxl-gateway/internal/clients"
	"github.com/example/myxl-gateway/internal/queue"
	gwerr "github.com/example/myxl-gateway/pkg/errors"
)

type PackagesResult struct {
	OK       bool              `json:"ok"`
	Packages []json.RawMessage `json:"packages"`
}

type PackageResult struct {
	OK      bool            `json:"ok"`
	Package json.RawMessage `json:"package"`
}

type QRISResult struct {
	OK            bool   `json:"ok"`
	TransactionID string `json:"transaction_id"`
	QRIS          string `json:"qris"`
	QRISPNGBase64 string `json:"qris_png_base64"`
}

type EWalletResult struct {
	OK            bool   `json:"ok"`
	TransactionID string `json:"transaction_id"`
}

type EWalletInput struct {
	Code         string
	Price        int64
	WalletNumber string
	Method       string
}

// XUTPackages lists the base packages for the active session. No session,
// an upstream failure and an empty list all read as "nothing to show".
func (s *Service) XUTPackages(ctx context.Context) (PackagesResult, error) {
	apiKey, tokens, err := s.requireSession(ctx, MsgNoPackages)
	if err != nil {
		return PackagesResult{}, err
	}
	pkgs, err := s.catalog.XUTPackages(ctx, apiKey, tokens)
	step("PACKAGES_XUT", err)
	if err != nil {
		s.log.WithError(err).WithField("step", "PACKAGES_XUT").Warn("load packages")
		return PackagesResult{}, gwerr.BadRequest(MsgNoPackages)
	}
	if len(pkgs) == 0 {
		return PackagesResult{}, gwerr.BadRequest(MsgNoPackages)
	}
	return PackagesResult{OK: true, Packages: pkgs}, nil
}

func (s *Service) Package(ctx context.Context, code string) (PackageResult, error) {
	apiKey, tokens, err := s.requireSession(ctx, MsgNotLoggedIn)
	if err != nil {
		return PackageResult{}, err
	}
	pkg, err := s.catalog.Package(ctx, apiKey, tokens, code)
	step("PACKAGE_DETAIL", err)
	if err != nil {
		return PackageResult{}, gwerr.Unhandled("PACKAGE_DETAIL", err)
	}
	if len(pkg) == 0 {
		pkg = json.RawMessage("null")
	}
	return PackageResult{OK: true, Package: pkg}, nil
}

// negotiate runs the payment-method lookup. Its token is single use, so
// every purchase attempt negotiates afresh.
func (s *Service) negotiate(ctx context.Context, apiKey string, tokens auth.Tokens, code string) (clients.Negotiation, error) {
	n, err := s.payment.PaymentMethods(ctx, apiKey, tokens, "", code)
	step("PAYMENT_METHODS", err)
	if err != nil {
		return clients.Negotiation{}, gwerr.Unhandled("PAYMENT_METHODS", err)
	}
	return n, nil
}

// PurchaseQRIS negotiates, settles and fetches the QRIS payload for code,
// then renders it as a PNG.
func (s *Service) PurchaseQRIS(ctx context.Context, code string, price int64) (QRISResult, error) {
	apiKey, tokens, err := s.requireSession(ctx, MsgNotLoggedIn)
	if err != nil {
		return QRISResult{}, err
	}
	log := s.log.WithFields(logrus.Fields{"package_code": code, "method": "QRIS"})

	n, err := s.negotiate(ctx, apiKey, tokens, code)
	if err != nil {
		return QRISResult{}, err
	}

	txID, err := s.payment.SettleQRIS(ctx, clients.SettleRequest{
		APIKey:        apiKey,
		Tokens:        tokens,
		Negotiation:   n,
		PaymentTarget: code,
		Price:         price,
	})
	step("SETTLE_QRIS", err)
	if err != nil {
		return QRISResult{}, gwerr.Unhandled("SETTLE_QRIS", err)
	}
	if txID == "" {
		log.Warn("settlement returned no transaction id")
		return QRISResult{}, gwerr.ServerError(MsgQRISSettleFail)
	}

	payload, err := s.payment.QRISCode(ctx, apiKey, tokens, txID)
	step("QRIS_CODE", err)
	if err != nil {
		return QRISResult{}, gwerr.Unhandled("QRIS_CODE", err)
	}
	if payload == "" {
		log.WithField("transaction_id", txID).Warn("empty qris payload")
		return QRISResult{}, gwerr.ServerError(MsgQRISCodeFail)
	}

	png, err := s.render(payload)
	step("RENDER_QR", err)
	if err != nil {
		return QRISResult{}, gwerr.Unhandled("RENDER_QR", err)
	}

	subscriber, _ := s.reg.ActiveUser()
	s.publishPurchase(ctx, queue.NewPurchaseEvent(txID, "QRIS", code, price, "", subscriber))
	log.WithField("transaction_id", txID).Info("qris transaction created")

	return QRISResult{OK: true, TransactionID: txID, QRIS: payload, QRISPNGBase64: png}, nil
}

// PurchaseEWallet negotiates and settles a multipayment transaction. The
// subscriber finishes the payment in the wallet app.
func (s *Service) PurchaseEWallet(ctx context.Context, in EWalletInput) (EWalletResult, error) {
	apiKey, tokens, err := s.requireSession(ctx, MsgNotLoggedIn)
	if err != nil {
		return EWalletResult{}, err
	}
	method := strings.TrimSpace(in.Method)
	if method == "" {
		method = DefaultWalletMethod
	}
	log := s.log.WithFields(logrus.Fields{"package_code": in.Code, "method": method})

	n, err := s.negotiate(ctx, apiKey, tokens, in.Code)
	if err != nil {
		return EWalletResult{}, err
	}

	txID, err := s.payment.SettleMultipayment(ctx, clients.SettleRequest{
		APIKey:        apiKey,
		Tokens:        tokens,
		Negotiation:   n,
		PaymentTarget: in.Code,
		Price:         in.Price,
		WalletNumber:  in.WalletNumber,
		PaymentMethod: method,
	})
	step("SETTLE_MULTIPAYMENT", err)
	if err != nil {
		return EWalletResult{}, gwerr.Unhandled("SETTLE_MULTIPAYMENT", err)
	}
	if txID == "" {
		log.Warn("settlement returned no transaction id")
		return EWalletResult{}, gwerr.ServerError(MsgEWalletSettleFail)
	}

	subscriber, _ := s.reg.ActiveUser()
	s.publishPurchase(ctx, queue.NewPurchaseEvent(txID, method, in.Code, in.Price, in.WalletNumber, subscriber))
	log.WithField("transaction_id", txID).Info("ewallet transaction created")

	return EWalletResult{OK: true, TransactionID: txID}, nil
}
