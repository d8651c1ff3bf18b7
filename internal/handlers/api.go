// myxl-gateway/internal/handlers/api.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/myxl-gateway/internal/gateway"
	gwerr "github.com/example/myxl-gateway/pkg/errors"
	m "github.com/example/myxl-gateway/pkg/metrics"
)

const serviceName = "myxl-gateway"

// Gateway is the subset of *gateway.Service the HTTP layer drives.
type Gateway interface {
	SetAPIKey(key string) (gateway.OKResult, error)
	RequestOTP(ctx context.Context, contact string) (gateway.MessageResult, error)
	SubmitOTP(ctx context.Context, contact, code string) (gateway.SubmitResult, error)
	Status(ctx context.Context) (gateway.StatusResult, error)
	XUTPackages(ctx context.Context) (gateway.PackagesResult, error)
	Package(ctx context.Context, code string) (gateway.PackageResult, error)
	PurchaseQRIS(ctx context.Context, code string, price int64) (gateway.QRISResult, error)
	PurchaseEWallet(ctx context.Context, in gateway.EWalletInput) (gateway.EWalletResult, error)
}

// State is what the HTML pages reflect.
type State interface {
	APIKeySet() bool
	ActiveUser() (int64, bool)
}

type Deps struct {
	Gateway   Gateway
	State     State
	StaticDir string
	Log       *logrus.Entry
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeValidation(w http.ResponseWriter, errs []FieldError) {
	writeJSON(w, http.StatusUnprocessableEntity, ErrorOut{Detail: errs})
}

// writeResult answers with res, or with the status and detail of err.
func writeResult(w http.ResponseWriter, r *http.Request, log *logrus.Entry, res any, err error) {
	if err != nil {
		code := gwerr.Status(err)
		if code >= http.StatusInternalServerError {
			entryFor(r, log).WithError(err).Error("request failed")
		}
		writeJSON(w, code, ErrorOut{Detail: gwerr.Detail(err)})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func SetAPIKeyHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in APIKeyIn
		if errs := bindForm(r, &in); errs != nil {
			writeValidation(w, errs)
			return
		}
		res, err := d.Gateway.SetAPIKey(*in.APIKey)
		writeResult(w, r, d.Log, res, err)
	}
}

func RequestOTPHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in RequestOTPIn
		if errs := bindForm(r, &in); errs != nil {
			writeValidation(w, errs)
			return
		}
		res, err := d.Gateway.RequestOTP(r.Context(), *in.Contact)
		writeResult(w, r, d.Log, res, err)
	}
}

func SubmitOTPHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in SubmitOTPIn
		if errs := bindForm(r, &in); errs != nil {
			writeValidation(w, errs)
			return
		}
		res, err := d.Gateway.SubmitOTP(r.Context(), *in.Contact, *in.OTP)
		writeResult(w, r, d.Log, res, err)
	}
}

func MeHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Gateway.Status(r.Context())
		writeResult(w, r, d.Log, res, err)
	}
}

func PackagesXUTHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := d.Gateway.XUTPackages(r.Context())
		writeResult(w, r, d.Log, res, err)
	}
}

func PackageHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in PackageIn
		if errs := bindQuery(r, &in); errs != nil {
			writeValidation(w, errs)
			return
		}
		res, err := d.Gateway.Package(r.Context(), *in.Code)
		writeResult(w, r, d.Log, res, err)
	}
}

func PurchaseQRISHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() { m.ObserveDuration(serviceName, "PURCHASE_QRIS", time.Since(start).Seconds()) }()

		var in PurchaseQRISIn
		if errs := bindForm(r, &in); errs != nil {
			writeValidation(w, errs)
			return
		}
		price, errs := parsePrice("price", *in.Price)
		if errs != nil {
			writeValidation(w, errs)
			return
		}
		res, err := d.Gateway.PurchaseQRIS(r.Context(), *in.Code, price)
		writeResult(w, r, d.Log, res, err)
	}
}

func PurchaseEWalletHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer func() { m.ObserveDuration(serviceName, "PURCHASE_EWALLET", time.Since(start).Seconds()) }()

		var in PurchaseEWalletIn
		if errs := bindForm(r, &in); errs != nil {
			writeValidation(w, errs)
			return
		}
		price, errs := parsePrice("price", *in.Price)
		if errs != nil {
			writeValidation(w, errs)
			return
		}
		method := gateway.DefaultWalletMethod
		if in.Method != nil {
			method = *in.Method
		}
		res, err := d.Gateway.PurchaseEWallet(r.Context(), gateway.EWalletInput{
			Code:         *in.Code,
			Price:        price,
			WalletNumber: *in.WalletNumber,
			Method:       method,
		})
		writeResult(w, r, d.Log, res, err)
	}
}

func HealthHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, active := d.State.ActiveUser()
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":             true,
			"service":        serviceName,
			"api_key_set":    d.State.APIKeySet(),
			"session_active": active,
			"ts":             time.Now().UTC(),
		})
	}
}
