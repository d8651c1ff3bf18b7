// myxl-gateway/internal/handlers/types.go
package handlers

// Form inputs. Pointer fields distinguish an absent field (422) from a
// blank one, which the gateway judges itself.
type APIKeyIn struct {
	APIKey *string `form:"api_key" validate:"required"`
}

type RequestOTPIn struct {
	Contact *string `form:"contact" validate:"required"`
}

type SubmitOTPIn struct {
	Contact *string `form:"contact" validate:"required"`
	OTP     *string `form:"otp" validate:"required"`
}

type PackageIn struct {
	Code *string `form:"code" validate:"required"`
}

type PurchaseQRISIn struct {
	Code  *string `form:"code" validate:"required"`
	Price *string `form:"price" validate:"required"`
}

type PurchaseEWalletIn struct {
	Code         *string `form:"code" validate:"required"`
	Price        *string `form:"price" validate:"required"`
	WalletNumber *string `form:"wallet_number" validate:"required"`
	Method       *string `form:"method"`
}

// ErrorOut mirrors the {"detail": ...} body clients already parse.
type ErrorOut struct {
	Detail any `json:"detail"`
}

type FieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}
