package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/example/myxl-gateway/internal/auth"
	"github.com/example/myxl-gateway/internal/credential"
	gwerr "github.com/example/myxl-gateway/pkg/errors"
)

type OKResult struct {
	OK bool `json:"ok"`
}

type MessageResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type SubmitResult struct {
	OK         bool   `json:"ok"`
	ActiveUser *int64 `json:"active_user"`
}

// StatusResult is either {ok:true, balance, active_user} or {ok:false, message}.
type StatusResult struct {
	OK         bool            `json:"ok"`
	Balance    json.RawMessage `json:"balance,omitempty"`
	ActiveUser *int64          `json:"active_user,omitempty"`
	Message    string          `json:"message,omitempty"`
}

func (s *Service) activeUserPtr() *int64 {
	if n, ok := s.reg.ActiveUser(); ok {
		return &n
	}
	return nil
}

// SetAPIKey overwrites the process-wide credential.
func (s *Service) SetAPIKey(key string) (OKResult, error) {
	if err := s.reg.Credential.Set(key); err != nil {
		return OKResult{}, err
	}
	s.log.WithField("step", "SET_API_KEY").Info("api key updated")
	return OKResult{OK: true}, nil
}

// RequestOTP asks the upstream to send an OTP to contact.
func (s *Service) RequestOTP(ctx context.Context, contact string) (MessageResult, error) {
	if _, err := s.reg.Credential.Require(); err != nil {
		return MessageResult{}, err
	}
	err := s.auth.RequestOTP(ctx, strings.TrimSpace(contact))
	step("REQUEST_OTP", err)
	if err != nil {
		return MessageResult{}, gwerr.Unhandled("REQUEST_OTP", err)
	}
	return MessageResult{OK: true, Message: MsgOTPSent}, nil
}

// SubmitOTP verifies code, persists the issued tokens and makes contact the
// active identity. A contact that does not parse as a number is still
// verified but neither stored nor activated.
func (s *Service) SubmitOTP(ctx context.Context, contact, code string) (SubmitResult, error) {
	apiKey, err := s.reg.Credential.Require()
	if err != nil {
		return SubmitResult{}, err
	}
	contact, code = strings.TrimSpace(contact), strings.TrimSpace(code)

	tokens, err := s.auth.SubmitOTP(ctx, apiKey, contact, code)
	step("SUBMIT_OTP", err)
	if err != nil {
		return SubmitResult{}, gwerr.Unhandled("SUBMIT_OTP", err)
	}

	switch id := auth.ParseIdentity(contact); {
	case id.OK:
		if err := s.reg.Store.Save(ctx, id.Number, tokens); err != nil {
			step("SAVE_TOKENS", err)
			return SubmitResult{}, gwerr.Unhandled("SAVE_TOKENS", err)
		}
		s.reg.SetActiveUser(id.Number)
		s.log.WithField("step", "SUBMIT_OTP").WithField("active_user", id.Number).Info("active user switched")
	default:
		s.log.WithField("step", "SUBMIT_OTP").Warn("contact is not numeric, active user unchanged")
	}

	return SubmitResult{OK: true, ActiveUser: s.activeUserPtr()}, nil
}

// Status reports the active user's balance. Missing credential or session
// is answered with ok=false rather than an error.
func (s *Service) Status(ctx context.Context) (StatusResult, error) {
	apiKey, err := s.reg.Credential.Require()
	if err != nil {
		return StatusResult{OK: false, Message: credential.MsgMissing}, nil
	}
	tokens, ok, err := s.reg.ActiveTokens(ctx)
	if err != nil {
		return StatusResult{}, gwerr.Unhandled("LOAD_TOKENS", err)
	}
	if !ok {
		return StatusResult{OK: false, Message: MsgNoActiveUser}, nil
	}

	bal, err := s.catalog.Balance(ctx, apiKey, tokens.IDToken)
	step("BALANCE", err)
	if err != nil {
		return StatusResult{}, gwerr.Unhandled("BALANCE", err)
	}
	if len(bal) == 0 {
		bal = json.RawMessage("null")
	}
	return StatusResult{OK: true, Balance: bal, ActiveUser: s.activeUserPtr()}, nil
}

// requireSession returns the credential and the active bundle, or the
// Precondition / BadRequest error the caller should surface.
func (s *Service) requireSession(ctx context.Context, noSession string) (string, auth.Tokens, error) {
	apiKey, err := s.reg.Credential.Require()
	if err != nil {
		return "", auth.Tokens{}, err
	}
	tokens, ok, err := s.reg.ActiveTokens(ctx)
	if err != nil {
		return "", auth.Tokens{}, gwerr.Unhandled("LOAD_TOKENS", err)
	}
	if !ok {
		return "", auth.Tokens{}, gwerr.BadRequest(noSession)
	}
	return apiKey, tokens, nil
}

// SessionReady reports whether purchases could proceed right now.
func (s *Service) SessionReady(ctx context.Context) (bool, error) {
	if !s.reg.Credential.IsSet() {
		return false, nil
	}
	_, ok, err := s.reg.ActiveTokens(ctx)
	return ok, err
}
