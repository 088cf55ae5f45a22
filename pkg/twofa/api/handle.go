package api

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/copier"
	"github.com/tendant/simple-2fa/pkg/authn"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/twofa"
)

const (
	msgOtpSent  = "OTP sent"
	msgVerified = "Verified"
	msgEnabled  = "Two-factor authentication has been enabled"
	msgDisabled = "Two-factor authentication has been disabled"
)

// TwoFaHandler returns a http.Handler for the 2FA API. Every route except the
// OpenAPI document requires a token signed by ja.
func TwoFaHandler(h *Handle, ja *jwtauth.JWTAuth) http.Handler {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(RawSpec())
	})

	r.Group(func(r chi.Router) {
		r.Use(authn.Verifier(ja))
		r.Use(authn.Middleware)

		r.Post("/send/otp", h.PostSendOtp)
		r.Get("/google/authenticator/qr", h.GetAuthenticatorQr)
		r.Post("/verify/otp", h.PostVerifyOtp)
		r.Get("/enable/2fa", h.GetStatus)
		r.Post("/enable/2fa", h.PostEnable)
		r.Delete("/enable/2fa", h.DeleteEnable)
		r.Post("/verify/otp/enable", h.PostVerifyEnable)
	})

	return r
}

type MethodRequest struct {
	Method string `json:"method" validate:"required,oneof=phone_number email google_authenticator"`
}

type VerifyRequest struct {
	Method string `json:"method" validate:"required,oneof=phone_number email google_authenticator"`
	Code   string `json:"code" validate:"required,len=6,number"`
}

type LinkResponse struct {
	Link    string `json:"link"`
	QRImage string `json:"qr_image,omitempty"`
}

type EnableResponse struct {
	Link string `json:"link,omitempty"`
}

type StatusResponse struct {
	Enabled bool     `json:"enabled"`
	Methods []string `json:"methods"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type Handle struct {
	twoFaService twofa.TwoFactorService
	validate     *validator.Validate
}

// NewHandle creates a new Handle
func NewHandle(twoFaService twofa.TwoFactorService) *Handle {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handle{
		twoFaService: twoFaService,
		validate:     v,
	}
}

// Send a login verification code
// (POST /send/otp)
func (h *Handle) PostSendOtp(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}
	var data MethodRequest
	if !h.decode(w, r, &data) {
		return
	}

	if err := h.twoFaService.SendVerification(r.Context(), subject, data.Method); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: msgOtpSent})
}

// Get the authenticator enrollment link
// (GET /google/authenticator/qr)
func (h *Handle) GetAuthenticatorQr(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	link, err := h.twoFaService.AuthenticatorLink(r.Context(), subject)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var resp LinkResponse
	if err := copier.Copy(&resp, &link); err != nil {
		h.writeError(w, r, apperrors.InternalWrap(err, "failed to map authenticator link"))
		return
	}
	render.JSON(w, r, resp)
}

// Verify a login code
// (POST /verify/otp)
func (h *Handle) PostVerifyOtp(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}
	var data VerifyRequest
	if !h.decode(w, r, &data) {
		return
	}

	if err := h.twoFaService.VerifyLogin(r.Context(), subject, data.Method, data.Code); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: msgVerified})
}

// Get the 2FA status of the caller
// (GET /enable/2fa)
func (h *Handle) GetStatus(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	status, err := h.twoFaService.Status(r.Context(), subject)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := StatusResponse{Methods: []string{}}
	if err := copier.Copy(&resp, &status); err != nil {
		h.writeError(w, r, apperrors.InternalWrap(err, "failed to map 2FA status"))
		return
	}
	if resp.Methods == nil {
		resp.Methods = []string{}
	}
	render.JSON(w, r, resp)
}

// Start enabling a 2FA method
// (POST /enable/2fa)
func (h *Handle) PostEnable(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}
	var data MethodRequest
	if !h.decode(w, r, &data) {
		return
	}

	link, err := h.twoFaService.RequestEnable(r.Context(), subject, data.Method)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, EnableResponse{Link: link})
}

// Disable 2FA
// (DELETE /enable/2fa)
func (h *Handle) DeleteEnable(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}

	if err := h.twoFaService.Disable(r.Context(), subject); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: msgDisabled})
}

// Verify the enrollment code and enable the method
// (POST /verify/otp/enable)
func (h *Handle) PostVerifyEnable(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.subject(w, r)
	if !ok {
		return
	}
	var data VerifyRequest
	if !h.decode(w, r, &data) {
		return
	}

	if err := h.twoFaService.VerifyEnable(r.Context(), subject, data.Method, data.Code); err != nil {
		h.writeError(w, r, err)
		return
	}
	render.JSON(w, r, MessageResponse{Message: msgEnabled})
}

// subject maps the authenticated principal onto the service's Subject.
func (h *Handle) subject(w http.ResponseWriter, r *http.Request) (twofa.Subject, bool) {
	principal, ok := authn.FromContext(r.Context())
	if !ok {
		slog.Error("Failed to get authenticated principal from context")
		h.writeError(w, r, apperrors.Unauthorized("Unauthorized"))
		return twofa.Subject{}, false
	}
	var subject twofa.Subject
	if err := copier.Copy(&subject, principal); err != nil {
		h.writeError(w, r, apperrors.InternalWrap(err, "failed to map principal"))
		return twofa.Subject{}, false
	}
	return subject, true
}

func (h *Handle) decode(w http.ResponseWriter, r *http.Request, data any) bool {
	if err := render.DecodeJSON(r.Body, data); err != nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrCodeInvalidInput, "unable to parse body"))
		return false
	}
	if err := h.validate.Struct(data); err != nil {
		h.writeError(w, r, validationError(err))
		return false
	}
	return true
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "invalid request")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return apperrors.InvalidInput(fe.Field(), "is required")
	case "oneof":
		return apperrors.InvalidInput(fe.Field(), "must be one of "+strings.ReplaceAll(fe.Param(), " ", ", "))
	case "len", "number":
		return apperrors.InvalidInput(fe.Field(), "must be 6 digits")
	default:
		return apperrors.InvalidInput(fe.Field(), fe.Tag())
	}
}

func (h *Handle) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.MapErrorCodeToHTTPStatus(code)
	message := apperrors.Message(err)
	if code == apperrors.ErrCodeInternal || message == "" {
		message = "Something went wrong, please try again"
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		if retryAfter, ok := appErr.Details["retry_after"].(string); ok {
			w.Header().Set("Retry-After", retryAfter)
		}
	}

	if status >= http.StatusInternalServerError {
		slog.Error("2FA request failed", "path", r.URL.Path, "status", status, "error", err)
	} else {
		slog.Info("2FA request rejected", "path", r.URL.Path, "status", status, "code", code)
	}
	render.Status(r, status)
	render.JSON(w, r, MessageResponse{Message: message})
}
