package fakebackend

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/users"
)

// validationDetail mirrors one entry of a FastAPI 422 body.
type validationDetail struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeMissing(w http.ResponseWriter, where string, fields ...string) {
	details := make([]validationDetail, 0, len(fields))
	for _, f := range fields {
		details = append(details, validationDetail{Loc: []string{where, f}, Msg: "Field required", Type: "missing"})
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": details})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []validationDetail{
			{Loc: []string{"body"}, Msg: "JSON decode error", Type: "json_invalid"},
		}})
		return false
	}
	return true
}

// tokenHandler implements the OAuth2 password grant as FastAPI's OAuth2PasswordRequestForm does.
func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid form body")
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		writeMissing(w, "body", missing...)
		return
	}
	if gt := r.PostForm.Get("grant_type"); gt != "" && gt != "password" {
		writeDetail(w, http.StatusBadRequest, "Unsupported grant type")
		return
	}

	account, err := s.accounts.GetByEmail(username)
	if err != nil || !users.CheckPasswordHash(password, account.PasswordHash) {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if s.requireVerify && !account.Verified {
		writeDetail(w, http.StatusForbidden, "Email not verified")
		return
	}
	s.writeToken(w, account)
}

func (s *Server) writeToken(w http.ResponseWriter, account *users.Account) {
	token, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		s.logger.Err(err).Msg("issue token")
		writeDetail(w, http.StatusInternalServerError, "Could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, authmodel.TokenResponse{AccessToken: utils.Ptr(token), TokenType: "bearer"})
}

type registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) signupHandler(w http.ResponseWriter, r *http.Request) {
	var req registration
	if !decodeBody(w, r, &req) {
		return
	}
	var missing []string
	if strings.TrimSpace(req.Email) == "" {
		missing = append(missing, "email")
	}
	if req.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		writeMissing(w, "body", missing...)
		return
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		s.logger.Err(err).Msg("hash password")
		writeDetail(w, http.StatusInternalServerError, "Could not create account")
		return
	}
	account := &users.Account{Email: req.Email, PasswordHash: hash, DateJoined: s.nowTime().UTC().Truncate(time.Second)}
	if err := s.accounts.Create(account); err != nil {
		if errors.Is(err, users.ErrAccountExists) {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
		s.logger.Err(err).Msg("create account")
		writeDetail(w, http.StatusInternalServerError, "Could not create account")
		return
	}
	if err := s.issueOTP(account.Email); err != nil {
		s.logger.Err(err).Msg("issue otp")
		writeDetail(w, http.StatusInternalServerError, "Could not send verification code")
		return
	}
	writeJSON(w, http.StatusCreated, account.Profile())
}

func (s *Server) issueOTP(email string) error {
	otp, err := s.newOTP()
	if err != nil {
		return errors.Wrapf(err, "generate otp")
	}
	if err := s.accounts.SetPendingOTP(email, otp); err != nil {
		return errors.Wrapf(err, "store otp")
	}
	if s.onOTP != nil {
		s.onOTP(email, otp)
	}
	s.logger.Info().Str("email", email).Msg("verification code issued")
	return nil
}

func (s *Server) verifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req authmodel.VerifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.OTP == "" {
		writeDetail(w, http.StatusBadRequest, "Identifier and OTP are required")
		return
	}

	account, err := s.accounts.GetByEmail(req.Identifier)
	if err != nil || account.PendingOTP == "" || account.PendingOTP != req.OTP {
		writeDetail(w, http.StatusBadRequest, "Invalid OTP")
		return
	}
	if err := s.accounts.SetVerified(account.Email, true); err != nil {
		s.logger.Err(err).Msg("verify account")
		writeDetail(w, http.StatusInternalServerError, "Could not verify account")
		return
	}

	if s.tokenlessOTP {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Account verified. Please log in."})
		return
	}
	s.writeToken(w, account)
}

func (s *Server) resendOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req authmodel.ResendOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	account, err := s.accounts.GetByEmail(req.Identifier)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	if account.Verified {
		writeDetail(w, http.StatusBadRequest, "Account already verified")
		return
	}
	if err := s.issueOTP(account.Email); err != nil {
		s.logger.Err(err).Msg("issue otp")
		writeDetail(w, http.StatusInternalServerError, "Could not send verification code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "OTP resent"})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	unauthorized := func() {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
	}

	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		unauthorized()
		return
	}
	subject, err := s.tokens.Subject(token)
	if err != nil {
		s.logger.Debug().Err(err).Msg("rejected bearer token")
		unauthorized()
		return
	}
	account, err := s.accounts.GetByID(subject)
	if err != nil {
		unauthorized()
		return
	}
	writeJSON(w, http.StatusOK, account.Profile())
}
