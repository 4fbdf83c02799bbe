package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mindcare/internal/email"
	"github.com/mindcare/internal/logger"
	"github.com/mindcare/internal/model"
	"github.com/mindcare/internal/repository"
	"github.com/mindcare/internal/storage"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrInvalidOTP        = errors.New("invalid or expired OTP")
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrUserDisabled      = errors.New("user disabled")
)

func maskSessionID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "***"
}

type OTPAuthService struct {
	userRepo    *repository.UserRepository
	sessionRepo *repository.SessionRepository
	store       storage.SessionOTPStore
	mailer      *email.Sender
}

func NewOTPAuthService(
	userRepo *repository.UserRepository,
	sessionRepo *repository.SessionRepository,
	store storage.SessionOTPStore,
	mailer *email.Sender,
) *OTPAuthService {
	return &OTPAuthService{
		userRepo: userRepo, sessionRepo: sessionRepo, store: store, mailer: mailer,
	}
}

type RequestCodeRequest struct {
	Email      string `json:"email"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

// Simplified email validation, not full RFC.
var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// onlyDigits keeps only digits; strips spaces and invisible characters when
// the code is pasted from the mail client.
func onlyDigits(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			b = append(b, s[i])
		}
	}
	return string(b)
}

func (s *OTPAuthService) RequestCode(ctx context.Context, req RequestCodeRequest) error {
	emailNorm := strings.TrimSpace(strings.ToLower(req.Email))
	if emailNorm == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegexp.MatchString(emailNorm) {
		return ErrInvalidEmail
	}
	allowed, err := s.store.CheckRateLimit(ctx, emailNorm)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrRateLimitExceeded
	}
	// When a code was requested recently (> 4 min TTL remaining), resend the
	// same code instead of overwriting it.
	const minTTLToReuse = 240 * time.Second
	if existing, _ := s.store.GetOTP(ctx, emailNorm); existing != "" && len(existing) == 6 {
		if ttl, _ := s.store.GetOTPTTL(ctx, emailNorm); ttl >= minTTLToReuse {
			logger.Infof("request-code: resending same code for key=otp:%s (TTL %.0fs)", emailNorm, ttl.Seconds())
			return s.mailer.SendOTP(ctx, emailNorm, existing)
		}
	}
	code := generateOTP(6)
	if err := s.store.SetOTP(ctx, emailNorm, code); err != nil {
		return err
	}
	logger.Infof("request-code: code stored for key=otp:%s", emailNorm)
	return s.mailer.SendOTP(ctx, emailNorm, code)
}

type VerifyCodeRequest struct {
	Email      string `json:"email"`
	Code       string `json:"code"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	// Signup fields, used only when no account exists for the email yet.
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type VerifyCodeResponse struct {
	SessionID     string     `json:"session_id"`
	SessionSecret string     `json:"session_secret"`
	IsNewUser     bool       `json:"is_new_user"`
	UserID        string     `json:"user_id"`
	Role          model.Role `json:"role"`
}

func (s *OTPAuthService) VerifyCode(ctx context.Context, req VerifyCodeRequest) (*VerifyCodeResponse, error) {
	emailNorm := strings.TrimSpace(strings.ToLower(req.Email))
	codeNorm := onlyDigits(strings.TrimSpace(req.Code))
	if emailNorm == "" || codeNorm == "" || req.DeviceID == "" {
		return nil, fmt.Errorf("email, code and device_id are required")
	}
	if len(codeNorm) != 6 {
		return nil, ErrInvalidOTP
	}
	storedCode, err := s.store.GetOTP(ctx, emailNorm)
	if err != nil {
		logger.Errorf("verify-code: store GetOTP error key=%q err=%v", emailNorm, err)
		return nil, ErrInvalidOTP
	}
	if storedCode == "" {
		logger.Infof("verify-code: key otp:%s empty or expired", emailNorm)
		return nil, ErrInvalidOTP
	}
	// Constant-time comparison. Stored code is 6 digits, input normalized
	// through onlyDigits.
	if len(storedCode) != 6 || subtle.ConstantTimeCompare([]byte(storedCode), []byte(codeNorm)) != 1 {
		logger.Infof("verify-code: mismatch key=%s len(stored)=%d len(entered)=%d", emailNorm, len(storedCode), len(codeNorm))
		return nil, ErrInvalidOTP
	}
	// Code is valid, delete it (single use).
	if err := s.store.DeleteOTP(ctx, emailNorm); err != nil {
		logger.Errorf("verify-code: DeleteOTP key=%s: %v", emailNorm, err)
	}

	user, err := s.userRepo.GetByEmail(ctx, emailNorm)
	isNewUser := false
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		user, err = s.createUser(ctx, emailNorm, req.FullName, req.Role)
		if err != nil {
			return nil, err
		}
		isNewUser = true
	}
	if user.DisabledAt != nil {
		return nil, ErrUserDisabled
	}
	sessionID := uuid.New().String()
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	secretB64 := base64.StdEncoding.EncodeToString(secret)
	h := sha256.Sum256(secret)
	secretHash := hex.EncodeToString(h[:])
	now := time.Now().UTC()
	session := &model.Session{
		ID: sessionID, UserID: user.ID, DeviceID: req.DeviceID, DeviceName: strings.TrimSpace(req.DeviceName),
		SecretHash: secretHash, LastSeenAt: now, CreatedAt: now,
	}
	if err := s.sessionRepo.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.store.SetSessionSecret(ctx, sessionID, secretB64); err != nil {
		logger.Errorf("verify-code: SetSessionSecret failed: %v", err)
		if _, revErr := s.sessionRepo.RevokeByID(ctx, sessionID); revErr != nil {
			logger.Errorf("verify-code: rollback revoke session: %v", revErr)
		}
		return nil, fmt.Errorf("save session secret: %w", err)
	}
	return &VerifyCodeResponse{
		SessionID: sessionID, SessionSecret: secretB64,
		IsNewUser: isNewUser, UserID: user.ID, Role: user.Role,
	}, nil
}

// createUser registers a new account at first sign-in. Role defaults to
// "user" when absent; professionals register with the professional role and
// fill in their profile afterwards.
func (s *OTPAuthService) createUser(ctx context.Context, emailAddr, fullName, roleStr string) (*model.User, error) {
	role := model.RoleUser
	if roleStr != "" {
		role = model.Role(roleStr)
		if !role.Valid() {
			return nil, fmt.Errorf("invalid role %q", roleStr)
		}
	}
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		fullName = deriveFullName(emailAddr)
	}
	u := &model.User{
		ID:        uuid.New().String(),
		FullName:  fullName,
		Email:     emailAddr,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func deriveFullName(emailAddr string) string {
	at := strings.Index(emailAddr, "@")
	if at <= 0 {
		return "Pengguna"
	}
	local := strings.ReplaceAll(emailAddr[:at], ".", " ")
	if len(local) > 50 {
		local = local[:50]
	}
	if local == "" {
		return "Pengguna"
	}
	return local
}

func generateOTP(length int) string {
	const digits = "0123456789"
	b := make([]byte, length)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		b[i] = digits[n.Int64()]
	}
	return string(b)
}

func (s *OTPAuthService) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	return s.sessionRepo.ListByUserID(ctx, userID)
}

func (s *OTPAuthService) LogoutSession(ctx context.Context, userID, sessionID string) (bool, error) {
	ok, err := s.sessionRepo.RevokeByUserIDAndSessionID(ctx, userID, sessionID)
	if err != nil {
		return false, err
	}
	if ok {
		if err := s.store.DeleteSessionSecret(ctx, sessionID); err != nil {
			logger.Errorf("LogoutSession: DeleteSessionSecret session_id=%s: %v", maskSessionID(sessionID), err)
		}
	}
	return ok, nil
}

func (s *OTPAuthService) LogoutAllSessions(ctx context.Context, userID string) (int64, error) {
	ids, err := s.sessionRepo.RevokeByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.store.DeleteSessionSecret(ctx, id); err != nil {
			logger.Errorf("LogoutAllSessions: DeleteSessionSecret session_id=%s: %v", maskSessionID(id), err)
		}
	}
	return int64(len(ids)), nil
}

// ValidateRequest checks the request signature and returns the user id and
// role. Used by the api service through POST /internal/validate. timestamp is
// Unix seconds, accepted within ±30s.
func (s *OTPAuthService) ValidateRequest(ctx context.Context, sessionID, timestamp, signature, method, path, body string) (string, model.Role, error) {
	if sessionID == "" || timestamp == "" || signature == "" {
		logger.Errorf("validate: missing session_id/timestamp/signature")
		return "", "", ErrInvalidOTP
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return "", "", ErrInvalidOTP
	}
	t := time.Unix(ts, 0)
	if time.Since(t) > 30*time.Second || time.Until(t) > 30*time.Second {
		logger.Errorf("validate: timestamp out of window session_id=%s", maskSessionID(sessionID))
		return "", "", ErrInvalidOTP
	}
	secretB64, err := s.store.GetSessionSecret(ctx, sessionID)
	if err != nil || secretB64 == "" {
		logger.Errorf("validate: no session_secret in store session_id=%s", maskSessionID(sessionID))
		return "", "", ErrInvalidOTP
	}
	secret, err := base64.StdEncoding.DecodeString(secretB64)
	if err != nil || len(secret) != 32 {
		return "", "", ErrInvalidOTP
	}
	tryPath := func(p string) bool {
		pl := method + p + body + timestamp
		mac := hmac.New(sha256.New, secret)
		mac.Write([]byte(pl))
		expected := hex.EncodeToString(mac.Sum(nil))
		return hmac.Equal([]byte(signature), []byte(expected))
	}
	if tryPath(path) {
		// signature matched
	} else if strings.HasPrefix(path, "/api/") && tryPath(path[4:]) {
		// client signed the path without the /api prefix (older clients)
	} else {
		logger.Errorf("validate: signature mismatch path=%q", path)
		return "", "", ErrInvalidOTP
	}
	sess, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil || sess == nil {
		logger.Errorf("validate: session not found session_id=%s err=%v", maskSessionID(sessionID), err)
		return "", "", ErrInvalidOTP
	}
	user, err := s.userRepo.GetByID(ctx, sess.UserID)
	if err != nil || user == nil || user.DisabledAt != nil {
		if user != nil && user.DisabledAt != nil {
			logger.Infof("validate: user %s disabled", sess.UserID)
		}
		return "", "", ErrInvalidOTP
	}
	if err := s.sessionRepo.UpdateLastSeen(ctx, sessionID, time.Now().UTC()); err != nil {
		logger.Errorf("validate: UpdateLastSeen session_id=%s: %v", maskSessionID(sessionID), err)
	}
	return sess.UserID, user.Role, nil
}
