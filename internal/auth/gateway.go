// Package auth issues and verifies the subject ids that attribute reports,
// updates and votes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/db"
	"github.com/riddle015/riverhacks/internal/logger"
	"github.com/riddle015/riverhacks/internal/metrics"
)

const (
	DefaultIssuer    = "alerthub"
	MinPasswordLen   = 8
	tokenType        = "Bearer"
	defaultTokenTTL  = 24 * time.Hour
	invalidLoginText = "invalid email or password"
)

// dummyHash keeps unknown-email logins as slow as wrong-password ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("alerthub-timing-pad"), bcrypt.MinCost)

type Options struct {
	Secret string
	TTL    time.Duration
	Issuer string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	Retries    int
	Logger     *logger.Logger
	Now        func() time.Time
}

// Gateway owns users and access tokens.
type Gateway struct {
	db      *gorm.DB
	secret  []byte
	ttl     time.Duration
	issuer  string
	cost    int
	retries int
	log     *logger.Logger
	now     func() time.Time
}

func NewGateway(gdb *gorm.DB, opts Options) (*Gateway, error) {
	if opts.Secret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTokenTTL
	}
	if opts.Issuer == "" {
		opts.Issuer = DefaultIssuer
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{
		db:      gdb,
		secret:  []byte(opts.Secret),
		ttl:     opts.TTL,
		issuer:  opts.Issuer,
		cost:    opts.BcryptCost,
		retries: opts.Retries,
		log:     logger.OrNop(opts.Logger),
		now:     opts.Now,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Register creates a user. A taken email fails with Conflict.
func (g *Gateway) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := normalizeEmail(in.Email)
	var missing []string
	if email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("missing fields: %s", strings.Join(missing, ", "))
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Validation("email %q is not a valid address", in.Email)
	}
	if len(in.Password) < MinPasswordLen {
		return nil, apperr.Validation("password must be at least %d characters", MinPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), g.cost)
	if err != nil {
		return nil, apperr.Validation("password cannot be hashed: %v", err)
	}
	now := g.now().UTC()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    trimOptional(in.FirstName),
		LastName:     trimOptional(in.LastName),
		PhoneNumber:  trimOptional(in.PhoneNumber),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = db.Retry(ctx, g.retries, "register", func() error {
		return g.db.WithContext(ctx).Create(user).Error
	})
	if err != nil {
		err = db.Classify("register user", err)
		outcome := "error"
		if apperr.KindOf(err) == apperr.KindConflict {
			outcome = "conflict"
			err = apperr.Conflict("email already registered", err)
		}
		metrics.AuthAttemptsTotal.WithLabelValues("signup", outcome).Inc()
		return nil, err
	}
	metrics.AuthAttemptsTotal.WithLabelValues("signup", "ok").Inc()
	g.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate checks credentials and returns the subject id. Unknown
// emails and wrong passwords fail the same way.
func (g *Gateway) Authenticate(ctx context.Context, c Credentials) (string, error) {
	email := normalizeEmail(c.Email)
	if email == "" || c.Password == "" {
		return "", apperr.Validation("missing fields: email, password")
	}

	var user User
	err := g.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(c.Password))
		metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
		return "", apperr.Unauthorized(invalidLoginText)
	}
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "error").Inc()
		return "", db.Classify("authenticate", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(c.Password)); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "rejected").Inc()
		return "", apperr.Unauthorized(invalidLoginText)
	}
	metrics.AuthAttemptsTotal.WithLabelValues("login", "ok").Inc()
	return user.ID.String(), nil
}

// IssueToken signs an HS256 access token for subject.
func (g *Gateway) IssueToken(subject string) (Token, error) {
	now := g.now()
	exp := now.Add(g.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    g.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{AccessToken: signed, TokenType: tokenType, ExpiresAt: exp.UTC()}, nil
}

// VerifyToken validates signature, issuer and expiry and returns the subject.
func (g *Gateway) VerifyToken(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return "", apperr.Unauthorized("invalid or expired token")
	}
	if !parsed.Valid || claims.Subject == "" {
		return "", apperr.Unauthorized("invalid or expired token")
	}
	return claims.Subject, nil
}

func (g *Gateway) GetUser(ctx context.Context, id string) (*User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperr.NotFound("user %s not found", id)
	}
	var user User
	if err := g.db.WithContext(ctx).First(&user, "user_id = ?", uid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %s not found", id)
		}
		return nil, db.Classify("get user", err)
	}
	return &user, nil
}

// ChangePassword replaces the password after checking the current one.
func (g *Gateway) ChangePassword(ctx context.Context, id, current, next string) error {
	if current == "" || next == "" {
		return apperr.Validation("current_password and new_password are required")
	}
	if len(next) < MinPasswordLen {
		return apperr.Validation("password must be at least %d characters", MinPasswordLen)
	}
	user, err := g.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return apperr.Unauthorized("current password is incorrect")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), g.cost)
	if err != nil {
		return apperr.Validation("password cannot be hashed: %v", err)
	}
	err = g.db.WithContext(ctx).Model(&User{}).
		Where("user_id = ?", user.ID).
		Updates(map[string]interface{}{"password_hash": string(hash), "updated_at": g.now().UTC()}).Error
	return db.Classify("change password", err)
}
