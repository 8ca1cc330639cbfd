package service

import (
	"context"
	"errors"
	"time"

	"github.com/AlibekovAA/devicehub/internal/common/clock"
	commoncrypto "github.com/AlibekovAA/devicehub/internal/common/crypto"
	commonerrors "github.com/AlibekovAA/devicehub/internal/common/errors"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
	"github.com/AlibekovAA/devicehub/internal/common/resilience"
	userdomain "github.com/AlibekovAA/devicehub/internal/user/domain"
)

// UserStore is the part of the identity store credentials need.
type UserStore interface {
	Create(ctx context.Context, user userdomain.User) error
	FindByName(ctx context.Context, name string) (userdomain.User, error)
}

type AuthService struct {
	repo            UserStore
	hasher          commoncrypto.PasswordHasher
	idGenerator     commoncrypto.IDGenerator
	tokens          *TokenIssuer
	breaker         *resilience.CircuitBreaker
	clock           clock.Clock
	initialValidity time.Duration
	log             *logger.Logger
}

type Config struct {
	SubscriptionInitialDays int
	Breaker                 *resilience.CircuitBreaker
}

func NewAuthService(
	repo UserStore,
	hasher commoncrypto.PasswordHasher,
	idGenerator commoncrypto.IDGenerator,
	tokens *TokenIssuer,
	clk clock.Clock,
	cfg Config,
	log *logger.Logger,
) *AuthService {
	return &AuthService{
		repo:            repo,
		hasher:          hasher,
		idGenerator:     idGenerator,
		tokens:          tokens,
		breaker:         cfg.Breaker,
		clock:           clk,
		initialValidity: time.Duration(cfg.SubscriptionInitialDays) * 24 * time.Hour,
		log:             log,
	}
}

type RegisterInput struct {
	Name     string
	Password string
}

type LoginInput struct {
	Name     string
	Password string
}

type RegisterResult struct {
	GUID string
	Name string
}

type LoginResult struct {
	GUID  string
	Name  string
	Token string
}

// storeCall maps infrastructure failures to ErrStoreUnavailable and lets
// domain errors through untouched.
func (s *AuthService) storeCall(ctx context.Context, fn func(context.Context) error) error {
	var err error
	if s.breaker != nil {
		err = s.breaker.Call(ctx, fn)
	} else {
		err = fn(ctx)
	}
	if err == nil {
		return nil
	}
	if _, ok := commonerrors.AsDomainError(err); ok {
		return err
	}
	return commonerrors.ErrStoreUnavailable.WithCause(err)
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (RegisterResult, error) {
	return s.register(ctx, input, userdomain.RoleUser)
}

func (s *AuthService) register(ctx context.Context, input RegisterInput, role userdomain.Role) (RegisterResult, error) {
	s.log.WithFields(ctx, logger.Fields{
		"name":   input.Name,
		"action": "register_attempt",
	}).Info("register attempt")

	if err := validateCredentials(input.Name, input.Password); err != nil {
		recordAttempt("register", "invalid")
		s.log.WithFields(ctx, logger.Fields{
			"name":   input.Name,
			"action": "register_validation_failed",
		}).Warnf("register validation failed: %v", err)
		return RegisterResult{}, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"name":   input.Name,
			"action": "register_hash_failed",
		}).Errorf("register failed: password hash error: %v", err)
		return RegisterResult{}, err
	}

	id, err := s.idGenerator.NewID()
	if err != nil {
		s.log.WithFields(ctx, logger.Fields{
			"name":   input.Name,
			"action": "register_id_generation_failed",
		}).Errorf("register failed: id generation error: %v", err)
		return RegisterResult{}, err
	}

	now := s.clock.Now()
	user := userdomain.User{
		ID:             userdomain.ID(id),
		Name:           input.Name,
		PasswordHash:   hash,
		Role:           role,
		ExpirationDate: now.Add(s.initialValidity),
		CreatedAt:      now,
	}

	err = s.storeCall(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrNameTaken) {
			recordAttempt("register", "conflict")
			s.log.WithFields(ctx, logger.Fields{
				"name":   input.Name,
				"action": "register_name_exists",
			}).Warn("register failed: already exists")
			return RegisterResult{}, err
		}
		recordAttempt("register", "error")
		s.log.WithFields(ctx, logger.Fields{
			"name":   input.Name,
			"action": "register_create_failed",
		}).Errorf("register failed: %v", err)
		return RegisterResult{}, err
	}

	recordAttempt("register", "success")
	s.log.WithFields(ctx, logger.Fields{
		"name":    user.Name,
		"user_id": string(user.ID),
		"role":    string(role),
		"action":  "register_success",
	}).Info("register success")

	return RegisterResult{GUID: string(user.ID), Name: user.Name}, nil
}

// Login answers unknown names and wrong passwords with the same error.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (LoginResult, error) {
	s.log.WithFields(ctx, logger.Fields{
		"name":   input.Name,
		"action": "login_attempt",
	}).Info("login attempt")

	if input.Name == "" || input.Password == "" {
		recordAttempt("login", "invalid")
		return LoginResult{}, commonerrors.ErrInvalidCredentials
	}

	var user userdomain.User
	err := s.storeCall(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.repo.FindByName(ctx, input.Name)
		return err
	})
	if err != nil {
		if errors.Is(err, commonerrors.ErrUserNotFound) {
			recordAttempt("login", "unauthorized")
			s.log.WithFields(ctx, logger.Fields{
				"name":   input.Name,
				"action": "login_user_not_found",
			}).Warn("login failed: not found")
			return LoginResult{}, commonerrors.ErrInvalidCredentials
		}
		recordAttempt("login", "error")
		s.log.WithFields(ctx, logger.Fields{
			"name":   input.Name,
			"action": "login_fetch_failed",
		}).Errorf("login failed: %v", err)
		return LoginResult{}, err
	}

	if err := s.hasher.Compare(user.PasswordHash, input.Password); err != nil {
		recordAttempt("login", "unauthorized")
		s.log.WithFields(ctx, logger.Fields{
			"name":   input.Name,
			"action": "login_invalid_password",
		}).Warn("login failed: invalid password")
		return LoginResult{}, commonerrors.ErrInvalidCredentials
	}

	token, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		recordAttempt("login", "error")
		s.log.WithFields(ctx, logger.Fields{
			"name":    input.Name,
			"user_id": string(user.ID),
			"action":  "login_token_issue_failed",
		}).Errorf("login failed: token issue error: %v", err)
		return LoginResult{}, err
	}

	recordAttempt("login", "success")
	s.log.WithFields(ctx, logger.Fields{
		"name":    user.Name,
		"user_id": string(user.ID),
		"action":  "login_success",
	}).Info("login success")

	return LoginResult{GUID: string(user.ID), Name: user.Name, Token: token}, nil
}

// EnsureAdmin creates the bootstrap operator account unless the name is
// already taken.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, password string) error {
	if name == "" || password == "" {
		return nil
	}

	_, err := s.register(ctx, RegisterInput{Name: name, Password: password}, userdomain.RoleAdmin)
	if errors.Is(err, commonerrors.ErrNameTaken) {
		s.log.WithFields(ctx, logger.Fields{
			"name":   name,
			"action": "admin_bootstrap_exists",
		}).Info("admin account already present")
		return nil
	}
	return err
}
