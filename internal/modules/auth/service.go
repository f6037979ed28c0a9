package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"authservice/internal/domain"
	"authservice/internal/pkg/password"
	"authservice/internal/repository"
	"authservice/internal/settings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultRecomputeTimeout = 30 * time.Second

// Service issues, rotates and revokes access and refresh tokens.
type Service struct {
	users            UserRepositoryInterface
	tokens           RefreshTokenRepositoryInterface
	codec            TokenCodec
	settings         settings.Provider
	log              logrus.FieldLogger
	now              func() time.Time
	recomputeTimeout time.Duration
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRecomputeTimeout bounds a single bulk expiry recompute.
func WithRecomputeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.recomputeTimeout = d
		}
	}
}

func NewService(
	users UserRepositoryInterface,
	tokens RefreshTokenRepositoryInterface,
	codec TokenCodec,
	cfg settings.Provider,
	log logrus.FieldLogger,
	opts ...Option,
) *Service {
	s := &Service{
		users:            users,
		tokens:           tokens,
		codec:            codec,
		settings:         cfg,
		log:              log,
		now:              time.Now,
		recomputeTimeout: defaultRecomputeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	email := repository.NormalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}

	user := &domain.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	s.log.WithField("user_id", user.ID).Info("user registered")
	return user, nil
}

// Login checks credentials and returns a fresh access token together with
// the user's refresh token. A live refresh token is reused as is, an expired
// one is replaced.
func (s *Service) Login(ctx context.Context, email, pass string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_ = password.CheckDummy(pass)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := password.Check(pass, user.PasswordHash); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now()
	access, err := s.codec.Mint(user.Email, now, s.settings.AccessTokenLifetime())
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	refresh, err := s.sessionFor(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).Info("user logged in")
	return &TokenPair{AccessToken: access, RefreshToken: refresh.ID.String()}, nil
}

func (s *Service) sessionFor(ctx context.Context, userID int64, now time.Time) (*domain.RefreshToken, error) {
	lifetime := s.settings.RefreshTokenLifetime()

	existing, err := s.tokens.FindByUser(ctx, userID)
	switch {
	case err == nil && !existing.IsExpired(now):
		return existing, nil
	case err == nil:
		rt, err := s.tokens.Rotate(ctx, existing.ID, userID, now, lifetime)
		if err != nil {
			return nil, sessionError(err)
		}
		return rt, nil
	case errors.Is(err, repository.ErrRefreshTokenNotFound):
		rt, err := s.tokens.Create(ctx, userID, now, lifetime)
		if err != nil {
			return nil, sessionError(err)
		}
		return rt, nil
	default:
		return nil, err
	}
}

// sessionError maps store races during login. Both mean another request
// changed the user's session between our read and write.
func sessionError(err error) error {
	if errors.Is(err, repository.ErrRefreshTokenConflict) || errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return ErrSessionConflict
	}
	return err
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// consumed: a second use of the same id fails with ErrUnknownToken.
func (s *Service) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrMissingToken
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrMalformedToken
	}

	rt, err := s.tokens.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}

	now := s.now()
	if rt.IsExpired(now) {
		if err := s.tokens.Delete(ctx, rt.ID); err != nil {
			return nil, err
		}
		return nil, ErrExpiredToken
	}

	user, err := s.users.GetByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.log.WithField("user_id", rt.UserID).Error("refresh token owner does not exist")
			return nil, ErrInternalInconsistency
		}
		return nil, err
	}

	access, err := s.codec.Mint(user.Email, now, s.settings.AccessTokenLifetime())
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	next, err := s.tokens.Rotate(ctx, rt.ID, user.ID, now, s.settings.RefreshTokenLifetime())
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrUnknownToken
		}
		if errors.Is(err, repository.ErrRefreshTokenConflict) {
			return nil, ErrSessionConflict
		}
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: next.ID.String()}, nil
}

// Logout revokes a refresh token, expired or not.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrMissingToken
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return ErrUnknownToken
	}

	rt, err := s.tokens.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return ErrUnknownToken
		}
		return err
	}
	if err := s.tokens.Delete(ctx, rt.ID); err != nil {
		return err
	}

	s.log.WithField("user_id", rt.UserID).Info("user logged out")
	return nil
}

// ValidateAccess resolves a bearer access token to its user. Codec errors
// are returned unchanged.
func (s *Service) ValidateAccess(ctx context.Context, token string) (*domain.User, error) {
	subject, err := s.codec.Verify(token, s.now())
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownSubject
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) GetCurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpdateProfile applies the non-nil fields of req. Changing the email
// invalidates outstanding access tokens, since they carry the old one.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*domain.User, error) {
	if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
		return nil, ErrBlankUsername
	}

	user, err := s.GetCurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		user.Username = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil {
		user.Email = repository.NormalizeEmail(*req.Email)
	}
	if req.Password != nil {
		hash, err := password.Hash(*req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, ErrEmailAlreadyExists
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// WatchSettings recomputes refresh token expiry whenever the refresh
// lifetime changes. Changes that arrive while a recompute is running are
// coalesced into one more run that reads the latest value, so an older
// lifetime never overwrites a newer one. stop unsubscribes and waits for the
// worker to exit.
func (s *Service) WatchSettings() (stop func()) {
	kick := make(chan struct{}, 1)
	done := make(chan struct{})

	unsubscribe := s.settings.Subscribe(func(ch settings.Change) {
		if ch.Key != settings.RefreshTokenLifetime {
			return
		}
		select {
		case kick <- struct{}{}:
		default:
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-kick:
				s.recomputeExpiry()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			close(done)
			wg.Wait()
		})
	}
}

func (s *Service) recomputeExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), s.recomputeTimeout)
	defer cancel()

	lifetime := s.settings.RefreshTokenLifetime()
	log := s.log.WithField("refresh_token_lifetime", lifetime.String())

	rows, err := s.tokens.RecomputeExpiry(ctx, lifetime)
	if err != nil {
		log.WithError(err).Error("recompute refresh token expiry failed")
		return
	}
	log.WithField("rows", rows).Info("refresh token expiry recomputed")
}
