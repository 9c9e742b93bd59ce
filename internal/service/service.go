package service

import (
	"alumni_network/internal/auth"
	"alumni_network/internal/models"
	"alumni_network/internal/storage"
	"alumni_network/internal/throttle"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Service interface {
	Register(ctx context.Context, in RegisterInput) (AuthResult, error)
	Login(ctx context.Context, email, password string) (AuthResult, error)
	ChangePassword(ctx context.Context, p models.Principal, currentPassword, newPassword string) error
	GetCurrentUser(ctx context.Context, p models.Principal) (models.PublicUser, error)

	GetUser(ctx context.Context, userID int64) (models.PublicUser, error)
	UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) (models.PublicUser, error)

	Directory(ctx context.Context, q DirectoryQuery) (DirectoryPage, error)

	ListUsers(ctx context.Context, filter models.UserFilter) ([]models.PublicUser, error)
	SetActive(ctx context.Context, actor models.Principal, userID int64, active bool) error
	AssignRole(ctx context.Context, actor models.Principal, userID int64, role models.Role) error

	Ping(ctx context.Context) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	VerifyDummy(password string)
}

type TokenIssuer interface {
	Issue(p models.Principal) (string, error)
}

type Config struct {
	PasswordMinLength int
}

// RegisterInput is validated after the email is normalized and the name
// trimmed. Password length is checked against Config.
type RegisterInput struct {
	Email      string      `validate:"required,email"`
	Password   string      `validate:"required"`
	Name       string      `validate:"min=2"`
	Role       models.Role `validate:"oneof=student graduate teacher company admin"`
	Phone      *string
	SchoolName *string
}

type AuthResult struct {
	User  models.PublicUser
	Token string
}

// DirectoryQuery pages through active users. Page starts at 1.
type DirectoryQuery struct {
	Role   models.Role
	Search string
	Page   int
	Limit  int
}

type DirectoryPage struct {
	Users []models.DirectoryEntry
	Page  int
	Limit int
	Total int
	Pages int
}

type service struct {
	storage storage.Storage
	hasher  PasswordHasher
	tokens  TokenIssuer
	limiter throttle.Limiter
	cfg     Config
	log     *slog.Logger
	now     func() time.Time
}

func NewService(st storage.Storage, hasher PasswordHasher, tokens TokenIssuer, limiter throttle.Limiter, cfg Config, lgr *slog.Logger) *service {
	if limiter == nil {
		limiter = throttle.Nop{}
	}

	return &service{
		storage: st,
		hasher:  hasher,
		tokens:  tokens,
		limiter: limiter,
		cfg:     cfg,
		log:     lgr,
		now:     time.Now,
	}
}

func (s *service) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	const op = "service.Register"

	in.Email = auth.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)

	verr := &ValidationError{}
	if err := validateStruct(verr, in); err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if msg := s.passwordPolicy(in.Password); msg != "" {
		verr.add("password", msg)
	}
	if err := verr.orNil(); err != nil {
		return AuthResult{}, err
	}

	exists, err := s.storage.EmailExists(ctx, in.Email)
	if err != nil {
		return AuthResult{}, storeErr(op, err)
	}
	if exists {
		return AuthResult{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
	}

	passwordHash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.storage.CreateUser(ctx, models.User{
		Email:        in.Email,
		PasswordHash: passwordHash,
		Name:         in.Name,
		Role:         in.Role,
		Phone:        trimOptional(in.Phone),
		SchoolName:   trimOptional(in.SchoolName),
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return AuthResult{}, fmt.Errorf("%s: %w", op, ErrDuplicateEmail)
		}
		return AuthResult{}, storeErr(op, err)
	}

	token, err := s.tokens.Issue(user.Principal())
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.String("op", op), slog.Int64("user_id", user.ID), slog.String("role", string(user.Role)))

	return AuthResult{User: user.Public(), Token: token}, nil
}

// Login answers ErrInvalidCredentials for an unknown email, a deactivated
// account and a wrong password alike.
func (s *service) Login(ctx context.Context, email, password string) (AuthResult, error) {
	const op = "service.Login"

	log := s.log.With(slog.String("op", op))

	email = auth.NormalizeEmail(email)

	verr := &ValidationError{}
	if err := validate.Var(email, "required,email"); err != nil {
		verr.add("email", "must be a valid email address")
	}
	if password == "" {
		verr.add("password", "is required")
	}
	if err := verr.orNil(); err != nil {
		return AuthResult{}, err
	}

	allowed, err := s.limiter.Allow(ctx, email)
	if err != nil {
		log.Warn("login throttle unavailable", slog.Any("error", err))
	}
	if !allowed {
		return AuthResult{}, fmt.Errorf("%s: %w", op, ErrTooManyAttempts)
	}

	user, err := s.storage.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, storage.ErrUserNotFound) {
			return AuthResult{}, storeErr(op, err)
		}
		s.hasher.VerifyDummy(password)
		s.recordFailure(ctx, log, email)
		return AuthResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if ok := s.hasher.Verify(password, user.PasswordHash); !ok || !user.IsActive {
		s.recordFailure(ctx, log, email)
		return AuthResult{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	now := s.now().UTC()
	if err := s.storage.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return AuthResult{}, storeErr(op, err)
	}
	user.LastLogin = &now

	if err := s.limiter.Reset(ctx, email); err != nil {
		log.Warn("failed to reset login throttle", slog.Any("error", err))
	}

	token, err := s.tokens.Issue(user.Principal())
	if err != nil {
		return AuthResult{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in", slog.Int64("user_id", user.ID))

	return AuthResult{User: user.Public(), Token: token}, nil
}

// ChangePassword leaves previously issued tokens valid until they expire.
func (s *service) ChangePassword(ctx context.Context, p models.Principal, currentPassword, newPassword string) error {
	const op = "service.ChangePassword"

	if p.IsZero() {
		return fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	verr := &ValidationError{}
	if currentPassword == "" {
		verr.add("current_password", "is required")
	}
	if newPassword == "" {
		verr.add("new_password", "is required")
	}
	if err := verr.orNil(); err != nil {
		return err
	}

	if msg := s.passwordPolicy(newPassword); msg != "" {
		return &ValidationError{Fields: map[string]string{"new_password": msg}, Err: ErrWeakPassword}
	}

	user, err := s.activeUser(ctx, op, p.ID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(currentPassword, user.PasswordHash) {
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return storeErr(op, err)
	}

	s.log.Info("password changed", slog.String("op", op), slog.Int64("user_id", user.ID))

	return nil
}

func (s *service) GetCurrentUser(ctx context.Context, p models.Principal) (models.PublicUser, error) {
	const op = "service.GetCurrentUser"

	if p.IsZero() {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	user, err := s.activeUser(ctx, op, p.ID)
	if err != nil {
		return models.PublicUser{}, err
	}

	return user.Public(), nil
}

func (s *service) GetUser(ctx context.Context, userID int64) (models.PublicUser, error) {
	const op = "service.GetUser"

	user, err := s.activeUser(ctx, op, userID)
	if err != nil {
		return models.PublicUser{}, err
	}

	return user.Public(), nil
}

func (s *service) UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) (models.PublicUser, error) {
	const op = "service.UpdateProfile"

	upd.Name = trimOptional(upd.Name)
	upd.Phone = trimOptional(upd.Phone)
	upd.ProfileImage = trimOptional(upd.ProfileImage)

	verr := &ValidationError{}
	if err := validateStruct(verr, upd); err != nil {
		return models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := verr.orNil(); err != nil {
		return models.PublicUser{}, err
	}

	user, err := s.storage.UpdateProfile(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.PublicUser{}, storeErr(op, err)
	}

	return user.Public(), nil
}

func (s *service) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.PublicUser, error) {
	const op = "service.ListUsers"

	if filter.Role != "" && !filter.Role.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"role": "unknown role"}}
	}
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.SearchEmail = true

	users, err := s.storage.ListUsers(ctx, filter)
	if err != nil {
		return nil, storeErr(op, err)
	}

	public := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}

	return public, nil
}

// Directory lists active users for the public member search. Email addresses
// are neither shown nor searched.
func (s *service) Directory(ctx context.Context, q DirectoryQuery) (DirectoryPage, error) {
	const op = "service.Directory"

	if q.Role != "" && !q.Role.Valid() {
		return DirectoryPage{}, &ValidationError{Fields: map[string]string{"user_type": "unknown role"}}
	}
	if q.Page < 1 {
		q.Page = 1
	}
	q.Limit = clampLimit(q.Limit)

	filter := models.UserFilter{
		Role:       q.Role,
		Search:     strings.TrimSpace(q.Search),
		ActiveOnly: true,
		Limit:      q.Limit,
		Offset:     (q.Page - 1) * q.Limit,
	}

	users, err := s.storage.ListUsers(ctx, filter)
	if err != nil {
		return DirectoryPage{}, storeErr(op, err)
	}
	total, err := s.storage.CountUsers(ctx, filter)
	if err != nil {
		return DirectoryPage{}, storeErr(op, err)
	}

	entries := make([]models.DirectoryEntry, 0, len(users))
	for _, u := range users {
		entries = append(entries, u.DirectoryEntry())
	}

	return DirectoryPage{
		Users: entries,
		Page:  q.Page,
		Limit: q.Limit,
		Total: total,
		Pages: (total + q.Limit - 1) / q.Limit,
	}, nil
}

// SetActive is the soft delete: the row stays, login stops working.
func (s *service) SetActive(ctx context.Context, actor models.Principal, userID int64, active bool) error {
	const op = "service.SetActive"

	if !active && actor.ID == userID {
		return &ValidationError{Fields: map[string]string{"is_active": "cannot deactivate your own account"}}
	}

	if err := s.storage.SetActive(ctx, userID, active); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return storeErr(op, err)
	}

	s.log.Info("user status changed", slog.String("op", op),
		slog.Int64("actor_id", actor.ID), slog.Int64("user_id", userID), slog.Bool("is_active", active))

	return nil
}

func (s *service) AssignRole(ctx context.Context, actor models.Principal, userID int64, role models.Role) error {
	const op = "service.AssignRole"

	if !role.Valid() {
		return &ValidationError{Fields: map[string]string{"role": "unknown role"}}
	}
	if actor.ID == userID && role != models.RoleAdmin {
		return &ValidationError{Fields: map[string]string{"role": "cannot remove your own admin role"}}
	}

	if err := s.storage.AssignRole(ctx, userID, role); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return storeErr(op, err)
	}

	s.log.Info("user role changed", slog.String("op", op),
		slog.Int64("actor_id", actor.ID), slog.Int64("user_id", userID), slog.String("role", string(role)))

	return nil
}

func (s *service) Ping(ctx context.Context) error {
	const op = "service.Ping"

	if err := s.storage.Ping(ctx); err != nil {
		return storeErr(op, err)
	}

	return nil
}

func (s *service) activeUser(ctx context.Context, op string, userID int64) (models.User, error) {
	user, err := s.storage.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return models.User{}, storeErr(op, err)
	}
	if !user.IsActive {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	return user, nil
}

// passwordPolicy returns an empty string for an acceptable password. The
// minimum counts characters, the maximum counts bytes.
func (s *service) passwordPolicy(password string) string {
	if utf8.RuneCountInString(password) < s.cfg.PasswordMinLength {
		return fmt.Sprintf("must be at least %d characters", s.cfg.PasswordMinLength)
	}
	if len(password) > auth.MaxPasswordBytes {
		return fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes)
	}
	return ""
}

func (s *service) recordFailure(ctx context.Context, log *slog.Logger, email string) {
	if err := s.limiter.Fail(ctx, email); err != nil {
		log.Warn("failed to record login failure", slog.Any("error", err))
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
