package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/agribusiness-pro/apiserver/internal/mq"
	"github.com/agribusiness-pro/apiserver/internal/storage"
	"github.com/agribusiness-pro/apiserver/internal/store"
	"github.com/agribusiness-pro/apiserver/types"
)

const (
	minPasswordLength      = 8
	defaultVerificationTTL = 48 * time.Hour
	avatarURLExpiry        = time.Hour
	// MaxAvatarBytes caps uploaded profile pictures.
	MaxAvatarBytes = 5 << 20
)

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdateProfile(ctx context.Context, user types.User) (types.User, error)
	SetAvatar(ctx context.Context, id int, key string) error
}

// VerificationRepository defines persistence operations for email verification tokens.
type VerificationRepository interface {
	Create(ctx context.Context, v types.EmailVerification) (types.EmailVerification, error)
	Consume(ctx context.Context, token string, now time.Time) (int, error)
	DeleteForUser(ctx context.Context, userID int) error
}

// Publisher sends events to the message queue.
type Publisher interface {
	PublishJSON(ctx context.Context, channel string, value any) (string, error)
}

// AvatarStore is the object storage used for profile pictures.
type AvatarStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// RegisterInput is the data collected by the sign-up form.
type RegisterInput struct {
	FirstName    string
	LastName     string
	Email        string
	Password     string
	Phone        string
	Organization string
	UserType     string
	Location     string
}

// UserService encapsulates account, verification and profile use-cases.
type UserService struct {
	repo            UserRepository
	verifications   VerificationRepository
	publisher       Publisher
	avatars         AvatarStore
	logger          *zap.Logger
	verificationTTL time.Duration
	hashCost        int
	now             func() time.Time
}

// UserServiceOption customises a UserService.
type UserServiceOption func(*UserService)

func WithPublisher(p Publisher) UserServiceOption {
	return func(s *UserService) { s.publisher = p }
}

func WithAvatarStore(a AvatarStore) UserServiceOption {
	return func(s *UserService) { s.avatars = a }
}

func WithLogger(l *zap.Logger) UserServiceOption {
	return func(s *UserService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithVerificationTTL(ttl time.Duration) UserServiceOption {
	return func(s *UserService) {
		if ttl > 0 {
			s.verificationTTL = ttl
		}
	}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) UserServiceOption {
	return func(s *UserService) { s.hashCost = cost }
}

func NewUserService(repo UserRepository, verifications VerificationRepository, opts ...UserServiceOption) *UserService {
	s := &UserService{
		repo:            repo,
		verifications:   verifications,
		logger:          zap.NewNop(),
		verificationTTL: defaultVerificationTTL,
		hashCost:        bcrypt.DefaultCost,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Register creates an unverified account and queues a verification email.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Organization = strings.TrimSpace(in.Organization)
	in.Location = strings.TrimSpace(in.Location)

	var v validator
	if in.FirstName == "" {
		v.add("first_name", "first name is required")
	}
	if in.LastName == "" {
		v.add("last_name", "last name is required")
	}
	if !validEmail(in.Email) {
		v.add("email", "a valid email is required")
	}
	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		v.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	userType, ok := types.ParseUserType(in.UserType)
	if !ok {
		v.add("user_type", "user type must be one of farmer, fpo, corporate, government, trade, education")
	}
	if err := v.err(); err != nil {
		return types.User{}, err
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		Organization: in.Organization,
		UserType:     userType,
		Location:     in.Location,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.sendVerification(ctx, user)
	return user, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// VerifyEmail consumes a verification token and returns the verified user.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (types.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return types.User{}, ErrInvalidVerificationToken
	}

	userID, err := s.verifications.Consume(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidVerificationToken
		}
		return types.User{}, err
	}
	return s.repo.GetByID(ctx, userID)
}

// ResendVerification queues a fresh verification email. Unknown and already
// verified addresses succeed silently so the endpoint cannot be used to
// probe for accounts.
func (s *UserService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if user.EmailVerified {
		return nil
	}
	if err := s.verifications.DeleteForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("drop previous verification tokens: %w", err)
	}
	s.sendVerification(ctx, user)
	return nil
}

// UpdateProfile applies the non-nil fields of update. Email and password
// cannot be changed through this path.
func (s *UserService) UpdateProfile(ctx context.Context, id int, update types.ProfileUpdate) (types.User, error) {
	var v validator
	if update.Empty() {
		v.add("profile", "no fields to update")
		return types.User{}, v.err()
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	applyRequired := func(field string, value *string, dst *string, label string) {
		if value == nil {
			return
		}
		trimmed := strings.TrimSpace(*value)
		if trimmed == "" {
			v.add(field, label+" cannot be empty")
			return
		}
		*dst = trimmed
	}
	applyRequired("first_name", update.FirstName, &user.FirstName, "first name")
	applyRequired("last_name", update.LastName, &user.LastName, "last name")
	applyRequired("phone", update.Phone, &user.Phone, "phone")
	applyRequired("organization", update.Organization, &user.Organization, "organization")
	applyRequired("location", update.Location, &user.Location, "location")

	if update.UserType != nil {
		userType, ok := types.ParseUserType(*update.UserType)
		if !ok {
			v.add("user_type", "user type must be one of farmer, fpo, corporate, government, trade, education")
		} else {
			user.UserType = userType
		}
	}
	if update.Bio != nil {
		bio := strings.TrimSpace(*update.Bio)
		if utf8.RuneCountInString(bio) > types.MaxBioLength {
			v.add("bio", fmt.Sprintf("bio cannot exceed %d characters", types.MaxBioLength))
		} else {
			user.Bio = bio
		}
	}
	if err := v.err(); err != nil {
		return types.User{}, err
	}

	return s.repo.UpdateProfile(ctx, user)
}

// SetAvatar stores a new profile picture and replaces the previous one.
func (s *UserService) SetAvatar(ctx context.Context, id int, contentType string, data []byte) (types.User, error) {
	if s.avatars == nil {
		return types.User{}, errors.New("avatar storage is not configured")
	}

	ext, ok := avatarExtensions[strings.ToLower(strings.TrimSpace(contentType))]
	var v validator
	if !ok {
		v.add("avatar", "avatar must be a jpeg, png or webp image")
	}
	if len(data) == 0 {
		v.add("avatar", "avatar is empty")
	}
	if len(data) > MaxAvatarBytes {
		v.add("avatar", "avatar exceeds 5 MiB")
	}
	if err := v.err(); err != nil {
		return types.User{}, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	key := path.Join("avatars", fmt.Sprint(id), uuid.NewString()+ext)
	if err := s.avatars.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.User{}, fmt.Errorf("upload avatar: %w", err)
	}
	if err := s.repo.SetAvatar(ctx, id, key); err != nil {
		_ = s.avatars.Delete(ctx, key)
		return types.User{}, err
	}

	if user.AvatarKey != "" {
		if err := s.avatars.Delete(ctx, user.AvatarKey); err != nil {
			s.logger.Warn("failed to delete previous avatar", zap.Int("user_id", id), zap.Error(err))
		}
	}
	user.AvatarKey = key
	return user, nil
}

// OpenAvatar streams the user's current profile picture along with its
// content type. The caller closes the reader.
func (s *UserService) OpenAvatar(ctx context.Context, id int) (io.ReadCloser, string, error) {
	if s.avatars == nil {
		return nil, "", ErrNoAvatar
	}
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if user.AvatarKey == "" {
		return nil, "", ErrNoAvatar
	}

	r, err := s.avatars.Get(ctx, user.AvatarKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		s.logger.Warn("avatar object missing", zap.Int("user_id", id), zap.String("key", user.AvatarKey))
		return nil, "", ErrNoAvatar
	}
	if err != nil {
		return nil, "", fmt.Errorf("open avatar: %w", err)
	}
	return r, avatarContentType(user.AvatarKey), nil
}

func avatarContentType(key string) string {
	ext := path.Ext(key)
	for contentType, e := range avatarExtensions {
		if e == ext {
			return contentType
		}
	}
	return "application/octet-stream"
}

// AvatarURL returns a short-lived download URL for the user's avatar, or an
// empty string when there is none.
func (s *UserService) AvatarURL(ctx context.Context, user types.User) string {
	if s.avatars == nil || user.AvatarKey == "" {
		return ""
	}
	url, err := s.avatars.SignedURL(ctx, user.AvatarKey, avatarURLExpiry)
	if err != nil {
		s.logger.Warn("failed to sign avatar url", zap.Int("user_id", user.ID), zap.Error(err))
		return ""
	}
	return url
}

// sendVerification issues a token and publishes the email event. Failures
// are logged; the user can always ask for a resend.
func (s *UserService) sendVerification(ctx context.Context, user types.User) {
	token := uuid.NewString()
	if _, err := s.verifications.Create(ctx, types.EmailVerification{
		Token:     token,
		UserID:    user.ID,
		ExpiresAt: s.now().UTC().Add(s.verificationTTL),
	}); err != nil {
		s.logger.Error("failed to store verification token", zap.Int("user_id", user.ID), zap.Error(err))
		return
	}

	if s.publisher == nil {
		s.logger.Warn("no publisher configured, verification email not queued", zap.Int("user_id", user.ID))
		return
	}
	event := types.VerificationEvent{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		Token:     token,
	}
	if _, err := s.publisher.PublishJSON(ctx, mq.ChannelVerification, event); err != nil {
		s.logger.Error("failed to queue verification email", zap.Int("user_id", user.ID), zap.Error(err))
	}
}

func validEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}
