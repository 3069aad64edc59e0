package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/agribusiness-pro/apiserver/internal/storage"
	"github.com/agribusiness-pro/apiserver/types"
)

type userFixture struct {
	users         *fakeUserRepo
	verifications *fakeVerificationRepo
	publisher     *fakePublisher
	avatars       *storage.MemoryClient
	svc           *UserService
}

func newUserFixture(t *testing.T) userFixture {
	t.Helper()
	users := newFakeUserRepo()
	verifications := newFakeVerificationRepo(users)
	publisher := &fakePublisher{}
	avatars := storage.NewMemoryClient("avatars")
	svc := NewUserService(users, verifications,
		WithPublisher(publisher),
		WithAvatarStore(storage.NewStorage(avatars)),
		WithLogger(zap.NewNop()),
		WithHashCost(bcrypt.MinCost),
	)
	return userFixture{users: users, verifications: verifications, publisher: publisher, avatars: avatars, svc: svc}
}

func johnDoe() RegisterInput {
	return RegisterInput{
		FirstName:    "John",
		LastName:     "Doe",
		Email:        "john@farm.com",
		Password:     "password123",
		Phone:        "+91 98765 43210",
		Organization: "Doe Farms",
		UserType:     "farmer",
		Location:     "Punjab",
	}
}

func TestUserService_Register(t *testing.T) {
	f := newUserFixture(t)

	user, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)
	assert.Equal(t, 1, user.ID)
	assert.Equal(t, types.UserTypeFarmer, user.UserType)
	assert.False(t, user.EmailVerified)
	assert.NotEqual(t, "password123", user.PasswordHash)

	event, ok := f.publisher.last()
	require.True(t, ok)
	assert.Equal(t, "john@farm.com", event.Email)
	assert.Equal(t, "John", event.FirstName)
	assert.NotEmpty(t, event.Token)
	assert.Equal(t, 1, f.verifications.count())
}

func TestUserService_Register_Validation(t *testing.T) {
	f := newUserFixture(t)

	in := johnDoe()
	in.Email = "not-an-email"
	in.Password = "short"
	in.UserType = "pirate"
	_, err := f.svc.Register(context.Background(), in)
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "password")
	assert.Contains(t, verr.Fields, "user_type")
}

func TestUserService_Register_DuplicateEmail(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)

	dup := johnDoe()
	dup.Email = "JOHN@farm.com"
	_, err = f.svc.Register(context.Background(), dup)
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestUserService_Register_PublishFailureIsNotFatal(t *testing.T) {
	f := newUserFixture(t)
	f.publisher.err = errors.New("broker down")

	user, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)
	assert.Equal(t, "john@farm.com", user.Email)
}

func TestUserService_Authenticate(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)

	user, err := f.svc.Authenticate(context.Background(), "john@farm.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "John", user.FirstName)

	_, err = f.svc.Authenticate(context.Background(), "john@farm.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(context.Background(), "nobody@farm.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_VerifyEmail(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)
	event, _ := f.publisher.last()

	user, err := f.svc.VerifyEmail(context.Background(), event.Token)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	_, err = f.svc.VerifyEmail(context.Background(), event.Token)
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)

	_, err = f.svc.VerifyEmail(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)
}

func TestUserService_ResendVerification(t *testing.T) {
	f := newUserFixture(t)
	_, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)
	first, _ := f.publisher.last()

	require.NoError(t, f.svc.ResendVerification(context.Background(), "john@farm.com"))
	second, _ := f.publisher.last()
	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, 1, f.verifications.count())

	_, err = f.svc.VerifyEmail(context.Background(), first.Token)
	assert.ErrorIs(t, err, ErrInvalidVerificationToken)

	assert.NoError(t, f.svc.ResendVerification(context.Background(), "ghost@farm.com"))
}

func TestUserService_ResendVerification_AlreadyVerified(t *testing.T) {
	f := newUserFixture(t)
	user, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)
	f.users.markVerified(user.ID)
	before := len(f.publisher.events)

	require.NoError(t, f.svc.ResendVerification(context.Background(), "john@farm.com"))
	assert.Len(t, f.publisher.events, before)
}

func strPtr(s string) *string { return &s }

func TestUserService_UpdateProfile(t *testing.T) {
	f := newUserFixture(t)
	user, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)

	updated, err := f.svc.UpdateProfile(context.Background(), user.ID, types.ProfileUpdate{
		Location: strPtr("  Haryana "),
		Bio:      strPtr("Third generation wheat farmer."),
		UserType: strPtr("fpo"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Haryana", updated.Location)
	assert.Equal(t, "Third generation wheat farmer.", updated.Bio)
	assert.Equal(t, types.UserTypeFPO, updated.UserType)
	assert.Equal(t, "john@farm.com", updated.Email)
}

func TestUserService_UpdateProfile_Validation(t *testing.T) {
	f := newUserFixture(t)
	user, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)

	cases := map[string]types.ProfileUpdate{
		"empty":       {},
		"blank name":  {FirstName: strPtr("   ")},
		"long bio":    {Bio: strPtr(strings.Repeat("a", types.MaxBioLength+1))},
		"bad type":    {UserType: strPtr("pirate")},
		"blank phone": {Phone: strPtr("")},
	}
	for name, update := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.UpdateProfile(context.Background(), user.ID, update)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	stored, err := f.svc.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "John", stored.FirstName)
}

func TestUserService_SetAvatar(t *testing.T) {
	f := newUserFixture(t)
	user, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)

	first, err := f.svc.SetAvatar(context.Background(), user.ID, "image/png", []byte("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.AvatarKey, "avatars/1/"))
	assert.True(t, strings.HasSuffix(first.AvatarKey, ".png"))
	assert.Equal(t, "image/png", f.avatars.ContentType(first.AvatarKey))
	assert.NotEmpty(t, f.svc.AvatarURL(context.Background(), first))

	second, err := f.svc.SetAvatar(context.Background(), user.ID, "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(second.AvatarKey, ".jpg"))

	_, err = f.avatars.Get(context.Background(), first.AvatarKey)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestUserService_OpenAvatar(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	user, err := f.svc.Register(ctx, johnDoe())
	require.NoError(t, err)

	_, _, err = f.svc.OpenAvatar(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNoAvatar)

	stored, err := f.svc.SetAvatar(ctx, user.ID, "image/webp", []byte("webp-bytes"))
	require.NoError(t, err)

	body, contentType, err := f.svc.OpenAvatar(ctx, user.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, body.Close())
	require.NoError(t, err)
	assert.Equal(t, "webp-bytes", string(data))
	assert.Equal(t, "image/webp", contentType)

	require.NoError(t, f.avatars.Delete(ctx, stored.AvatarKey))
	_, _, err = f.svc.OpenAvatar(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNoAvatar)
}

func TestUserService_SetAvatar_Rejects(t *testing.T) {
	f := newUserFixture(t)
	user, err := f.svc.Register(context.Background(), johnDoe())
	require.NoError(t, err)

	_, err = f.svc.SetAvatar(context.Background(), user.ID, "image/gif", []byte("gif"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.SetAvatar(context.Background(), user.ID, "image/png", make([]byte, MaxAvatarBytes+1))
	assert.ErrorIs(t, err, ErrValidation)
}
