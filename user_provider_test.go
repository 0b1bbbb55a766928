package accounts_test

import (
	"context"
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVerifyIdentityHappyPath(t *testing.T) {
	store := &MockUserTracker{}
	provider := accounts.NewUserProvider(store)

	user := newTestUser()
	hash, err := accounts.HashPassword("password12345")
	require.NoError(t, err)
	user.PasswordHash = hash
	user.EmailValidated = true

	store.On("GetByIdentifier", mock.Anything, "jdoe").Return(user, nil).Once()
	store.On("TrackSuccessfulLogin", mock.Anything, user).Return(nil).Once()

	identity, err := provider.VerifyIdentity(context.Background(), "jdoe", "password12345")
	require.NoError(t, err)
	require.NotNil(t, identity)

	assert.Equal(t, user.ID.String(), identity.ID())
	assert.Equal(t, "jdoe", identity.Username())
	assert.Equal(t, user.Email, identity.Email())

	store.AssertExpectations(t)
}

func TestVerifyIdentityWrongPasswordTracksAttempt(t *testing.T) {
	store := &MockUserTracker{}
	provider := accounts.NewUserProvider(store)

	user := newTestUser()
	hash, err := accounts.HashPassword("password12345")
	require.NoError(t, err)
	user.PasswordHash = hash

	store.On("GetByIdentifier", mock.Anything, "jdoe").Return(user, nil).Once()
	store.On("TrackAttemptedLogin", mock.Anything, user).Return(nil).Once()

	_, err = provider.VerifyIdentity(context.Background(), "jdoe", "wrong-password")
	assert.ErrorIs(t, err, accounts.ErrMismatchedHashAndPassword)

	store.AssertExpectations(t)
}

func TestVerifyIdentityUnknownUserLooksLikeWrongPassword(t *testing.T) {
	store := &MockUserTracker{}
	provider := accounts.NewUserProvider(store)

	store.On("GetByIdentifier", mock.Anything, "ghost").
		Return(nil, repository.NewRecordNotFound()).Once()

	_, err := provider.VerifyIdentity(context.Background(), "ghost", "password12345")
	assert.ErrorIs(t, err, accounts.ErrMismatchedHashAndPassword,
		"unknown users and bad passwords must be indistinguishable")
}

func TestVerifyIdentityTooManyAttempts(t *testing.T) {
	store := &MockUserTracker{}
	provider := accounts.NewUserProvider(store)

	user := newTestUser()
	now := time.Now()
	user.LoginAttempts = accounts.MaxLoginAttempts + 1
	user.LoginAttemptAt = &now

	store.On("GetByIdentifier", mock.Anything, "jdoe").Return(user, nil).Once()

	_, err := provider.VerifyIdentity(context.Background(), "jdoe", "password12345")
	assert.ErrorIs(t, err, accounts.ErrTooManyLoginAttempts)
}

func TestVerifyIdentityCooldownExpiredResetsAttempts(t *testing.T) {
	store := &MockUserTracker{}
	provider := accounts.NewUserProvider(store)

	user := newTestUser()
	hash, err := accounts.HashPassword("password12345")
	require.NoError(t, err)
	user.PasswordHash = hash
	user.EmailValidated = true

	staleAttempt := time.Now().Add(-48 * time.Hour)
	user.LoginAttempts = accounts.MaxLoginAttempts + 3
	user.LoginAttemptAt = &staleAttempt

	store.On("GetByIdentifier", mock.Anything, "jdoe").Return(user, nil).Once()
	store.On("TrackSuccessfulLogin", mock.Anything, user).Return(nil).Once()

	identity, err := provider.VerifyIdentity(context.Background(), "jdoe", "password12345")
	require.NoError(t, err)
	assert.NotNil(t, identity)
}

func TestFindIdentityByIdentifier(t *testing.T) {
	store := &MockUserTracker{}
	provider := accounts.NewUserProvider(store)

	user := newTestUser()
	store.On("GetByIdentifier", mock.Anything, user.Email).Return(user, nil).Once()

	identity, err := provider.FindIdentityByIdentifier(context.Background(), user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.Username, identity.Username())
}

func TestFindIdentityByIdentifierNotFound(t *testing.T) {
	store := &MockUserTracker{}
	provider := accounts.NewUserProvider(store)

	store.On("GetByIdentifier", mock.Anything, "ghost").
		Return(nil, repository.NewRecordNotFound()).Once()

	_, err := provider.FindIdentityByIdentifier(context.Background(), "ghost")
	assert.ErrorIs(t, err, accounts.ErrIdentityNotFound)
}
