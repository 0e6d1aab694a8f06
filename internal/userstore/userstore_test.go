package userstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/reseau-app/reseau/internal/model"
)

func newTestStore(t *testing.T) *userstore {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %+v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestUser(t *testing.T, store *userstore, handle string) *model.User {
	t.Helper()
	user, err := store.Create(context.Background(), &model.CreateUserParams{
		Handle:   handle,
		Email:    handle + "@testdomain.com",
		Password: "password",
	})
	if err != nil {
		t.Fatalf("failed to create user %s: %+v", handle, err)
	}
	return user
}

func TestCreateUser(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	params := &model.CreateUserParams{
		Handle:   "testuser",
		Email:    "testuser@testdomain.com",
		Password: "abcd",
	}

	user, err := store.Create(ctx, params)
	assert.Nil(err)
	assert.NotNil(user)
	assert.NotEmpty(user.ID)

	t.Run("Password is hashed", func(t *testing.T) {
		assert.NotEqual("abcd", user.Password)
		assert.True(store.VerifyPassword(user, "abcd"))
		assert.False(store.VerifyPassword(user, "abcde"))
	})

	t.Run("Duplicate email", func(t *testing.T) {
		_, err := store.Create(ctx, &model.CreateUserParams{
			Handle:   "otheruser",
			Email:    "testuser@testdomain.com",
			Password: "abcd",
		})
		assert.ErrorIs(err, model.ErrorDuplicateKey)

		_, err = store.FindByHandle(ctx, "otheruser")
		assert.ErrorIs(err, model.ErrorUserNotFound)
	})

	t.Run("Duplicate handle", func(t *testing.T) {
		_, err := store.Create(ctx, &model.CreateUserParams{
			Handle:   "testuser",
			Email:    "unrelated@testdomain.com",
			Password: "abcd",
		})
		assert.ErrorIs(err, model.ErrorDuplicateKey)
	})
}

func TestFindUser(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	created := createTestUser(t, store, "alice")

	t.Run("By ID", func(t *testing.T) {
		found, err := store.FindByID(ctx, created.ID)
		assert.Nil(err)
		assert.Equal(created.Handle, found.Handle)
	})

	t.Run("By email", func(t *testing.T) {
		found, err := store.FindByEmail(ctx, "alice@testdomain.com")
		assert.Nil(err)
		assert.Equal(created.ID, found.ID)
	})

	t.Run("By handle", func(t *testing.T) {
		found, err := store.FindByHandle(ctx, "alice")
		assert.Nil(err)
		assert.Equal(created.ID, found.ID)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := store.FindByHandle(ctx, "nobody")
		assert.ErrorIs(err, model.ErrorUserNotFound)
	})
}

func TestUpdateProfile(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	created := createTestUser(t, store, "alice")
	createTestUser(t, store, "bob")

	updated, err := store.UpdateProfile(ctx, created.ID, &model.ProfileParams{
		Email:    "alice@testdomain.com",
		Handle:   "alice",
		Name:     "Liddell",
		Location: "Oxford",
		Age:      27,
	})
	assert.Nil(err)
	assert.Equal("Liddell", updated.Name)
	assert.Equal("Oxford", updated.Location)
	assert.Equal(27, updated.Age)
	assert.NotNil(updated.UpdatedAt)

	t.Run("Duplicate email rejected", func(t *testing.T) {
		_, err := store.UpdateProfile(ctx, created.ID, &model.ProfileParams{
			Email:  "bob@testdomain.com",
			Handle: "alice",
		})
		assert.ErrorIs(err, model.ErrorDuplicateKey)
	})
}

func TestResetToken(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	created := createTestUser(t, store, "alice")

	t.Run("Valid token", func(t *testing.T) {
		err := store.SetResetToken(ctx, created.ID, "tok-valid", time.Now().Add(time.Hour))
		assert.Nil(err)

		found, err := store.FindByValidResetToken(ctx, "tok-valid", time.Now())
		assert.Nil(err)
		assert.Equal(created.ID, found.ID)
	})

	t.Run("Expired token behaves as missing", func(t *testing.T) {
		err := store.SetResetToken(ctx, created.ID, "tok-expired", time.Now().Add(-time.Minute))
		assert.Nil(err)

		_, err = store.FindByValidResetToken(ctx, "tok-expired", time.Now())
		assert.ErrorIs(err, model.ErrorUserNotFound)
	})

	t.Run("Password change invalidates token", func(t *testing.T) {
		err := store.SetResetToken(ctx, created.ID, "tok-once", time.Now().Add(time.Hour))
		assert.Nil(err)

		err = store.UpdatePassword(ctx, created.ID, "newpassword")
		assert.Nil(err)

		_, err = store.FindByValidResetToken(ctx, "tok-once", time.Now())
		assert.ErrorIs(err, model.ErrorUserNotFound)

		updated, err := store.FindByID(ctx, created.ID)
		assert.Nil(err)
		assert.True(store.VerifyPassword(updated, "newpassword"))
		assert.False(store.VerifyPassword(updated, "password"))
	})
}

func TestProviders(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	created := createTestUser(t, store, "alice")

	err := store.SetProvider(ctx, created.ID, model.ProviderFacebook, "fb-123")
	assert.Nil(err)
	err = store.SetProvider(ctx, created.ID, model.ProviderGoogle, "g-456")
	assert.Nil(err)

	found, err := store.FindByID(ctx, created.ID)
	assert.Nil(err)
	assert.Equal("fb-123", found.Facebook)
	assert.Equal("g-456", found.Google)

	t.Run("Unlink clears only the named provider", func(t *testing.T) {
		err := store.ClearProvider(ctx, created.ID, model.ProviderFacebook)
		assert.Nil(err)

		found, err := store.FindByID(ctx, created.ID)
		assert.Nil(err)
		assert.Empty(found.Facebook)
		assert.Equal("g-456", found.Google)
	})

	t.Run("Unknown provider", func(t *testing.T) {
		err := store.SetProvider(ctx, created.ID, model.Provider("myspace"), "x")
		var verr *model.ValidationError
		assert.ErrorAs(err, &verr)
	})
}

func TestFriendEdges(t *testing.T) {
	assert := assert.New(t)
	store := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")

	edge := &model.FriendEdge{
		LowID:       alice.ID,
		HighID:      bob.ID,
		RequesterID: alice.ID,
		CreatedAt:   time.Now().UTC(),
	}
	assert.Nil(store.PutEdge(ctx, edge))

	t.Run("Lookup is order independent", func(t *testing.T) {
		found, err := store.GetEdge(ctx, alice.ID, bob.ID)
		assert.Nil(err)
		assert.Equal(alice.ID, found.RequesterID)

		found, err = store.GetEdge(ctx, bob.ID, alice.ID)
		assert.Nil(err)
		assert.Equal(alice.ID, found.RequesterID)
	})

	t.Run("Upsert flips accepted without duplicating", func(t *testing.T) {
		edge.Accepted = true
		assert.Nil(store.PutEdge(ctx, edge))

		edges, err := store.EdgesFor(ctx, alice.ID)
		assert.Nil(err)
		assert.Len(edges, 1)
		assert.True(edges[0].Accepted)
	})

	t.Run("Delete", func(t *testing.T) {
		assert.Nil(store.DeleteEdge(ctx, bob.ID, alice.ID))
		_, err := store.GetEdge(ctx, alice.ID, bob.ID)
		assert.ErrorIs(err, model.ErrorEdgeNotFound)
	})

	t.Run("Removing a user removes their edges", func(t *testing.T) {
		assert.Nil(store.PutEdge(ctx, &model.FriendEdge{
			LowID:       alice.ID,
			HighID:      bob.ID,
			RequesterID: bob.ID,
			CreatedAt:   time.Now().UTC(),
		}))
		assert.Nil(store.Remove(ctx, bob.ID))

		edges, err := store.EdgesFor(ctx, alice.ID)
		assert.Nil(err)
		assert.Len(edges, 0)

		_, err = store.FindByID(ctx, bob.ID)
		assert.ErrorIs(err, model.ErrorUserNotFound)
	})
}
