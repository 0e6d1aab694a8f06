package friends

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reseau-app/reseau/internal/model"
	"github.com/reseau-app/reseau/internal/notify"
	"github.com/reseau-app/reseau/internal/userstore"
)

type testStore interface {
	Store
	Create(ctx context.Context, params *model.CreateUserParams) (*model.User, error)
	Close() error
}

func newTestService(t *testing.T) (*service, testStore) {
	t.Helper()
	store, err := userstore.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %+v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, "http://localhost:8080"), store
}

func createTestUser(t *testing.T, store testStore, handle string) *model.User {
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

func handles(users []model.User) []string {
	out := []string{}
	for _, u := range users {
		out = append(out, u.Handle)
	}
	return out
}

func TestRequestFriend(t *testing.T) {
	assert := assert.New(t)
	svc, store := newTestService(t)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")

	intent, err := svc.Request(ctx, alice.ID, bob.ID)
	assert.Nil(err)
	assert.Equal(bob.Email, intent.Recipient)
	assert.Equal(notify.KindFriendRequest, intent.Kind)
	assert.Equal("alice", intent.Context["handle"])

	t.Run("Request is idempotent", func(t *testing.T) {
		intent, err := svc.Request(ctx, alice.ID, bob.ID)
		assert.Nil(err)
		assert.True(intent.IsZero())

		pending, err := svc.ListPending(ctx, bob.ID)
		assert.Nil(err)
		assert.Equal([]string{"alice"}, handles(pending))
	})

	t.Run("Reverse request does not create a second edge", func(t *testing.T) {
		intent, err := svc.Request(ctx, bob.ID, alice.ID)
		assert.Nil(err)
		assert.True(intent.IsZero())

		pending, err := svc.ListPending(ctx, alice.ID)
		assert.Nil(err)
		assert.Empty(pending)
	})

	t.Run("Pending is one sided", func(t *testing.T) {
		requested, err := svc.ListRequested(ctx, alice.ID)
		assert.Nil(err)
		assert.Equal([]string{"bob"}, handles(requested))

		pending, err := svc.ListPending(ctx, alice.ID)
		assert.Nil(err)
		assert.Empty(pending)
	})

	t.Run("Self request", func(t *testing.T) {
		_, err := svc.Request(ctx, alice.ID, alice.ID)
		var verr *model.ValidationError
		assert.ErrorAs(err, &verr)
	})

	t.Run("Unknown target", func(t *testing.T) {
		_, err := svc.Request(ctx, alice.ID, model.UserID("missing"))
		assert.ErrorIs(err, model.ErrorUserNotFound)
	})
}

func TestAcceptFriend(t *testing.T) {
	assert := assert.New(t)
	svc, store := newTestService(t)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")

	_, err := svc.Request(ctx, alice.ID, bob.ID)
	assert.Nil(err)

	t.Run("Requester cannot accept their own request", func(t *testing.T) {
		_, err := svc.Accept(ctx, alice.ID, bob.ID)
		assert.ErrorIs(err, model.ErrorNotPending)
	})

	t.Run("Recipient accepts", func(t *testing.T) {
		intent, err := svc.Accept(ctx, bob.ID, alice.ID)
		assert.Nil(err)
		assert.Equal(alice.Email, intent.Recipient)
		assert.Equal(notify.KindFriendAccepted, intent.Kind)
		assert.Equal("bob", intent.Context["handle"])
	})

	t.Run("Acceptance is symmetric", func(t *testing.T) {
		friendsOfAlice, err := svc.ListAccepted(ctx, alice.ID)
		assert.Nil(err)
		assert.Equal([]string{"bob"}, handles(friendsOfAlice))

		friendsOfBob, err := svc.ListAccepted(ctx, bob.ID)
		assert.Nil(err)
		assert.Equal([]string{"alice"}, handles(friendsOfBob))
	})

	t.Run("Accept on accepted pair", func(t *testing.T) {
		_, err := svc.Accept(ctx, bob.ID, alice.ID)
		assert.ErrorIs(err, model.ErrorNotPending)
	})

	t.Run("Accept with no edge", func(t *testing.T) {
		carol := createTestUser(t, store, "carol")
		_, err := svc.Accept(ctx, carol.ID, alice.ID)
		assert.ErrorIs(err, model.ErrorNotPending)
	})
}

func TestRemoveFriend(t *testing.T) {
	assert := assert.New(t)
	svc, store := newTestService(t)
	ctx := context.Background()

	alice := createTestUser(t, store, "alice")
	bob := createTestUser(t, store, "bob")
	carol := createTestUser(t, store, "carol")

	t.Run("Remove pending request", func(t *testing.T) {
		_, err := svc.Request(ctx, alice.ID, bob.ID)
		assert.Nil(err)

		// Removal works from the recipient's side too.
		assert.Nil(svc.Remove(ctx, bob.ID, alice.ID))

		pending, err := svc.ListPending(ctx, bob.ID)
		assert.Nil(err)
		assert.Empty(pending)
		requested, err := svc.ListRequested(ctx, alice.ID)
		assert.Nil(err)
		assert.Empty(requested)
	})

	t.Run("Remove accepted friendship", func(t *testing.T) {
		_, err := svc.Request(ctx, alice.ID, carol.ID)
		assert.Nil(err)
		_, err = svc.Accept(ctx, carol.ID, alice.ID)
		assert.Nil(err)

		assert.Nil(svc.Remove(ctx, alice.ID, carol.ID))

		friends, err := svc.ListAccepted(ctx, alice.ID)
		assert.Nil(err)
		assert.Empty(friends)
		friends, err = svc.ListAccepted(ctx, carol.ID)
		assert.Nil(err)
		assert.Empty(friends)
	})

	t.Run("Remove with no edge is a no-op", func(t *testing.T) {
		assert.Nil(svc.Remove(ctx, alice.ID, bob.ID))
	})

	t.Run("Pair can start over after removal", func(t *testing.T) {
		intent, err := svc.Request(ctx, bob.ID, alice.ID)
		assert.Nil(err)
		assert.False(intent.IsZero())

		pending, err := svc.ListPending(ctx, alice.ID)
		assert.Nil(err)
		assert.Equal([]string{"bob"}, handles(pending))
	})
}
