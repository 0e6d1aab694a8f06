// Package friends implements the friend-relationship state machine over the
// user store. Each pair of users has at most one edge: none, pending with a
// recorded requester, or accepted. Transitions return notification intents;
// delivery is the caller's business.
package friends

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reseau-app/reseau/internal/model"
	"github.com/reseau-app/reseau/internal/notify"
)

type Store interface {
	FindByID(ctx context.Context, id model.UserID) (*model.User, error)
	GetEdge(ctx context.Context, a, b model.UserID) (*model.FriendEdge, error)
	PutEdge(ctx context.Context, edge *model.FriendEdge) error
	DeleteEdge(ctx context.Context, a, b model.UserID) error
	EdgesFor(ctx context.Context, id model.UserID) ([]model.FriendEdge, error)
}

type service struct {
	store   Store
	baseURL string
}

func New(store Store, baseURL string) *service {
	return &service{store: store, baseURL: baseURL}
}

// Request moves a pair from no relation to pending. Requesting twice, or
// requesting an already accepted friend, is a no-op and returns a zero
// intent.
func (s *service) Request(ctx context.Context, requesterID, targetID model.UserID) (notify.Intent, error) {
	if requesterID == targetID {
		return notify.Intent{}, model.NewValidationError("friend", "cannot befriend yourself")
	}

	requester, err := s.store.FindByID(ctx, requesterID)
	if err != nil {
		return notify.Intent{}, fmt.Errorf("fetching requester: %w", err)
	}
	target, err := s.store.FindByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, model.ErrorUserNotFound) {
			return notify.Intent{}, model.ErrorUserNotFound
		}
		return notify.Intent{}, fmt.Errorf("fetching target: %w", err)
	}

	_, err = s.store.GetEdge(ctx, requesterID, targetID)
	if err == nil {
		return notify.Intent{}, nil
	}
	if !errors.Is(err, model.ErrorEdgeNotFound) {
		return notify.Intent{}, fmt.Errorf("checking existing edge: %w", err)
	}

	edge := &model.FriendEdge{
		LowID:       requesterID,
		HighID:      targetID,
		RequesterID: requesterID,
		Accepted:    false,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.PutEdge(ctx, edge); err != nil {
		return notify.Intent{}, fmt.Errorf("writing request edge: %w", err)
	}

	return notify.Intent{
		Recipient: target.Email,
		Kind:      notify.KindFriendRequest,
		Context: map[string]string{
			"handle":  requester.Handle,
			"baseURL": s.baseURL,
		},
	}, nil
}

// Accept flips a pending edge to accepted. Only the non-requester may
// accept; anything else, including accepting your own request or a pair
// with no edge, fails with ErrorNotPending.
func (s *service) Accept(ctx context.Context, userID, requesterID model.UserID) (notify.Intent, error) {
	edge, err := s.store.GetEdge(ctx, userID, requesterID)
	if err != nil {
		if errors.Is(err, model.ErrorEdgeNotFound) {
			return notify.Intent{}, model.ErrorNotPending
		}
		return notify.Intent{}, fmt.Errorf("fetching edge: %w", err)
	}
	if edge.Accepted || edge.RequesterID != requesterID || edge.RequesterID == userID {
		return notify.Intent{}, model.ErrorNotPending
	}

	edge.Accepted = true
	if err := s.store.PutEdge(ctx, edge); err != nil {
		return notify.Intent{}, fmt.Errorf("accepting edge: %w", err)
	}

	accepter, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return notify.Intent{}, fmt.Errorf("fetching accepter: %w", err)
	}
	requester, err := s.store.FindByID(ctx, requesterID)
	if err != nil {
		return notify.Intent{}, fmt.Errorf("fetching requester: %w", err)
	}

	return notify.Intent{
		Recipient: requester.Email,
		Kind:      notify.KindFriendAccepted,
		Context: map[string]string{
			"handle":  accepter.Handle,
			"baseURL": s.baseURL,
		},
	}, nil
}

// Remove deletes the edge whatever its state. Either side may call it and
// removing a missing edge is a no-op.
func (s *service) Remove(ctx context.Context, userID, otherID model.UserID) error {
	if err := s.store.DeleteEdge(ctx, userID, otherID); err != nil {
		return fmt.Errorf("removing edge: %w", err)
	}
	return nil
}

// ListAccepted returns the user's friends. Acceptance is symmetric: both
// sides see the same friendship.
func (s *service) ListAccepted(ctx context.Context, userID model.UserID) ([]model.User, error) {
	return s.listEdges(ctx, userID, func(e *model.FriendEdge) bool {
		return e.Accepted
	})
}

// ListPending returns the users whose requests await userID's decision.
func (s *service) ListPending(ctx context.Context, userID model.UserID) ([]model.User, error) {
	return s.listEdges(ctx, userID, func(e *model.FriendEdge) bool {
		return !e.Accepted && e.RequesterID != userID
	})
}

// ListRequested returns userID's own outgoing requests still unanswered.
func (s *service) ListRequested(ctx context.Context, userID model.UserID) ([]model.User, error) {
	return s.listEdges(ctx, userID, func(e *model.FriendEdge) bool {
		return !e.Accepted && e.RequesterID == userID
	})
}

func (s *service) listEdges(ctx context.Context, userID model.UserID, keep func(*model.FriendEdge) bool) ([]model.User, error) {
	edges, err := s.store.EdgesFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching edges: %w", err)
	}

	users := []model.User{}
	for i := range edges {
		edge := &edges[i]
		if !keep(edge) {
			continue
		}
		other, err := s.store.FindByID(ctx, edge.Other(userID))
		if err != nil {
			// The other record may have been removed without cascading.
			if errors.Is(err, model.ErrorUserNotFound) {
				continue
			}
			return nil, fmt.Errorf("fetching friend: %w", err)
		}
		users = append(users, *other)
	}
	return users, nil
}
