package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reseau-app/reseau/internal/model"
	"github.com/reseau-app/reseau/internal/notify"
)

type FriendService interface {
	Request(ctx context.Context, requesterID, targetID model.UserID) (notify.Intent, error)
	Accept(ctx context.Context, userID, requesterID model.UserID) (notify.Intent, error)
	Remove(ctx context.Context, userID, otherID model.UserID) error
	ListAccepted(ctx context.Context, userID model.UserID) ([]model.User, error)
	ListPending(ctx context.Context, userID model.UserID) ([]model.User, error)
	ListRequested(ctx context.Context, userID model.UserID) ([]model.User, error)
}

func MemberGet(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		member, err := users.FetchByHandle(c.Request().Context(), c.Param("handle"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, member)
	}
}

// FriendRequest sends a request to the member named in the path. The mail
// goes out after the response; a duplicate request is answered the same way
// without creating anything.
func FriendRequest(friends FriendService, users UserService, notifier notify.Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		target, err := users.FetchByHandle(c.Request().Context(), c.Param("handle"))
		if err != nil {
			return respondError(c, err)
		}
		intent, err := friends.Request(c.Request().Context(), currentUser(c).ID, target.ID)
		if err != nil {
			return respondError(c, err)
		}
		notify.Dispatch(notifier, intent)
		return c.JSON(http.StatusOK, echo.Map{
			"message": fmt.Sprintf("your friend request has been sent to %s", target.Handle),
		})
	}
}

func FriendAccept(friends FriendService, users UserService, notifier notify.Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		requester, err := users.FetchByHandle(c.Request().Context(), c.Param("handle"))
		if err != nil {
			return respondError(c, err)
		}
		intent, err := friends.Accept(c.Request().Context(), currentUser(c).ID, requester.ID)
		if err != nil {
			return respondError(c, err)
		}
		notify.Dispatch(notifier, intent)
		return c.JSON(http.StatusOK, echo.Map{
			"message": fmt.Sprintf("you are now friends with %s", requester.Handle),
		})
	}
}

func FriendRemove(friends FriendService, users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		other, err := users.FetchByHandle(c.Request().Context(), c.Param("handle"))
		if err != nil {
			return respondError(c, err)
		}
		if err := friends.Remove(c.Request().Context(), currentUser(c).ID, other.ID); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message": fmt.Sprintf("%s has been removed from your friends", other.Handle),
		})
	}
}

// Wall returns the viewer's relationship overview: accepted friends,
// requests waiting on them and their own unanswered requests.
func Wall(friends FriendService) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID := currentUser(c).ID

		accepted, err := friends.ListAccepted(ctx, userID)
		if err != nil {
			return respondError(c, err)
		}
		pending, err := friends.ListPending(ctx, userID)
		if err != nil {
			return respondError(c, err)
		}
		requested, err := friends.ListRequested(ctx, userID)
		if err != nil {
			return respondError(c, err)
		}

		return c.JSON(http.StatusOK, echo.Map{
			"friends":  accepted,
			"incoming": pending,
			"outgoing": requested,
		})
	}
}
