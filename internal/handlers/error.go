package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/reseau-app/reseau/internal/model"
)

// respondError maps domain errors onto user-visible responses. Missing
// records get the same generic message everywhere so existence never leaks;
// store failures are logged and reported as a generic failure.
func respondError(c echo.Context, err error) error {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"message": verr.Message})
	case errors.Is(err, model.ErrorDuplicateKey):
		return c.JSON(http.StatusConflict, echo.Map{
			"message": "the email address or handle is already associated with another account",
		})
	case errors.Is(err, model.ErrorUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"message": "not found"})
	case errors.Is(err, model.ErrorNotPending):
		return c.JSON(http.StatusConflict, echo.Map{"message": "there is no pending friend request to accept"})
	case errors.Is(err, model.ErrorInvalidUsernameOrPassword):
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid email or password"})
	default:
		log.Errorf("request failed: %+v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "something went wrong"})
	}
}
