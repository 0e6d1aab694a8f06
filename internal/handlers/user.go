package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/nrednav/cuid2"

	"github.com/reseau-app/reseau/internal/model"
	"github.com/reseau-app/reseau/internal/notify"
)

type UserService interface {
	UserFetcher
	Signup(ctx context.Context, params *model.CreateUserParams) (*model.User, notify.Intent, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
	FetchByHandle(ctx context.Context, handle string) (*model.User, error)
	Search(ctx context.Context, query string) ([]model.User, error)
	UpdateProfile(ctx context.Context, id model.UserID, params *model.ProfileParams) (*model.User, error)
	ChangePassword(ctx context.Context, id model.UserID, params *model.ChangePasswordParams) (notify.Intent, error)
	ForgotPassword(ctx context.Context, email string) (notify.Intent, error)
	CheckResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, password, confirm string) (notify.Intent, error)
	UnlinkProvider(ctx context.Context, id model.UserID, provider model.Provider) error
	SetPhoto(ctx context.Context, id model.UserID, ref string) error
	Delete(ctx context.Context, id model.UserID) error
}

func Signup(users UserService, notifier notify.Notifier, sessionKey []byte) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &model.CreateUserParams{}
		if err := c.Bind(params); err != nil {
			return err
		}
		user, intent, err := users.Signup(c.Request().Context(), params)
		if err != nil {
			return respondError(c, err)
		}
		notify.Dispatch(notifier, intent)

		cookie, err := sessionCookie(user, sessionKey)
		if err != nil {
			return respondError(c, err)
		}
		c.SetCookie(cookie)
		return c.JSON(http.StatusCreated, user)
	}
}

type credentials struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func Login(users UserService, sessionKey []byte) echo.HandlerFunc {
	return func(c echo.Context) error {
		creds := &credentials{}
		if err := c.Bind(creds); err != nil {
			return err
		}
		user, err := users.Authenticate(c.Request().Context(), creds.Email, creds.Password)
		if err != nil {
			return respondError(c, err)
		}

		cookie, err := sessionCookie(user, sessionKey)
		if err != nil {
			return respondError(c, err)
		}
		c.SetCookie(cookie)
		return c.JSON(http.StatusOK, user)
	}
}

func Logout() echo.HandlerFunc {
	return func(c echo.Context) error {
		c.SetCookie(clearedSessionCookie())
		return c.Redirect(http.StatusFound, "/")
	}
}

func AccountGet() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, currentUser(c))
	}
}

func AccountPut(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &model.ProfileParams{}
		if err := c.Bind(params); err != nil {
			return err
		}
		updated, err := users.UpdateProfile(c.Request().Context(), currentUser(c).ID, params)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func PasswordPut(users UserService, notifier notify.Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &model.ChangePasswordParams{}
		if err := c.Bind(params); err != nil {
			return err
		}
		intent, err := users.ChangePassword(c.Request().Context(), currentUser(c).ID, params)
		if err != nil {
			return respondError(c, err)
		}
		notify.Dispatch(notifier, intent)
		return c.JSON(http.StatusOK, echo.Map{"message": "your password has been changed"})
	}
}

func AccountDelete(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := users.Delete(c.Request().Context(), currentUser(c).ID); err != nil {
			return respondError(c, err)
		}
		c.SetCookie(clearedSessionCookie())
		return c.JSON(http.StatusOK, echo.Map{"message": "your account has been permanently deleted"})
	}
}

func Unlink(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		provider := model.Provider(c.Param("provider"))
		err := users.UnlinkProvider(c.Request().Context(), currentUser(c).ID, provider)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "your account has been unlinked"})
	}
}

// Upload accepts a single photo field and records the stored file name on
// the profile. Storage is a directory under the data dir; nothing fancier.
func Upload(users UserService, dataDirectory string) echo.HandlerFunc {
	return func(c echo.Context) error {
		file, err := c.FormFile("photo")
		if err != nil {
			return respondError(c, model.NewValidationError("photo", "no file was uploaded"))
		}

		src, err := file.Open()
		if err != nil {
			return respondError(c, fmt.Errorf("opening upload: %w", err))
		}
		defer src.Close()

		uploadDir := path.Join(dataDirectory, "uploads")
		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			return respondError(c, fmt.Errorf("creating upload directory: %w", err))
		}

		ref := cuid2.Generate() + path.Ext(file.Filename)
		dst, err := os.Create(path.Join(uploadDir, ref))
		if err != nil {
			return respondError(c, fmt.Errorf("creating upload file: %w", err))
		}
		defer dst.Close()
		if _, err := io.Copy(dst, src); err != nil {
			return respondError(c, fmt.Errorf("writing upload: %w", err))
		}

		if err := users.SetPhoto(c.Request().Context(), currentUser(c).ID, ref); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"message": "your image has been uploaded", "photo": ref})
	}
}

// Forgot answers the same way whether or not the address matched an
// account, so the form cannot be used to probe for members.
func Forgot(users UserService, notifier notify.Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		creds := &credentials{}
		if err := c.Bind(creds); err != nil {
			return err
		}
		intent, err := users.ForgotPassword(c.Request().Context(), creds.Email)
		if err != nil && !errors.Is(err, model.ErrorUserNotFound) {
			return respondError(c, err)
		}
		notify.Dispatch(notifier, intent)
		return c.JSON(http.StatusOK, echo.Map{
			"message": "if that address matches an account, an email with further instructions has been sent",
		})
	}
}

func ResetGet(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := users.CheckResetToken(c.Request().Context(), c.Param("token")); err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "the password reset link is invalid or has expired"})
		}
		return c.JSON(http.StatusOK, echo.Map{"token": c.Param("token")})
	}
}

func ResetPost(users UserService, notifier notify.Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &model.ChangePasswordParams{}
		if err := c.Bind(params); err != nil {
			return err
		}
		intent, err := users.ResetPassword(c.Request().Context(), c.Param("token"), params.Password, params.Confirm)
		if err != nil {
			if errors.Is(err, model.ErrorUserNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"message": "the password reset link is invalid or has expired"})
			}
			return respondError(c, err)
		}
		notify.Dispatch(notifier, intent)
		return c.JSON(http.StatusOK, echo.Map{"message": "your password has been changed"})
	}
}

func SearchUsers(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		query := &struct {
			Query string `json:"query" form:"query" query:"query"`
		}{}
		if err := c.Bind(query); err != nil {
			return err
		}
		found, err := users.Search(c.Request().Context(), query.Query)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, found)
	}
}
