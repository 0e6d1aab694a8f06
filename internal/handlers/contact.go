package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/reseau-app/reseau/internal/model"
	"github.com/reseau-app/reseau/internal/notify"
)

type contactForm struct {
	Name    string `json:"name" form:"name"`
	Email   string `json:"email" form:"email"`
	Message string `json:"message" form:"message"`
}

// Contact relays the form to the site address. Delivery is fire-and-forget;
// the sender gets a thank-you either way.
func Contact(notifier notify.Notifier, contactAddress string) echo.HandlerFunc {
	return func(c echo.Context) error {
		form := &contactForm{}
		if err := c.Bind(form); err != nil {
			return err
		}
		if form.Name == "" {
			return respondError(c, model.NewValidationError("name", "name must be provided"))
		}
		if form.Email == "" {
			return respondError(c, model.NewValidationError("email", "email must be provided"))
		}
		if form.Message == "" {
			return respondError(c, model.NewValidationError("message", "message cannot be empty"))
		}

		notify.Dispatch(notifier, notify.Intent{
			Recipient: contactAddress,
			Kind:      notify.KindContact,
			Context: map[string]string{
				"name":    form.Name,
				"email":   form.Email,
				"message": form.Message,
			},
		})
		return c.JSON(http.StatusOK, echo.Map{"message": "thank you, your message has been sent"})
	}
}
