package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/reseau-app/reseau/internal/chat"
)

// ChatWS upgrades to a websocket and hands the connection to the hub. The
// channel runs on self-declared display names, so no login is enforced here.
func ChatWS(hub *chat.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		return chat.Serve(hub, c.Response(), c.Request())
	}
}
