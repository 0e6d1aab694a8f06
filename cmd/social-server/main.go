package main

import (
	"context"
	"errors"
	"html/template"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"

	"github.com/reseau-app/reseau/internal/boot"
	"github.com/reseau-app/reseau/internal/chat"
	"github.com/reseau-app/reseau/internal/handlers"
	"github.com/reseau-app/reseau/internal/notify"
	"github.com/reseau-app/reseau/internal/service/friends"
	"github.com/reseau-app/reseau/internal/service/user"
	"github.com/reseau-app/reseau/internal/userstore"
)

type Template struct {
	templates *template.Template
	watcher   *fsnotify.Watcher
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

func (t *Template) Watch() {
	var err error

	t.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		log.Fatalf("watcher: %+v", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-t.watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) {
					log.Infof("modified file: %s", event.Name)
					t.templates = template.Must(template.ParseGlob("ui/views/*.html"))
				}
			case err, ok := <-t.watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("watcher: %+v", err)
			}
		}
	}()

	err = t.watcher.Add("./ui/views")
	if err != nil {
		log.Fatalf("watcher: %+v", err)
	}
}

func (t *Template) Close() {
	if t.watcher != nil {
		t.watcher.Close()
	}
}

func NewTemplate() (*Template, error) {
	t := &Template{
		templates: template.Must(template.ParseGlob("ui/views/*.html")),
	}
	return t, nil
}

func main() {
	config, err := boot.Load()
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}

	if err := os.MkdirAll(config.DataDirectory, 0o755); err != nil {
		log.Fatalf("creating data directory: %+v", err)
	}

	store, err := userstore.New("file:" + path.Join(config.DataDirectory, config.DatabaseFile))
	if err != nil {
		log.Fatalf("opening user store: %+v", err)
	}
	defer store.Close()

	userService := user.New(store, config.BaseURL)
	friendService := friends.New(store, config.BaseURL)
	mailer := notify.NewMailer(config.SMTPHost, config.SMTPPort, config.SMTPUsername, config.SMTPPassword, config.MailFrom)
	hub := chat.NewHub()
	sessionKey := []byte(config.SessionKey)

	server := echo.New()
	server.Use(middleware.BodyLimit("100M"))
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	server.Use(echoprometheus.NewMiddleware("reseau"))
	server.Use(middleware.Recover())
	server.Use(handlers.WithUser(userService, sessionKey))

	server.Logger.SetLevel(log.INFO)

	server.Static("/static", "ui/static")
	server.Static("/uploads", path.Join(config.DataDirectory, "uploads"))

	t, _ := NewTemplate()
	defer t.Close()
	if config.IsDevelopment() {
		t.Watch()
	}
	server.Renderer = t

	server.GET("/", func(c echo.Context) error {
		return c.Render(http.StatusOK, "app.html", nil)
	})

	server.POST("/signup", handlers.Signup(userService, mailer, sessionKey))
	server.POST("/login", handlers.Login(userService, sessionKey))
	server.GET("/logout", handlers.Logout())
	server.POST("/forgot", handlers.Forgot(userService, mailer))
	server.GET("/reset/:token", handlers.ResetGet(userService))
	server.POST("/reset/:token", handlers.ResetPost(userService, mailer))
	server.POST("/contact", handlers.Contact(mailer, config.ContactAddress))
	server.GET("/ws", handlers.ChatWS(hub))

	server.GET("/account", handlers.AccountGet(), handlers.RequireUser)
	server.PUT("/account", handlers.AccountPut(userService), handlers.RequireUser)
	server.PUT("/account/password", handlers.PasswordPut(userService, mailer), handlers.RequireUser)
	server.DELETE("/account", handlers.AccountDelete(userService), handlers.RequireUser)
	server.POST("/upload", handlers.Upload(userService, config.DataDirectory), handlers.RequireUser)
	server.GET("/unlink/:provider", handlers.Unlink(userService), handlers.RequireUser)
	server.POST("/search", handlers.SearchUsers(userService), handlers.RequireUser)
	server.GET("/wall", handlers.Wall(friendService), handlers.RequireUser)
	server.GET("/account/:handle", handlers.MemberGet(userService), handlers.RequireUser)
	server.POST("/account/:handle", handlers.FriendRequest(friendService, userService, mailer), handlers.RequireUser)
	server.DELETE("/account/:handle", handlers.FriendRemove(friendService, userService), handlers.RequireUser)
	server.POST("/friends/:handle/accept", handlers.FriendAccept(friendService, userService, mailer), handlers.RequireUser)

	go func() {
		metrics := echo.New()
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(config.MetricsAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	go func() {
		if err := server.Start(config.ListenAddress); err != nil && err != http.ErrServerClosed {
			server.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		server.Logger.Fatal(err)
	}
}
