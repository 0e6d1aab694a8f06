package boot

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env            string `env:"ENV,default=dev"`
	ListenAddress  string `env:"LISTEN_ADDR,default=:8080"`
	MetricsAddress string `env:"METRICS_ADDR,default=:8081"`
	BaseURL        string `env:"BASE_URL,default=http://localhost:8080"`
	DataDirectory  string `env:"DATA_DIR,default=./data"`
	DatabaseFile   string `env:"DATABASE_FILE,default=reseau.db"`
	SessionKey     string `env:"SESSION_KEY,default=dev-session-key"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       string `env:"SMTP_PORT,default=587"`
	SMTPUsername   string `env:"SMTP_USERNAME"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
	MailFrom       string `env:"MAIL_FROM,default=no-reply@reseau.local"`
	ContactAddress string `env:"CONTACT_ADDR,default=contact@reseau.local"`
}

func Load() (Config, error) {
	config := Config{}
	if err := envconfig.Process(context.Background(), &config); err != nil {
		return Config{}, fmt.Errorf("parsing env vars: %w", err)
	}
	return config, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}
