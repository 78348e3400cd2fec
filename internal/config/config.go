package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL"`
	UsersFile      string `env:"USERS_FILE" envDefault:"users.json"`
	JWTSecret      string `env:"JWT_SECRET,required"`
	TokenTTLHours  int    `env:"TOKEN_TTL_HOURS" envDefault:"24"`
	OTPTTLMinutes  int    `env:"OTP_TTL_MINUTES" envDefault:"10"`
	OTPMaxAttempts int    `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`
	OTPRateMax     int    `env:"OTP_RATE_MAX" envDefault:"3"`
	KDFIterations  int    `env:"PBKDF2_ITERATIONS" envDefault:"100000"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPass       string `env:"SMTP_PASS"`
	SMTPFrom       string `env:"SMTP_FROM"`
	SMTPFromName   string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS     bool   `env:"SMTP_USE_TLS" envDefault:"false"`
	RedisAddr      string `env:"REDIS_ADDR"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
