package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const devSecretKey = "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy"

type (
	ServerConfig struct {
		Host            string
		Address         string
		DebugAddress    string
		ShutdownTimeout time.Duration
	}

	DatabaseConfig struct {
		URI            string
		Name           string
		ConnectTimeout time.Duration
	}

	RedisConfig struct {
		URL         string
		LoginLimit  int
		LoginWindow time.Duration
	}

	B2Config struct {
		AccountID      string
		ApplicationKey string
		Bucket         string
	}

	S3Config struct {
		Endpoint      string
		AccessKey     string
		SecretKey     string
		Bucket        string
		UseSSL        bool
		PublicBaseURL string
	}

	StorageConfig struct {
		Provider string // b2 | s3
		B2       B2Config
		S3       S3Config
	}

	Config struct {
		Env      string
		Build    string
		AppName  string
		Debug    bool
		TestMode bool

		SecretKey                 string
		PasswordResetTimeoutDelta time.Duration
		FrontendBaseURL           string
		DefaultFromEmail          mail.Address
		SendgridApiKey            string
		RollbarToken              string

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Storage  StorageConfig
	}
)

// NewConfig reads the configuration from the process environment.
// A dotenv file at config/.env.<env> (or .env) is loaded first when present.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// defaults
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("app_name", "Jifunze")
	v.SetDefault("build", "develop")
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "noreply@localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debug_address", ":4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("mongodb.database", "jifunze")
	v.SetDefault("mongodb.connect_timeout", 10*time.Second)
	v.SetDefault("login.rate_limit", 10)
	v.SetDefault("login.rate_window", 15*time.Minute)
	v.SetDefault("s3.use_ssl", true)

	conf := &Config{
		Env:                       env,
		Build:                     v.GetString("build"),
		AppName:                   v.GetString("app_name"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  env == "TEST",
		SecretKey:                 v.GetString("secret_key"),
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		SendgridApiKey:            v.GetString("sendgrid_api_key"),
		RollbarToken:              v.GetString("rollbar_token"),
		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			DebugAddress:    v.GetString("server.debug_address"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			URI:            v.GetString("mongodb.uri"),
			Name:           v.GetString("mongodb.database"),
			ConnectTimeout: v.GetDuration("mongodb.connect_timeout"),
		},
		Redis: RedisConfig{
			URL:         v.GetString("redis.url"),
			LoginLimit:  v.GetInt("login.rate_limit"),
			LoginWindow: v.GetDuration("login.rate_window"),
		},
		Storage: StorageConfig{
			Provider: strings.ToLower(v.GetString("storage.provider")),
			B2: B2Config{
				AccountID:      v.GetString("b2.account_id"),
				ApplicationKey: v.GetString("b2.application_key"),
				Bucket:         v.GetString("b2.bucket"),
			},
			S3: S3Config{
				Endpoint:      v.GetString("s3.endpoint"),
				AccessKey:     v.GetString("s3.access_key"),
				SecretKey:     v.GetString("s3.secret_key"),
				Bucket:        v.GetString("s3.bucket"),
				UseSSL:        v.GetBool("s3.use_ssl"),
				PublicBaseURL: strings.TrimRight(v.GetString("s3.public_base_url"), "/"),
			},
		},
	}

	// only local environments get a signing key for free
	if conf.SecretKey == "" && conf.Debug {
		conf.SecretKey = devSecretKey
	}

	from, err := mail.ParseAddress(v.GetString("default_from_email"))
	if err != nil {
		log.Fatalf("config: invalid DEFAULT_FROM_EMAIL: %v", err)
	}
	conf.DefaultFromEmail = *from

	if host, err := os.Hostname(); err == nil {
		conf.Server.Host = host
	}
	return conf
}

// AuthConfigured reports whether tokens can be signed and verified.
func (c *Config) AuthConfigured() bool { return c.SecretKey != "" }

func loadDotEnv(env string) {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config.os.Getwd: %v", err)
	}
	paths := []string{
		filepath.Join(wd, "config", ".env."+strings.ToLower(env)),
		filepath.Join(wd, ".env"),
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				log.Fatalf("config.godotenv(%s): %v", path, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", path, err)
		}
	}
}
