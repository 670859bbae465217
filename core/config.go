package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName                   string
		Env                       string // DEV (local; default), TEST, QA, PROD
		Build                     string
		Debug                     bool
		TestMode                  bool
		WorkDir                   string
		SecretKey                 string
		SetupKey                  string // guards the setup endpoints; disabled when empty
		FrontendBaseURL           string
		SendgridApiKey            string
		RollbarToken              string
		PasswordResetTimeoutDelta time.Duration
		defaultFromEmail          string

		Server      ServerConfig
		Database    DatabaseConfig
		Uploads     UploadsConfig
		Submissions SubmissionsConfig
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		SessionCookieName         string
		SecureCookie              bool
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	UploadsConfig struct {
		Backend          string // disk | b2
		Dir              string
		URLPrefix        string
		MaxSize          int64
		MaxAge           time.Duration
		SweepProbability float64
		B2AccountID      string
		B2AppKey         string
		B2Bucket         string
	}

	SubmissionsConfig struct {
		MaxBackupSize int64
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func (c *Config) SetDefaultFromEmail(addr string) { c.defaultFromEmail = addr }

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads the Config from defaults, `config/.env.<env>` and the environment (prefixed with ENV).
func NewConfig() *Config {
	v := viper.New()

	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "m3_x+8*w0z!r7%ptq=ue&lc^2#dxb@v4(hk9s$j)y1n-f6o5ga")
	v.SetDefault("setupKey", "")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "Darasa <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 5*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.sessionCookieName", "darasa_session")
	v.SetDefault("server.secureCookie", false)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "darasa")
	v.SetDefault("database.user", "darasa")
	v.SetDefault("database.password", "darasa")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 25)

	v.SetDefault("uploads.backend", "disk")
	v.SetDefault("uploads.dir", "uploads")
	v.SetDefault("uploads.urlPrefix", "/v1/uploads/")
	v.SetDefault("uploads.maxSize", 10<<20)
	v.SetDefault("uploads.maxAge", 24*time.Hour)
	v.SetDefault("uploads.sweepProbability", 0.1)
	v.SetDefault("uploads.b2AccountID", "")
	v.SetDefault("uploads.b2AppKey", "")
	v.SetDefault("uploads.b2Bucket", "")

	v.SetDefault("submissions.maxBackupSize", 5<<20)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	case "PROD":
		v.SetDefault("debug", false)
		v.SetDefault("server.secureCookie", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	uploadsDir := v.GetString("uploads.dir")
	if !filepath.IsAbs(uploadsDir) {
		uploadsDir = filepath.Join(wd, uploadsDir)
	}

	return &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		WorkDir:                   wd,
		SecretKey:                 v.GetString("secretKey"),
		SetupKey:                  v.GetString("setupKey"),
		FrontendBaseURL:           strings.TrimSuffix(v.GetString("frontendBaseURL"), "/"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),

		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			SessionCookieName:         v.GetString("server.sessionCookieName"),
			SecureCookie:              v.GetBool("server.secureCookie"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
		},
		Uploads: UploadsConfig{
			Backend:          v.GetString("uploads.backend"),
			Dir:              uploadsDir,
			URLPrefix:        v.GetString("uploads.urlPrefix"),
			MaxSize:          v.GetInt64("uploads.maxSize"),
			MaxAge:           v.GetDuration("uploads.maxAge"),
			SweepProbability: v.GetFloat64("uploads.sweepProbability"),
			B2AccountID:      v.GetString("uploads.b2AccountID"),
			B2AppKey:         v.GetString("uploads.b2AppKey"),
			B2Bucket:         v.GetString("uploads.b2Bucket"),
		},
		Submissions: SubmissionsConfig{
			MaxBackupSize: v.GetInt64("submissions.maxBackupSize"),
		},
	}
}

// NewTestConfig returns the Config used by tests: TEST mode, no request logs and uploads under a temp dir.
func NewTestConfig(uploadsDir string) *Config {
	_ = os.Setenv("ENV", "TEST")
	conf := NewConfig()
	conf.Env = "TEST"
	conf.Debug = false
	conf.TestMode = true
	conf.SecretKey = "test-secret"
	conf.FrontendBaseURL = "http://test.darasa"
	conf.Server.DisableReqLogs = true
	conf.Uploads.Dir = uploadsDir
	conf.Uploads.SweepProbability = 0
	return conf
}
