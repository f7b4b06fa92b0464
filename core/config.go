package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		AuthRateLimit             float64 // requests per second per IP on login & password reset
		AuthRateBurst             int
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	CacheConfig struct {
		TTL        time.Duration
		MaxEntries int64
	}

	KnowledgeConfig struct {
		BlobBackend   string // local | gcs
		BlobDir       string
		GCSBucket     string
		MaxUploadSize int64
		ChunkSize     int
		ChunkOverlap  int
		Workers       int
		QueueSize     int
	}

	Config struct {
		AppName                   string
		Build                     string
		Env                       string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		WorkDir                   string
		RollbarToken              string
		SendgridApiKey            string
		PasswordResetTimeoutDelta time.Duration

		Server    ServerConfig
		Database  DatabaseConfig
		Cache     CacheConfig
		Knowledge KnowledgeConfig

		defaultFromEmail string
	}
)

func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port))
}

func (conf *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
}

// NewConfig loads the app configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the current env, eg. `PROD_SECRETKEY`.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Academia")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 4*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.authRateLimit", 1.0)
	v.SetDefault("server.authRateBurst", 5)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "academia")
	v.SetDefault("database.user", "academia")
	v.SetDefault("database.password", "academia")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.maxEntries", 10000)

	v.SetDefault("knowledge.blobBackend", "local")
	v.SetDefault("knowledge.blobDir", filepath.Join(os.TempDir(), "academia-blobs"))
	v.SetDefault("knowledge.gcsBucket", "")
	v.SetDefault("knowledge.maxUploadSize", 10<<20)
	v.SetDefault("knowledge.chunkSize", 1000)
	v.SetDefault("knowledge.chunkOverlap", 100)
	v.SetDefault("knowledge.workers", 4)
	v.SetDefault("knowledge.queueSize", 64)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
		v.SetDefault("database.engine", "memory")
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("appName"),
		Build:                     v.GetString("build"),
		Env:                       env,
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		WorkDir:                   wd,
		RollbarToken:              v.GetString("rollbarToken"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			AuthRateLimit:             v.GetFloat64("server.authRateLimit"),
			AuthRateBurst:             v.GetInt("server.authRateBurst"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Cache: CacheConfig{
			TTL:        v.GetDuration("cache.ttl"),
			MaxEntries: v.GetInt64("cache.maxEntries"),
		},
		Knowledge: KnowledgeConfig{
			BlobBackend:   v.GetString("knowledge.blobBackend"),
			BlobDir:       v.GetString("knowledge.blobDir"),
			GCSBucket:     v.GetString("knowledge.gcsBucket"),
			MaxUploadSize: v.GetInt64("knowledge.maxUploadSize"),
			ChunkSize:     v.GetInt("knowledge.chunkSize"),
			ChunkOverlap:  v.GetInt("knowledge.chunkOverlap"),
			Workers:       v.GetInt("knowledge.workers"),
			QueueSize:     v.GetInt("knowledge.queueSize"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests: in-memory DB, test mode, fixed secret.
func NewTestConfig() *Config {
	return &Config{
		AppName:                   "Academia",
		Build:                     "test",
		Env:                       "TEST",
		Debug:                     false,
		TestMode:                  true,
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		WorkDir:                   Getwd(),
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		Server: ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			ShutdownTimeout:           time.Second,
			AuthRateLimit:             100,
			AuthRateBurst:             100,
		},
		Database: DatabaseConfig{Engine: "memory"},
		Cache:    CacheConfig{TTL: time.Minute, MaxEntries: 1000},
		Knowledge: KnowledgeConfig{
			BlobBackend:   "local",
			MaxUploadSize: 1 << 20,
			ChunkSize:     200,
			ChunkOverlap:  20,
			Workers:       2,
			QueueSize:     16,
		},
		defaultFromEmail: "noreply@test.local",
	}
}
