package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"APP_ENV" env-default:"local" json:"-"`
	HTTPServer HTTPServer `yaml:"http_server" json:"-"`
	Storage    Storage    `yaml:"storage" json:"-"`
	Auth       Auth       `yaml:"auth" json:"-"`
	Uploads    Uploads    `yaml:"uploads" json:"-"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Storage struct {
	// Driver is "pgx" or "sqlite3". The sqlite backend serves local runs
	// and tests; production uses postgres.
	Driver      string `yaml:"driver" env:"DB_DRIVER" env-default:"pgx"`
	DatabaseDSN string `yaml:"database_dsn" env:"DATABASE_URL"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH" env-default:"maeul.db"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	TokenTTL  time.Duration `yaml:"token_ttl" env-default:"168h"`
}

type Uploads struct {
	Bucket     string        `yaml:"bucket" env:"S3_BUCKET"`
	Region     string        `yaml:"region" env:"S3_REGION"`
	Endpoint   string        `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey  string        `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey  string        `yaml:"secret_key" env:"S3_SECRET_KEY"`
	PresignTTL time.Duration `yaml:"presign_ttl" env-default:"15m"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config %s", err)
	}

	return &cfg
}
