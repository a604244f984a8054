package config

import (
	"time"

	"github.com/ardanlabs/conf/v3"
)

type Config struct {
	conf.Version
	Web      Web
	Cors     Cors
	DB       DB
	Redis    Redis
	Auth     Auth
	Daraja   Daraja
	Checkout Checkout
	Sweeper  Sweeper
	Log      Log
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type DB struct {
	User         string `conf:"default:postgres"`
	Password     string `conf:"default:postgres,mask"`
	Host         string `conf:"default:localhost:5432"`
	Name         string `conf:"default:shoply"`
	MaxIdleConns int    `conf:"default:2"`
	MaxOpenConns int    `conf:"default:0"`
	DisableTLS   bool   `conf:"default:true"`
	Migrate      bool   `conf:"default:true"`
}

type Redis struct {
	Addr     string        `conf:"default:localhost:6379"`
	Password string        `conf:"mask"`
	DB       int           `conf:"default:0"`
	CacheTTL time.Duration `conf:"default:15m"`
}

type Auth struct {
	Issuer           string        `conf:"required"`
	ClientID         string        `conf:"required"`
	DiscoveryTimeout time.Duration `conf:"default:10s"`
}

type Daraja struct {
	BaseURL         string        `conf:"default:https://sandbox.safaricom.co.ke"`
	ConsumerKey     string        `conf:"required,mask"`
	ConsumerSecret  string        `conf:"required,mask"`
	Shortcode       string        `conf:"required"`
	Passkey         string        `conf:"required,mask"`
	TransactionType string        `conf:"default:CustomerPayBillOnline"`
	CallbackURL     string        `conf:"required"`
	Timeout         time.Duration `conf:"default:30s"`
}

type Checkout struct {
	PollAttempts int           `conf:"default:24"`
	PollInterval time.Duration `conf:"default:5s"`
	RateBurst    int           `conf:"default:3"`
	RateInterval time.Duration `conf:"default:20s"`
	RateExpiry   int           `conf:"default:30,help:minutes before an idle principal limiter is dropped"`
}

type Sweeper struct {
	Enabled  bool          `conf:"default:true"`
	Interval time.Duration `conf:"default:1m"`
	MinAge   time.Duration `conf:"default:3m"`
	Deadline time.Duration `conf:"default:15m"`
	Batch    int           `conf:"default:50"`
}

type Log struct {
	File       string
	MaxSizeMB  int `conf:"default:50"`
	MaxBackups int `conf:"default:3"`
}
