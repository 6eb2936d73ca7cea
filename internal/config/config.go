package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type ServerCfg struct {
	Env          string
	Port         string
	MaxBodyBytes int64
}

type SolanaCfg struct {
	Network     string
	RPCEndpoint string
	USDCMint    string
	RPCTimeout  time.Duration
}

type DBCfg struct{ DSN string }

type RedisCfg struct {
	Addr     string
	Password string
	DB       int
}

// FeeCfg holds the process-wide AfriPay surcharge settings.
type FeeCfg struct {
	Rate           decimal.Decimal
	FixedFeeUSD    decimal.Decimal
	SOLPriceUSD    decimal.Decimal // used to express the fixed fee in SOL
	PlatformWallet string
	Label          string
	IconURL        string
	QRBaseURL      string
}

type SecurityCfg struct {
	RateLimit       int
	RateLimitWindow time.Duration
	AllowedOrigins  []string
}

type EmailCfg struct {
	ResendAPIKey string
	FromEmail    string
	BaseURL      string
}

type WorkerCfg struct {
	Enabled   bool
	PollEvery time.Duration
	BatchSize int
}

type Cfg struct {
	Server ServerCfg
	Solana SolanaCfg
	DB     DBCfg
	Redis  RedisCfg
	Fee    FeeCfg
	Sec    SecurityCfg
	Email  EmailCfg
	Worker WorkerCfg
}

// IsDevelopment reports whether internal error detail may be echoed to clients.
func (c Cfg) IsDevelopment() bool { return c.Server.Env == "development" }

var usdcMints = map[string]string{
	"mainnet-beta": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
	"devnet":       "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU",
}

var rpcEndpoints = map[string]string{
	"mainnet-beta": "https://api.mainnet-beta.solana.com",
	"devnet":       "https://api.devnet.solana.com",
	"testnet":      "https://api.testnet.solana.com",
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("NODE_ENV", "development")
	v.SetDefault("PORT", "3001")
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("SOLANA_NETWORK", "devnet")
	v.SetDefault("SOLANA_RPC_TIMEOUT", "20s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("AFRIPAY_FEE_RATE", "0.029")
	v.SetDefault("AFRIPAY_FIXED_FEE_USD", "0.30")
	v.SetDefault("AFRIPAY_SOL_PRICE_USD", "150")
	v.SetDefault("AFRIPAY_LABEL", "AfriPay")
	v.SetDefault("AFRIPAY_QR_BASE_URL", "https://api.qrserver.com/v1/create-qr-code/")
	v.SetDefault("RATE_LIMIT", 100)
	v.SetDefault("RATE_LIMIT_WINDOW", "15")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("RESEND_FROM_EMAIL", "AfriPay <payments@afripay.africa>")
	v.SetDefault("RESEND_BASE_URL", "https://api.resend.com")
	v.SetDefault("WORKER_ENABLED", false)
	v.SetDefault("WORKER_POLL_INTERVAL", "15s")
	v.SetDefault("WORKER_BATCH_SIZE", 25)
}

// Load reads .env and the process environment, exiting on invalid settings.
func Load() Cfg {
	// 1) .env is optional
	_ = godotenv.Load()

	// 2) Read from env via viper
	v := viper.New()
	v.AutomaticEnv()
	SetDefaults(v)

	cfg, err := FromViper(v)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	return cfg
}

// SolanaFromViper resolves the network's RPC endpoint and USDC mint unless
// they are set explicitly.
func SolanaFromViper(v *viper.Viper) SolanaCfg {
	network := strings.TrimSpace(v.GetString("SOLANA_NETWORK"))

	rpcEndpoint := strings.TrimSpace(v.GetString("RPC_ENDPOINT"))
	if rpcEndpoint == "" {
		rpcEndpoint = rpcEndpoints[network]
	}
	usdcMint := strings.TrimSpace(v.GetString("USDC_MINT"))
	if usdcMint == "" {
		usdcMint = usdcMints[network]
	}
	return SolanaCfg{
		Network:     network,
		RPCEndpoint: rpcEndpoint,
		USDCMint:    usdcMint,
		RPCTimeout:  v.GetDuration("SOLANA_RPC_TIMEOUT"),
	}
}

// FeeFromViper parses the surcharge settings.
func FeeFromViper(v *viper.Viper) (FeeCfg, error) {
	rate, err := decimal.NewFromString(v.GetString("AFRIPAY_FEE_RATE"))
	if err != nil {
		return FeeCfg{}, fmt.Errorf("AFRIPAY_FEE_RATE: %w", err)
	}
	fixedUSD, err := decimal.NewFromString(v.GetString("AFRIPAY_FIXED_FEE_USD"))
	if err != nil {
		return FeeCfg{}, fmt.Errorf("AFRIPAY_FIXED_FEE_USD: %w", err)
	}
	solPrice, err := decimal.NewFromString(v.GetString("AFRIPAY_SOL_PRICE_USD"))
	if err != nil {
		return FeeCfg{}, fmt.Errorf("AFRIPAY_SOL_PRICE_USD: %w", err)
	}
	return FeeCfg{
		Rate:           rate,
		FixedFeeUSD:    fixedUSD,
		SOLPriceUSD:    solPrice,
		PlatformWallet: strings.TrimSpace(v.GetString("AFRIPAY_PLATFORM_WALLET")),
		Label:          v.GetString("AFRIPAY_LABEL"),
		IconURL:        v.GetString("AFRIPAY_ICON_URL"),
		QRBaseURL:      v.GetString("AFRIPAY_QR_BASE_URL"),
	}, nil
}

// FromViper builds and validates a Cfg from an already populated viper instance.
func FromViper(v *viper.Viper) (Cfg, error) {
	window, err := parseWindow(v.GetString("RATE_LIMIT_WINDOW"))
	if err != nil {
		return Cfg{}, err
	}
	feeCfg, err := FeeFromViper(v)
	if err != nil {
		return Cfg{}, err
	}

	cfg := Cfg{
		Server: ServerCfg{
			Env:          strings.ToLower(strings.TrimSpace(v.GetString("NODE_ENV"))),
			Port:         v.GetString("PORT"),
			MaxBodyBytes: v.GetInt64("MAX_BODY_BYTES"),
		},
		Solana: SolanaFromViper(v),
		DB:     DBCfg{DSN: v.GetString("DATABASE_URL")},
		Redis: RedisCfg{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Fee: feeCfg,
		Sec: SecurityCfg{
			RateLimit:       v.GetInt("RATE_LIMIT"),
			RateLimitWindow: window,
			AllowedOrigins:  splitList(v.GetString("ALLOWED_ORIGINS")),
		},
		Email: EmailCfg{
			ResendAPIKey: strings.TrimSpace(v.GetString("RESEND_API_KEY")),
			FromEmail:    v.GetString("RESEND_FROM_EMAIL"),
			BaseURL:      v.GetString("RESEND_BASE_URL"),
		},
		Worker: WorkerCfg{
			Enabled:   v.GetBool("WORKER_ENABLED"),
			PollEvery: v.GetDuration("WORKER_POLL_INTERVAL"),
			BatchSize: v.GetInt("WORKER_BATCH_SIZE"),
		},
	}

	if tz := v.GetString("TZ"); tz != "" {
		os.Setenv("TZ", tz)
	}

	return cfg, cfg.Validate()
}

// Validate fails fast on required or malformed settings.
func (c Cfg) Validate() error {
	if c.DB.DSN == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Solana.RPCEndpoint == "" {
		return fmt.Errorf("RPC_ENDPOINT is required for network %q", c.Solana.Network)
	}
	if c.Solana.USDCMint == "" {
		return fmt.Errorf("USDC_MINT is required for network %q", c.Solana.Network)
	}
	if c.Fee.Rate.IsNegative() || c.Fee.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("AFRIPAY_FEE_RATE must be in [0,1), got %s", c.Fee.Rate)
	}
	if c.Fee.FixedFeeUSD.IsNegative() {
		return fmt.Errorf("AFRIPAY_FIXED_FEE_USD must not be negative")
	}
	if !c.Fee.SOLPriceUSD.IsPositive() {
		return fmt.Errorf("AFRIPAY_SOL_PRICE_USD must be positive")
	}
	if c.Sec.RateLimit < 0 {
		return fmt.Errorf("RATE_LIMIT must not be negative")
	}
	if c.Worker.Enabled && c.Worker.PollEvery <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive")
	}
	return nil
}

// parseWindow accepts either whole minutes ("15") or a Go duration ("90s").
func parseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("RATE_LIMIT_WINDOW: invalid value %q", s)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
