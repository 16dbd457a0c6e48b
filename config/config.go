// agora/config/config.go
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	AppVersion = "0.9.0"

	// PageSize governs listing pagination and the position to page mapping.
	PageSize = 10
)

// Config is built once at startup and handed to every collaborator that needs it.
type Config struct {
	Port      string `mapstructure:"port"`
	DBPath    string `mapstructure:"db_path"`
	BackupDir string `mapstructure:"backup_dir"`
	// BannerFile holds the site-wide announcement shown above every page.
	BannerFile string          `mapstructure:"banner_file"`
	Log        LogConfig       `mapstructure:"log"`
	Session    SessionConfig   `mapstructure:"session"`
	Password   PasswordConfig  `mapstructure:"password"`
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
	Redis      RedisConfig     `mapstructure:"redis"`
	// TrustedProxies lists the CIDRs whose forwarding headers name the real client.
	TrustedProxies []string     `mapstructure:"trusted_proxies"`
	ProxyNets      []*net.IPNet `mapstructure:"-"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
}

// PasswordConfig holds the argon2id parameters. Secret is an optional hex pepper.
type PasswordConfig struct {
	Time      uint32 `mapstructure:"time"`
	MemoryKiB uint32 `mapstructure:"memory_kib"`
	Threads   uint8  `mapstructure:"threads"`
	KeyLen    uint32 `mapstructure:"key_len"`
	SaltLen   int    `mapstructure:"salt_len"`
	Secret    string `mapstructure:"secret"`
}

type RateLimitConfig struct {
	Every  time.Duration `mapstructure:"every"`
	Burst  int           `mapstructure:"burst"`
	Expire time.Duration `mapstructure:"expire"`
}

// RedisConfig enables the shared home cache when Addr is set.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "./agora.db?_journal_mode=WAL&_foreign_keys=on&_txlock=immediate&_busy_timeout=5000")
	v.SetDefault("backup_dir", "./backups")
	v.SetDefault("banner_file", "./banner.txt")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("session.cookie_name", "10_c")
	v.SetDefault("session.ttl", "720h")
	v.SetDefault("session.secure", false)

	v.SetDefault("password.time", 12)
	v.SetDefault("password.memory_kib", 4096)
	v.SetDefault("password.threads", 4)
	v.SetDefault("password.key_len", 64)
	v.SetDefault("password.salt_len", 48)
	v.SetDefault("password.secret", "")

	v.SetDefault("rate_limit.every", "10s")
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.expire", "24h")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("trusted_proxies", []string{})
}

// ParseProxies turns CIDRs, or bare addresses, into networks.
func ParseProxies(cidrs []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			ip := net.ParseIP(raw)
			if ip == nil {
				return nil, fmt.Errorf("trusted_proxies: invalid address %q", raw)
			}
			bits := 8 * net.IPv6len
			if ip.To4() != nil {
				ip, bits = ip.To4(), 8*net.IPv4len
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted_proxies: %w", err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// Load reads defaults, then the optional file at path, then AGORA_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AGORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.RateLimit.Burst < 1 {
		return nil, fmt.Errorf("rate_limit.burst must be positive, got %d", cfg.RateLimit.Burst)
	}
	if cfg.Password.SaltLen < 16 {
		return nil, fmt.Errorf("password.salt_len must be at least 16, got %d", cfg.Password.SaltLen)
	}
	nets, err := ParseProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	cfg.ProxyNets = nets
	return cfg, nil
}
