// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"os"
	"time"

	"vitalia/internal/chain"
	"vitalia/internal/domain"
)

// Known networks and their registry deployments.
const (
	NetworkBase        = "base"
	NetworkBaseSepolia = "base-sepolia"
)

var deployments = map[string]chain.Contracts{
	NetworkBaseSepolia: {
		Connect:  chain.ContractRef{Name: "VitaliaConnect", Address: "0x04F94A2fCaAA6Ce147C99F34620fcfbA609d4906"},
		Profiles: chain.ContractRef{Name: "VitaliaProfiles", Address: "0xaccFC127f32d2dA14f05F5C373Ba2d0aF0152D33"},
	},
}

// Config is the full runtime configuration.
type Config struct {
	Addr     string
	LogLevel string

	Network   string
	Contracts chain.Contracts

	// RPCURL points at the registry gateway. Empty selects the in-process
	// development registry.
	RPCURL string

	CacheTTL time.Duration

	Redis Redis
}

// Redis configures the optional shared cache backend. An empty URL keeps the
// cache in process memory.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Retention    time.Duration
}

// FromEnv builds a Config from VITALIA_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:     envOr("VITALIA_ADDR", ":8080"),
		LogLevel: envOr("VITALIA_LOG_LEVEL", "info"),
		Network:  envOr("VITALIA_NETWORK", NetworkBaseSepolia),
		RPCURL:   os.Getenv("VITALIA_RPC_URL"),
		CacheTTL: envDuration("VITALIA_CACHE_TTL", 30*time.Second),
		Redis: Redis{
			URL:          os.Getenv("VITALIA_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			Retention:    envDuration("VITALIA_REDIS_RETENTION", 10*time.Minute),
		},
	}

	contracts, ok := deployments[cfg.Network]
	if !ok {
		contracts = chain.Contracts{
			Connect:  chain.ContractRef{Name: "VitaliaConnect"},
			Profiles: chain.ContractRef{Name: "VitaliaProfiles"},
		}
	}
	if addr := os.Getenv("VITALIA_CONNECT_ADDRESS"); addr != "" {
		contracts.Connect.Address = domain.Address(addr)
	}
	if addr := os.Getenv("VITALIA_PROFILES_ADDRESS"); addr != "" {
		contracts.Profiles.Address = domain.Address(addr)
	}
	if contracts.Connect.Address.IsZero() || contracts.Profiles.Address.IsZero() {
		return Config{}, fmt.Errorf("network %q has no known deployment: set VITALIA_CONNECT_ADDRESS and VITALIA_PROFILES_ADDRESS", cfg.Network)
	}
	cfg.Contracts = contracts

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
