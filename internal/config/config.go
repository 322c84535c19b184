// Package config resolves the server's CLI surface: three positional
// integers, per spec, plus an optional -debug flag layered on top the way
// the teacher's main() adds a debug override without touching the
// positional contract.
package config

import (
	"flag"
	"fmt"
	"strconv"
)

const Usage = "usage: kvserver <max_clients> <database_shards> <user_shards>"

// Config holds the resolved startup parameters.
type Config struct {
	MaxClients    int
	DataShards    int
	UserShards    int
	Debug         bool
	ListenAddr    string
	MetricsAddr   string
	StatsInterval string // kept as string; parsed by the caller with time.ParseDuration
}

// Parse resolves a Config from argv (excluding the program name) exactly as
// spec.md's CLI surface requires: three positional integers. A missing or
// non-integer argument is reported via the returned error; main is expected
// to print Usage and exit non-zero without starting the listener.
func Parse(argv []string) (Config, error) {
	fs := flag.NewFlagSet("kvserver", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "address to serve /metrics and /healthz on (disabled if empty)")
	statsInterval := fs.String("stats-interval", "30s", "interval between resource usage log samples")

	if err := fs.Parse(argv); err != nil {
		return Config{}, err
	}

	positional := fs.Args()
	if len(positional) != 3 {
		return Config{}, fmt.Errorf("%s (got %d positional arguments)", Usage, len(positional))
	}

	maxClients, err := strconv.Atoi(positional[0])
	if err != nil {
		return Config{}, fmt.Errorf("%s: max_clients: %w", Usage, err)
	}
	dataShards, err := strconv.Atoi(positional[1])
	if err != nil {
		return Config{}, fmt.Errorf("%s: database_shards: %w", Usage, err)
	}
	userShards, err := strconv.Atoi(positional[2])
	if err != nil {
		return Config{}, fmt.Errorf("%s: user_shards: %w", Usage, err)
	}

	if maxClients <= 0 || dataShards <= 0 || userShards <= 0 {
		return Config{}, fmt.Errorf("%s: all arguments must be positive integers", Usage)
	}

	return Config{
		MaxClients:    maxClients,
		DataShards:    dataShards,
		UserShards:    userShards,
		Debug:         *debug,
		ListenAddr:    ":12345",
		MetricsAddr:   *metricsAddr,
		StatsInterval: *statsInterval,
	}, nil
}
