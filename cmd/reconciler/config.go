package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/omnisig/relay/internal/metrics"
)

type config struct {
	Postgres      postgres
	Chains        []string      `default:"ethereum,base,arbitrum,optimism,polygon,bsc,avalanche"`
	Interval      time.Duration `default:"5s"`
	Jitter        time.Duration `default:"1s"`
	MarkLostAfter time.Duration `split_words:"true" default:"30m"`
	HealthPort    int           `split_words:"true" default:"8082"`
	Metrics       metrics.Config
}

type postgres struct {
	DSN string `required:"true"`
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	return cfg, nil
}
