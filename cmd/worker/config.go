package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/omnisig/relay/internal/metrics"
)

type config struct {
	Postgres      postgres
	Redis         redisConfig
	WalletBridge  walletBridge
	Chains        []string       `default:"ethereum,base,arbitrum,optimism,polygon,bsc,avalanche"`
	QueueInterval time.Duration  `split_words:"true" default:"5s"`
	QueueJitter   time.Duration  `split_words:"true" default:"1s"`
	SettleDelay   time.Duration  `split_words:"true" default:"500ms"`
	HistoryLimit  int            `split_words:"true" default:"100"`
	Retention     time.Duration  `default:"72h"`
	HealthPort    int            `split_words:"true" default:"8081"`
	Metrics       metrics.Config
	DataDog       dataDog
}

type postgres struct {
	DSN string `required:"true"`
}

type redisConfig struct {
	Host     string `default:"localhost"`
	Port     string `default:"6379"`
	User     string
	Password string
	DB       int
}

type walletBridge struct {
	URL string `required:"true"`
}

type dataDog struct {
	Host string `default:"localhost"`
	Port string `default:"8125"`
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	return cfg, nil
}
