package lifecycle

import "videogen/internal/infra"

// ConfigFromEnv maps the poll settings of cfg onto a controller Config.
func ConfigFromEnv(cfg *infra.Config, logger *infra.Logger) Config {
	return Config{
		Interval:     cfg.PollInterval,
		MaxPolls:     cfg.PollMaxAttempts,
		MaxWait:      cfg.PollMaxWait,
		FetchRetries: cfg.FetchRetries,
		Logger:       logger,
	}
}
