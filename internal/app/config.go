package app

import (
	"fmt"

	"crewpager/internal/config"
	"crewpager/internal/dispatch"
	"crewpager/internal/message"
	"crewpager/internal/storage"
	"crewpager/internal/template"
	"crewpager/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapDispatch(cfg *config.Config) (dispatch.Config, error) {
	latency, err := config.ParseDurationOrDefault("dispatch.response_latency",
		cfg.Dispatch.ResponseLatency, dispatch.DefaultResponseLatency)
	if err != nil {
		return dispatch.Config{}, err
	}
	reset, err := config.ParseDurationOrDefault("dispatch.status_reset",
		cfg.Dispatch.StatusReset, dispatch.DefaultStatusReset)
	if err != nil {
		return dispatch.Config{}, err
	}
	return dispatch.Config{
		RatePerSec:       cfg.Dispatch.RatePerSec,
		ResponseLatency:  latency,
		StatusResetAfter: reset,
	}, nil
}

func mapStorage(cfg *config.Config) (storage.Config, bool, error) {
	sc := cfg.Storage
	if sc == nil || sc.Driver == "" || sc.Driver == "none" {
		return storage.Config{}, false, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      sc.Driver,
		Path:        sc.Path,
		BusyTimeout: busy,
	}, true, nil
}

func seedTemplates(store *template.Store, cfg *config.Config) error {
	for key, seed := range cfg.Templates {
		sev := message.SeverityInfo
		if seed.Type != "" {
			var err error
			sev, err = message.ParseSeverity(seed.Type)
			if err != nil {
				return fmt.Errorf("templates.%s: %w", key, err)
			}
		}
		err := store.Upsert(key, template.Template{
			Name:      seed.Name,
			Text:      seed.Text,
			Icon:      seed.Icon,
			Responses: seed.Responses,
			Severity:  sev,
		})
		if err != nil {
			return fmt.Errorf("templates.%s: %w", key, err)
		}
	}
	return nil
}

// validate rejects configs the services would choke on later. Run both at
// startup and before a hot reload is committed.
func validate(cfg *config.Config) error {
	if _, err := mapDispatch(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorage(cfg); err != nil {
		return err
	}
	if sim := cfg.Simulator; sim != nil {
		if _, err := config.ParseDurationOrDefault("simulator.interval", sim.Interval, defaultSimulatorInterval); err != nil {
			return err
		}
	}
	for key, seed := range cfg.Templates {
		if seed.Type == "" {
			continue
		}
		if _, err := message.ParseSeverity(seed.Type); err != nil {
			return fmt.Errorf("templates.%s: %w", key, err)
		}
	}
	return nil
}
