package prospect

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shpitdev/prospect-pipeline/internal/config"
	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/prospect/claude"
	"github.com/shpitdev/prospect-pipeline/internal/prospect/gemini"
)

// New builds the configured provider wrapped in a Traced decorator.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lead.Prospector, error) {
	if logger == nil {
		logger = zap.L()
	}

	switch cfg.Prospect.Provider {
	case config.ProviderGemini, "":
		c, err := gemini.New(ctx, gemini.Config{
			APIKey:     cfg.Gemini.APIKey,
			Model:      cfg.Gemini.Model,
			BaseURL:    cfg.Gemini.BaseURL,
			EnableMaps: cfg.Gemini.EnableMaps,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		return NewTraced(c, config.ProviderGemini+"/"+c.Model(), logger), nil

	case config.ProviderAnthropic:
		c, err := claude.New(claude.Config{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			BaseURL:   cfg.Anthropic.BaseURL,
			MaxTokens: cfg.Anthropic.MaxTokens,
			Logger:    logger,
		})
		if err != nil {
			return nil, err
		}
		return NewTraced(c, config.ProviderAnthropic+"/"+c.Model(), logger), nil

	default:
		return nil, eris.Errorf("prospect: unknown provider %q", cfg.Prospect.Provider)
	}
}
