package binlookup

import (
	"fmt"
	"strings"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/config"
)

// BuildProviders instantiates providers in the configured order.
func BuildProviders(cfg config.BINConfig) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "binlist":
			providers = append(providers, NewBinlistProvider(cfg.BinlistURL, cfg.Timeout))
		case "neutrino":
			providers = append(providers, NewNeutrinoProvider(cfg.NeutrinoURL, cfg.NeutrinoUserID, cfg.NeutrinoAPIKey, cfg.Timeout))
		case "apilayer":
			providers = append(providers, NewAPILayerProvider(cfg.APILayerURL, cfg.APILayerKey, cfg.Timeout))
		case "":
		default:
			return nil, fmt.Errorf("unknown bin provider %q", name)
		}
	}
	return providers, nil
}
