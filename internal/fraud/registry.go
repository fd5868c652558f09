package fraud

import "github.com/1-ManArmy/onelast-ai-sub000/internal/config"

// BuildProviders wires the shipped providers from configuration. Providers
// without credentials are still returned and skipped at query time.
func BuildProviders(cfg config.FraudConfig, counter Counter) []Provider {
	return []Provider{
		NewMinFraudProvider(cfg.MinFraudURL, cfg.MinFraudAccountID, cfg.MinFraudLicenseKey, cfg.Timeout),
		NewIPQSProvider(cfg.IPQSURL, cfg.IPQSKey, cfg.Timeout),
		NewDecisionManagerProvider(cfg.DecisionManagerURL, cfg.DecisionManagerMerchID, cfg.DecisionManagerKey, cfg.Timeout),
		NewVelocityProvider(counter, cfg.VelocityWindow, cfg.VelocityCardLimit, cfg.VelocityBINLimit),
	}
}
