package config

import "fmt"

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks the configuration and returns the first problem found.
// Errors wrap package sentinels so callers can use errors.Is().
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: set AZURE_OPENAI_ENDPOINT", ErrMissingEndpoint)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: set AZURE_OPENAI_API_KEY", ErrMissingAPIKey)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (must be in [0, 2])", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 32768 {
		return fmt.Errorf("%w: %d (must be in [1, 32768])", ErrInvalidMaxTokens, c.MaxTokens)
	}
	if c.MaxBudget <= 0 {
		return fmt.Errorf("%w: %v (must be positive)", ErrInvalidBudget, c.MaxBudget)
	}
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: %d (must be in [1, 50])", ErrInvalidTopK, c.TopK)
	}
	if c.KeepLastTurns < 1 {
		return fmt.Errorf("%w: %d (must be at least 1)", ErrInvalidRetention, c.KeepLastTurns)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}
