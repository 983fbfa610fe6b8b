package config

import "context"

type AuthzConfig struct {
	// PolicyPath points to a rego module replacing the built-in policy.
	PolicyPath string `env:"TUSK_AUTHZ_POLICY"`
	// LocalRoles are granted to the local owner on CLI, Telegram and MCP.
	LocalRoles []string `env:"TUSK_LOCAL_ROLES" envSeparator:"," envDefault:"admin"`
	LocalUser  string   `env:"TUSK_LOCAL_USER" envDefault:"owner"`
}

func NewAuthzConfig(ctx context.Context) *AuthzConfig {
	return mustLoad[AuthzConfig](ctx, "Authz")
}
