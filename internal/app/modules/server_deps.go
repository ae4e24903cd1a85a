package modules

import (
	"strings"

	"bizportal.io/portal/internal/api/handlers"
	"bizportal.io/portal/internal/api/middleware"
	"bizportal.io/portal/internal/config"
)

// NewServerDeps builds base server deps then lets each module contribute explicit wiring.
func NewServerDeps(infra *Infrastructure, mods []Module) handlers.ServerDeps {
	deps := handlers.ServerDeps{Trail: infra.Trail}
	if infra.Pool != nil {
		deps.DB = infra.Pool
	}
	for _, mod := range mods {
		if mod == nil {
			continue
		}
		mod.ContributeServerDeps(&deps)
	}
	return deps
}

// NewJWTConfig returns the token verification settings. Previous secrets stay
// valid for verification only.
func NewJWTConfig(cfg *config.Config) middleware.JWTConfig {
	verificationKeys := make([][]byte, 0, len(cfg.Security.JWTPreviousSecrets))
	for _, key := range cfg.Security.JWTPreviousSecrets {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		verificationKeys = append(verificationKeys, []byte(key))
	}
	return middleware.JWTConfig{
		SigningKey:       []byte(cfg.Security.JWTSecret),
		VerificationKeys: verificationKeys,
		Issuer:           cfg.Security.JWTIssuer,
	}
}
