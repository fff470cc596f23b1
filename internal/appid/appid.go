package appid

import (
	"context"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"

	appidentityassets "github.com/portraitforge/portraitforge/internal/assets/appidentity"
)

// fallbackPrefix is used when no identity resolves.
const fallbackPrefix = "PORTRAITFORGE_"

func init() {
	// Explicit identity paths (Options.ExplicitPath, FULMEN_APP_IDENTITY_PATH) stay
	// authoritative; the embedded copy covers standalone binaries.
	_ = appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML)
}

// Get returns the resolved app identity.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	return appidentity.Get(ctx)
}

// EnvPrefix returns the identity env prefix, always ending in an underscore.
func EnvPrefix(ctx context.Context) string {
	prefix := fallbackPrefix
	if identity, err := Get(ctx); err == nil && identity != nil && identity.EnvPrefix != "" {
		prefix = identity.EnvPrefix
	}
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix
}

// EnvVar returns the prefixed name of an app environment variable, e.g. EnvVar(ctx, "API_KEY").
func EnvVar(ctx context.Context, name string) string {
	return EnvPrefix(ctx) + strings.ToUpper(strings.TrimPrefix(name, "_"))
}
