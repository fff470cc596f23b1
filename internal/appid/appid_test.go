package appid

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/stretchr/testify/require"

	appidentityassets "github.com/portraitforge/portraitforge/internal/assets/appidentity"
)

// resetIdentity clears gofulmen's process-wide identity cache and embedded
// registration, then registers the embedded copy again.
func resetIdentity(t *testing.T) {
	t.Helper()
	appidentity.Reset()
	require.NoError(t, appidentity.RegisterEmbeddedIdentityYAML(appidentityassets.YAML))
	t.Cleanup(appidentity.Reset)
}

func chdirOutsideRepo(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestEmbeddedIdentityOutsideRepo(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, "")
	chdirOutsideRepo(t)

	identity, err := Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "portraitforge", identity.BinaryName)
	require.Equal(t, "portraitforge", identity.ConfigName)
	require.Equal(t, "PORTRAITFORGE_", identity.EnvPrefix)
}

func TestExplicitIdentityPathIsAuthoritative(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, filepath.Join(t.TempDir(), "missing-app.yaml"))

	_, err := Get(context.Background())
	var notFound *appidentity.NotFoundError
	require.ErrorAs(t, err, &notFound)

	require.Equal(t, fallbackPrefix, EnvPrefix(context.Background()), "unresolved identity uses the fallback prefix")
}

func TestEnvVar(t *testing.T) {
	resetIdentity(t)
	t.Setenv(appidentity.EnvIdentityPath, "")
	chdirOutsideRepo(t)

	ctx := context.Background()
	require.Equal(t, "PORTRAITFORGE_API_KEY", EnvVar(ctx, "API_KEY"))
	require.Equal(t, "PORTRAITFORGE_ADMIN_TOKEN", EnvVar(ctx, "admin_token"))
}
