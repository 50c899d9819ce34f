package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/moneymanager/pkg/config"
	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/dbutils"
)

func TestBuildClientsPlaidOnly(t *testing.T) {
	cfg := &config.Config{Environment: config.Sandbox}
	cfg.Plaid.Enabled = true
	cfg.Fetch.RequestTimeoutSeconds = 5
	secrets := &config.Secrets{Plaid: config.PlaidSecrets{ClientID: "id", Secret: "secret"}}

	c, err := buildClients(cfg, secrets)
	require.NoError(t, err)
	require.Len(t, c.adapters, 1)
	assert.Equal(t, credentials.Plaid, c.adapters[0].Provider())
	assert.NotNil(t, c.plaid)
	assert.Contains(t, c.linkers, credentials.Plaid)
	assert.NotContains(t, c.linkers, credentials.Teller)
}

func TestBuildClientsRejectsBadTellerCertificate(t *testing.T) {
	cfg := &config.Config{Environment: config.Sandbox}
	cfg.Teller.Enabled = true
	secrets := &config.Secrets{Teller: config.TellerSecrets{Certificate: "nope", PrivateKey: "nope"}}

	_, err := buildClients(cfg, secrets)
	assert.ErrorContains(t, err, "teller certificate")
}

func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "moneymanager.db")

	t.Setenv(config.ConfigEnvVar, fmt.Sprintf("plaid:\n  enabled: true\nsql:\n  driver: sqlite\n  sqlitePath: %s\n", dbPath))
	t.Setenv("PLAID_CLIENT_ID", "id")
	t.Setenv("PLAID_SECRET", "secret")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{
		"migrate",
		"--secrets", filepath.Join(dir, "missing.ejson"),
		"--env-file", filepath.Join(dir, "missing.env"),
	})
	require.NoError(t, cmd.Execute())

	db, err := dbutils.CreateSqliteClient(dbPath)
	require.NoError(t, err)
	defer db.Close()

	creds, err := credentials.NewStore(db).ListAll(context.Background(), config.Sandbox)
	require.NoError(t, err)
	assert.Empty(t, creds)
}
