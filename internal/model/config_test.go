package model_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashwarden/flashwarden/internal/model"
)

func TestLoadConfig(t *testing.T) {
	yml := `
version: 0
collaborators:
  inventory: /opt/flashwarden/check_card.sh
  workflow: /opt/flashwarden/workflow_actions.sh
  auth: /opt/flashwarden/gh_auth.sh
poll:
  every: 2s
auth:
  enabled: true
  browser: firefox
service:
  mode: oneshot
  verbose: true
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, "/opt/flashwarden/check_card.sh", cfg.Collaborators.Inventory)
	require.Equal(t, "/opt/flashwarden/workflow_actions.sh", cfg.Collaborators.Workflow)
	require.Equal(t, "/opt/flashwarden/gh_auth.sh", cfg.Collaborators.Auth)
	require.NotNil(t, cfg.Poll)
	require.Equal(t, "2s", cfg.Poll.Every)
	require.NotNil(t, cfg.Auth)
	require.True(t, model.Get(cfg.Auth.Enabled))
	require.Equal(t, "firefox", model.Get(cfg.Auth.Browser))
	require.Equal(t, model.ServiceModeOneshot, cfg.Service.Mode)
	require.True(t, model.Get(cfg.Service.Verbose))
}

func TestLoadConfigDefaults(t *testing.T) {
	yml := `
version: 0
collaborators:
  inventory: ./check_card.sh
  workflow: ./workflow_actions.sh
service: {}
`
	cfg, err := model.LoadConfig(strings.NewReader(yml))
	require.NoError(t, err)
	require.Equal(t, model.ServiceModeWatch, cfg.Service.Mode)
	require.Nil(t, cfg.Poll)
	require.Nil(t, cfg.Auth)
	require.Empty(t, cfg.Collaborators.Auth)
	require.False(t, model.Get(cfg.Service.Verbose))
}

func TestLoadConfig_Fail(t *testing.T) {
	t.Run("missing workflow collaborator", func(t *testing.T) {
		yml := `
version: 0
collaborators:
  inventory: ./check_card.sh
service: {}
`
		_, err := model.LoadConfig(strings.NewReader(yml))
		require.Error(t, err)
		require.Contains(t, err.Error(), "collaborators.workflow")
	})

	t.Run("bad every format", func(t *testing.T) {
		yml := `
version: 0
collaborators:
  inventory: ./check_card.sh
  workflow: ./workflow_actions.sh
poll:
  every: five seconds
service: {}
`
		_, err := model.LoadConfig(strings.NewReader(yml))
		require.Error(t, err)
		details := model.CueErrDetails(err)
		require.NotEmpty(t, details)
	})

	t.Run("unknown mode", func(t *testing.T) {
		yml := `
version: 0
collaborators:
  inventory: ./check_card.sh
  workflow: ./workflow_actions.sh
service:
  mode: daemon
`
		_, err := model.LoadConfig(strings.NewReader(yml))
		require.Error(t, err)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := model.DefaultConfig(context.Background())
	require.Equal(t, 0, cfg.Version)
	require.Contains(t, cfg.Collaborators.Inventory, "check_card.sh")
	require.Contains(t, cfg.Collaborators.Workflow, "workflow_actions.sh")
	require.Contains(t, cfg.Collaborators.Auth, "gh_auth.sh")
	require.NotNil(t, cfg.Poll)
	require.Equal(t, "1s", cfg.Poll.Every)
	require.Equal(t, model.ServiceModeWatch, cfg.Service.Mode)
}
