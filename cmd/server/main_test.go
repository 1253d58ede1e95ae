package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrap_LogsConfigurationAsJSON(t *testing.T) {
	t.Setenv("SECRET_KEY", "test-secret")
	t.Setenv("ACCOUNT_REGISTER_URL", "http://account/register")
	t.Setenv("ACCOUNT_LOGIN_URL", "http://account/login")
	t.Setenv("NOTIFICATION_REGISTER_URL", "http://notify/register")

	var buf bytes.Buffer
	cfg, err := bootstrap(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Token", cfg.AuthScheme)

	var messages []string
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), "line %q", scanner.Text())
		messages = append(messages, entry["msg"].(string))
	}
	assert.Contains(t, messages, "config loaded")
	assert.NotContains(t, buf.String(), "test-secret")
}
