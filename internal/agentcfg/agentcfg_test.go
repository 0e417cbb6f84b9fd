package agentcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestLoadValidDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
listen: "0.0.0.0:9108"
interval_secs: 10
telegram:
  enabled: true
  bot_token_env: MY_TOKEN
  allowed_chat_ids: [123, 456]
  alerts:
    fail_threshold: 5
`)
	doc, err := NewStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9108", doc.Listen)
	assert.Equal(t, 10, doc.IntervalSecs)
	assert.True(t, doc.Telegram.Enabled)
	assert.Equal(t, "MY_TOKEN", doc.Telegram.BotTokenEnv)
	assert.Equal(t, []int64{123, 456}, doc.Telegram.AllowedChatIDs)
	assert.Equal(t, 5, doc.Telegram.Alerts.FailThreshold)
	// omitted fields pick up agent defaults
	assert.Equal(t, 1800, doc.Telegram.Alerts.RepeatIntervalSecs)
	assert.InDelta(t, 95.0, doc.Telegram.Alerts.DiskUsageThresholdPercent, 0.001)
}

func TestLoadOrDefault_MissingFile(t *testing.T) {
	st := NewStore(filepath.Join(t.TempDir(), "nope.yaml"))
	doc := st.LoadOrDefault()
	assert.Equal(t, Default(), doc)
}

func TestLoadOrDefault_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "listen: [unclosed\n  ::: nonsense")
	doc := NewStore(path).LoadOrDefault()
	assert.Equal(t, Default(), doc)
}

func TestSetTelegramEnabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "listen: \"127.0.0.1:9108\"\ninterval_secs: 7\ntelegram:\n  enabled: false\n")
	st := NewStore(path)

	changed, err := st.SetTelegramEnabled(true)
	require.NoError(t, err)
	assert.True(t, changed)

	doc, err := st.Load()
	require.NoError(t, err)
	assert.True(t, doc.Telegram.Enabled)
	// unrelated fields survive the rewrite
	assert.Equal(t, 7, doc.IntervalSecs)

	// already at target: no-op
	changed, err = st.SetTelegramEnabled(true)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestSetTelegramEnabled_CorruptFileStillToggles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "%%% not yaml at all {{{")
	st := NewStore(path)

	changed, err := st.SetTelegramEnabled(true)
	require.NoError(t, err)
	assert.True(t, changed)

	doc, err := st.Load()
	require.NoError(t, err)
	assert.True(t, doc.Telegram.Enabled)
	assert.Equal(t, Default().Listen, doc.Listen)
}

func TestBaseAddress(t *testing.T) {
	cases := []struct {
		listen string
		want   string
	}{
		{"0.0.0.0:9108", "http://127.0.0.1:9108"},
		{"[::]:9108", "http://[::1]:9108"},
		{":9108", "http://127.0.0.1:9108"},
		{"127.0.0.1:9108", "http://127.0.0.1:9108"},
		{"192.168.1.5:9000", "http://192.168.1.5:9000"},
		{"", "http://127.0.0.1:9108"},
	}
	for _, tc := range cases {
		got := BaseAddress(Document{Listen: tc.listen})
		assert.Equal(t, tc.want, got, "listen=%q", tc.listen)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")
	st := NewStore(path)

	doc := Default()
	doc.Listen = "0.0.0.0:9200"
	doc.Telegram.AllowedChatIDs = []int64{42}
	require.NoError(t, st.Save(doc))

	got, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9200", got.Listen)
	assert.Equal(t, []int64{42}, got.Telegram.AllowedChatIDs)
	assert.Equal(t, doc.Telegram.Alerts, got.Telegram.Alerts)
}
