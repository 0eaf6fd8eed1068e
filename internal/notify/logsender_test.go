package notify

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLogEmailSenderWritesEntry(t *testing.T) {
	var buf bytes.Buffer
	sender := LogEmailSender{Logger: zerolog.New(&buf), From: "no-reply@toko.local"}

	require.NoError(t, sender.Send("rina@example.com", "Affiliate sale on order #1001", "<p>hi</p>"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "rina@example.com", entry["to"])
	require.Equal(t, "no-reply@toko.local", entry["from"])
	require.Equal(t, "Affiliate sale on order #1001", entry["subject"])
	require.EqualValues(t, 9, entry["body_bytes"])
}
