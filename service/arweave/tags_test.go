package arweave

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTags(t *testing.T) {
	tags := []Tag{
		NewTag("Content-Type", "text/plain"),
		NewTag("App", "demo"),
	}

	got, err := DecodeTags(tags)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"Content-Type": "text/plain",
		"App":          "demo",
	}, got)
}

func TestDecodeTags_GatewayEncoding(t *testing.T) {
	// As served by arweave.net for Content-Type: application/json
	tags := []Tag{{Name: "Q29udGVudC1UeXBl", Value: "YXBwbGljYXRpb24vanNvbg"}}

	got, err := DecodeTags(tags)
	require.NoError(t, err)
	assert.Equal(t, "application/json", got["Content-Type"])
}

func TestDecodeTags_DuplicateNameLastWins(t *testing.T) {
	got, err := DecodeTags([]Tag{
		NewTag("Version", "1"),
		NewTag("Other", "x"),
		NewTag("Version", "2"),
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "2", got["Version"])
}

func TestDecodeTags_Empty(t *testing.T) {
	got, err := DecodeTags(nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDecodeTags_InvalidEncoding(t *testing.T) {
	tests := []struct {
		name    string
		tag     Tag
		wantErr string
	}{
		{
			name:    "bad name",
			tag:     Tag{Name: "not base64!", Value: EncodeString("v")},
			wantErr: "decode tag name",
		},
		{
			name:    "bad value",
			tag:     Tag{Name: EncodeString("App"), Value: "%%%"},
			wantErr: `decode tag "App" value`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTags([]Tag{NewTag("ok", "ok"), tt.tag})
			require.Error(t, err)
			assert.Nil(t, got)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeString_ToleratesPadding(t *testing.T) {
	got, err := DecodeString("ZGVtbw==")
	require.NoError(t, err)
	assert.Equal(t, "demo", got)
}
