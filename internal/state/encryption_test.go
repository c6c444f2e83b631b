package state

import (
	"os"
	"testing"

	"github.com/groundwork-iac/groundwork/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptState_NoKeyPassesThrough(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "")

	content := []byte(`{"version": 1}`)
	out, err := EncryptState(content)
	require.NoError(t, err)
	assert.Equal(t, content, out)
	assert.False(t, IsEncrypted(out))
}

func TestEncryptState_Roundtrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "test-key")

	content := []byte(`{"version": 1, "serial": 4}`)
	encrypted, err := EncryptState(content)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(encrypted))
	assert.NotContains(t, string(encrypted), "serial")

	decrypted, err := DecryptState(encrypted)
	require.NoError(t, err)
	assert.Equal(t, content, decrypted)
}

func TestDecryptState_WrongKeyFails(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "right-key")
	encrypted, err := EncryptState([]byte(`{"version": 1}`))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "wrong-key")
	_, err = DecryptState(encrypted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong key")
}

func TestDecryptState_MissingKeyFails(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "some-key")
	encrypted, err := EncryptState([]byte(`{"version": 1}`))
	require.NoError(t, err)

	t.Setenv(EncryptionKeyEnvVar, "")
	_, err = DecryptState(encrypted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), EncryptionKeyEnvVar)
}

func TestManager_EncryptedRoundtrip(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "state-file-key")
	mgr := testManager(t)

	state := ir.NewState()
	state.Put(&ir.ResourceState{
		Type:     "null",
		Name:     "a",
		Provider: "null",
		Outputs:  map[string]any{"id": "null-a"},
	})
	require.NoError(t, mgr.Write(state))

	// The on-disk form never contains plaintext resource data.
	raw, err := os.ReadFile(mgr.Path())
	require.NoError(t, err)
	assert.True(t, IsEncrypted(raw))
	assert.NotContains(t, string(raw), "null-a")

	got, err := mgr.Read()
	require.NoError(t, err)
	require.Len(t, got.Resources, 1)
	assert.Equal(t, "null-a", got.Resources[0].Outputs["id"])
}
