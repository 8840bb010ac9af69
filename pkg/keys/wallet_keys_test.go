package keys

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKeyHex = "6368616e676520746869732070617373776f726420746f206120736563726574"

func TestGenerateWalletKeyYieldsMatchingAddress(t *testing.T) {
	walletKey, err := GenerateWalletKey()
	require.NoError(t, err)
	assert.Len(t, walletKey.PrivateKey, 32)

	signer, err := walletKey.ECDSA()
	require.NoError(t, err)
	assert.Equal(t, walletKey.Address, crypto.PubkeyToAddress(signer.PublicKey).Hex())
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	masterKey, err := ParseMasterKey(testMasterKeyHex)
	require.NoError(t, err)

	walletKey, err := GenerateWalletKey()
	require.NoError(t, err)

	encrypted, err := EncryptPrivateKey(walletKey.PrivateKey, masterKey, walletKey.Address)
	require.NoError(t, err)
	assert.NotContains(t, encrypted, string(walletKey.PrivateKey))

	decrypted, err := DecryptPrivateKey(encrypted, masterKey, walletKey.Address)
	require.NoError(t, err)
	assert.Equal(t, walletKey.PrivateKey, decrypted)
}

func TestDecryptWithWrongWalletAddressFails(t *testing.T) {
	masterKey, err := ParseMasterKey(testMasterKeyHex)
	require.NoError(t, err)

	walletKey, err := GenerateWalletKey()
	require.NoError(t, err)

	encrypted, err := EncryptPrivateKey(walletKey.PrivateKey, masterKey, walletKey.Address)
	require.NoError(t, err)

	// The per-wallet key is derived from the address, so a different
	// address cannot open the ciphertext
	_, err = DecryptPrivateKey(encrypted, masterKey, "0x0000000000000000000000000000000000000001")
	require.Error(t, err)
}

func TestDecryptWithWrongMasterKeyFails(t *testing.T) {
	masterKey, err := ParseMasterKey(testMasterKeyHex)
	require.NoError(t, err)
	otherKey, err := ParseMasterKey("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)

	walletKey, err := GenerateWalletKey()
	require.NoError(t, err)

	encrypted, err := EncryptPrivateKey(walletKey.PrivateKey, masterKey, walletKey.Address)
	require.NoError(t, err)

	_, err = DecryptPrivateKey(encrypted, otherKey, walletKey.Address)
	require.Error(t, err)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	masterKey, err := ParseMasterKey(testMasterKeyHex)
	require.NoError(t, err)

	walletKey, err := GenerateWalletKey()
	require.NoError(t, err)

	first, err := EncryptPrivateKey(walletKey.PrivateKey, masterKey, walletKey.Address)
	require.NoError(t, err)
	second, err := EncryptPrivateKey(walletKey.PrivateKey, masterKey, walletKey.Address)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestParseMasterKeyValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid 32 bytes", testMasterKeyHex, false},
		{"not hex", "zz", true},
		{"too short", "deadbeef", true},
		{"too long", testMasterKeyHex + "00", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMasterKey(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
