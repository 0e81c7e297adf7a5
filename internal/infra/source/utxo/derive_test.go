package utxo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Extended keys from the BIP32 test vectors (chain m, vector 1).
const (
	testXpub = "xpub661MyMwAqRbcFtXgS5sYJABqqG9YLmC4Q1Rdap9gSE8NqtwybGhePY2gZ29ESFjqJoCu1Rupje8YtGqsefD265TMg7usUDFdp6W1EGMcet8"
	testXprv = "xprv9s21ZrQH143K3QTDL4LXw2F7HEK3wJUD2nW2nRk4stbPy6cq3jPPqjiChkVvvNKmPGJxWUtg6LnF5kejMRNNU3TGtRBeJgk33yuGBxrMPHi"
)

func TestTypeFromKey(t *testing.T) {
	tests := []struct {
		prefix string
		typ    AddressType
	}{
		{"xpub", AddressLegacy},
		{"tpub", AddressLegacy},
		{"ypub", AddressNestedSegwit},
		{"upub", AddressNestedSegwit},
		{"zpub", AddressNativeSegwit},
		{"vpub", AddressTaproot},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			typ, err := TypeFromKey(tt.prefix + "rest-of-key")
			require.NoError(t, err)
			assert.Equal(t, tt.typ, typ)
		})
	}
}

func TestTypeFromKeyRejectsUnknownPrefix(t *testing.T) {
	for _, key := range []string{"wpub123", "bc1qxyz", "", "xp"} {
		_, err := TypeFromKey(key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestDeriveAddresses(t *testing.T) {
	addrs, err := DeriveAddresses(testXpub, receiveBranch, 20)
	require.NoError(t, err)
	require.Len(t, addrs, 20)

	seen := make(map[string]struct{})
	for _, addr := range addrs {
		assert.True(t, strings.HasPrefix(addr, "1"), "xpub derives legacy P2PKH addresses")
		assert.True(t, ValidateAddress(addr), "derived address must validate: %s", addr)
		_, dup := seen[addr]
		assert.False(t, dup, "duplicate address %s", addr)
		seen[addr] = struct{}{}
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	first, err := DeriveAddresses(testXpub, receiveBranch, 5)
	require.NoError(t, err)
	second, err := DeriveAddresses(testXpub, receiveBranch, 5)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReceiveAndChangeBranchesDiffer(t *testing.T) {
	receive, err := DeriveAddresses(testXpub, receiveBranch, 3)
	require.NoError(t, err)
	change, err := DeriveAddresses(testXpub, changeBranch, 3)
	require.NoError(t, err)

	for _, r := range receive {
		assert.NotContains(t, change, r)
	}
}

func TestDeriveRejectsPrivateKey(t *testing.T) {
	_, err := DeriveAddresses(testXprv, receiveBranch, 1)
	require.Error(t, err)
}

func TestDeriveRejectsGarbage(t *testing.T) {
	_, err := DeriveAddresses("xpub-not-base58!!!", receiveBranch, 1)
	require.Error(t, err)
}

func TestValidateAddress(t *testing.T) {
	valid := []string{
		"1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",         // P2PKH (genesis)
		"3J98t1WpEZ73CNmQviecrnyiWrnqRhWNLy",         // P2SH
		"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", // P2WPKH
		"bc1p5d7rjq7g6rdk2yhzks9smlaqtedr4dekq08ge8ztwac72sfr9rusxg3297", // P2TR
	}
	for _, addr := range valid {
		assert.True(t, ValidateAddress(addr), addr)
	}

	invalid := []string{"", "hello", "1A1zP1eP5QGefi2DMPTfTL5SLmv7Divfn", "0x9bf4001d307dfd62b26a2f1307ee0c0307632d59"}
	for _, addr := range invalid {
		assert.False(t, ValidateAddress(addr), addr)
	}
}
