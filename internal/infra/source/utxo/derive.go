package utxo

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	bip32 "github.com/tyler-smith/go-bip32"
)

// AddressType is the script family derived addresses encode to.
type AddressType string

const (
	AddressLegacy       AddressType = "legacy"        // P2PKH
	AddressNestedSegwit AddressType = "nested-segwit" // P2SH-P2WPKH
	AddressNativeSegwit AddressType = "native-segwit" // P2WPKH
	AddressTaproot      AddressType = "taproot"       // P2TR
)

// receiveBranch/changeBranch are the BIP44 external and internal chains.
const (
	receiveBranch uint32 = 0
	changeBranch  uint32 = 1
)

// TypeFromKey infers the address family from the extended key's
// human-readable prefix.
func TypeFromKey(xpub string) (AddressType, error) {
	switch {
	case strings.HasPrefix(xpub, "xpub") || strings.HasPrefix(xpub, "tpub"):
		return AddressLegacy, nil
	case strings.HasPrefix(xpub, "ypub") || strings.HasPrefix(xpub, "upub"):
		return AddressNestedSegwit, nil
	case strings.HasPrefix(xpub, "zpub"):
		return AddressNativeSegwit, nil
	case strings.HasPrefix(xpub, "vpub"):
		return AddressTaproot, nil
	default:
		return "", fmt.Errorf("unrecognized extended key prefix: %q", firstChars(xpub, 4))
	}
}

// DeriveAddresses derives count non-hardened addresses from the extended
// public key on the given branch (receive or change). Private keys are
// rejected; derivation never touches key material beyond the public chain.
func DeriveAddresses(xpub string, branch uint32, count int) ([]string, error) {
	typ, err := TypeFromKey(xpub)
	if err != nil {
		return nil, err
	}

	key, err := bip32.B58Deserialize(xpub)
	if err != nil {
		return nil, fmt.Errorf("parse extended key: %w", err)
	}
	if key.IsPrivate {
		return nil, fmt.Errorf("extended private key supplied where a public key was expected")
	}

	branchKey, err := key.NewChildKey(branch)
	if err != nil {
		return nil, fmt.Errorf("derive branch %d: %w", branch, err)
	}

	addresses := make([]string, 0, count)
	for i := uint32(0); i < uint32(count); i++ {
		child, err := branchKey.NewChildKey(i)
		if err != nil {
			// BIP32 allows invalid child keys with ~2^-127 probability;
			// skip the index like wallet software does.
			continue
		}
		addr, err := encodeAddress(child.Key, typ, &chaincfg.MainNetParams)
		if err != nil {
			return nil, fmt.Errorf("encode address %d/%d: %w", branch, i, err)
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

// encodeAddress renders a compressed public key as an address of the given
// family.
func encodeAddress(pubKeyBytes []byte, typ AddressType, net *chaincfg.Params) (string, error) {
	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return "", fmt.Errorf("parse public key: %w", err)
	}
	pubKeyHash := btcutil.Hash160(pubKey.SerializeCompressed())

	var addr btcutil.Address
	switch typ {
	case AddressLegacy:
		addr, err = btcutil.NewAddressPubKeyHash(pubKeyHash, net)

	case AddressNestedSegwit:
		var script []byte
		script, err = txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).AddData(pubKeyHash).Script()
		if err == nil {
			addr, err = btcutil.NewAddressScriptHash(script, net)
		}

	case AddressNativeSegwit:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, net)

	case AddressTaproot:
		tweaked := txscript.ComputeTaprootKeyNoScript(pubKey)
		addr, err = btcutil.NewAddressTaproot(schnorr.SerializePubKey(tweaked), net)

	default:
		return "", fmt.Errorf("unsupported address type %q", typ)
	}
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// ValidateAddress reports whether s parses as a mainnet address.
func ValidateAddress(s string) bool {
	_, err := btcutil.DecodeAddress(s, &chaincfg.MainNetParams)
	return err == nil
}

func firstChars(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
