package mocked

import (
	"encoding/binary"
	"errors"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

var ErrInvalidMnemonic = errors.New("invalid wallet mnemonic")

// keyring derives embedded wallet addresses from a BIP-39 mnemonic, so the same
// mnemonic yields the same addresses for the same user across restarts.
type keyring struct {
	masterKey *bip32.Key
}

// newKeyring builds a keyring from mnemonic. An empty mnemonic is replaced by a
// freshly generated one.
func newKeyring(mnemonic string) (*keyring, error) {
	if mnemonic == "" {
		entropy, err := bip39.NewEntropy(128)
		if err != nil {
			return nil, err
		}
		if mnemonic, err = bip39.NewMnemonic(entropy); err != nil {
			return nil, err
		}
	}

	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	masterKey, err := bip32.NewMasterKey(bip39.NewSeed(mnemonic, ""))
	if err != nil {
		return nil, err
	}

	return &keyring{masterKey: masterKey}, nil
}

// derive returns the address of the n-th embedded wallet of userID.
func (k *keyring) derive(userID string, n int) (common.Address, error) {
	digest := crypto.Keccak256([]byte(userID + "/" + strconv.Itoa(n)))
	index := binary.BigEndian.Uint32(digest[:4]) % bip32.FirstHardenedChild

	childKey, err := k.masterKey.NewChildKey(index)
	if err != nil {
		return common.Address{}, err
	}

	privKey, err := crypto.ToECDSA(childKey.Key)
	if err != nil {
		return common.Address{}, err
	}

	return crypto.PubkeyToAddress(privKey.PublicKey), nil
}
