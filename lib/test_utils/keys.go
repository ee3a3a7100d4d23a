package test_utils

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type TestAccount struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// Account derives a stable key from name so tests get the same addresses on
// every run.
func Account(name string) TestAccount {
	seed := crypto.Keccak256([]byte("poll-node test account " + name))
	key, err := crypto.ToECDSA(seed)
	if err != nil {
		panic(fmt.Errorf("test key %s: %w", name, err))
	}
	return TestAccount{key, crypto.PubkeyToAddress(key.PublicKey)}
}
