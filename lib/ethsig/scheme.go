package ethsig

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	SchemePersonal = "personal"
	SchemeEIP712   = "eip712"

	DomainName    = "PollSystem"
	DomainVersion = "1"
)

// Scheme turns a ballot into the 32 byte hash that is actually signed.
type Scheme interface {
	Name() string
	// Version is the EIP-191 version byte of the scheme.
	Version() byte
	Hash(ballot Ballot) ([]byte, error)
}

// ===== personal_sign =====

type personalScheme struct{}

func Personal() Scheme {
	return personalScheme{}
}

func (personalScheme) Name() string  { return SchemePersonal }
func (personalScheme) Version() byte { return 0x45 }

func (personalScheme) Hash(ballot Ballot) ([]byte, error) {
	digest := ballot.Digest()
	return accounts.TextHash(digest.Bytes()), nil
}

// ===== EIP-712 typed data =====

type eip712Scheme struct {
	chainId  uint64
	contract common.Address
}

func EIP712(chainId uint64, verifyingContract common.Address) Scheme {
	return eip712Scheme{chainId, verifyingContract}
}

func (eip712Scheme) Name() string  { return SchemeEIP712 }
func (eip712Scheme) Version() byte { return 0x01 }

func (s eip712Scheme) TypedData(ballot Ballot) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Ballot": {
				{Name: "pollId", Type: "uint256"},
				{Name: "optionId", Type: "uint256"},
				{Name: "voter", Type: "address"},
			},
		},
		PrimaryType: "Ballot",
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).SetUint64(s.chainId)),
			VerifyingContract: s.contract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"pollId":   (*math.HexOrDecimal256)(new(big.Int).SetUint64(ballot.PollId)),
			"optionId": (*math.HexOrDecimal256)(new(big.Int).SetUint64(ballot.OptionId)),
			"voter":    ballot.Voter.Hex(),
		},
	}
}

func (s eip712Scheme) Hash(ballot Ballot) ([]byte, error) {
	typedData := s.TypedData(ballot)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("%w: domain separator: %w", ErrHashing, err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: message: %w", ErrHashing, err)
	}

	return crypto.Keccak256(
		[]byte{0x19, s.Version()},
		domainSeparator,
		messageHash,
	), nil
}

// NewScheme resolves a configured scheme name.
func NewScheme(name string, chainId uint64, verifyingContract common.Address) (Scheme, error) {
	switch name {
	case SchemePersonal, "":
		return Personal(), nil
	case SchemeEIP712:
		return EIP712(chainId, verifyingContract), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
}
