package ethsig

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/JustinKnueppel/go-result"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

var (
	ErrSigIncorrectLen  = errors.New("signature incorrect length")
	ErrSigDecoding      = errors.New("failed to decode signature")
	ErrRecoveringPubKey = errors.New("failed to recover public key")
	ErrSignerMismatch   = errors.New("recovered signer does not match voter")
	ErrUnknownScheme    = errors.New("unknown signature scheme")
	ErrHashing          = errors.New("hashing error")
)

const SignatureLength = crypto.SignatureLength

// Ballot is the vote intent a voter signs off-band.
type Ballot struct {
	PollId   uint64
	OptionId uint64
	Voter    common.Address
}

// BallotDigest is keccak256(pollId || optionId || voter) over the packed
// encoding: two 32 byte big-endian words followed by the 20 byte address.
func BallotDigest(pollId uint64, optionId uint64, voter common.Address) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(common.BigToHash(new(big.Int).SetUint64(pollId)).Bytes())
	h.Write(common.BigToHash(new(big.Int).SetUint64(optionId)).Bytes())
	h.Write(voter.Bytes())

	var out common.Hash
	h.Sum(out[:0])
	return out
}

func (b Ballot) Digest() common.Hash {
	return BallotDigest(b.PollId, b.OptionId, b.Voter)
}

// RecoverSigner recovers the account that produced sig over digest. V may be
// given as 0/1 or 27/28.
func RecoverSigner(digest []byte, sig []byte) result.Result[common.Address] {
	if len(sig) != SignatureLength {
		return result.Err[common.Address](fmt.Errorf("%w: expected %d bytes, got %d", ErrSigIncorrectLen, SignatureLength, len(sig)))
	}
	if len(digest) != 32 {
		return result.Err[common.Address](fmt.Errorf("%w: digest must be 32 bytes", ErrHashing))
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] == 27 || normalized[64] == 28 {
		normalized[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return result.Err[common.Address](fmt.Errorf("%w: %w", ErrRecoveringPubKey, err))
	}

	return result.Ok(crypto.PubkeyToAddress(*pubKey))
}

// VerifyBallot recovers the signer of ballot under scheme and checks it is the
// ballot's voter.
func VerifyBallot(scheme Scheme, ballot Ballot, sig []byte) result.Result[common.Address] {
	hash, err := scheme.Hash(ballot)
	if err != nil {
		return result.Err[common.Address](err)
	}

	res := RecoverSigner(hash, sig)
	if res.IsErr() {
		return res
	}
	if signer := res.Unwrap(); signer != ballot.Voter {
		return result.Err[common.Address](fmt.Errorf("%w: got %s, want %s", ErrSignerMismatch, signer.Hex(), ballot.Voter.Hex()))
	}
	return res
}

// SignBallot produces a 65 byte signature with V in 27/28, the form wallets
// hand out.
func SignBallot(scheme Scheme, ballot Ballot, key *ecdsa.PrivateKey) ([]byte, error) {
	hash, err := scheme.Hash(ballot)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// ParseSignature decodes a hex signature with or without 0x prefix.
func ParseSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	sig, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSigDecoding, err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrSigIncorrectLen, SignatureLength, len(sig))
	}
	return sig, nil
}
