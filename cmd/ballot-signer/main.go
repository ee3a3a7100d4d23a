package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"poll-node/lib/ethsig"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ballot-signer produces the signature a voter hands to a relayer.
func main() {
	flag.Usage = func() {
		fmt.Printf("Ballot Signer - sign a poll ballot for relayed voting.\n\n")
		fmt.Printf("Usage: %s -key <hex> -poll <id> -option <id> [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	key := flag.String("key", "", "Voter private key, hex")
	pollId := flag.Uint64("poll", 0, "Poll id")
	optionId := flag.Uint64("option", 0, "Option index")
	scheme := flag.String("scheme", ethsig.SchemePersonal, "Signature scheme: personal or eip712")
	chainId := flag.Uint64("chain-id", 1337, "Chain id for the eip712 domain")
	registry := flag.String("registry", "", "Registry address for the eip712 domain")
	flag.Parse()

	if *key == "" {
		flag.Usage()
		os.Exit(2)
	}

	priv, err := crypto.HexToECDSA(strings.TrimPrefix(*key, "0x"))
	if err != nil {
		fmt.Println("invalid key:", err)
		os.Exit(1)
	}
	if *registry != "" && !common.IsHexAddress(*registry) {
		fmt.Println("invalid registry address:", *registry)
		os.Exit(1)
	}

	s, err := ethsig.NewScheme(*scheme, *chainId, common.HexToAddress(*registry))
	if err != nil {
		fmt.Println("error is", err)
		os.Exit(1)
	}

	ballot := ethsig.Ballot{
		PollId:   *pollId,
		OptionId: *optionId,
		Voter:    crypto.PubkeyToAddress(priv.PublicKey),
	}
	sig, err := ethsig.SignBallot(s, ballot, priv)
	if err != nil {
		fmt.Println("error is", err)
		os.Exit(1)
	}

	fmt.Println("voter    ", ballot.Voter.Hex())
	fmt.Println("digest   ", ballot.Digest().Hex())
	fmt.Println("signature", hexutil.Encode(sig))
}
