package common

import (
	"crypto/ecdsa"
	"fmt"
	"path"

	"poll-node/lib/ethsig"
	"poll-node/modules/config"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	JournalMongo  = "mongo"
	JournalFlatfs = "flatfs"
)

type nodeConfig struct {
	// AdminAddress is the account implicitly allowed to create polls and add
	// creators. It receives the genesis token allocation.
	AdminAddress string `validate:"required,eth_addr"`
	// OperatorKey signs for the HTTP relayer and admin endpoints.
	OperatorKey     string `validate:"required,hexadecimal"`
	ChainId         uint64 `validate:"gt=0"`
	SignatureScheme string `validate:"oneof=personal eip712"`
	JournalBackend  string `validate:"oneof=mongo flatfs"`
	// FlatfsPath defaults to <dataDir>/journal when empty.
	FlatfsPath string
	LogLevel   string `validate:"oneof=debug info warn error"`
}

type nodeConfigStruct struct {
	*config.Config[nodeConfig]
	dataDir string
}

type NodeConfig = *nodeConfigStruct

func NewNodeConfig(dataDir ...string) NodeConfig {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(fmt.Errorf("failed to generate operator key: %w", err))
	}

	var dataDirPtr *string
	dir := config.DATA_DIR
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
		dir = dataDir[0]
	}

	// the generated operator doubles as admin until configured otherwise
	return &nodeConfigStruct{config.New(
		nodeConfig{
			AdminAddress:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
			OperatorKey:     ethCommon.Bytes2Hex(crypto.FromECDSA(key)),
			ChainId:         1337,
			SignatureScheme: ethsig.SchemePersonal,
			JournalBackend:  JournalFlatfs,
			LogLevel:        "info",
		},
		dataDirPtr,
	), dir}
}

func (nc *nodeConfigStruct) SetSignatureScheme(name string) error {
	return nc.Update(func(c *nodeConfig) {
		c.SignatureScheme = name
	})
}

func (nc *nodeConfigStruct) Admin() ethCommon.Address {
	return ethCommon.HexToAddress(nc.Get().AdminAddress)
}

func (nc *nodeConfigStruct) OperatorKeyPair() (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(trimHex(nc.Get().OperatorKey))
	if err != nil {
		return nil, fmt.Errorf("invalid operator key: %w", err)
	}
	return key, nil
}

// RegistryAddress is the account fees are paid to, derived from the admin
// the same way a contract deployed second by the admin would be.
func (nc *nodeConfigStruct) RegistryAddress() ethCommon.Address {
	return crypto.CreateAddress(nc.Admin(), 1)
}

func (nc *nodeConfigStruct) TokenAddress() ethCommon.Address {
	return crypto.CreateAddress(nc.Admin(), 0)
}

func (nc *nodeConfigStruct) Scheme() (ethsig.Scheme, error) {
	c := nc.Get()
	return ethsig.NewScheme(c.SignatureScheme, c.ChainId, nc.RegistryAddress())
}

func (nc *nodeConfigStruct) FlatfsPath() string {
	if p := nc.Get().FlatfsPath; p != "" {
		return p
	}
	return path.Join(nc.dataDir, "journal")
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
