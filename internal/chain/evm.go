package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/contract"
	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

const erc20MetadataABI = `[
	{"type":"function","name":"name","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

var erc20Metadata = mustABI(erc20MetadataABI)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EVMClient is the subset of ethclient.Client the adapter needs
type EVMClient interface {
	ethereum.ChainStateReader
	ethereum.ContractCaller
}

// ContractExplorer resolves off-chain contract facts. Optional.
type ContractExplorer interface {
	IsContractVerified(ctx context.Context, address string) (bool, error)
	ContractCreation(ctx context.Context, address string) (contract.Creation, error)
}

type EVMAdapter struct {
	client   EVMClient
	explorer ContractExplorer
	log      zerolog.Logger
}

func NewEVMAdapter(client EVMClient, explorer ContractExplorer, log zerolog.Logger) *EVMAdapter {
	return &EVMAdapter{client: client, explorer: explorer, log: log}
}

func (a *EVMAdapter) Family() models.ChainFamily { return models.FamilyEVM }

// FetchTokenMetadata reads the deployed code and, best-effort, the ERC-20
// metadata views, owner(), creator and verification state.
func (a *EVMAdapter) FetchTokenMetadata(ctx context.Context, address string) (models.TokenMetadata, error) {
	if !common.IsHexAddress(address) {
		return models.TokenMetadata{}, fmt.Errorf("%w: %q is not a hex address", ErrInvalidAddress, address)
	}
	addr := common.HexToAddress(address)
	meta := models.TokenMetadata{Address: addr.Hex()}

	code, err := a.client.CodeAt(ctx, addr, nil)
	if err != nil {
		return meta, fmt.Errorf("%w: code lookup: %v", ErrAdapterUnavailable, err)
	}
	if len(code) == 0 {
		if err := a.checkExists(ctx, addr); err != nil {
			return meta, err
		}
		return meta, nil
	}
	meta.RawCode = code

	if v, err := a.callString(ctx, addr, "name"); err == nil {
		meta.Name = v
	}
	if v, err := a.callString(ctx, addr, "symbol"); err == nil {
		meta.Symbol = v
	}
	if vals, err := a.call(ctx, addr, "decimals"); err == nil {
		if d, ok := vals[0].(uint8); ok {
			meta.Decimals = int(d)
		}
	}
	if vals, err := a.call(ctx, addr, "owner"); err == nil {
		if owner, ok := vals[0].(common.Address); ok && owner != (common.Address{}) {
			meta.OwnerAddress = owner.Hex()
		}
	}

	if a.explorer != nil {
		a.enrichFromExplorer(ctx, &meta)
	}
	return meta, nil
}

// An address with no code, no balance and no nonce has never been touched.
func (a *EVMAdapter) checkExists(ctx context.Context, addr common.Address) error {
	balance, err := a.client.BalanceAt(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("%w: balance lookup: %v", ErrAdapterUnavailable, err)
	}
	nonce, err := a.client.NonceAt(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("%w: nonce lookup: %v", ErrAdapterUnavailable, err)
	}
	if balance.Sign() == 0 && nonce == 0 {
		return fmt.Errorf("%w: %s", ErrAddressNotFound, addr.Hex())
	}
	return nil
}

func (a *EVMAdapter) enrichFromExplorer(ctx context.Context, meta *models.TokenMetadata) {
	if creation, err := a.explorer.ContractCreation(ctx, meta.Address); err == nil {
		meta.CreatorAddress = creation.Creator
	} else {
		a.log.Debug().Err(err).Str("address", meta.Address).Msg("creator lookup failed")
	}

	if verified, err := a.explorer.IsContractVerified(ctx, meta.Address); err == nil {
		meta.SourceVerified = &verified
	} else {
		a.log.Debug().Err(err).Str("address", meta.Address).Msg("verification lookup failed")
	}
}

func (a *EVMAdapter) raw(ctx context.Context, to common.Address, method string) ([]byte, error) {
	data, err := erc20Metadata.Pack(method)
	if err != nil {
		return nil, err
	}
	out, err := a.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("empty return data")
	}
	return out, nil
}

func (a *EVMAdapter) call(ctx context.Context, to common.Address, method string) ([]interface{}, error) {
	out, err := a.raw(ctx, to, method)
	if err != nil {
		return nil, err
	}
	return erc20Metadata.Unpack(method, out)
}

// callString handles both ABI strings and the legacy bytes32 encoding.
func (a *EVMAdapter) callString(ctx context.Context, to common.Address, method string) (string, error) {
	out, err := a.raw(ctx, to, method)
	if err != nil {
		return "", err
	}
	if vals, err := erc20Metadata.Unpack(method, out); err == nil {
		if s, ok := vals[0].(string); ok {
			return s, nil
		}
	}
	if len(out) != 32 {
		return "", fmt.Errorf("%s: undecodable return data", method)
	}
	return strings.TrimRight(string(out), "\x00"), nil
}
