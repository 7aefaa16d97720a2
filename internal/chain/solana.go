package chain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/notlelouch/go-interview-practice/token-threat-scanner/internal/models"
)

var (
	Token2022ProgramID = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PE9PejRrnsG8tk")
	MetaplexMetadataID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	errNotMint         = errors.New("account is not a token mint")
)

// SolanaRPC is the subset of rpc.Client the adapter needs
type SolanaRPC interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetTokenLargestAccounts(ctx context.Context, tokenMint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenLargestAccountsResult, error)
	GetTokenSupply(ctx context.Context, tokenMint solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error)
}

type SolanaAdapter struct {
	client SolanaRPC
	log    zerolog.Logger
}

func NewSolanaAdapter(client SolanaRPC, log zerolog.Logger) *SolanaAdapter {
	return &SolanaAdapter{client: client, log: log}
}

func (a *SolanaAdapter) Family() models.ChainFamily { return models.FamilySolana }

// ParsePublicKey validates a base58 account address
func ParsePublicKey(address string) (solana.PublicKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(address))
	if err != nil || len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: %q is not a base58 public key", ErrInvalidAddress, address)
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// FetchTokenMetadata reads the mint account. For SPL and Token-2022 mints the
// declared authorities are decoded and the Metaplex metadata account supplies
// name, symbol and update authority.
func (a *SolanaAdapter) FetchTokenMetadata(ctx context.Context, address string) (models.TokenMetadata, error) {
	mint, err := ParsePublicKey(address)
	if err != nil {
		return models.TokenMetadata{}, err
	}
	meta := models.TokenMetadata{Address: mint.String()}

	info, err := a.accountData(ctx, mint)
	if err != nil {
		return meta, err
	}
	meta.RawCode = info.data

	if !info.owner.Equals(solana.TokenProgramID) && !info.owner.Equals(Token2022ProgramID) {
		// Resolves, but is not a mint: program or wallet. Analysis runs on the raw data.
		return meta, nil
	}

	var m token.Mint
	dec := bin.NewBinDecoder(info.data)
	if err := dec.Decode(&m); err != nil {
		return meta, fmt.Errorf("%w: decode mint: %v", ErrAdapterUnavailable, err)
	}
	meta.Decimals = int(m.Decimals)
	if m.MintAuthority != nil {
		meta.MintAuthority = m.MintAuthority.String()
	}
	if m.FreezeAuthority != nil {
		meta.FreezeAuthority = m.FreezeAuthority.String()
	}

	md, err := a.metaplexMetadata(ctx, mint)
	if err != nil {
		a.log.Debug().Err(err).Str("address", meta.Address).Msg("metaplex metadata unavailable")
		return meta, nil
	}
	meta.Name = md.name
	meta.Symbol = md.symbol
	meta.CreatorAddress = md.updateAuthority.String()
	return meta, nil
}

type accountInfo struct {
	owner solana.PublicKey
	data  []byte
}

func (a *SolanaAdapter) accountData(ctx context.Context, account solana.PublicKey) (accountInfo, error) {
	out, err := a.client.GetAccountInfo(ctx, account)
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (out == nil || out.Value == nil)) {
		return accountInfo{}, fmt.Errorf("%w: %s", ErrAddressNotFound, account)
	}
	if err != nil {
		return accountInfo{}, fmt.Errorf("%w: account lookup: %v", ErrAdapterUnavailable, err)
	}
	return accountInfo{owner: out.Value.Owner, data: out.Value.Data.GetBinary()}, nil
}

type metaplexData struct {
	updateAuthority solana.PublicKey
	name            string
	symbol          string
	uri             string
}

// MetadataAddress derives the Metaplex metadata PDA for a mint
func MetadataAddress(mint solana.PublicKey) (solana.PublicKey, error) {
	seeds := [][]byte{
		[]byte("metadata"),
		MetaplexMetadataID.Bytes(),
		mint.Bytes(),
	}
	addr, _, err := solana.FindProgramAddress(seeds, MetaplexMetadataID)
	return addr, err
}

func (a *SolanaAdapter) metaplexMetadata(ctx context.Context, mint solana.PublicKey) (metaplexData, error) {
	pda, err := MetadataAddress(mint)
	if err != nil {
		return metaplexData{}, err
	}
	info, err := a.accountData(ctx, pda)
	if err != nil {
		return metaplexData{}, err
	}
	return decodeMetaplex(info.data)
}

// Metaplex metadata v1 layout: key u8, update authority, mint, then borsh
// strings name, symbol and uri padded with NULs.
func decodeMetaplex(data []byte) (metaplexData, error) {
	dec := bin.NewBorshDecoder(data)
	if _, err := dec.ReadUint8(); err != nil {
		return metaplexData{}, err
	}
	authority, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return metaplexData{}, err
	}
	if _, err := dec.ReadNBytes(solana.PublicKeyLength); err != nil {
		return metaplexData{}, err
	}

	var out metaplexData
	out.updateAuthority = solana.PublicKeyFromBytes(authority)
	for _, dst := range []*string{&out.name, &out.symbol, &out.uri} {
		s, err := readBorshString(dec)
		if err != nil {
			return metaplexData{}, fmt.Errorf("decode metaplex strings: %w", err)
		}
		*dst = strings.TrimRight(s, "\x00")
	}
	return out, nil
}

// readBorshString reads a u32 little-endian length followed by that many bytes
func readBorshString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	if int(n) > dec.Remaining() {
		return "", fmt.Errorf("string length %d exceeds %d remaining bytes", n, dec.Remaining())
	}
	b, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TopHolders returns the largest token accounts with their share of supply
func (a *SolanaAdapter) TopHolders(ctx context.Context, address string, limit int) ([]models.Holder, error) {
	mint, err := ParsePublicKey(address)
	if err != nil {
		return nil, err
	}

	supply, err := a.client.GetTokenSupply(ctx, mint, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("token supply: %w", err)
	}
	if supply == nil || supply.Value == nil {
		return nil, errNotMint
	}
	total, err := decimal.NewFromString(supply.Value.Amount)
	if err != nil || total.IsZero() {
		return nil, fmt.Errorf("token supply %q unusable", supply.Value.Amount)
	}

	largest, err := a.client.GetTokenLargestAccounts(ctx, mint, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("largest accounts: %w", err)
	}

	holders := make([]models.Holder, 0, len(largest.Value))
	for _, acc := range largest.Value {
		if acc == nil {
			continue
		}
		amount, err := decimal.NewFromString(acc.Amount)
		if err != nil {
			continue
		}
		pct, _ := amount.Div(total).Mul(decimal.NewFromInt(100)).Float64()
		holders = append(holders, models.Holder{Address: acc.Address.String(), Percentage: pct})
	}

	sort.SliceStable(holders, func(i, j int) bool { return holders[i].Percentage > holders[j].Percentage })
	if limit > 0 && len(holders) > limit {
		holders = holders[:limit]
	}
	return holders, nil
}
