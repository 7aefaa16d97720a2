package chain

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

var (
	bonkMint   = solana.MustPublicKeyFromBase58("DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263")
	authority  = solana.MustPublicKeyFromBase58("9AhKqLR67hwapvG8SA2JFXaCshXc9nALJjpKaHZrsbkw")
	holderA    = solana.MustPublicKeyFromBase58("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")
	holderB    = solana.MustPublicKeyFromBase58("2AQdpHJ2JpcEgPiATUXjQxA8QmafFegfQwSLWSprPicm")
	walletAddr = solana.MustPublicKeyFromBase58("7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
)

type fakeSolana struct {
	accounts map[solana.PublicKey]*rpc.Account
	err      error
	supply   string
	largest  []*rpc.TokenLargestAccountsResult
}

func (f *fakeSolana) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	acc, ok := f.accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acc}, nil
}

func (f *fakeSolana) GetTokenLargestAccounts(ctx context.Context, mint solana.PublicKey, c rpc.CommitmentType) (*rpc.GetTokenLargestAccountsResult, error) {
	return &rpc.GetTokenLargestAccountsResult{Value: f.largest}, nil
}

func (f *fakeSolana) GetTokenSupply(ctx context.Context, mint solana.PublicKey, c rpc.CommitmentType) (*rpc.GetTokenSupplyResult, error) {
	return &rpc.GetTokenSupplyResult{Value: &rpc.UiTokenAmount{Amount: f.supply}}, nil
}

func encodeMint(t *testing.T, m token.Mint) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bin.NewBinEncoder(&buf).Encode(&m); err != nil {
		t.Fatalf("encode mint: %v", err)
	}
	return buf.Bytes()
}

func borshString(s string) []byte {
	out := make([]byte, 4, 4+len(s))
	binary.LittleEndian.PutUint32(out, uint32(len(s)))
	return append(out, s...)
}

func metaplexAccount(update, mint solana.PublicKey, name, symbol string) []byte {
	data := []byte{4}
	data = append(data, update.Bytes()...)
	data = append(data, mint.Bytes()...)
	data = append(data, borshString(name+"\x00\x00\x00")...)
	data = append(data, borshString(symbol+"\x00")...)
	data = append(data, borshString("https://arweave.net/x")...)
	return data
}

func TestSolanaAdapter_FetchTokenMetadata(t *testing.T) {
	auth := authority
	mintData := encodeMint(t, token.Mint{MintAuthority: &auth, Supply: 1000, Decimals: 5, IsInitialized: true})
	pda, err := MetadataAddress(bonkMint)
	if err != nil {
		t.Fatal(err)
	}

	client := &fakeSolana{accounts: map[solana.PublicKey]*rpc.Account{
		bonkMint: {Owner: solana.TokenProgramID, Data: rpc.DataBytesOrJSONFromBytes(mintData)},
		pda:      {Owner: MetaplexMetadataID, Data: rpc.DataBytesOrJSONFromBytes(metaplexAccount(authority, bonkMint, "Bonk", "BONK"))},
	}}
	a := NewSolanaAdapter(client, zerolog.Nop())

	got, err := a.FetchTokenMetadata(context.Background(), bonkMint.String())
	if err != nil {
		t.Fatalf("FetchTokenMetadata() error = %v", err)
	}
	if got.Name != "Bonk" || got.Symbol != "BONK" || got.Decimals != 5 {
		t.Errorf("metadata = %q/%q/%d", got.Name, got.Symbol, got.Decimals)
	}
	if got.MintAuthority != authority.String() || got.FreezeAuthority != "" {
		t.Errorf("authorities = %q/%q", got.MintAuthority, got.FreezeAuthority)
	}
	if got.CreatorAddress != authority.String() {
		t.Errorf("CreatorAddress = %q", got.CreatorAddress)
	}
	if !bytes.Equal(got.RawCode, mintData) {
		t.Error("RawCode is not the mint account data")
	}
}

func TestSolanaAdapter_MissingMetaplexIsBestEffort(t *testing.T) {
	mintData := encodeMint(t, token.Mint{Decimals: 9, IsInitialized: true})
	client := &fakeSolana{accounts: map[solana.PublicKey]*rpc.Account{
		bonkMint: {Owner: Token2022ProgramID, Data: rpc.DataBytesOrJSONFromBytes(mintData)},
	}}
	got, err := NewSolanaAdapter(client, zerolog.Nop()).FetchTokenMetadata(context.Background(), bonkMint.String())
	if err != nil {
		t.Fatalf("FetchTokenMetadata() error = %v", err)
	}
	if got.Decimals != 9 || got.Name != "" || got.MintAuthority != "" {
		t.Errorf("FetchTokenMetadata() = %+v", got)
	}
}

func TestSolanaAdapter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		address string
		client  *fakeSolana
		wantErr error
	}{
		{"InvalidBase58", "0xnotbase58", &fakeSolana{}, ErrInvalidAddress},
		{"WrongLength", "3yZe7d", &fakeSolana{}, ErrInvalidAddress},
		{"NoAccount", bonkMint.String(), &fakeSolana{}, ErrAddressNotFound},
		{"RPCDown", bonkMint.String(), &fakeSolana{err: errors.New("503")}, ErrAdapterUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSolanaAdapter(tt.client, zerolog.Nop()).FetchTokenMetadata(context.Background(), tt.address)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FetchTokenMetadata() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSolanaAdapter_NonMintAccount(t *testing.T) {
	client := &fakeSolana{accounts: map[solana.PublicKey]*rpc.Account{
		walletAddr: {Owner: solana.SystemProgramID, Data: rpc.DataBytesOrJSONFromBytes(nil)},
	}}
	got, err := NewSolanaAdapter(client, zerolog.Nop()).FetchTokenMetadata(context.Background(), walletAddr.String())
	if err != nil {
		t.Fatalf("FetchTokenMetadata() error = %v", err)
	}
	if got.Address != walletAddr.String() || got.Decimals != 0 {
		t.Errorf("FetchTokenMetadata() = %+v", got)
	}
}

func TestSolanaAdapter_TopHolders(t *testing.T) {
	client := &fakeSolana{
		supply: "1000",
		largest: []*rpc.TokenLargestAccountsResult{
			{Address: holderB, UiTokenAmount: rpc.UiTokenAmount{Amount: "50"}},
			{Address: holderA, UiTokenAmount: rpc.UiTokenAmount{Amount: "600"}},
		},
	}
	got, err := NewSolanaAdapter(client, zerolog.Nop()).TopHolders(context.Background(), bonkMint.String(), 1)
	if err != nil {
		t.Fatalf("TopHolders() error = %v", err)
	}
	if len(got) != 1 || got[0].Address != holderA.String() || got[0].Percentage != 60 {
		t.Errorf("TopHolders() = %+v, want holderA at 60%%", got)
	}
}

func TestDecodeMetaplex(t *testing.T) {
	header := append([]byte{4}, authority.Bytes()...)
	header = append(header, bonkMint.Bytes()...)
	record := func(parts ...[]byte) []byte {
		out := append([]byte(nil), header...)
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}
	padded := func(s string, n int) string {
		return s + string(make([]byte, n-len(s)))
	}

	tests := []struct {
		name       string
		data       []byte
		wantName   string
		wantSymbol string
		wantURI    string
		wantErr    bool
	}{
		{
			name:       "FixedWidthPadding",
			data:       record(borshString(padded("Bonk", 32)), borshString(padded("BONK", 10)), borshString(padded("https://arweave.net/x", 200))),
			wantName:   "Bonk",
			wantSymbol: "BONK",
			wantURI:    "https://arweave.net/x",
		},
		{
			// seller_fee_basis_points and the creators option follow the uri
			name:       "TrailingFields",
			data:       record(borshString("Bonk"), borshString("BONK"), borshString("ipfs://x"), []byte{0xf4, 0x01, 0x00}),
			wantName:   "Bonk",
			wantSymbol: "BONK",
			wantURI:    "ipfs://x",
		},
		{
			name: "EmptyStrings",
			data: record(borshString(""), borshString(""), borshString("")),
		},
		{
			name:    "LengthPastEnd",
			data:    record(borshString("Bonk"), []byte{0xff, 0x00, 0x00, 0x00, 'B'}),
			wantErr: true,
		},
		{
			name:    "TruncatedLength",
			data:    record(borshString("Bonk"), []byte{0x04, 0x00}),
			wantErr: true,
		},
		{
			name:    "NoStrings",
			data:    header,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeMetaplex(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("decodeMetaplex() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeMetaplex() error = %v", err)
			}
			if got.name != tt.wantName || got.symbol != tt.wantSymbol || got.uri != tt.wantURI {
				t.Errorf("decodeMetaplex() = %q/%q/%q, want %q/%q/%q", got.name, got.symbol, got.uri, tt.wantName, tt.wantSymbol, tt.wantURI)
			}
			if !got.updateAuthority.Equals(authority) {
				t.Errorf("update authority = %s, want %s", got.updateAuthority, authority)
			}
		})
	}
}
