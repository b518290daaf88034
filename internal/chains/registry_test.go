package chains

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider/providertest"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	bsc, err := r.Get(BSC)
	require.NoError(t, err)
	require.Equal(t, "0x38", bsc.ChainIDHex)
	require.EqualValues(t, 18, bsc.StablecoinDecimals)

	for _, k := range []Key{Ethereum, Polygon, Tron} {
		d, err := r.Get(k)
		require.NoError(t, err)
		require.EqualValues(t, 6, d.StablecoinDecimals, k)
	}

	tron, _ := r.Lookup(Tron)
	require.Equal(t, "tron", tron.ReportedChainID())
	require.Equal(t, provider.FamilyTron, tron.Family)

	_, err = r.Get("solana")
	require.ErrorIs(t, err, ErrUnknownChain)
}

func TestByChainIDAcceptsAnyNotation(t *testing.T) {
	r := Default()

	for _, id := range []string{"0x38", "0X38", "56", `"0x38"`, "0x038"} {
		d, ok := r.ByChainID(id)
		require.True(t, ok, id)
		require.Equal(t, BSC, d.Key, id)
	}

	d, ok := r.ByChainID("tron")
	require.True(t, ok)
	require.Equal(t, Tron, d.Key)

	require.Equal(t, "Polygon Mainnet", r.NetworkName("0x89"))
	require.Equal(t, UnknownNetwork, r.NetworkName("0x2105"))
}

func TestNewRegistryRejectsBadTables(t *testing.T) {
	base := DefaultDescriptors()

	dupKey := append(DefaultDescriptors(), base[0])
	_, err := NewRegistry(dupKey)
	require.Error(t, err)

	sharedContract := DefaultDescriptors()
	sharedContract[2].StablecoinContract = sharedContract[0].StablecoinContract
	_, err = NewRegistry(sharedContract)
	require.ErrorContains(t, err, "share stablecoin contract")

	badTemplate := DefaultDescriptors()
	badTemplate[0].TxURLTemplate = "https://etherscan.io/tx/"
	_, err = NewRegistry(badTemplate)
	require.Error(t, err)

	noDecimals := DefaultDescriptors()
	noDecimals[1].StablecoinDecimals = 0
	_, err = NewRegistry(noDecimals)
	require.Error(t, err)

	badTron := DefaultDescriptors()
	badTron[3].StablecoinContract = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
	_, err = NewRegistry(badTron)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestWithOverrides(t *testing.T) {
	r, err := Default().WithOverrides(map[string]Override{
		"polygon": {RPCURLs: []string{" https://rpc.example ", "https://rpc.example", ""}},
	})
	require.NoError(t, err)

	d, _ := r.Lookup(Polygon)
	require.Equal(t, []string{"https://rpc.example"}, d.RPCURLs)

	orig, _ := Default().Lookup(Polygon)
	require.NotEqual(t, orig.RPCURLs, d.RPCURLs)

	_, err = Default().WithOverrides(map[string]Override{"avalanche": {}})
	require.ErrorIs(t, err, ErrUnknownChain)
}

func TestForWallet(t *testing.T) {
	r := Default()

	evm := r.ForWallet(providertest.New("evm"))
	require.Len(t, evm, 3)
	for _, d := range evm {
		require.True(t, d.IsEVM())
	}

	tron := r.ForWallet(providertest.NewTron("TBXSw8fM4jpQkGc6zZjsVABFpVN7UvXPdV"))
	require.Len(t, tron, 1)
	require.Equal(t, Tron, tron[0].Key)

	require.Nil(t, r.ForWallet(nil))
}

func TestValidateAddress(t *testing.T) {
	require.NoError(t, ValidateAddress(provider.FamilyEVM, "0x55d398326f99059fF775485246999027B3197955"))
	require.ErrorIs(t, ValidateAddress(provider.FamilyEVM, "0x0000000000000000000000000000000000000000"), ErrInvalidAddress)
	require.ErrorIs(t, ValidateAddress(provider.FamilyEVM, "0x1234"), ErrInvalidAddress)

	require.NoError(t, ValidateAddress(provider.FamilyTron, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"))
	require.ErrorIs(t, ValidateAddress(provider.FamilyTron, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6x"), ErrInvalidAddress)
}

func TestAccountBytes(t *testing.T) {
	b, err := AccountBytes(provider.FamilyTron, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	require.NoError(t, err)
	require.Len(t, b, 20)

	e, err := AccountBytes(provider.FamilyEVM, "0x55d398326f99059fF775485246999027B3197955")
	require.NoError(t, err)
	require.Len(t, e, 20)
	require.EqualValues(t, 0x55, e[0])
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey(" BSC ")
	require.NoError(t, err)
	require.Equal(t, BSC, k)

	_, err = ParseKey("base")
	require.ErrorIs(t, err, ErrUnknownChain)
}
