package btcscript_test

import (
	"encoding/hex"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/btcscript"
	"github.com/babylonchain/btc-bridge/testutil"
	"github.com/babylonchain/btc-bridge/types"
)

const testCsv = 5063

func TestErpRedeemScriptLayouts(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	defaultKeys := testutil.GenRandomBtcPubKeys(r, t, 5)
	emergencyKeys := testutil.GenRandomBtcPubKeys(r, t, 4)

	tests := []struct {
		name    string
		builder btcscript.ErpRedeemScriptBuilder
		csv     []byte
		shared  bool
		chunks  int
	}{
		{
			name: "canonical",
			builder: btcscript.NonStandardErpBuilderFor(&chaincfg.MainNetParams, nil,
				types.NewActivations(1, types.FlagErpScriptHardcodeRemoved, types.FlagErpCsvCanonical)),
			csv:    []byte{0xc7, 0x13},
			shared: true,
			chunks: 5 + 4 + 11,
		},
		{
			name:    "unsigned big endian csv",
			builder: btcscript.NonStandardErpBuilderFor(&chaincfg.MainNetParams, nil, types.NewActivations(1)),
			csv:     []byte{0x13, 0xc7},
			shared:  true,
			chunks:  5 + 4 + 11,
		},
		{
			name:    "p2sh",
			builder: btcscript.NewP2shErpBuilder(),
			csv:     []byte{0xc7, 0x13},
			shared:  false,
			chunks:  5 + 4 + 12,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			script, err := tc.builder.CreateRedeemScript(defaultKeys, 3, emergencyKeys, 3, testCsv)
			require.NoError(t, err)
			require.Equal(t, tc.chunks, countChunks(t, script))

			parsed, err := btcscript.ParseErpRedeemScript(script)
			require.NoError(t, err)
			require.Equal(t, tc.csv, parsed.CsvBytes)
			require.Equal(t, tc.shared, parsed.SharedCheckMultiSig)
			require.Equal(t, 3, parsed.Default.Threshold)
			require.Len(t, parsed.Default.Keys, 5)
			require.Equal(t, 3, parsed.Emergency.Threshold)
			require.Len(t, parsed.Emergency.Keys, 4)
		})
	}
}

func TestErpBuilderSelection(t *testing.T) {
	legacy := []byte{0x64, 0x52, 0x67, 0x68}

	b := btcscript.NonStandardErpBuilderFor(&chaincfg.TestNet3Params, legacy, types.NewActivations(1))
	require.Equal(t, btcscript.ErpVariantLegacyHardcoded, b.Variant())
	script, err := b.CreateRedeemScript(nil, 0, nil, 0, 0)
	require.NoError(t, err)
	require.Equal(t, legacy, script)

	b = btcscript.NonStandardErpBuilderFor(&chaincfg.MainNetParams, legacy, types.NewActivations(1))
	require.Equal(t, btcscript.ErpVariantUnsignedBECsv, b.Variant())

	b = btcscript.NonStandardErpBuilderFor(&chaincfg.TestNet3Params, legacy,
		types.NewActivations(1, types.FlagErpScriptHardcodeRemoved))
	require.Equal(t, btcscript.ErpVariantUnsignedBECsv, b.Variant())

	b = btcscript.NonStandardErpBuilderFor(&chaincfg.RegressionNetParams, nil,
		types.NewActivations(1, types.FlagErpScriptHardcodeRemoved, types.FlagErpCsvCanonical))
	require.Equal(t, btcscript.ErpVariantStandard, b.Variant())

	b = btcscript.NonStandardErpBuilderFor(&chaincfg.TestNet3Params, nil, types.NewActivations(1))
	_, err = b.CreateRedeemScript(nil, 0, nil, 0, 0)
	reason, ok := btcscript.CreationErrorReason(err)
	require.True(t, ok)
	require.Equal(t, btcscript.InvalidInternalRedeemScripts, reason)
}

func TestErpRedeemScriptInvalidCsv(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	defaultKeys := testutil.GenRandomBtcPubKeys(r, t, 3)
	emergencyKeys := testutil.GenRandomBtcPubKeys(r, t, 3)

	for _, csv := range []int64{0, -1, types.MaxCsvValue + 1} {
		_, err := btcscript.NewP2shErpBuilder().CreateRedeemScript(defaultKeys, 2, emergencyKeys, 2, csv)
		reason, ok := btcscript.CreationErrorReason(err)
		require.True(t, ok, "csv %d", csv)
		require.Equal(t, btcscript.InvalidCsvValue, reason)
	}

	_, err := btcscript.NewP2shErpBuilder().CreateRedeemScript(defaultKeys, 2, emergencyKeys, 2, types.MaxCsvValue)
	require.NoError(t, err)
}

func TestValidateErpScriptArgs(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	ms, err := btcscript.CreateMultiSigRedeemScript(2, testutil.GenRandomBtcPubKeys(r, t, 3))
	require.NoError(t, err)

	require.NoError(t, btcscript.ValidateErpScriptArgs(ms, ms, 100))

	err = btcscript.ValidateErpScriptArgs(ms[:len(ms)-1], ms, 100)
	reason, ok := btcscript.CreationErrorReason(err)
	require.True(t, ok)
	require.Equal(t, btcscript.InvalidInternalRedeemScripts, reason)

	err = btcscript.ValidateErpScriptArgs(ms, []byte{0x00}, 100)
	reason, ok = btcscript.CreationErrorReason(err)
	require.True(t, ok)
	require.Equal(t, btcscript.InvalidInternalRedeemScripts, reason)

	err = btcscript.ValidateErpScriptArgs(ms, ms, 0)
	reason, ok = btcscript.CreationErrorReason(err)
	require.True(t, ok)
	require.Equal(t, btcscript.InvalidCsvValue, reason)
}

func TestParseErpRedeemScriptRejectsMultiSig(t *testing.T) {
	r := rand.New(rand.NewSource(17))
	ms, err := btcscript.CreateMultiSigRedeemScript(2, testutil.GenRandomBtcPubKeys(r, t, 3))
	require.NoError(t, err)

	_, err = btcscript.ParseErpRedeemScript(ms)
	require.ErrorIs(t, err, btcscript.ErrNotMultiSigScript)
}

func TestP2shErpRedeemScriptGolden(t *testing.T) {
	defaultKeys := types.DeterministicPublicKeys("federator", 3)
	emergencyKeys := types.DeterministicPublicKeys("erp", 4)

	script, err := btcscript.NewP2shErpBuilder().CreateRedeemScript(defaultKeys, 2, emergencyKeys, 3, testCsv)
	require.NoError(t, err)
	require.Equal(t, 19, countChunks(t, script))
	require.Equal(t, "645221021c1555d7955c130bb134724fa1e23f0ce2b994bc1aff84b94d172d5353b0f0db"+
		"2102c41d4c6667e2e715447d9e4c33e3614cc961f084a30c0f1dcf4cdb3b4efab473"+
		"2103b6861260f5e2a7e9604cf37a63b73d2e4113500b69b40af1f2d682bb056e09f553ae"+
		"6702c713b2755321022b5873865ad3ac439d8c5de42e6c28ab9bda1ccc09c3b9045c03f311019d3643"+
		"2102eb649b436da341b7ccbceb3ed47e4427f68500823a3d8a1186d32dc7bca64a41"+
		"2102f1f3e4a28882d6a521f50a43a84d6da7d95508715c945dd585b9430c79cbf202"+
		"2103155cb9765b854afcbceeed4817303216cb727b4ab86211b6368a13662e8b5bf554ae68",
		hex.EncodeToString(script))

	addr, err := btcutil.NewAddressScriptHash(script, &chaincfg.RegressionNetParams)
	require.NoError(t, err)
	require.Equal(t, "2N8otYbU8kMYGx7uffSRuQ4NsDyNvM6FdeH", addr.EncodeAddress())
}
