package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/testutil"
	"github.com/babylonchain/btc-bridge/types"
)

func initTestHome(t *testing.T) string {
	home := t.TempDir()
	require.NoError(t, newApp().Run([]string{"bridgecli", "init", "--home", home}))
	// a second init needs --force
	require.Error(t, newApp().Run([]string{"bridgecli", "init", "--home", home}))
	require.NoError(t, newApp().Run([]string{"bridgecli", "init", "--home", home, "--force"}))
	return home
}

func encodeHeaders(t *testing.T, headers []*wire.BlockHeader) string {
	var lines []string
	for _, h := range headers {
		var buf bytes.Buffer
		require.NoError(t, h.Serialize(&buf))
		lines = append(lines, hex.EncodeToString(buf.Bytes()))
	}
	return strings.Join(lines, "\n\n")
}

func TestReadHeaders(t *testing.T) {
	params := types.RegTestConstants().BtcParams
	headers := testutil.MineChain(t, &params.GenesisBlock.Header, 3, params)

	parsed, err := readHeaders(strings.NewReader(encodeHeaders(t, headers)))
	require.NoError(t, err)
	require.Len(t, parsed, 3)
	for i := range headers {
		require.Equal(t, headers[i].BlockHash(), parsed[i].BlockHash())
	}

	_, err = readHeaders(strings.NewReader("00ff"))
	require.Error(t, err)
	_, err = readHeaders(strings.NewReader("zz"))
	require.Error(t, err)
}

func TestDeriveFederation(t *testing.T) {
	constants := types.RegTestConstants()
	var encoded []string
	for _, key := range constants.GenesisFederationPublicKeys {
		encoded = append(encoded, hex.EncodeToString(key.SerializeCompressed()))
	}
	keys, err := parseKeyList(strings.Join(encoded, ", "))
	require.NoError(t, err)

	format, err := parseFormat("standard-multisig")
	require.NoError(t, err)
	require.Equal(t, federation.StandardMultisigFormat, format)
	_, err = parseFormat("taproot")
	require.Error(t, err)

	resp, err := deriveFederation(keys, format, constants)
	require.NoError(t, err)
	require.Equal(t, 2, resp.Threshold)

	segwit, err := deriveFederation(keys, federation.P2shP2wshErpFormat, constants)
	require.NoError(t, err)
	require.NotEqual(t, resp.Address, segwit.Address)
	require.NotEqual(t, resp.RedeemScript, segwit.RedeemScript)

	_, err = parseKeyList("02abcd")
	require.Error(t, err)
}

func TestNodeLifecycle(t *testing.T) {
	home := initTestHome(t)

	n, err := openNode(home)
	require.NoError(t, err)

	// the home directory is locked while the node is open
	_, err = openNode(home)
	require.Error(t, err)

	params := n.constants.BtcParams
	headers := testutil.MineChain(t, &params.GenesisBlock.Header, 4, params)
	added, err := n.importHeaders(1, headers)
	require.NoError(t, err)
	require.Equal(t, 4, added)

	status, err := n.status(1)
	require.NoError(t, err)
	require.Equal(t, "ACTIVE", status.FederationState)
	require.Nil(t, status.RetiringFederation)
	require.Equal(t, int32(4), status.SpvBestHeight)
	require.Equal(t, headers[3].BlockHash().String(), status.SpvBestHash)
	require.Equal(t, federation.StandardMultisigFormat.String(), status.ActiveFederation.Format)
	require.NoError(t, n.refreshGauges(1))
	require.NoError(t, n.Close())

	// headers survive reopening
	n, err = openNode(home)
	require.NoError(t, err)
	defer n.Close()
	status, err = n.status(2)
	require.NoError(t, err)
	require.Equal(t, int32(4), status.SpvBestHeight)
}
