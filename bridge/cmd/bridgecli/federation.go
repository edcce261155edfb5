package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/urfave/cli"

	"github.com/babylonchain/btc-bridge/federation"
	"github.com/babylonchain/btc-bridge/types"
)

var federationAddressCommand = cli.Command{
	Name:  "federation-address",
	Usage: "Derive the redeem script and address of a federation.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:     keysFlag,
			Usage:    "Comma separated hex encoded compressed public keys of the federators",
			Required: true,
		},
		cli.StringFlag{
			Name:  formatFlag,
			Usage: "The federation format: standard-multisig, non-standard-erp, p2sh-erp or p2sh-p2wsh-erp",
			Value: federation.P2shP2wshErpFormat.String(),
		},
		cli.StringFlag{
			Name:  networkFlag,
			Usage: "The Bitcoin network, only regtest carries built-in ERP keys",
			Value: "regtest",
		},
	},
	Action: federationAddress,
}

type federationAddressResponse struct {
	Address      string `json:"address"`
	RedeemScript string `json:"redeem_script"`
	P2SHScript   string `json:"p2sh_script"`
	Threshold    int    `json:"threshold"`
}

func federationAddress(c *cli.Context) error {
	keys, err := parseKeyList(c.String(keysFlag))
	if err != nil {
		return err
	}
	format, err := parseFormat(c.String(formatFlag))
	if err != nil {
		return err
	}
	if c.String(networkFlag) != "regtest" {
		return fmt.Errorf("unsupported network %q", c.String(networkFlag))
	}

	resp, err := deriveFederation(keys, format, types.RegTestConstants())
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func deriveFederation(
	keys []*btcec.PublicKey,
	format federation.FormatVersion,
	constants *types.BridgeConstants,
) (*federationAddressResponse, error) {
	fed, err := federation.FromFormat(format, federation.Args{
		Members:             federation.MembersFromBtcKeys(keys),
		CreationTime:        time.Unix(constants.GenesisFederationCreationTime, 0),
		CreationBlockNumber: 1,
		Params:              constants.BtcParams,
	}, constants, types.AllActiveFromGenesis().ForBlock(0))
	if err != nil {
		return nil, err
	}
	return &federationAddressResponse{
		Address:      fed.Address().EncodeAddress(),
		RedeemScript: hex.EncodeToString(fed.RedeemScript()),
		P2SHScript:   hex.EncodeToString(fed.P2SHScript()),
		Threshold:    fed.NumberOfSignaturesRequired(),
	}, nil
}

func parseKeyList(s string) ([]*btcec.PublicKey, error) {
	var keys []*btcec.PublicKey
	for _, encoded := range strings.Split(s, ",") {
		b, err := hex.DecodeString(strings.TrimSpace(encoded))
		if err != nil {
			return nil, fmt.Errorf("invalid public key %q: %w", encoded, err)
		}
		key, err := btcec.ParsePubKey(b)
		if err != nil {
			return nil, fmt.Errorf("invalid public key %q: %w", encoded, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func parseFormat(s string) (federation.FormatVersion, error) {
	for _, f := range []federation.FormatVersion{
		federation.StandardMultisigFormat,
		federation.NonStandardErpFormat,
		federation.P2shErpFormat,
		federation.P2shP2wshErpFormat,
	} {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown federation format %q", s)
}
