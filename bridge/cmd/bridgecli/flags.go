package main

import (
	"path/filepath"

	"github.com/urfave/cli"

	bridgecfg "github.com/babylonchain/btc-bridge/bridge/config"
	"github.com/babylonchain/btc-bridge/util"
)

const (
	homeFlag      = "home"
	forceFlag     = "force"
	rskHeightFlag = "rskheight"
	keysFlag      = "keys"
	formatFlag    = "format"
	networkFlag   = "network"
)

var homeCliFlag = cli.StringFlag{
	Name:  homeFlag,
	Usage: "The path to the bridge home directory",
	Value: bridgecfg.DefaultBridgeDir,
}

var rskHeightCliFlag = cli.Uint64Flag{
	Name:     rskHeightFlag,
	Usage:    "The ledger height the bridge state is evaluated at",
	Required: true,
}

func homePath(c *cli.Context) (string, error) {
	homePath, err := filepath.Abs(c.String(homeFlag))
	if err != nil {
		return "", err
	}
	return util.CleanAndExpandPath(homePath), nil
}
