package main

import (
	"fmt"

	"github.com/urfave/cli"

	bridgecfg "github.com/babylonchain/btc-bridge/bridge/config"
	"github.com/babylonchain/btc-bridge/util"
)

var initCommand = cli.Command{
	Name:  "init",
	Usage: "Initialize a bridge home directory.",
	Flags: []cli.Flag{
		homeCliFlag,
		cli.BoolFlag{
			Name:  forceFlag,
			Usage: "Override existing configuration",
		},
	},
	Action: initHome,
}

func initHome(c *cli.Context) error {
	homePath, err := homePath(c)
	if err != nil {
		return err
	}

	if util.FileExists(bridgecfg.ConfigFile(homePath)) && !c.Bool(forceFlag) {
		return fmt.Errorf("config file already exists in %s", homePath)
	}

	for _, dir := range []string{homePath, bridgecfg.LogDir(homePath), bridgecfg.DataDir(homePath)} {
		if err := util.MakeDirectory(dir); err != nil {
			return err
		}
	}

	defaultConfig := bridgecfg.DefaultConfigWithHome(homePath)
	return bridgecfg.WriteConfig(&defaultConfig, homePath)
}
