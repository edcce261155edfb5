package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/btcsuite/btcd/wire"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var importHeadersCommand = cli.Command{
	Name:      "import-headers",
	Usage:     "Feed Bitcoin block headers into the SPV chain.",
	ArgsUsage: "<file with one hex encoded header per line>",
	Flags:     []cli.Flag{homeCliFlag, rskHeightCliFlag},
	Action:    importHeaders,
}

func importHeaders(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected the path of the headers file")
	}
	f, err := os.Open(c.Args().First())
	if err != nil {
		return err
	}
	defer f.Close()

	headers, err := readHeaders(f)
	if err != nil {
		return err
	}

	homePath, err := homePath(c)
	if err != nil {
		return err
	}
	n, err := openNode(homePath)
	if err != nil {
		return err
	}
	defer n.Close()

	added, err := n.importHeaders(c.Uint64(rskHeightFlag), headers)
	if err != nil {
		return err
	}
	fmt.Printf("added %d of %d headers\n", added, len(headers))
	return nil
}

func (n *node) importHeaders(height uint64, headers []*wire.BlockHeader) (int, error) {
	s, err := n.support(height)
	if err != nil {
		return 0, err
	}
	added, err := s.ReceiveHeaders(headers)
	if err != nil {
		return added, err
	}
	n.logger.Info("imported headers", zap.Int("received", len(headers)), zap.Int("added", added))
	return added, s.Save()
}

// readHeaders parses one hex encoded 80 byte header per line, skipping
// empty lines.
func readHeaders(r io.Reader) ([]*wire.BlockHeader, error) {
	var headers []*wire.BlockHeader
	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		raw, err := hex.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(raw) != wire.MaxBlockHeaderPayload {
			return nil, fmt.Errorf("line %d: header has %d bytes, expected %d", line, len(raw), wire.MaxBlockHeaderPayload)
		}
		var header wire.BlockHeader
		if err := header.Deserialize(bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		headers = append(headers, &header)
	}
	return headers, scanner.Err()
}
