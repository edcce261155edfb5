package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli"

	"github.com/babylonchain/btc-bridge/bridge"
	"github.com/babylonchain/btc-bridge/federation"
)

var statusCommand = cli.Command{
	Name:   "status",
	Usage:  "Show the federations, queues and SPV chain of the bridge.",
	Flags:  []cli.Flag{homeCliFlag, rskHeightCliFlag},
	Action: showStatus,
}

type federationInfo struct {
	Address             string `json:"address"`
	Format              string `json:"format"`
	Size                int    `json:"size"`
	Threshold           int    `json:"threshold"`
	CreationBlockNumber uint64 `json:"creation_block_number"`
	CreationTime        int64  `json:"creation_time"`
}

type statusResponse struct {
	RskHeight             uint64            `json:"rsk_height"`
	FederationState       string            `json:"federation_state"`
	ActiveFederation      *federationInfo   `json:"active_federation"`
	RetiringFederation    *federationInfo   `json:"retiring_federation,omitempty"`
	PendingFederationHash string            `json:"pending_federation_hash,omitempty"`
	Queues                bridge.QueueSizes `json:"queues"`
	NextPegoutHeight      uint64            `json:"next_pegout_height"`
	EstimatedPegoutFee    int64             `json:"estimated_pegout_fee"`
	FeePerKb              int64             `json:"fee_per_kb"`
	SpvBestHeight         int32             `json:"spv_best_height"`
	SpvBestHash           string            `json:"spv_best_hash"`
}

func newFederationInfo(fed federation.Federation) *federationInfo {
	if fed == nil {
		return nil
	}
	return &federationInfo{
		Address:             fed.Address().EncodeAddress(),
		Format:              fed.FormatVersion().String(),
		Size:                fed.Size(),
		Threshold:           fed.NumberOfSignaturesRequired(),
		CreationBlockNumber: fed.CreationBlockNumber(),
		CreationTime:        fed.CreationTime().Unix(),
	}
}

func showStatus(c *cli.Context) error {
	homePath, err := homePath(c)
	if err != nil {
		return err
	}
	n, err := openNode(homePath)
	if err != nil {
		return err
	}
	defer n.Close()

	resp, err := n.status(c.Uint64(rskHeightFlag))
	if err != nil {
		return err
	}
	printRespJSON(resp)
	return nil
}

func (n *node) status(height uint64) (*statusResponse, error) {
	s, err := n.support(height)
	if err != nil {
		return nil, err
	}

	resp := &statusResponse{RskHeight: height}

	state, err := s.FederationState()
	if err != nil {
		return nil, err
	}
	resp.FederationState = state.String()

	active, err := s.ActiveFederation()
	if err != nil {
		return nil, err
	}
	resp.ActiveFederation = newFederationInfo(active)
	retiring, err := s.RetiringFederation()
	if err != nil {
		return nil, err
	}
	resp.RetiringFederation = newFederationInfo(retiring)

	pending, err := s.PendingFederation()
	if err != nil {
		return nil, err
	}
	if pending != nil {
		resp.PendingFederationHash = pending.Hash().String()
	}

	if resp.Queues, err = s.QueueSizes(); err != nil {
		return nil, err
	}
	if resp.NextPegoutHeight, err = s.NextPegoutCreationHeight(); err != nil {
		return nil, err
	}
	fee, err := s.EstimatedFeesForNextPegout()
	if err != nil {
		return nil, err
	}
	resp.EstimatedPegoutFee = int64(fee)
	feePerKb, err := s.FeePerKb()
	if err != nil {
		return nil, err
	}
	resp.FeePerKb = int64(feePerKb)

	if resp.SpvBestHeight, err = s.BtcBestChainHeight(); err != nil {
		return nil, err
	}
	best, err := s.BtcBlockHashAtDepth(0)
	if err != nil {
		return nil, err
	}
	resp.SpvBestHash = best.String()

	return resp, nil
}

func printRespJSON(resp interface{}) {
	jsonBytes, err := json.MarshalIndent(resp, "", "    ")
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}

	fmt.Printf("%s\n", jsonBytes)
}
