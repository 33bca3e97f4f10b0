package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tradelayer/tradelayerd/api"
)

const apiDefaultClientTimeout = 7 * time.Second

// APIClient talks to the control channel of a single node
type APIClient struct {
	c      http.Client
	prefix string
}

func New(serverURL string, timeout ...time.Duration) *APIClient {
	var to time.Duration
	if len(timeout) > 0 {
		to = timeout[0]
	} else {
		to = apiDefaultClientTimeout
	}
	return &APIClient{
		c:      http.Client{Timeout: to},
		prefix: serverURL,
	}
}

// rpc posts the request body and unwraps the result from the envelope
func (c *APIClient) rpc(path string, request, result any) error {
	var reqBody []byte
	var err error
	if request != nil {
		reqBody, err = json.Marshal(request)
		if err != nil {
			return err
		}
	}
	resp, err := c.c.Post(c.prefix+path, "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, string(body))
	}
	var env api.Envelope
	if err = json.Unmarshal(body, &env); err != nil {
		return err
	}
	if env.Error != nil {
		return fmt.Errorf("from server: %s", env.Error.Message)
	}
	if result != nil {
		if err = json.Unmarshal(env.Result, result); err != nil {
			return err
		}
	}
	return nil
}

func (c *APIClient) GetInfo() (*api.InfoResult, error) {
	var ret api.InfoResult
	if err := c.rpc(api.PathGetInfo, nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *APIClient) SendIssuanceFixed(req *api.SendIssuanceFixed) (uint32, error) {
	var ret api.IssuanceResult
	if err := c.rpc(api.PathSendIssuanceFixed, req, &ret); err != nil {
		return 0, err
	}
	return ret.PropertyID, nil
}

func (c *APIClient) GetProperty(propertyID uint32) (*api.PropertyResult, error) {
	var ret api.PropertyResult
	err := c.rpc(api.PathGetProperty, &api.GetProperty{PropertyID: propertyID}, &ret)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *APIClient) Send(req *api.Send) error {
	return c.rpc(api.PathSend, req, nil)
}

func (c *APIClient) GetBalance(address string, propertyID uint32) (*api.BalanceResult, error) {
	var ret api.BalanceResult
	err := c.rpc(api.PathGetBalance, &api.GetBalance{Address: address, PropertyID: propertyID}, &ret)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *APIClient) Attestation(sender, receiver string, kycID uint64) error {
	return c.rpc(api.PathAttestation, &api.Attestation{Sender: sender, Receiver: receiver, KYCID: kycID}, nil)
}

func (c *APIClient) ListAttestation() ([]api.AttestationRecord, error) {
	var ret []api.AttestationRecord
	if err := c.rpc(api.PathListAttestation, nil, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *APIClient) SendVesting(from, to, amount string) error {
	return c.rpc(api.PathSendVesting, &api.SendVesting{FromAddress: from, ToAddress: to, Amount: amount}, nil)
}

func (c *APIClient) GetUnvested(address string) (string, error) {
	var ret api.UnvestedResult
	if err := c.rpc(api.PathGetUnvested, &api.GetUnvested{Address: address}, &ret); err != nil {
		return "", err
	}
	return ret.Unvested, nil
}

func (c *APIClient) GetVestingInfo() (*api.VestingInfoResult, error) {
	var ret api.VestingInfoResult
	if err := c.rpc(api.PathGetVestingInfo, nil, &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *APIClient) CreateChannel(req *api.CreateChannel) error {
	return c.rpc(api.PathCreateChannel, req, nil)
}

func (c *APIClient) GetChannelInfo(multisig string) (*api.ChannelInfoResult, error) {
	var ret api.ChannelInfoResult
	err := c.rpc(api.PathGetChannelInfo, &api.GetChannelInfo{MultisigAddress: multisig}, &ret)
	if err != nil {
		return nil, err
	}
	return &ret, nil
}

func (c *APIClient) CommitToChannel(req *api.CommitToChannel) error {
	return c.rpc(api.PathCommitToChannel, req, nil)
}

func (c *APIClient) CheckCommits(sender string) ([]api.CommitRecord, error) {
	var ret []api.CommitRecord
	if err := c.rpc(api.PathCheckCommits, &api.CheckCommits{Sender: sender}, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *APIClient) SendDExOffer(req *api.SendDExOffer) error {
	return c.rpc(api.PathSendDExOffer, req, nil)
}

func (c *APIClient) GetActiveDExSells(seller string) ([]api.DExSell, error) {
	var ret []api.DExSell
	if err := c.rpc(api.PathGetActiveDExSells, &api.GetActiveDExSells{Seller: seller}, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *APIClient) SendDExAccept(req *api.SendDExAccept) error {
	return c.rpc(api.PathSendDExAccept, req, nil)
}

func (c *APIClient) SendDExPayment(buyer, seller, amount string) error {
	return c.rpc(api.PathSendDExPayment, &api.SendDExPayment{Buyer: buyer, Seller: seller, Amount: amount}, nil)
}

func (c *APIClient) GetLTCVolume(propertyID uint32, first, last uint64) (string, error) {
	var ret api.VolumeResult
	err := c.rpc(api.PathGetLTCVolume, &api.GetLTCVolume{PropertyID: propertyID, FirstBlock: first, LastBlock: last}, &ret)
	if err != nil {
		return "", err
	}
	return ret.Volume, nil
}

func (c *APIClient) GetCurrentConsensusHash() (string, error) {
	var ret api.ConsensusHashResult
	if err := c.rpc(api.PathGetCurrentConsensusHash, nil, &ret); err != nil {
		return "", err
	}
	return ret.ConsensusHash, nil
}
