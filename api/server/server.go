package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tradelayer/tradelayerd/api"
	"github.com/tradelayer/tradelayerd/engine"
	"github.com/tradelayer/tradelayerd/global"
	"github.com/tradelayer/tradelayerd/layertx"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/state"
	"github.com/tradelayer/tradelayerd/util"
)

type (
	environment interface {
		global.Logging
		global.Metrics
		Network() string
		Height() uint64
		ConsensusHash() string
		Submit(d layertx.Decoded) error
		SubmitIssuance(d layertx.Decoded) (ledger.PropertyID, error)
		GetBalance(addr ledger.Address, property ledger.PropertyID) state.Balance
		GetUnvested(addr ledger.Address) ledger.Amount
		GetProperty(id ledger.PropertyID) (state.Property, bool)
		ActiveDExSells(seller ledger.Address) []engine.OfferView
		ChannelInfo(multisig ledger.Address) (engine.ChannelView, bool)
		CheckCommits(sender ledger.Address) []state.Commit
		ListAttestations() []state.AttestationRecord
		VolumeInRange(property ledger.PropertyID, first, last uint64) ledger.Amount
		GetVestingInfo() (engine.VestingInfo, bool)
	}

	server struct {
		*http.Server
		environment
		metrics
	}

	metrics struct {
		totalRequests prometheus.Counter
	}
)

func (srv *server) registerHandlers() {
	srv.addHandler(api.PathGetInfo, srv.getInfo)
	srv.addHandler(api.PathSendIssuanceFixed, srv.sendIssuanceFixed)
	srv.addHandler(api.PathGetProperty, srv.getProperty)
	srv.addHandler(api.PathSend, srv.send)
	srv.addHandler(api.PathGetBalance, srv.getBalance)
	srv.addHandler(api.PathAttestation, srv.attestation)
	srv.addHandler(api.PathListAttestation, srv.listAttestation)
	srv.addHandler(api.PathSendVesting, srv.sendVesting)
	srv.addHandler(api.PathGetUnvested, srv.getUnvested)
	srv.addHandler(api.PathGetVestingInfo, srv.getVestingInfo)
	srv.addHandler(api.PathCreateChannel, srv.createChannel)
	srv.addHandler(api.PathGetChannelInfo, srv.getChannelInfo)
	srv.addHandler(api.PathCommitToChannel, srv.commitToChannel)
	srv.addHandler(api.PathCheckCommits, srv.checkCommits)
	srv.addHandler(api.PathSendDExOffer, srv.sendDExOffer)
	srv.addHandler(api.PathGetActiveDExSells, srv.getActiveDExSells)
	srv.addHandler(api.PathSendDExAccept, srv.sendDExAccept)
	srv.addHandler(api.PathSendDExPayment, srv.sendDExPayment)
	srv.addHandler(api.PathGetLTCVolume, srv.getLTCVolume)
	srv.addHandler(api.PathGetCurrentConsensusHash, srv.getConsensusHash)
}

func decodeRequest[T any](r *http.Request) (*T, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	ret := new(T)
	if len(body) > 0 {
		if err = json.Unmarshal(body, ret); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

func (srv *server) getInfo(w http.ResponseWriter, _ *http.Request) {
	setHeader(w)
	writeResult(w, &api.InfoResult{
		Version: global.Version,
		Network: srv.Network(),
		Block:   srv.Height(),
	})
}

func (srv *server) sendIssuanceFixed(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.SendIssuanceFixed](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	amount, err := ledger.AmountFromString(req.Amount)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	id, err := srv.SubmitIssuance(layertx.Decoded{
		Sender: ledger.Address(req.FromAddress),
		Cmd: &layertx.IssuanceFixed{
			Divisible:   req.Divisible,
			Category:    req.Category,
			Subcategory: req.Subcategory,
			Name:        req.Name,
			Data:        req.Data,
			URL:         req.URL,
			Amount:      amount,
			KYCAllowed:  req.KYCOptions,
		},
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeResult(w, &api.IssuanceResult{PropertyID: uint32(id)})
}

func (srv *server) getProperty(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.GetProperty](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	p, ok := srv.environment.GetProperty(ledger.PropertyID(req.PropertyID))
	if !ok {
		writeErr(w, fmt.Sprintf("property %d not found", req.PropertyID))
		return
	}
	writeResult(w, &api.PropertyResult{
		PropertyID:  uint32(p.ID),
		Name:        p.Name,
		Category:    p.Category,
		Subcategory: p.Subcategory,
		Data:        p.Data,
		URL:         p.URL,
		Divisible:   p.Divisible,
		Issuer:      string(p.Issuer),
		TotalTokens: p.Total.String(),
	})
}

func (srv *server) send(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.Send](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	amount, err := ledger.AmountFromString(req.Amount)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	err = srv.Submit(layertx.Decoded{
		Sender:    ledger.Address(req.FromAddress),
		Reference: ledger.Address(req.ToAddress),
		Cmd: &layertx.SimpleSend{
			Property: ledger.PropertyID(req.PropertyID),
			Amount:   amount,
		},
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w)
}

func (srv *server) getBalance(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.GetBalance](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	b := srv.environment.GetBalance(ledger.Address(req.Address), ledger.PropertyID(req.PropertyID))
	writeResult(w, &api.BalanceResult{
		Balance: b.Available.String(),
		Reserve: b.Reserved.String(),
	})
}

func (srv *server) attestation(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.Attestation](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	receiver := req.Receiver
	if receiver == "" {
		// self-attestation
		receiver = req.Sender
	}
	err = srv.Submit(layertx.Decoded{
		Sender:    ledger.Address(req.Sender),
		Reference: ledger.Address(receiver),
		Cmd:       &layertx.Attestation{KYCID: req.KYCID},
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w)
}

func (srv *server) listAttestation(w http.ResponseWriter, _ *http.Request) {
	setHeader(w)
	records := srv.ListAttestations()
	ret := make([]api.AttestationRecord, 0, len(records))
	for i := range records {
		ret = append(ret, api.AttestationRecord{
			AttSender:   string(records[i].Sender),
			AttReceiver: string(records[i].Receiver),
			KYCID:       records[i].KYCID,
		})
	}
	writeResult(w, ret)
}

func (srv *server) sendVesting(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.SendVesting](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	amount, err := ledger.AmountFromString(req.Amount)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	err = srv.Submit(layertx.Decoded{
		Sender:    ledger.Address(req.FromAddress),
		Reference: ledger.Address(req.ToAddress),
		Cmd:       &layertx.SendVesting{Amount: amount},
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w)
}

func (srv *server) getUnvested(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.GetUnvested](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeResult(w, &api.UnvestedResult{
		Unvested: srv.GetUnvested(ledger.Address(req.Address)).String(),
	})
}

func (srv *server) getVestingInfo(w http.ResponseWriter, _ *http.Request) {
	setHeader(w)
	vi, ok := srv.environment.GetVestingInfo()
	if !ok {
		writeErr(w, "vesting property not active")
		return
	}
	writeResult(w, &api.VestingInfoResult{
		PropertyID:       uint32(vi.Property.ID),
		Name:             vi.Property.Name,
		Data:             vi.Property.Data,
		URL:              vi.Property.URL,
		Divisible:        vi.Property.Divisible,
		Issuer:           string(vi.Property.Issuer),
		ActivationBlock:  vi.ActivationBlock,
		LitecoinVolume:   vi.Volume.String(),
		VestedPercentage: vi.VestedPercent.String(),
		LastVestingBlock: vi.LastVestingBlock,
		TotalVested:      vi.TotalVested.String(),
		Owners:           vi.Owners,
		TotalTokens:      vi.Property.Total.String(),
		KYCAllowed:       kycListString(vi.Property.KYCAllowed),
	})
}

func (srv *server) createChannel(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.CreateChannel](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	err = srv.Submit(layertx.Decoded{
		Sender:    ledger.Address(req.FirstAddress),
		Reference: ledger.Address(req.MultisigAddress),
		Cmd: &layertx.ChannelCreate{
			Second: ledger.Address(req.SecondAddress),
			Window: req.ExpiryWindow,
		},
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w)
}

func (srv *server) getChannelInfo(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.GetChannelInfo](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	ch, ok := srv.ChannelInfo(ledger.Address(req.MultisigAddress))
	if !ok {
		writeErr(w, fmt.Sprintf("channel %s not found", req.MultisigAddress))
		return
	}
	status := "expired"
	if ch.Active {
		status = "active"
	}
	writeResult(w, &api.ChannelInfoResult{
		MultisigAddress: string(ch.Multisig),
		FirstAddress:    string(ch.First),
		SecondAddress:   string(ch.Second),
		ExpiryBlock:     ch.ExpiryBlock,
		Status:          status,
	})
}

func (srv *server) commitToChannel(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.CommitToChannel](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	amount, err := ledger.AmountFromString(req.Amount)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	err = srv.Submit(layertx.Decoded{
		Sender:    ledger.Address(req.Sender),
		Reference: ledger.Address(req.MultisigAddress),
		Cmd: &layertx.ChannelCommit{
			Property: ledger.PropertyID(req.PropertyID),
			Amount:   amount,
		},
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w)
}

func (srv *server) checkCommits(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.CheckCommits](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	commits := srv.CheckCommits(ledger.Address(req.Sender))
	ret := make([]api.CommitRecord, 0, len(commits))
	for i := range commits {
		ret = append(ret, api.CommitRecord{
			Sender:     string(commits[i].Sender),
			PropertyID: fmt.Sprintf("%d", commits[i].Property),
			Amount:     commits[i].Amount.String(),
			Block:      commits[i].Block,
		})
	}
	writeResult(w, ret)
}

func (srv *server) sendDExOffer(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.SendDExOffer](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	forSale, err := ledger.AmountFromString(req.AmountForSale)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	desired, err := ledger.AmountFromString(req.AmountDesired)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	minFee, err := ledger.AmountFromString(req.MinFee)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	err = srv.Submit(layertx.Decoded{
		Sender: ledger.Address(req.FromAddress),
		Cmd: &layertx.DExOffer{
			Property:      ledger.PropertyID(req.PropertyID),
			AmountForSale: forSale,
			AmountDesired: desired,
			PaymentWindow: req.PaymentWindow,
			MinFee:        minFee,
			Option:        req.Action,
			SubAction:     req.SubAction,
		},
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w)
}

func (srv *server) getActiveDExSells(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.GetActiveDExSells](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	offers := srv.ActiveDExSells(ledger.Address(req.Seller))
	ret := make([]api.DExSell, 0, len(offers))
	for _, o := range offers {
		sell := api.DExSell{
			PropertyID:      uint32(o.Property),
			Action:          o.Option,
			Seller:          string(o.Seller),
			LTCsDesired:     o.Desired.String(),
			AmountAvailable: o.AmountAvailable.String(),
			UnitPrice:       o.UnitPrice.String(),
			MinimumFee:      o.MinFee.String(),
			Accepts:         make([]api.DExAccept, 0, len(o.Accepts)),
		}
		for _, a := range o.Accepts {
			sell.Accepts = append(sell.Accepts, api.DExAccept{
				Buyer:         string(a.Buyer),
				AmountDesired: a.Amount.String(),
				LTCsToPay:     a.ToPay.String(),
				Block:         a.Block,
			})
		}
		ret = append(ret, sell)
	}
	writeResult(w, ret)
}

func (srv *server) sendDExAccept(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.SendDExAccept](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	amount, err := ledger.AmountFromString(req.Amount)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	err = srv.Submit(layertx.Decoded{
		Sender:    ledger.Address(req.Buyer),
		Reference: ledger.Address(req.Seller),
		Cmd: &layertx.DExAccept{
			Property: ledger.PropertyID(req.PropertyID),
			Amount:   amount,
		},
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w)
}

func (srv *server) sendDExPayment(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.SendDExPayment](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	amount, err := ledger.AmountFromString(req.Amount)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	err = srv.Submit(layertx.Decoded{
		Sender:    ledger.Address(req.Buyer),
		Reference: ledger.Address(req.Seller),
		Cmd:       &layertx.DExPayment{Amount: amount},
	})
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	writeOk(w)
}

func (srv *server) getLTCVolume(w http.ResponseWriter, r *http.Request) {
	setHeader(w)
	req, err := decodeRequest[api.GetLTCVolume](r)
	if err != nil {
		writeErr(w, err.Error())
		return
	}
	v := srv.VolumeInRange(ledger.PropertyID(req.PropertyID), req.FirstBlock, req.LastBlock)
	writeResult(w, &api.VolumeResult{Volume: v.String()})
}

func (srv *server) getConsensusHash(w http.ResponseWriter, _ *http.Request) {
	setHeader(w)
	writeResult(w, &api.ConsensusHashResult{ConsensusHash: srv.ConsensusHash()})
}

func kycListString(ids []uint64) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ids)
	util.AssertNoError(err)
	return string(b)
}

func writeResult(w http.ResponseWriter, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respBin, err := json.MarshalIndent(&api.Envelope{Result: raw}, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, err = w.Write(respBin)
	util.AssertNoError(err)
}

func writeOk(w http.ResponseWriter) {
	writeResult(w, struct{}{})
}

func writeErr(w http.ResponseWriter, errStr string) {
	respBin, err := json.Marshal(&api.Envelope{Error: &api.ErrorObj{Message: errStr}})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, err = w.Write(respBin)
	util.AssertNoError(err)
}

func setHeader(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func Run(addr string, env environment) {
	srv := &server{
		Server: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  10 * time.Second,
		},
		environment: env,
	}
	srv.registerHandlers()
	srv.registerMetrics()

	err := srv.ListenAndServe()
	util.AssertNoError(err)
}

func (srv *server) registerMetrics() {
	srv.metrics.totalRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tradelayerd_api_totalRequests",
		Help: "total API requests",
	})
	srv.MetricsRegistry().MustRegister(srv.metrics.totalRequests)
}

func (srv *server) addHandler(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	http.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		handler(w, r)
		srv.metrics.totalRequests.Inc()
	})
}
