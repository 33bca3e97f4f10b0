package api

import "encoding/json"

// Control-channel contract. Every response is an envelope
// {"result": ..., "error": null} on success or {"result": null, "error": {...}}
// on failure. All token amounts travel as fixed 8-decimal strings.

const (
	PrefixAPIV1 = "/api/v1"

	PathGetInfo                 = PrefixAPIV1 + "/tl_getinfo"
	PathSendIssuanceFixed       = PrefixAPIV1 + "/tl_sendissuancefixed"
	PathGetProperty             = PrefixAPIV1 + "/tl_getproperty"
	PathSend                    = PrefixAPIV1 + "/tl_send"
	PathGetBalance              = PrefixAPIV1 + "/tl_getbalance"
	PathAttestation             = PrefixAPIV1 + "/tl_attestation"
	PathListAttestation         = PrefixAPIV1 + "/tl_list_attestation"
	PathSendVesting             = PrefixAPIV1 + "/tl_sendvesting"
	PathGetUnvested             = PrefixAPIV1 + "/tl_getunvested"
	PathGetVestingInfo          = PrefixAPIV1 + "/tl_getvesting_info"
	PathCreateChannel           = PrefixAPIV1 + "/tl_create_channel"
	PathGetChannelInfo          = PrefixAPIV1 + "/tl_getchannel_info"
	PathCommitToChannel         = PrefixAPIV1 + "/tl_commit_tochannel"
	PathCheckCommits            = PrefixAPIV1 + "/tl_check_commits"
	PathSendDExOffer            = PrefixAPIV1 + "/tl_senddexoffer"
	PathGetActiveDExSells       = PrefixAPIV1 + "/tl_getactivedexsells"
	PathSendDExAccept           = PrefixAPIV1 + "/tl_senddexaccept"
	PathSendDExPayment          = PrefixAPIV1 + "/tl_send_dex_payment"
	PathGetLTCVolume            = PrefixAPIV1 + "/tl_get_ltcvolume"
	PathGetCurrentConsensusHash = PrefixAPIV1 + "/tl_getcurrentconsensushash"
)

type (
	ErrorObj struct {
		Message string `json:"message"`
	}

	Envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *ErrorObj       `json:"error"`
	}

	// requests

	SendIssuanceFixed struct {
		FromAddress string   `json:"fromaddress"`
		Divisible   bool     `json:"divisible"`
		Category    string   `json:"category"`
		Subcategory string   `json:"subcategory"`
		Name        string   `json:"name"`
		Data        string   `json:"data"`
		URL         string   `json:"url"`
		Amount      string   `json:"amount"`
		KYCOptions  []uint64 `json:"kyc_options"`
	}

	Send struct {
		FromAddress string `json:"fromaddress"`
		ToAddress   string `json:"toaddress"`
		PropertyID  uint32 `json:"propertyid"`
		Amount      string `json:"amount"`
	}

	Attestation struct {
		Sender   string `json:"sender"`
		Receiver string `json:"receiver"`
		KYCID    uint64 `json:"kyc_id"`
	}

	SendVesting struct {
		FromAddress string `json:"fromaddress"`
		ToAddress   string `json:"toaddress"`
		Amount      string `json:"amount"`
	}

	CreateChannel struct {
		FirstAddress    string `json:"first address"`
		SecondAddress   string `json:"second address"`
		MultisigAddress string `json:"multisig address"`
		ExpiryWindow    uint64 `json:"expiry window"`
	}

	CommitToChannel struct {
		Sender          string `json:"sender"`
		MultisigAddress string `json:"multisig address"`
		PropertyID      uint32 `json:"propertyid"`
		Amount          string `json:"amount"`
	}

	SendDExOffer struct {
		FromAddress   string `json:"fromaddress"`
		PropertyID    uint32 `json:"propertyid"`
		AmountForSale string `json:"amountforsale"`
		AmountDesired string `json:"amountdesired"`
		PaymentWindow uint64 `json:"paymentwindow"`
		MinFee        string `json:"minacceptfee"`
		Action        byte   `json:"action"`
		SubAction     byte   `json:"subaction"`
	}

	SendDExAccept struct {
		Buyer      string `json:"buyer"`
		Seller     string `json:"seller"`
		PropertyID uint32 `json:"propertyid"`
		Amount     string `json:"amount"`
	}

	SendDExPayment struct {
		Buyer  string `json:"buyer"`
		Seller string `json:"seller"`
		Amount string `json:"amount"`
	}

	GetProperty struct {
		PropertyID uint32 `json:"propertyid"`
	}

	GetBalance struct {
		Address    string `json:"address"`
		PropertyID uint32 `json:"propertyid"`
	}

	GetUnvested struct {
		Address string `json:"address"`
	}

	GetChannelInfo struct {
		MultisigAddress string `json:"multisig address"`
	}

	CheckCommits struct {
		Sender string `json:"sender"`
	}

	GetActiveDExSells struct {
		Seller string `json:"seller,omitempty"`
	}

	GetLTCVolume struct {
		PropertyID uint32 `json:"propertyid"`
		FirstBlock uint64 `json:"first"`
		LastBlock  uint64 `json:"last"`
	}

	// results

	InfoResult struct {
		Version string `json:"tradelayerd_version"`
		Network string `json:"network"`
		Block   uint64 `json:"block"`
	}

	IssuanceResult struct {
		PropertyID uint32 `json:"propertyid"`
	}

	PropertyResult struct {
		PropertyID  uint32 `json:"propertyid"`
		Name        string `json:"name"`
		Category    string `json:"category"`
		Subcategory string `json:"subcategory"`
		Data        string `json:"data"`
		URL         string `json:"url"`
		Divisible   bool   `json:"divisible"`
		Issuer      string `json:"issuer"`
		TotalTokens string `json:"totaltokens"`
	}

	BalanceResult struct {
		Balance string `json:"balance"`
		Reserve string `json:"reserve"`
	}

	UnvestedResult struct {
		Unvested string `json:"unvested"`
	}

	AttestationRecord struct {
		AttSender   string `json:"att sender"`
		AttReceiver string `json:"att receiver"`
		KYCID       uint64 `json:"kyc_id"`
	}

	VestingInfoResult struct {
		PropertyID       uint32 `json:"propertyid"`
		Name             string `json:"name"`
		Data             string `json:"data"`
		URL              string `json:"url"`
		Divisible        bool   `json:"divisible"`
		Issuer           string `json:"issuer"`
		ActivationBlock  uint64 `json:"activation block"`
		LitecoinVolume   string `json:"litecoin volume"`
		VestedPercentage string `json:"vested percentage"`
		LastVestingBlock uint64 `json:"last vesting block"`
		TotalVested      string `json:"total vested"`
		Owners           int    `json:"owners"`
		TotalTokens      string `json:"total tokens"`
		KYCAllowed       string `json:"kyc_ids allowed"`
	}

	ChannelInfoResult struct {
		MultisigAddress string `json:"multisig address"`
		FirstAddress    string `json:"first address"`
		SecondAddress   string `json:"second address"`
		ExpiryBlock     uint64 `json:"expiry block"`
		Status          string `json:"status"`
	}

	CommitRecord struct {
		Sender     string `json:"sender"`
		PropertyID string `json:"propertyId"`
		Amount     string `json:"amount"`
		Block      uint64 `json:"block"`
	}

	DExAccept struct {
		Buyer         string `json:"buyer"`
		AmountDesired string `json:"amountdesired"`
		LTCsToPay     string `json:"ltcstopay"`
		Block         uint64 `json:"block"`
	}

	DExSell struct {
		PropertyID      uint32      `json:"propertyid"`
		Action          byte        `json:"action"`
		Seller          string      `json:"seller"`
		LTCsDesired     string      `json:"ltcsdesired"`
		AmountAvailable string      `json:"amountavailable"`
		UnitPrice       string      `json:"unitprice"`
		MinimumFee      string      `json:"minimumfee"`
		Accepts         []DExAccept `json:"accepts"`
	}

	VolumeResult struct {
		Volume string `json:"volume"`
	}

	ConsensusHashResult struct {
		ConsensusHash string `json:"consensushash"`
	}
)
