package engine

import (
	"fmt"

	"github.com/tradelayer/tradelayerd/layertx"
	"github.com/tradelayer/tradelayerd/ledger"
	"github.com/tradelayer/tradelayerd/state"
	"github.com/tradelayer/tradelayerd/util"
)

// applyCommand dispatches one decoded layer transaction against the state
// being built for the current block. A returned error means the command was
// rejected with no mutation at all
func (e *Engine) applyCommand(s *state.Store, d layertx.Decoded) error {
	switch c := d.Cmd.(type) {
	case *layertx.IssuanceFixed:
		return e.applyIssuance(s, d.Sender, c)
	case *layertx.SimpleSend:
		return e.applySimpleSend(s, d.Sender, d.Reference, c)
	case *layertx.SendVesting:
		return e.applySendVesting(s, d.Sender, d.Reference, c)
	case *layertx.Attestation:
		s.Attest(d.Sender, d.Reference, c.KYCID, s.Height())
		return nil
	case *layertx.DExOffer:
		return e.applyDExOffer(s, d.Sender, c)
	case *layertx.DExAccept:
		return e.applyDExAccept(s, d.Sender, d.Reference, c)
	case *layertx.DExPayment:
		return e.applyDExPayment(s, d.Sender, d.Reference, c)
	case *layertx.ChannelCreate:
		return e.applyChannelCreate(s, d.Sender, d.Reference, c)
	case *layertx.ChannelCommit:
		return e.applyChannelCommit(s, d.Sender, d.Reference, c)
	default:
		util.Panicf("applyCommand: unknown command type %T", d.Cmd)
	}
	return nil
}

func (e *Engine) applyIssuance(s *state.Store, issuer ledger.Address, c *layertx.IssuanceFixed) error {
	if c.Amount <= 0 {
		return state.ErrInvalidAmount
	}
	// ids 1..3 belong to the layer itself; nothing can be issued before
	// the activation block installs them
	if !s.HasProperty(ledger.PropertyALL) {
		return state.ErrUnknownProperty
	}
	id := s.PutProperty(&state.Property{
		Issuer:        issuer,
		Divisible:     c.Divisible,
		Category:      c.Category,
		Subcategory:   c.Subcategory,
		Name:          c.Name,
		Data:          c.Data,
		URL:           c.URL,
		Total:         c.Amount,
		KYCAllowed:    c.KYCAllowed,
		CreationBlock: s.Height(),
	})
	s.Credit(issuer, id, c.Amount, state.BucketAvailable)
	return nil
}

func (e *Engine) applySimpleSend(s *state.Store, from, to ledger.Address, c *layertx.SimpleSend) error {
	if c.Amount <= 0 {
		return state.ErrInvalidAmount
	}
	if to.IsNil() {
		return fmt.Errorf("send: missing receiver")
	}
	if c.Property == ledger.PropertyVesting {
		// vesting tokens only move through the dedicated command
		return state.ErrUnknownProperty
	}
	p, ok := s.GetProperty(c.Property)
	if !ok {
		return state.ErrUnknownProperty
	}
	if err := checkKYC(s, p, to); err != nil {
		return err
	}
	return s.Transfer(from, to, c.Property, c.Amount)
}

// checkKYC consults the attestation registry when the property carries a
// KYC allow-list
func checkKYC(s *state.Store, p *state.Property, receiver ledger.Address) error {
	if len(p.KYCAllowed) == 0 {
		return nil
	}
	kyc, ok := s.LatestKYC(receiver)
	if !ok {
		return fmt.Errorf("receiver %s is not attested", receiver)
	}
	for _, allowed := range p.KYCAllowed {
		if kyc == allowed {
			return nil
		}
	}
	return fmt.Errorf("kyc id %d of %s is not allowed for property %d", kyc, receiver, p.ID)
}

func (e *Engine) applyChannelCreate(s *state.Store, first, multisig ledger.Address, c *layertx.ChannelCreate) error {
	if multisig.IsNil() || c.Second.IsNil() {
		return fmt.Errorf("create channel: missing address")
	}
	if ch, ok := s.GetChannel(multisig); ok && s.Height() <= ch.ExpiryBlock {
		return state.ErrChannelExists
	}
	s.PutChannel(&state.Channel{
		Multisig:    multisig,
		First:       first,
		Second:      c.Second,
		ExpiryBlock: s.Height() + c.Window,
		Commits:     make([]*state.Commit, 0),
	})
	return nil
}

func (e *Engine) applyChannelCommit(s *state.Store, sender, multisig ledger.Address, c *layertx.ChannelCommit) error {
	ch, ok := s.GetChannel(multisig)
	if !ok || s.Height() > ch.ExpiryBlock {
		return state.ErrUnknownChannel
	}
	if c.Amount <= 0 {
		return state.ErrInvalidAmount
	}
	if !s.HasProperty(c.Property) {
		return state.ErrUnknownProperty
	}
	if err := s.Debit(sender, c.Property, c.Amount, state.BucketAvailable); err != nil {
		return err
	}
	// escrowed funds sit in the multisig's reserved bucket, recoverable
	// by channel settlement
	s.Credit(multisig, c.Property, c.Amount, state.BucketReserved)
	ch.Commits = append(ch.Commits, &state.Commit{
		Sender:   sender,
		Property: c.Property,
		Amount:   c.Amount,
		Block:    s.Height(),
	})
	return nil
}
