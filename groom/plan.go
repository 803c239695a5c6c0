package groom

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// absorbThreshold: a trailing output smaller than this gets folded into
// the previous chunk instead of being created on its own.
var absorbThreshold = decimal.NewFromInt(10)

// Payout is one destination output of a consolidation transaction.
type Payout struct {
	Address string
	Amount  decimal.Decimal
}

// Plan is a fully-resolved consolidation transaction: which outputs to
// spend and how the payable value is split across destinations. It is
// consumed immediately after being built.
type Plan struct {
	Inputs     []Utxo
	InputTotal decimal.Decimal
	Fee        decimal.Decimal
	Payouts    []Payout

	byAddress map[string]int
}

// Payable is the value left for destinations after the fee.
// Sum of payouts plus fee equals the input total exactly.
func (p *Plan) Payable() decimal.Decimal {
	return p.InputTotal.Sub(p.Fee)
}

// Outputs returns the address to amount mapping for createrawtransaction.
func (p *Plan) Outputs() map[string]decimal.Decimal {
	outputs := make(map[string]decimal.Decimal, len(p.Payouts))
	for _, payout := range p.Payouts {
		outputs[payout.Address] = payout.Amount
	}
	return outputs
}

func (p *Plan) add(address string, amount decimal.Decimal) {
	if i, ok := p.byAddress[address]; ok {
		p.Payouts[i].Amount = p.Payouts[i].Amount.Add(amount)
		return
	}
	p.byAddress[address] = len(p.Payouts)
	p.Payouts = append(p.Payouts, Payout{Address: address, Amount: amount})
}

// AddressFunc supplies the destination for the next chunk of a plan.
type AddressFunc func() (string, error)

// BuildPlan splits the payable value into chunks of at most maxPerOutput
// and assigns each chunk a destination. A remainder below
// absorbThreshold is folded into the current chunk rather than left as a
// tiny trailing output, so the final chunk may exceed maxPerOutput.
// Amounts paid to the same address accumulate into one payout.
func BuildPlan(inputs []Utxo, inputTotal, fee, maxPerOutput decimal.Decimal, nextAddr AddressFunc) (*Plan, error) {
	plan := &Plan{
		Inputs:     inputs,
		InputTotal: inputTotal,
		Fee:        fee,
		byAddress:  map[string]int{},
	}

	remaining := plan.Payable()
	if !remaining.IsPositive() {
		return nil, fmt.Errorf("fee %s leaves nothing to pay out of %s", fee, inputTotal)
	}

	for remaining.IsPositive() {
		chunk := decimal.Min(maxPerOutput, remaining)
		if remaining.Sub(chunk).LessThan(absorbThreshold) {
			chunk = remaining
		}
		address, err := nextAddr()
		if err != nil {
			return nil, err
		}
		if chunk.IsPositive() {
			plan.add(address, chunk)
		}
		remaining = remaining.Sub(chunk)
	}
	return plan, nil
}
