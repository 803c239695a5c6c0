package groom

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/telestai-project/wallet-groomer/config"
	"github.com/telestai-project/wallet-groomer/wallet"
)

// Listing window passed to listunspent: anything with at least one
// confirmation, no effective upper bound.
const (
	listMinConf = 1
	listMaxConf = 99999999
)

// Wallet is the RPC surface the groomer drives. *wallet.Client satisfies
// it; tests substitute an in-memory wallet.
type Wallet interface {
	GetBlockchainInfo(ctx context.Context) (*wallet.BlockchainInfo, error)
	ValidateAddress(ctx context.Context, address string) (*wallet.AddressInfo, error)
	GetWalletInfo(ctx context.Context) (*wallet.WalletInfo, error)
	ListUnspent(ctx context.Context, minConf, maxConf int) ([]wallet.Unspent, error)
	GetNewAddress(ctx context.Context, label string) (string, error)
	CreateRawTransaction(ctx context.Context, inputs []wallet.TxInput, outputs map[string]decimal.Decimal) (string, error)
	SignRawTransaction(ctx context.Context, rawTx string) (*wallet.SignedTx, error)
	SendRawTransaction(ctx context.Context, signedHex string) (string, error)
}

// Prompter asks the operator a yes/no question before the wallet signs
// or broadcasts anything.
type Prompter interface {
	Confirm(message string) (bool, error)
}

// ErrDeclined halts the whole run when the operator answers no to a
// sign or send prompt.
var ErrDeclined = errors.New("declined by operator")

// ErrWalletLocked means the wallet cannot sign until it is unlocked.
var ErrWalletLocked = errors.New("wallet is locked")

// Groomer runs the consolidation loop against one wallet. It is strictly
// sequential; every RPC call blocks until the node answers or errors,
// and any error aborts the run.
type Groomer struct {
	cfg    *config.Config
	wallet Wallet
	prompt Prompter
}

func New(cfg *config.Config, w Wallet, prompt Prompter) *Groomer {
	return &Groomer{cfg: cfg, wallet: w, prompt: prompt}
}

// Preflight verifies the node is reachable, the configured destination
// is usable, and the wallet can sign. It runs once, before any mutation.
func (g *Groomer) Preflight(ctx context.Context) error {
	if _, err := g.wallet.GetBlockchainInfo(ctx); err != nil {
		return fmt.Errorf("couldn't connect to wallet rpc: %w", err)
	}

	if g.cfg.Address != "" {
		info, err := g.wallet.ValidateAddress(ctx, g.cfg.Address)
		if err != nil {
			return fmt.Errorf("validateaddress: %w", err)
		}
		if !info.IsValid {
			return fmt.Errorf("invalid address: %s", g.cfg.Address)
		}
		if !info.IsMine {
			return fmt.Errorf("address is not in the wallet: %s", g.cfg.Address)
		}
	}

	info, err := g.wallet.GetWalletInfo(ctx)
	if err != nil {
		return fmt.Errorf("getwalletinfo: %w", err)
	}
	switch {
	case info.UnlockedUntil == nil:
		log.Println("Wallet is not encrypted; you should consider encrypting it as soon as possible!")
	case *info.UnlockedUntil == 0:
		return fmt.Errorf("%w: unlock it first, e.g. walletpassphrase <passphrase> 600", ErrWalletLocked)
	default:
		log.Println("Wallet is unlocked.")
	}
	return nil
}

// Run consolidates until no beneficial consolidation remains. The
// returned txids cover every transaction broadcast before the run
// ended, whether it ended cleanly or not.
func (g *Groomer) Run(ctx context.Context) ([]string, error) {
	var sent []string
	for {
		unspent, err := g.wallet.ListUnspent(ctx, listMinConf, listMaxConf)
		if err != nil {
			return sent, fmt.Errorf("listunspent: %w", err)
		}

		snapshot := NewSnapshot(toUtxos(unspent), g.cfg.MaxInputAmount)
		if snapshot.Empty() {
			return sent, nil
		}

		most, _ := snapshot.MostOverused()
		if !snapshot.Worthwhile(most) {
			return sent, nil
		}

		set := snapshot.WorkingSet(most)
		inputs, total := snapshot.SelectInputs(set, g.cfg.MaxInputs)

		log.Printf("Creating tx from %d inputs of total value %s:", len(inputs), total)
		for _, script := range snapshot.Scripts() {
			if !set[script] {
				continue
			}
			grp := snapshot.Group(script)
			log.Printf("  Script %s has %d txouts and %s TLS value.", script, grp.Count, grp.Total)
		}

		plan, err := BuildPlan(inputs, total, g.cfg.Fee, g.cfg.MaxPerOutput, g.planAddressFunc(ctx))
		if err != nil {
			return sent, err
		}

		log.Printf("Paying %s TLS (%s fee) to:", plan.Payable(), plan.Fee)
		for _, payout := range plan.Payouts {
			log.Printf("  %s %s", payout.Address, payout.Amount)
		}

		txid, err := g.execute(ctx, plan)
		if err != nil {
			return sent, err
		}
		sent = append(sent, txid)
		log.Printf("Transaction sent! txid: %s", txid)
	}
}

// execute builds, signs and broadcasts one plan, prompting before the
// sign and send steps.
func (g *Groomer) execute(ctx context.Context, plan *Plan) (string, error) {
	rawTx, err := g.wallet.CreateRawTransaction(ctx, txInputs(plan.Inputs), plan.Outputs())
	if err != nil {
		return "", fmt.Errorf("createrawtransaction: %w", err)
	}

	if ok, err := g.prompt.Confirm("Sign the transaction?"); err != nil {
		return "", err
	} else if !ok {
		return "", ErrDeclined
	}

	signed, err := g.wallet.SignRawTransaction(ctx, rawTx)
	if err != nil {
		return "", fmt.Errorf("signrawtransaction: %w", err)
	}
	if !signed.Complete {
		return "", errors.New("signrawtransaction: incomplete signature")
	}
	log.Printf("Bytes: %d Fee: %s", len(signed.Hex)/2, plan.Fee)

	if ok, err := g.prompt.Confirm("Send the transaction?"); err != nil {
		return "", err
	} else if !ok {
		return "", ErrDeclined
	}

	txid, err := g.wallet.SendRawTransaction(ctx, signed.Hex)
	if err != nil {
		return "", fmt.Errorf("sendrawtransaction: %w", err)
	}
	return txid, nil
}

// planAddressFunc resolves the destination for each chunk of one plan.
// With an explicit address every chunk goes there. In reuse mode one
// fresh address is fetched and cached for the lifetime of the plan.
// Otherwise every chunk gets its own fresh address.
func (g *Groomer) planAddressFunc(ctx context.Context) AddressFunc {
	if g.cfg.Address != "" {
		return func() (string, error) {
			return g.cfg.Address, nil
		}
	}
	var current string
	return func() (string, error) {
		if g.cfg.Reuse && current != "" {
			return current, nil
		}
		address, err := g.wallet.GetNewAddress(ctx, "consolidate")
		if err != nil {
			return "", fmt.Errorf("getnewaddress: %w", err)
		}
		current = address
		return address, nil
	}
}

func toUtxos(unspent []wallet.Unspent) []Utxo {
	utxos := make([]Utxo, len(unspent))
	for i, u := range unspent {
		utxos[i] = Utxo{
			Outpoint:      Outpoint{TxID: u.TxID, Vout: u.Vout},
			Script:        u.ScriptPubKey,
			Amount:        u.Amount,
			Confirmations: u.Confirmations,
		}
	}
	return utxos
}

func txInputs(inputs []Utxo) []wallet.TxInput {
	refs := make([]wallet.TxInput, len(inputs))
	for i, in := range inputs {
		refs[i] = wallet.TxInput{TxID: in.TxID, Vout: in.Vout}
	}
	return refs
}
