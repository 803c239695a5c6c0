package groom

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/telestai-project/wallet-groomer/wallet"
)

// mockWallet is an in-memory wallet RPC for testing the run loop. Each
// broadcast spends the selected outpoints and credits the payouts back
// as fresh zero-confirmation outputs, so consolidated value drops out of
// the next listunspent(1, ...) snapshot the way it does on a real node.
type mockWallet struct {
	utxos []wallet.Unspent

	addrInfo      *wallet.AddressInfo
	unlockedUntil *int64
	encrypted     bool

	addrSeq int
	raws    map[string]rawTx
	sent    []string

	chainErr error
	listErr  error
	sendErr  error
	// listErrOnCall fails the nth ListUnspent call (1-based) when set.
	listErrOnCall int
	listCalls     int
}

type rawTx struct {
	inputs  []wallet.TxInput
	outputs map[string]decimal.Decimal
}

func newMockWallet(utxos ...wallet.Unspent) *mockWallet {
	return &mockWallet{
		utxos: utxos,
		raws:  map[string]rawTx{},
	}
}

func unspent(txid string, vout uint32, script, amount string, confirmations int64) wallet.Unspent {
	return wallet.Unspent{
		TxID:          txid,
		Vout:          vout,
		ScriptPubKey:  script,
		Amount:        decimal.RequireFromString(amount),
		Confirmations: confirmations,
	}
}

func (m *mockWallet) GetBlockchainInfo(ctx context.Context) (*wallet.BlockchainInfo, error) {
	if m.chainErr != nil {
		return nil, m.chainErr
	}
	return &wallet.BlockchainInfo{Chain: "main", Blocks: 1000000}, nil
}

func (m *mockWallet) ValidateAddress(ctx context.Context, address string) (*wallet.AddressInfo, error) {
	if m.addrInfo != nil {
		return m.addrInfo, nil
	}
	return &wallet.AddressInfo{IsValid: true, IsMine: true, Address: address}, nil
}

func (m *mockWallet) GetWalletInfo(ctx context.Context) (*wallet.WalletInfo, error) {
	if !m.encrypted {
		return &wallet.WalletInfo{}, nil
	}
	return &wallet.WalletInfo{UnlockedUntil: m.unlockedUntil}, nil
}

func (m *mockWallet) ListUnspent(ctx context.Context, minConf, maxConf int) ([]wallet.Unspent, error) {
	m.listCalls++
	if m.listErr != nil && (m.listErrOnCall == 0 || m.listCalls == m.listErrOnCall) {
		return nil, m.listErr
	}
	var result []wallet.Unspent
	for _, u := range m.utxos {
		if u.Confirmations >= int64(minConf) && u.Confirmations <= int64(maxConf) {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockWallet) GetNewAddress(ctx context.Context, label string) (string, error) {
	m.addrSeq++
	return fmt.Sprintf("Tmock%s%d", label, m.addrSeq), nil
}

func (m *mockWallet) CreateRawTransaction(ctx context.Context, inputs []wallet.TxInput, outputs map[string]decimal.Decimal) (string, error) {
	if len(outputs) == 0 {
		return "", &wallet.RPCError{Code: -8, Message: "tx output cannot be empty"}
	}
	key := fmt.Sprintf("raw%d", len(m.raws)+1)
	m.raws[key] = rawTx{inputs: inputs, outputs: outputs}
	return key, nil
}

func (m *mockWallet) SignRawTransaction(ctx context.Context, raw string) (*wallet.SignedTx, error) {
	if _, ok := m.raws[raw]; !ok {
		return nil, &wallet.RPCError{Code: -22, Message: "tx decode failed"}
	}
	return &wallet.SignedTx{Hex: "signed:" + raw, Complete: true}, nil
}

func (m *mockWallet) SendRawTransaction(ctx context.Context, signedHex string) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	raw, ok := m.raws[strings.TrimPrefix(signedHex, "signed:")]
	if !ok {
		return "", &wallet.RPCError{Code: -22, Message: "tx decode failed"}
	}

	spent := make(map[Outpoint]bool, len(raw.inputs))
	for _, in := range raw.inputs {
		spent[Outpoint{TxID: in.TxID, Vout: in.Vout}] = true
	}
	var remaining []wallet.Unspent
	for _, u := range m.utxos {
		if !spent[Outpoint{TxID: u.TxID, Vout: u.Vout}] {
			remaining = append(remaining, u)
		}
	}

	txid := fmt.Sprintf("mocktxid%d", len(m.sent)+1)
	vout := uint32(0)
	for address, amount := range raw.outputs {
		remaining = append(remaining, wallet.Unspent{
			TxID:          txid,
			Vout:          vout,
			ScriptPubKey:  "script:" + address,
			Amount:        amount,
			Confirmations: 0,
		})
		vout++
	}

	m.utxos = remaining
	m.sent = append(m.sent, txid)
	return txid, nil
}

// mockPrompter replays canned answers; once they run out it says yes.
type mockPrompter struct {
	answers []bool
	asked   []string
}

func (p *mockPrompter) Confirm(message string) (bool, error) {
	p.asked = append(p.asked, message)
	if len(p.answers) == 0 {
		return true, nil
	}
	answer := p.answers[0]
	p.answers = p.answers[1:]
	return answer, nil
}
