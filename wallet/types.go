package wallet

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RPCError is a failure reported by the node itself, as opposed to a
// transport failure reaching it.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// BlockchainInfo is the subset of getblockchaininfo the groomer cares
// about.
type BlockchainInfo struct {
	Chain  string `json:"chain"`
	Blocks int64  `json:"blocks"`
}

// AddressInfo is the subset of validateaddress used for pre-flight
// destination checks.
type AddressInfo struct {
	IsValid bool   `json:"isvalid"`
	IsMine  bool   `json:"ismine"`
	Address string `json:"address"`
}

// WalletInfo carries the wallet lock state. UnlockedUntil is nil on an
// unencrypted wallet and zero while locked.
type WalletInfo struct {
	UnlockedUntil *int64 `json:"unlocked_until"`
}

// Unspent is one unspent output from listunspent.
type Unspent struct {
	TxID          string          `json:"txid"`
	Vout          uint32          `json:"vout"`
	Address       string          `json:"address"`
	ScriptPubKey  string          `json:"scriptPubKey"`
	Amount        decimal.Decimal `json:"amount"`
	Confirmations int64           `json:"confirmations"`
}

// TxInput references an output to spend in createrawtransaction.
type TxInput struct {
	TxID string `json:"txid"`
	Vout uint32 `json:"vout"`
}

// SignedTx is the result of signrawtransaction.
type SignedTx struct {
	Hex      string `json:"hex"`
	Complete bool   `json:"complete"`
}
