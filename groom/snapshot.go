package groom

import "github.com/shopspring/decimal"

// Consolidation thresholds, in TLS.
var (
	// qualifyFloor is the smallest amount that counts toward a script's
	// qualifying tally; smaller payments are dust-adjacent.
	qualifyFloor = decimal.RequireFromString("0.01")

	// sweepThreshold marks scripts whose entire balance is dust. They
	// cannot be spent economically on their own, so they ride along with
	// whatever consolidation happens.
	sweepThreshold = decimal.RequireFromString("0.0001")

	// minGroupTotal is the least value worth moving in one transaction.
	minGroupTotal = decimal.RequireFromString("0.01")
)

// minGroupCount is the fewest outputs on a script for which merging
// still reduces the wallet's output count meaningfully.
const minGroupCount = 3

// qualifyConfirmations is the settlement depth an output needs before it
// counts as a consolidation candidate. Must be exceeded, not met.
const qualifyConfirmations = 100

// Outpoint references a single unspent transaction output.
type Outpoint struct {
	TxID string
	Vout uint32
}

// Utxo is one unspent output from the wallet snapshot.
type Utxo struct {
	Outpoint
	Script        string
	Amount        decimal.Decimal
	Confirmations int64
}

// Group aggregates the outputs paying a single destination script.
type Group struct {
	// Small counts well-confirmed outputs below the configured maximum
	// and at or above qualifyFloor.
	Small int
	// Total and Count cover every output on the script, qualifying or not.
	Total decimal.Decimal
	Count int
}

// Snapshot groups one listunspent response by destination script. It is
// rebuilt from scratch every iteration and never carried across one.
// Scripts are kept in first-seen order so that selection ties resolve
// the same way regardless of map iteration.
type Snapshot struct {
	Utxos   []Utxo
	scripts []string
	groups  map[string]*Group
}

// NewSnapshot groups utxos, counting an output as qualifying when its
// amount is below maxInputAmount, at least the qualifying floor, and it
// has more than qualifyConfirmations confirmations.
func NewSnapshot(utxos []Utxo, maxInputAmount decimal.Decimal) *Snapshot {
	s := &Snapshot{
		Utxos:  utxos,
		groups: make(map[string]*Group, len(utxos)),
	}
	for _, u := range utxos {
		g, ok := s.groups[u.Script]
		if !ok {
			g = &Group{Total: decimal.Zero}
			s.groups[u.Script] = g
			s.scripts = append(s.scripts, u.Script)
		}
		if u.Amount.LessThan(maxInputAmount) &&
			u.Amount.GreaterThanOrEqual(qualifyFloor) &&
			u.Confirmations > qualifyConfirmations {
			g.Small++
		}
		g.Total = g.Total.Add(u.Amount)
		g.Count++
	}
	return s
}

// Empty reports whether the wallet had no unspent outputs at all.
func (s *Snapshot) Empty() bool {
	return len(s.scripts) == 0
}

// Scripts returns the destination scripts in first-seen order.
func (s *Snapshot) Scripts() []string {
	return s.scripts
}

// Group returns the aggregate for a script, or nil if unseen.
func (s *Snapshot) Group(script string) *Group {
	return s.groups[script]
}

// MostOverused returns the script with the greatest number of qualifying
// outputs. The current best is only replaced on a strictly greater
// count, so the first script seen wins ties.
func (s *Snapshot) MostOverused() (string, bool) {
	if len(s.scripts) == 0 {
		return "", false
	}
	best := s.scripts[0]
	for _, script := range s.scripts[1:] {
		if s.groups[script].Small > s.groups[best].Small {
			best = script
		}
	}
	return best, true
}

// Worthwhile reports whether consolidating a script would actually help:
// merging fewer than three outputs does not reduce the output count
// meaningfully, and moving less than minGroupTotal just shuffles dust.
func (s *Snapshot) Worthwhile(script string) bool {
	g := s.groups[script]
	return g != nil && g.Count >= minGroupCount && g.Total.GreaterThanOrEqual(minGroupTotal)
}

// WorkingSet is the set of scripts to merge: the given script plus every
// script whose entire balance is below the dust sweep threshold.
func (s *Snapshot) WorkingSet(script string) map[string]bool {
	set := map[string]bool{script: true}
	for _, other := range s.scripts {
		if s.groups[other].Total.LessThan(sweepThreshold) {
			set[other] = true
		}
	}
	return set
}

// SelectInputs walks the snapshot in listing order and collects outputs
// paying a working-set script, stopping at maxInputs. Outputs past the
// cap are left for a later iteration.
func (s *Snapshot) SelectInputs(set map[string]bool, maxInputs int) ([]Utxo, decimal.Decimal) {
	total := decimal.Zero
	var inputs []Utxo
	for _, u := range s.Utxos {
		if len(inputs) >= maxInputs {
			break
		}
		if set[u.Script] {
			inputs = append(inputs, u)
			total = total.Add(u.Amount)
		}
	}
	return inputs, total
}
