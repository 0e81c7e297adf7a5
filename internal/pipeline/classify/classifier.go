// Package classify infers transaction semantics from the weak signals the
// source APIs expose: account display names, call module/function
// identifiers, event identifiers and timing heuristics.
package classify

import "time"

// Signals carries every semantic hint a raw source record may provide.
// Most records only populate a subset; the rule chain prefers the most
// specific signal available.
type Signals struct {
	FromDisplay       string
	ToDisplay         string
	CallModule        string
	CallFunction      string
	ExtrinsicModule   string
	ExtrinsicFunction string
	EventModule       string
	EventID           string
	From              string
	To                string
	Value             string
	Timestamp         time.Time
}

// Result is the semantic classification of one record.
type Result struct {
	Method  string
	Section string
	Type    Type
}

// Type mirrors domain.TxType without importing it; the orchestrating adapter
// converts. Keeping classify dependency-free makes every rule a pure function.
type Type string

const (
	TypeTransfer      Type = "transfer"
	TypeStaking       Type = "staking"
	TypeGovernance    Type = "governance"
	TypeXCM           Type = "xcm"
	TypeContract      Type = "contract"
	TypeTokenTransfer Type = "token_transfer"
	TypeOther         Type = "other"
)

// Rule is one classification heuristic. Match returns false when the rule
// does not apply, letting the next rule in the chain run.
type Rule struct {
	Name  string
	Match func(s Signals) (Result, bool)
}

// Classifier applies an ordered rule chain, first match wins. The order is a
// correctness contract: sources report different subsets of metadata, and an
// explicit signal must always beat a statistical fallback.
type Classifier struct {
	rules []Rule
}

// New returns a classifier with the default rule chain.
func New() *Classifier {
	return &Classifier{rules: DefaultRules()}
}

// NewWithRules returns a classifier with a custom chain, for tests.
func NewWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify maps raw signals to a semantic method/section/type.
// The final rule always matches, so a result is always produced.
func (c *Classifier) Classify(s Signals) Result {
	for _, r := range c.rules {
		if res, ok := r.Match(s); ok {
			return res
		}
	}
	return Result{Method: "transfer", Section: "balances", Type: TypeTransfer}
}
