package classify

import "strings"

// moduleTypes maps explicit call-module identifiers to transaction types.
// Shared by the call-module, extrinsic and event rules.
var moduleTypes = map[string]Type{
	"balances":         TypeTransfer,
	"staking":          TypeStaking,
	"xcmpallet":        TypeXCM,
	"polkadotxcm":      TypeXCM,
	"xtokens":          TypeXCM,
	"democracy":        TypeGovernance,
	"council":          TypeGovernance,
	"treasury":         TypeGovernance,
	"phragmenelection": TypeGovernance,
	"convictionvoting": TypeGovernance,
	"crowdloan":        TypeOther,
	"identity":         TypeOther,
	"utility":          TypeTransfer,
}

// eraPayoutStartHour..eraPayoutEndHour is the UTC window in which era-change
// reward payouts land; used only by the last-resort timing heuristic.
const (
	eraPayoutStartHour = 14
	eraPayoutEndHour   = 16
)

// DefaultRules returns the classification chain in priority order:
//
//  1. account display-name patterns
//  2. explicit call module/function
//  3. nested extrinsic module/function
//  4. event module/id
//  5. system-account timing heuristic
//  6. default transfer/balances
//
// Reordering changes classification outcomes; tests pin this order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "display-name", Match: matchDisplayName},
		{Name: "call-module", Match: func(s Signals) (Result, bool) {
			return matchModule(s.CallModule, s.CallFunction)
		}},
		{Name: "extrinsic-module", Match: func(s Signals) (Result, bool) {
			return matchModule(s.ExtrinsicModule, s.ExtrinsicFunction)
		}},
		{Name: "event-module", Match: func(s Signals) (Result, bool) {
			return matchModule(s.EventModule, s.EventID)
		}},
		{Name: "system-account", Match: matchSystemAccount},
		{Name: "default", Match: func(s Signals) (Result, bool) {
			return Result{Method: "transfer", Section: "balances", Type: TypeTransfer}, true
		}},
	}
}

// matchDisplayName parses human-readable account display strings for known
// patterns, e.g. "Pool#20(Reward)" or "Kusama Treasury".
func matchDisplayName(s Signals) (Result, bool) {
	display := strings.ToLower(s.FromDisplay + " " + s.ToDisplay)
	if strings.TrimSpace(display) == "" {
		return Result{}, false
	}

	switch {
	case strings.Contains(display, "reward"):
		return Result{Method: "reward", Section: "staking", Type: TypeStaking}, true

	case strings.Contains(display, "pool#") || strings.Contains(display, "nomination"):
		method := "pool"
		if strings.Contains(display, "unbond") {
			method = "unbond"
		} else if strings.Contains(display, "join") {
			method = "join"
		}
		return Result{Method: method, Section: "nominationPools", Type: TypeStaking}, true

	case strings.Contains(display, "treasury"):
		return Result{Method: "spend", Section: "treasury", Type: TypeGovernance}, true

	case (strings.Contains(display, "validator") || strings.Contains(display, "stash")) &&
		(strings.Contains(display, "bond") || strings.Contains(display, "unbond")):
		method := "bond"
		if strings.Contains(display, "unbond") {
			method = "unbond"
		}
		return Result{Method: method, Section: "staking", Type: TypeStaking}, true

	case strings.Contains(display, "council") || strings.Contains(display, "governance"):
		return Result{Method: "vote", Section: "council", Type: TypeGovernance}, true

	case strings.Contains(display, "crowdloan"):
		return Result{Method: "contribute", Section: "crowdloan", Type: TypeOther}, true
	}

	return Result{}, false
}

// matchModule maps an explicit module identifier through the fixed table.
// An unknown but present module still classifies, as "other".
func matchModule(module, function string) (Result, bool) {
	if module == "" {
		return Result{}, false
	}

	typ, ok := moduleTypes[strings.ToLower(module)]
	if !ok {
		typ = TypeOther
	}

	method := function
	if method == "" {
		method = "transfer"
	}
	return Result{Method: method, Section: module, Type: typ}, true
}

// matchSystemAccount is the statistical fallback for records with no
// structured metadata at all: implicit ledger events have an empty or
// all-zero counterparty, and era reward payouts cluster in a fixed UTC hour
// window.
func matchSystemAccount(s Signals) (Result, bool) {
	fromSystem := isSystemAccount(s.From)
	toSystem := isSystemAccount(s.To)

	switch {
	case fromSystem && s.Value != "" && s.Value != "0" && inEraPayoutWindow(s):
		return Result{Method: "reward", Section: "staking", Type: TypeStaking}, true
	case fromSystem:
		return Result{Method: "deposit", Section: "balances", Type: TypeTransfer}, true
	case toSystem:
		return Result{Method: "withdraw", Section: "balances", Type: TypeTransfer}, true
	}

	return Result{}, false
}

func inEraPayoutWindow(s Signals) bool {
	if s.Timestamp.IsZero() {
		return false
	}
	h := s.Timestamp.UTC().Hour()
	return h >= eraPayoutStartHour && h <= eraPayoutEndHour
}

func isSystemAccount(addr string) bool {
	if addr == "" {
		return true
	}
	trimmed := strings.TrimPrefix(strings.ToLower(addr), "0x")
	if trimmed == "" {
		return true
	}
	for _, c := range trimmed {
		if c != '0' {
			return false
		}
	}
	return true
}
