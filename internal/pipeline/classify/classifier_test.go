package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayNameBeatsCallModule(t *testing.T) {
	c := New()

	// A reward pool display name must win even when the call module says
	// plain balances.
	res := c.Classify(Signals{
		ToDisplay:    "Pool#20(Reward)",
		CallModule:   "balances",
		CallFunction: "transfer",
	})

	assert.Equal(t, TypeStaking, res.Type)
	assert.Equal(t, "reward", res.Method)
	assert.Equal(t, "staking", res.Section)
}

func TestDisplayNamePatterns(t *testing.T) {
	c := New()

	tests := []struct {
		name    string
		signals Signals
		method  string
		section string
		typ     Type
	}{
		{
			name:    "reward before pool",
			signals: Signals{FromDisplay: "Pool#12(Reward)"},
			method:  "reward", section: "staking", typ: TypeStaking,
		},
		{
			name:    "nomination pool join",
			signals: Signals{ToDisplay: "Nomination Join Pool#7"},
			method:  "join", section: "nominationPools", typ: TypeStaking,
		},
		{
			name:    "nomination pool unbond",
			signals: Signals{ToDisplay: "Pool#7 Unbond"},
			method:  "unbond", section: "nominationPools", typ: TypeStaking,
		},
		{
			name:    "treasury",
			signals: Signals{FromDisplay: "Kusama Treasury"},
			method:  "spend", section: "treasury", typ: TypeGovernance,
		},
		{
			name:    "validator bond",
			signals: Signals{ToDisplay: "Validator Bond Stash"},
			method:  "bond", section: "staking", typ: TypeStaking,
		},
		{
			name:    "council vote",
			signals: Signals{ToDisplay: "Council Motion"},
			method:  "vote", section: "council", typ: TypeGovernance,
		},
		{
			name:    "crowdloan",
			signals: Signals{ToDisplay: "Acala Crowdloan"},
			method:  "contribute", section: "crowdloan", typ: TypeOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Classify(tt.signals)
			assert.Equal(t, tt.method, res.Method)
			assert.Equal(t, tt.section, res.Section)
			assert.Equal(t, tt.typ, res.Type)
		})
	}
}

func TestCallModuleTable(t *testing.T) {
	c := New()

	tests := []struct {
		module string
		typ    Type
	}{
		{"balances", TypeTransfer},
		{"staking", TypeStaking},
		{"xcmpallet", TypeXCM},
		{"polkadotXcm", TypeXCM},
		{"xtokens", TypeXCM},
		{"democracy", TypeGovernance},
		{"convictionvoting", TypeGovernance},
		{"crowdloan", TypeOther},
		{"identity", TypeOther},
		{"utility", TypeTransfer},
		{"somefuturepallet", TypeOther}, // unknown module still classifies
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			res := c.Classify(Signals{CallModule: tt.module, CallFunction: "do_thing"})
			assert.Equal(t, tt.typ, res.Type)
			assert.Equal(t, "do_thing", res.Method)
			assert.Equal(t, tt.module, res.Section)
		})
	}
}

func TestExtrinsicModuleFallback(t *testing.T) {
	c := New()

	// No call module, but the joined extrinsic carries one.
	res := c.Classify(Signals{
		ExtrinsicModule:   "staking",
		ExtrinsicFunction: "bond",
	})
	assert.Equal(t, TypeStaking, res.Type)
	assert.Equal(t, "bond", res.Method)
}

func TestEventModuleFallback(t *testing.T) {
	c := New()

	res := c.Classify(Signals{EventModule: "staking", EventID: "Reward"})
	assert.Equal(t, TypeStaking, res.Type)
	assert.Equal(t, "Reward", res.Method)
}

func TestSystemAccountHeuristic(t *testing.T) {
	c := New()

	inWindow := time.Date(2024, 3, 5, 15, 30, 0, 0, time.UTC)
	outOfWindow := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	t.Run("era payout window yields reward", func(t *testing.T) {
		res := c.Classify(Signals{
			From:      "",
			To:        "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY",
			Value:     "1000000000",
			Timestamp: inWindow,
		})
		assert.Equal(t, "reward", res.Method)
		assert.Equal(t, TypeStaking, res.Type)
	})

	t.Run("outside window yields deposit", func(t *testing.T) {
		res := c.Classify(Signals{
			From:      "0x0000000000000000000000000000000000000000",
			To:        "0xabc",
			Value:     "500",
			Timestamp: outOfWindow,
		})
		assert.Equal(t, "deposit", res.Method)
		assert.Equal(t, TypeTransfer, res.Type)
	})

	t.Run("zero value in window is not a reward", func(t *testing.T) {
		res := c.Classify(Signals{
			From:      "",
			To:        "0xabc",
			Value:     "0",
			Timestamp: inWindow,
		})
		assert.Equal(t, "deposit", res.Method)
	})

	t.Run("system recipient yields withdraw", func(t *testing.T) {
		res := c.Classify(Signals{
			From:      "0xabc",
			To:        "",
			Value:     "500",
			Timestamp: outOfWindow,
		})
		assert.Equal(t, "withdraw", res.Method)
	})

	t.Run("window boundaries", func(t *testing.T) {
		for _, hour := range []int{14, 16} {
			res := c.Classify(Signals{
				From:      "",
				Value:     "1",
				Timestamp: time.Date(2024, 3, 5, hour, 0, 0, 0, time.UTC),
			})
			assert.Equal(t, "reward", res.Method, "hour %d", hour)
		}
		res := c.Classify(Signals{
			From:      "",
			Value:     "1",
			Timestamp: time.Date(2024, 3, 5, 17, 0, 0, 0, time.UTC),
		})
		assert.Equal(t, "deposit", res.Method)
	})
}

func TestDefaultRule(t *testing.T) {
	c := New()

	// Two ordinary addresses and no metadata at all.
	res := c.Classify(Signals{From: "0xaaa", To: "0xbbb", Value: "1"})
	assert.Equal(t, "transfer", res.Method)
	assert.Equal(t, "balances", res.Section)
	assert.Equal(t, TypeTransfer, res.Type)
}

func TestRuleOrderIsPinned(t *testing.T) {
	names := make([]string, 0)
	for _, r := range DefaultRules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"display-name",
		"call-module",
		"extrinsic-module",
		"event-module",
		"system-account",
		"default",
	}, names)
}

func TestCustomRuleChain(t *testing.T) {
	c := NewWithRules([]Rule{
		{Name: "always-xcm", Match: func(s Signals) (Result, bool) {
			return Result{Method: "send", Section: "xcmpallet", Type: TypeXCM}, true
		}},
	})
	res := c.Classify(Signals{CallModule: "balances"})
	assert.Equal(t, TypeXCM, res.Type)
}
