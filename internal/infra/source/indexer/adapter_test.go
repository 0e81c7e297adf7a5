package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htngan/walletfeed/internal/core/domain"
	"github.com/htngan/walletfeed/internal/infra/rpc"
	"github.com/htngan/walletfeed/internal/infra/source"
	"github.com/htngan/walletfeed/internal/pipeline/classify"
)

const testAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"

type endpointResponses map[string]string

func newTestAdapter(t *testing.T, responses endpointResponses) (*Adapter, domain.Network) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	network := domain.Network{
		Name:        "polkadot",
		Kind:        domain.NetworkKindIndexer,
		IndexerHost: server.URL,
		Decimals:    10,
		HasStaking:  true,
	}

	registry := rpc.NewRegistry(5 * time.Second)
	t.Cleanup(func() { _ = registry.Close() })
	registry.Provider("indexer:"+network.Name, network.IndexerHost).SetPace(0)

	return New(registry, classify.New()), network
}

func emptyData() string {
	return `{"code":0,"message":"Success","data":null}`
}

func transfersBody(ts int64) string {
	return fmt.Sprintf(`{"code":0,"message":"Success","data":{"transfers":[
		{"extrinsic_index":"100-2","hash":"0xaaa","block_num":100,"block_timestamp":%d,
		 "from":"%s","to":"5FOther","amount":"1.5","amount_v2":"15000000000","fee":"120000000",
		 "module":"balances","success":true,
		 "to_account_display":{"display":""}}
	]}}`, ts, testAddress)
}

func TestFetchTransfers(t *testing.T) {
	ts := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC).Unix()
	a, network := newTestAdapter(t, endpointResponses{
		"/api/scan/transfers":            transfersBody(ts),
		"/api/scan/extrinsics":           emptyData(),
		"/api/scan/account/reward_slash": emptyData(),
	})

	txs, err := a.Fetch(context.Background(), network, testAddress, source.Options{Limit: 25})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, "100-2", tx.ID)
	assert.Equal(t, "0xaaa", tx.Hash)
	assert.Equal(t, uint64(100), tx.BlockNumber)
	assert.Equal(t, "15000000000", tx.Value, "amount_v2 wins over scaled display amount")
	assert.Equal(t, "120000000", tx.Fee)
	assert.Equal(t, domain.TxStatusSuccess, tx.Status)
	assert.Equal(t, domain.TxTypeTransfer, tx.Type)
	assert.True(t, tx.IsSigned)
}

func TestFetchScalesDisplayAmountWithoutRawField(t *testing.T) {
	body := fmt.Sprintf(`{"code":0,"message":"Success","data":{"transfers":[
		{"extrinsic_index":"100-2","hash":"0xaaa","block_num":100,"block_timestamp":1709629200,
		 "from":"%s","to":"5FOther","amount":"1.5","fee":"0","module":"balances","success":true}
	]}}`, testAddress)

	a, network := newTestAdapter(t, endpointResponses{
		"/api/scan/transfers":            body,
		"/api/scan/extrinsics":           emptyData(),
		"/api/scan/account/reward_slash": emptyData(),
	})

	txs, err := a.Fetch(context.Background(), network, testAddress, source.Options{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "15000000000", txs[0].Value, "1.5 at 10 decimals")
}

func TestExtrinsicJoinBackfillsClassification(t *testing.T) {
	// The transfer itself carries no module; the joined extrinsic says
	// staking.bond, which must drive the classification.
	transfers := fmt.Sprintf(`{"code":0,"message":"Success","data":{"transfers":[
		{"extrinsic_index":"200-1","hash":"0xbbb","block_num":200,"block_timestamp":1709629200,
		 "from":"%s","to":"5FOther","amount_v2":"5","fee":"0","module":"","success":true}
	]}}`, testAddress)
	extrinsics := `{"code":0,"message":"Success","data":{"list":[
		{"extrinsic_index":"200-1","extrinsic_hash":"0xbbb","block_num":200,"block_timestamp":1709629200,
		 "call_module":"staking","call_module_function":"bond","success":true,"fee":"0"}
	]}}`

	a, network := newTestAdapter(t, endpointResponses{
		"/api/scan/transfers":            transfers,
		"/api/scan/extrinsics":           extrinsics,
		"/api/scan/account/reward_slash": emptyData(),
	})

	txs, err := a.Fetch(context.Background(), network, testAddress, source.Options{})
	require.NoError(t, err)
	require.Len(t, txs, 1, "extrinsic matching a transfer is not emitted twice")

	assert.Equal(t, domain.TxTypeStaking, txs[0].Type)
	assert.Equal(t, "bond", txs[0].Method)
	assert.Equal(t, "staking", txs[0].Section)
}

func TestStandaloneExtrinsicBecomesRecord(t *testing.T) {
	extrinsics := `{"code":0,"message":"Success","data":{"list":[
		{"extrinsic_index":"300-4","extrinsic_hash":"0xccc","block_num":300,"block_timestamp":1709629200,
		 "call_module":"democracy","call_module_function":"vote","success":true,"fee":"100"}
	]}}`

	a, network := newTestAdapter(t, endpointResponses{
		"/api/scan/transfers":            emptyData(),
		"/api/scan/extrinsics":           extrinsics,
		"/api/scan/account/reward_slash": emptyData(),
	})

	txs, err := a.Fetch(context.Background(), network, testAddress, source.Options{})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	assert.Equal(t, "300-4", txs[0].ID)
	assert.Equal(t, domain.TxTypeGovernance, txs[0].Type)
	assert.Equal(t, "0", txs[0].Value)
}

func TestRewardsAreUnsignedAndSuffixed(t *testing.T) {
	rewards := `{"code":0,"message":"Success","data":{"list":[
		{"event_index":"400-7","extrinsic_hash":"","block_num":400,"block_timestamp":1709629200,
		 "module_id":"staking","event_id":"Reward","amount":"987654321"}
	]}}`

	a, network := newTestAdapter(t, endpointResponses{
		"/api/scan/transfers":            emptyData(),
		"/api/scan/extrinsics":           emptyData(),
		"/api/scan/account/reward_slash": rewards,
	})

	txs, err := a.Fetch(context.Background(), network, testAddress, source.Options{})
	require.NoError(t, err)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, "400-7-reward", tx.ID)
	assert.Empty(t, tx.Hash)
	assert.False(t, tx.IsSigned)
	assert.Equal(t, domain.TxTypeStaking, tx.Type)
	assert.Equal(t, testAddress, tx.To)
	assert.Equal(t, "987654321", tx.Value)
}

func TestOptionalEndpointsDegrade(t *testing.T) {
	// Only transfers answers; extrinsics and rewards return 500. The fetch
	// still succeeds with transfer data.
	ts := time.Now().UTC().Unix()
	a, network := newTestAdapter(t, endpointResponses{
		"/api/scan/transfers": transfersBody(ts),
	})

	txs, err := a.Fetch(context.Background(), network, testAddress, source.Options{})
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestRequiredEndpointFailurePropagates(t *testing.T) {
	a, network := newTestAdapter(t, endpointResponses{
		"/api/scan/transfers": `{"code":10004,"message":"Record Not Found","data":null}`,
	})

	_, err := a.Fetch(context.Background(), network, testAddress, source.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "10004")
}

func TestNoRewardsCallWithoutStaking(t *testing.T) {
	var rewardCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/scan/account/reward_slash" {
			rewardCalls++
		}
		_, _ = w.Write([]byte(emptyData()))
	}))
	defer server.Close()

	network := domain.Network{
		Name:        "parallel",
		Kind:        domain.NetworkKindIndexer,
		IndexerHost: server.URL,
		Decimals:    12,
		HasStaking:  false,
	}

	registry := rpc.NewRegistry(5 * time.Second)
	defer registry.Close()
	registry.Provider("indexer:"+network.Name, network.IndexerHost).SetPace(0)

	a := New(registry, classify.New())
	_, err := a.Fetch(context.Background(), network, testAddress, source.Options{})
	require.NoError(t, err)
	assert.Zero(t, rewardCalls)
}

func TestProgressNotifications(t *testing.T) {
	ts := time.Now().UTC().Unix()
	a, network := newTestAdapter(t, endpointResponses{
		"/api/scan/transfers":            transfersBody(ts),
		"/api/scan/extrinsics":           emptyData(),
		"/api/scan/account/reward_slash": emptyData(),
	})

	var endpoints []string
	opts := source.Options{Progress: func(endpoint string, records int) {
		endpoints = append(endpoints, endpoint)
	}}

	_, err := a.Fetch(context.Background(), network, testAddress, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"api/scan/transfers",
		"api/scan/extrinsics",
		"api/scan/account/reward_slash",
	}, endpoints)
}

func TestPaginationForwarded(t *testing.T) {
	var gotPage, gotRow float64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/scan/transfers" {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			gotPage, _ = body["page"].(float64)
			gotRow, _ = body["row"].(float64)
		}
		_, _ = w.Write([]byte(emptyData()))
	}))
	defer server.Close()

	network := domain.Network{
		Name:        "polkadot",
		Kind:        domain.NetworkKindIndexer,
		IndexerHost: server.URL,
		Decimals:    10,
	}
	registry := rpc.NewRegistry(5 * time.Second)
	defer registry.Close()
	registry.Provider("indexer:"+network.Name, network.IndexerHost).SetPace(0)

	a := New(registry, classify.New())
	_, err := a.Fetch(context.Background(), network, testAddress, source.Options{Limit: 10, Page: 3})
	require.NoError(t, err)

	assert.Equal(t, float64(3), gotPage)
	assert.Equal(t, float64(10), gotRow)
}
