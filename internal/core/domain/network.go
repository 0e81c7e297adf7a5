package domain

// NetworkKind selects the primary source adapter for a network.
type NetworkKind string

const (
	NetworkKindIndexer  NetworkKind = "indexer"
	NetworkKindExplorer NetworkKind = "explorer"
	NetworkKindUTXO     NetworkKind = "utxo"
)

// Network describes one supported chain, independent of source-specific
// naming. PriceID is the price-provider identifier; empty means the native
// asset cannot be priced and enrichment skips it.
type Network struct {
	Name        string      `yaml:"name"`
	Kind        NetworkKind `yaml:"kind"`
	IndexerHost string      `yaml:"indexer_host"`
	ChainID     int         `yaml:"chain_id"`
	NodeURL     string      `yaml:"node_url"`
	UTXOHost    string      `yaml:"utxo_host"`
	Symbol      string      `yaml:"symbol"`
	Decimals    int         `yaml:"decimals"`
	PriceID     string      `yaml:"price_id"`
	HasStaking  bool        `yaml:"has_staking"`
}

// BuiltinNetworks is the default registry. Config entries with the same name
// override these.
var BuiltinNetworks = []Network{
	{
		Name:        "polkadot",
		Kind:        NetworkKindIndexer,
		IndexerHost: "https://polkadot.api.subscan.io",
		Symbol:      "DOT",
		Decimals:    10,
		PriceID:     "polkadot",
		HasStaking:  true,
	},
	{
		Name:        "kusama",
		Kind:        NetworkKindIndexer,
		IndexerHost: "https://kusama.api.subscan.io",
		Symbol:      "KSM",
		Decimals:    12,
		PriceID:     "kusama",
		HasStaking:  true,
	},
	{
		Name:     "ethereum",
		Kind:     NetworkKindExplorer,
		ChainID:  1,
		NodeURL:  "https://eth.llamarpc.com",
		Symbol:   "ETH",
		Decimals: 18,
		PriceID:  "ethereum",
	},
	{
		Name:     "polygon",
		Kind:     NetworkKindExplorer,
		ChainID:  137,
		NodeURL:  "https://polygon-rpc.com",
		Symbol:   "POL",
		Decimals: 18,
		PriceID:  "matic-network",
	},
	{
		Name:     "bitcoin",
		Kind:     NetworkKindUTXO,
		UTXOHost: "https://btcbook.nownodes.io",
		Symbol:   "BTC",
		Decimals: 8,
		PriceID:  "bitcoin",
	},
}

// FindNetwork looks a network up by canonical name.
func FindNetwork(networks []Network, name string) (Network, bool) {
	for _, n := range networks {
		if n.Name == name {
			return n, true
		}
	}
	return Network{}, false
}
