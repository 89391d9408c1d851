package solana

// Cluster is the public RPC endpoint of a cluster, used when no dedicated
// node is configured.
type Cluster string

const (
	ClusterDevnet  Cluster = "https://api.devnet.solana.com"
	ClusterMainnet Cluster = "https://api.mainnet-beta.solana.com"
)
