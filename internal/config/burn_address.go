package config

// Network names one of the three deployments the burn-address table of
// the client is parameterized over.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
)

// burnAddressByNetwork and burnAddressByRPCPort mirror the
// rpc-port/network/burn-address table. The well-known burn address is
// where the purchase engine's SendToAddress burn and the tracking-address
// proof-of-payment transfer are both sent.
var burnAddressByNetwork = map[Network]string{
	NetworkMainnet: "PtpasteLBurnAddressXXXXXXXXXXbJ5ndd",
	NetworkTestnet: "tPpasteLBurnAddressXXXXXXXXXXX3wy7u",
	NetworkDevnet:  "44oUgmZSL997veFEQDq569wv5tsT6KXf9QY7",
}

var networkByRPCPort = map[int]Network{
	9932:  NetworkMainnet,
	19932: NetworkTestnet,
	29932: NetworkDevnet,
}

// BurnAddressForNetwork looks up the well-known burn address for network.
func BurnAddressForNetwork(n Network) (string, bool) {
	addr, ok := burnAddressByNetwork[n]
	return addr, ok
}

// BurnAddressForRPCPort resolves the rpc port the chain node listens on to
// its network's burn address.
func BurnAddressForRPCPort(port int) (string, bool) {
	n, ok := networkByRPCPort[port]
	if !ok {
		return "", false
	}
	return BurnAddressForNetwork(n)
}
