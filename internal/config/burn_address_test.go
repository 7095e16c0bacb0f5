package config

import "testing"

func TestBurnAddressForRPCPort(t *testing.T) {
	cases := []struct {
		port int
		want string
		ok   bool
	}{
		{9932, "PtpasteLBurnAddressXXXXXXXXXXbJ5ndd", true},
		{19932, "tPpasteLBurnAddressXXXXXXXXXXX3wy7u", true},
		{29932, "44oUgmZSL997veFEQDq569wv5tsT6KXf9QY7", true},
		{1, "", false},
	}
	for _, c := range cases {
		got, ok := BurnAddressForRPCPort(c.port)
		if ok != c.ok || got != c.want {
			t.Fatalf("BurnAddressForRPCPort(%d) = (%q, %v), want (%q, %v)", c.port, got, ok, c.want, c.ok)
		}
	}
}

func TestBurnAddressForNetwork(t *testing.T) {
	addr, ok := BurnAddressForNetwork(NetworkTestnet)
	if !ok || addr != "tPpasteLBurnAddressXXXXXXXXXXX3wy7u" {
		t.Fatalf("unexpected testnet burn address: %q, %v", addr, ok)
	}
	if _, ok := BurnAddressForNetwork(Network("unknown")); ok {
		t.Fatalf("expected unknown network to miss")
	}
}
