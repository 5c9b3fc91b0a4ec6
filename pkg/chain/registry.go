// Package chain holds per-network reference data used by price resolution.
package chain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Capability selects how a network's token prices are produced.
type Capability string

const (
	// CapabilitySubgraph means the network's indexer returns USD quotes per
	// token directly.
	CapabilitySubgraph Capability = "subgraph"
	// CapabilityOnchain means prices are resolved over the pool graph from
	// on-chain spot quotes.
	CapabilityOnchain Capability = "onchain"
)

// Network is the static reference data for one blockchain network.
type Network struct {
	ChainID        uint64
	Name           string
	Capability     Capability
	// StableAddress is the reference stablecoin every resolved price on this
	// network is expressed against.
	StableAddress  string
	// WrappedNative and Native support the native-coin fallback: when the
	// native placeholder has no direct quote, the wrapped token's quote is
	// substituted.
	WrappedNative  string
	Native         string
	SubgraphURL    string
	RPCURL         string
	// QueryContract is the on-chain pool query contract for onchain-capable
	// networks.
	QueryContract  string
	RequestTimeout time.Duration
}

// Registry is an explicit, immutable lookup of configured networks. It is
// constructed once at startup and passed to every component that needs
// chain reference data; there is no package-level shared state.
type Registry struct {
	byID  map[uint64]Network
	order []uint64
}

// NewRegistry validates and indexes the given networks. Addresses are
// lowercase-normalized. Iteration order is ascending chain id, so cycles
// process networks deterministically.
func NewRegistry(networks []Network) (*Registry, error) {
	r := &Registry{byID: make(map[uint64]Network, len(networks))}
	for _, n := range networks {
		if n.ChainID == 0 {
			return nil, fmt.Errorf("network %q: chain id is required", n.Name)
		}
		if _, dup := r.byID[n.ChainID]; dup {
			return nil, fmt.Errorf("duplicate network for chain id %d", n.ChainID)
		}
		if n.StableAddress == "" {
			return nil, fmt.Errorf("network %q: reference stablecoin address is required", n.Name)
		}
		switch n.Capability {
		case CapabilitySubgraph:
			if n.SubgraphURL == "" {
				return nil, fmt.Errorf("network %q: subgraph url is required", n.Name)
			}
		case CapabilityOnchain:
			if n.RPCURL == "" || n.QueryContract == "" {
				return nil, fmt.Errorf("network %q: rpc url and query contract are required", n.Name)
			}
		default:
			return nil, fmt.Errorf("network %q: unknown capability %q", n.Name, n.Capability)
		}

		n.StableAddress = NormalizeAddress(n.StableAddress)
		n.WrappedNative = NormalizeAddress(n.WrappedNative)
		n.Native = NormalizeAddress(n.Native)
		r.byID[n.ChainID] = n
		r.order = append(r.order, n.ChainID)
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r, nil
}

// Get returns the network for the given chain id.
func (r *Registry) Get(chainID uint64) (Network, bool) {
	n, ok := r.byID[chainID]
	return n, ok
}

// All returns the configured networks in ascending chain id order.
func (r *Registry) All() []Network {
	out := make([]Network, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of configured networks.
func (r *Registry) Len() int {
	return len(r.byID)
}

// NormalizeAddress lowercases a contract address for chain-scoped identity
// comparisons.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
