// Package hashstate implements C1: Blake3-based state hashing and the two
// hash-chaining primitives. hash, hash_chain, and extend_chain are three
// genuinely distinct operations — hash_chain([h]) is not equal to h, and
// extend_chain is not equivalent to repeated hash_chain calls. Domain
// separation tags keep the three from ever colliding, following the
// content-addressed hashing pattern used throughout the retrieval pack's IR
// layer (hash over domain-tag || 0x00 || payload).
package hashstate

import (
	"lukechampine.com/blake3"

	"github.com/dtre-go/dtre"
	"github.com/dtre-go/dtre/codec"
)

const (
	domainState       = "dtre/state/v1"
	domainHashChain   = "dtre/hash-chain/v1"
	domainExtendChain = "dtre/extend-chain/v1"
)

// Hasher is stateless and has no methods; the package-level Hash function
// takes the serializer explicitly so callers can hash with whichever
// Serializer their pipeline uses (only Compact feeds the live engine, per
// SPEC_FULL.md §4.10, but hashing itself is serializer-agnostic).
type Hasher struct{}

// New returns a ready-to-use Hasher.
func New() Hasher { return Hasher{} }

func hashWithDomain(domain string, data []byte) dtre.StateHash {
	buf := make([]byte, 0, len(domain)+1+len(data))
	buf = append(buf, domain...)
	buf = append(buf, 0x00)
	buf = append(buf, data...)
	return dtre.StateHash(blake3.Sum256(buf))
}

// Hash serializes state through enc and feeds the bytes to Blake3 under the
// state domain tag. The caller's state type is responsible for a canonical
// traversal (sorted map keys, stable field order) per the State contract;
// Compact's reflective encoder already guarantees this (see package codec).
func Hash[S dtre.State[S]](state S, enc codec.Serializer) (dtre.StateHash, error) {
	encoded, err := enc.Encode(state)
	if err != nil {
		return dtre.StateHash{}, err
	}
	return hashWithDomain(domainState, encoded), nil
}

// HashChain is Blake3 over the concatenation of all hashes in order. It is
// NOT equal to repeated ExtendChain calls over the same list: order and
// primitive choice are both part of identity.
func HashChain(hashes []dtre.StateHash) dtre.StateHash {
	buf := make([]byte, 0, len(hashes)*32)
	for _, h := range hashes {
		buf = append(buf, h[:]...)
	}
	return hashWithDomain(domainHashChain, buf)
}

// ExtendChain combines exactly two hashes: a running chain hash and the next
// state hash to fold in. This is the incremental counterpart to HashChain,
// not an equivalent formulation of it.
func ExtendChain(prev, next dtre.StateHash) dtre.StateHash {
	buf := make([]byte, 0, 64)
	buf = append(buf, prev[:]...)
	buf = append(buf, next[:]...)
	return hashWithDomain(domainExtendChain, buf)
}
