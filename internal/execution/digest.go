package execution

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"lukechampine.com/blake3"
)

// Digester computes the placeholder proof over a query and its ordered providers.
// The digest is an integrity tripwire for the simulation, not a verifiable proof.
type Digester interface {
	Digest(queryID string, providerIDs []string) []byte
}

const (
	DigestXXHash = "xxhash"
	DigestBlake3 = "blake3"
)

// NewDigester resolves a digester by name; empty selects xxhash.
func NewDigester(name string) (Digester, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DigestXXHash:
		return XXHashDigester{}, nil
	case DigestBlake3:
		return Blake3Digester{}, nil
	default:
		return nil, fmt.Errorf("unknown digest %q", name)
	}
}

// XXHashDigester is the default 64-bit checksum.
type XXHashDigester struct{}

func (XXHashDigester) Digest(queryID string, providerIDs []string) []byte {
	sum := xxhash.Sum64String(digestInput(queryID, providerIDs))
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, sum)
	return out
}

// Blake3Digester produces a 32-byte digest.
type Blake3Digester struct{}

func (Blake3Digester) Digest(queryID string, providerIDs []string) []byte {
	sum := blake3.Sum256([]byte(digestInput(queryID, providerIDs)))
	return sum[:]
}

func digestInput(queryID string, providerIDs []string) string {
	return queryID + strings.Join(providerIDs, "")
}

func digestHex(d Digester, queryID string, providerIDs []string) string {
	return "0x" + hex.EncodeToString(d.Digest(queryID, providerIDs))
}
