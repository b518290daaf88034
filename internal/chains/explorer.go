package chains

import (
	"fmt"
	"strings"

	"github.com/quantumauth-io/quantum-go-utils/log"
)

// FallbackExplorerChain is used for transaction links when the chain id is not recognised.
const FallbackExplorerChain = BSC

// ExplorerTxURL builds the block-explorer link for a transaction. An
// unrecognised chain id falls back to the BSC explorer and known is false,
// so callers can flag the link as a guess.
func (r *Registry) ExplorerTxURL(chainID, hash string) (url string, known bool) {
	hash = strings.TrimSpace(hash)

	d, ok := r.ByChainID(chainID)
	if !ok {
		d, ok = r.Lookup(Key(chainID))
	}
	if !ok {
		log.Warn("explorer link for unknown chain, using fallback", "chain_id", chainID, "fallback", FallbackExplorerChain)
		d = r.byKey[FallbackExplorerChain]
	}
	return fmt.Sprintf(d.TxURLTemplate, hash), ok
}
