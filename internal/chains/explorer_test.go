package chains

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExplorerTxURL(t *testing.T) {
	r := Default()
	hash := "0xabc"

	tests := []struct {
		chainID string
		want    string
		known   bool
	}{
		{"0x1", "https://etherscan.io/tx/0xabc", true},
		{"0x38", "https://bscscan.com/tx/0xabc", true},
		{"137", "https://polygonscan.com/tx/0xabc", true},
		{"tron", "https://tronscan.org/#/transaction/0xabc", true},
		{"polygon", "https://polygonscan.com/tx/0xabc", true},
		{"0xa4b1", "https://bscscan.com/tx/0xabc", false},
		{"", "https://bscscan.com/tx/0xabc", false},
	}

	for _, tc := range tests {
		t.Run(tc.chainID, func(t *testing.T) {
			got, known := r.ExplorerTxURL(tc.chainID, hash)
			require.Equal(t, tc.want, got)
			require.Equal(t, tc.known, known)
		})
	}
}
