package tron

import (
	"testing"

	"github.com/fbsobreira/gotron-sdk/pkg/proto/api"
	"github.com/fbsobreira/gotron-sdk/pkg/proto/core"
	"github.com/stretchr/testify/require"
)

func TestTxIDIsStableAndIgnoresSignature(t *testing.T) {
	tx := &core.Transaction{RawData: &core.TransactionRaw{RefBlockBytes: []byte{1, 2}, FeeLimit: DefaultFeeLimit}}

	id, err := TxID(tx)
	require.NoError(t, err)
	require.Len(t, id, 64)

	tx.Signature = [][]byte{{0xaa}}
	again, err := TxID(tx)
	require.NoError(t, err)
	require.Equal(t, id, again)

	tx.RawData.FeeLimit++
	other, err := TxID(tx)
	require.NoError(t, err)
	require.NotEqual(t, id, other)

	_, err = TxID(&core.Transaction{})
	require.Error(t, err)
}

func TestCheckReturn(t *testing.T) {
	require.NoError(t, checkReturn(nil))
	require.NoError(t, checkReturn(&api.Return{Result: true}))
	require.Error(t, checkReturn(&api.Return{Code: api.Return_SIGERROR, Message: []byte("bad sig")}))
}
