package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestChunks(t *testing.T) {
	cases := []struct {
		name string
		r    BlockRange
		size uint64
		want []BlockRange
	}{
		{
			name: "even",
			r:    BlockRange{From: 100, To: 105},
			size: 2,
			want: []BlockRange{{100, 101}, {102, 103}, {104, 105}},
		},
		{
			name: "uneven",
			r:    BlockRange{From: 101, To: 110},
			size: 4,
			want: []BlockRange{{101, 104}, {105, 108}, {109, 110}},
		},
		{
			name: "single block",
			r:    BlockRange{From: 5, To: 5},
			size: 10,
			want: []BlockRange{{5, 5}},
		},
		{
			name: "exact fit",
			r:    BlockRange{From: 0, To: 1999},
			size: 2000,
			want: []BlockRange{{0, 1999}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.r.Chunks(tc.size)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)

			var total uint64
			for _, c := range got {
				total += c.Len()
			}
			require.Equal(t, tc.r.Len(), total)
		})
	}
}

func TestChunksInvalid(t *testing.T) {
	_, err := BlockRange{From: 10, To: 9}.Chunks(1)
	require.Error(t, err)

	_, err = BlockRange{From: 1, To: 10}.Chunks(0)
	require.Error(t, err)

	require.Zero(t, BlockRange{From: 10, To: 9}.Len())
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{
		" 0x1111111111111111111111111111111111111111",
		"",
		"0x1111111111111111111111111111111111111111",
		"0x2222222222222222222222222222222222222222",
	})
	require.NoError(t, err)
	require.Equal(t, []common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
	}, got)

	_, err = ParseAddresses([]string{"0xnothex", "pool", "0x2222222222222222222222222222222222222222"})
	require.ErrorContains(t, err, "0xnothex, pool")
}

func TestNewClientRequiresURL(t *testing.T) {
	_, err := NewClient(context.Background(), " ")
	require.Error(t, err)
}
