package signature

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhmunro/dudley/core/types"
)

func TestEncodeLayout(t *testing.T) {
	block, err := Encode(types.OrderBig)
	require.NoError(t, err)
	expected := []byte{0x8d, 'D', 'U', 'D', '\r', '\n', 0x1a, '\n', '>', 0, 0, 0, 0, 0, 0, 0}
	if diff := cmp.Diff(expected, block); diff != "" {
		t.Errorf("block mismatch (-want +got):\n%s", diff)
	}

	_, err = Encode(types.OrderIndeterminate)
	assert.Error(t, err)
}

func TestProbes(t *testing.T) {
	tests := []struct {
		size     int64
		expected []int64
	}{
		{0, nil},
		{15, nil},
		{16, []int64{0}},
		{528, []int64{0, 512}},
		{527, []int64{0}},
		{4000, []int64{0, 512, 1024, 2048}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.expected, Probes(tt.size)); diff != "" {
			t.Errorf("Probes(%d) mismatch (-want +got):\n%s", tt.size, diff)
		}
	}
}

func TestFindAtOffsets(t *testing.T) {
	for _, off := range []int64{0, 512, 2048} {
		var buf bytes.Buffer
		buf.Write(bytes.Repeat([]byte{0xff}, int(off)))
		require.NoError(t, Write(&buf, types.OrderLittle))
		buf.WriteString("payload")

		data := buf.Bytes()
		h, err := Find(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err, "offset %d", off)
		assert.Equal(t, Header{Offset: off, Order: types.OrderLittle}, h)
		assert.Equal(t, off+Size, h.Base())
	}
}

func TestFindSkipsOtherOffsets(t *testing.T) {
	// A signature at 100 is not on a probe offset.
	data := make([]byte, 600)
	block, err := Encode(types.OrderBig)
	require.NoError(t, err)
	copy(data[100:], block)

	_, err = Find(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecodeRejectsBadOrder(t *testing.T) {
	block, err := Encode(types.OrderBig)
	require.NoError(t, err)
	block[8] = '|'
	_, err = Find(bytes.NewReader(block), Size)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid byte order")

	_, err = Decode(block[:8], 0)
	assert.Error(t, err)
}
