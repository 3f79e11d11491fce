package fec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadHeader_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		baseSeq   uint16
		protected []uint16
		headerLen int
	}{
		{
			name:      "Small tier",
			baseSeq:   100,
			protected: []uint16{100, 101, 105},
			headerLen: 20,
		},
		{
			name:      "Small tier max delta",
			baseSeq:   100,
			protected: []uint16{100, 114},
			headerLen: 20,
		},
		{
			name:      "Medium tier",
			baseSeq:   100,
			protected: []uint16{100, 115, 145},
			headerLen: 24,
		},
		{
			name:      "Large tier",
			baseSeq:   100,
			protected: []uint16{100, 150, 208},
			headerLen: 32,
		},
		{
			name:      "Large tier max delta",
			baseSeq:   100,
			protected: []uint16{100, 101, 105, 208},
			headerLen: 32,
		},
		{
			name:      "Wraparound base",
			baseSeq:   65530,
			protected: []uint16{65530, 65535, 3},
			headerLen: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := WriteHeader(0xdecade, tt.baseSeq, tt.protected)
			require.NoError(t, err)
			assert.Len(t, raw, tt.headerLen)

			h, err := ReadHeader(raw)
			require.NoError(t, err)
			assert.Equal(t, uint32(0xdecade), h.ProtectedSSRC)
			assert.Equal(t, tt.baseSeq, h.BaseSeq)
			assert.Equal(t, tt.protected, h.Protected)
			assert.Equal(t, tt.headerLen, h.HeaderLen)
		})
	}
}

func TestWriteHeader_Errors(t *testing.T) {
	tests := []struct {
		name      string
		baseSeq   uint16
		protected []uint16
		wantErr   error
	}{
		{"Empty set", 100, nil, ErrNothingProtected},
		{"Delta over 108", 100, []uint16{100, 209}, ErrMaskTooLong},
		{"Sequence before base", 100, []uint16{99}, ErrSeqBeforeBase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WriteHeader(1, tt.baseSeq, tt.protected)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadHeader_Rejections(t *testing.T) {
	valid, err := WriteHeader(1, 10, []uint16{10, 11})
	require.NoError(t, err)

	retrans := append([]byte(nil), valid...)
	retrans[0] |= 0x80
	inflexible := append([]byte(nil), valid...)
	inflexible[0] |= 0x40
	multi := append([]byte(nil), valid...)
	multi[8] = 2
	noK := append([]byte(nil), valid...)
	noK = append(noK[:18], make([]byte, 14)...) // clear every mask word and k bit

	tests := []struct {
		name    string
		payload []byte
		wantErr error
	}{
		{"Too short", valid[:19], ErrHeaderTooShort},
		{"Retransmission bit", retrans, ErrRetransmission},
		{"Non-flexible mask", inflexible, ErrInflexibleMask},
		{"Multiple SSRCs", multi, ErrMultiSSRC},
		{"No continuation bit", noK, ErrNoContinuationBit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadHeader(tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadHeader_TruncatedMediumMask(t *testing.T) {
	raw, err := WriteHeader(1, 10, []uint16{10, 40})
	require.NoError(t, err)
	require.Len(t, raw, 24)

	_, err = ReadHeader(raw[:20])
	assert.ErrorIs(t, err, ErrHeaderTooShort)
}
