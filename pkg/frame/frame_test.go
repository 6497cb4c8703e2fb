package frame

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromGray8_TightAndPadded(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		stride int
		data   []byte
		want   []byte
	}{
		{
			name:   "tightly packed",
			width:  3,
			height: 2,
			stride: 3,
			data:   []byte{1, 2, 3, 4, 5, 6},
			want:   []byte{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "padded rows",
			width:  2,
			height: 2,
			stride: 4,
			data:   []byte{1, 2, 99, 99, 3, 4, 99, 99},
			want:   []byte{1, 2, 3, 4},
		},
		{
			name:   "stride smaller than width is treated as width",
			width:  2,
			height: 1,
			stride: 0,
			data:   []byte{7, 8},
			want:   []byte{7, 8},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := FromGray8(tc.width, tc.height, tc.stride, tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, g.Pix)
			assert.NoError(t, g.Validate())
			assert.False(t, g.Captured.IsZero())
		})
	}
}

func TestFromGray8_CopiesBuffer(t *testing.T) {
	data := []byte{10, 20, 30, 40}
	g, err := FromGray8(2, 2, 2, data)
	require.NoError(t, err)

	// The device buffer is reused after release; the frame must not alias it.
	data[0] = 255
	assert.Equal(t, uint8(10), g.At(0, 0))
}

func TestFromGray8_Errors(t *testing.T) {
	_, err := FromGray8(0, 10, 0, nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = FromGray8(4, 4, 4, make([]byte, 10))
	assert.Error(t, err)
}

func TestFromBGRA_Luma(t *testing.T) {
	// Three pixels: white, black, pure green (B, G, R, X order).
	data := []byte{
		255, 255, 255, 0,
		0, 0, 0, 0,
		0, 255, 0, 0,
	}
	g, err := FromBGRA(3, 1, 12, data)
	require.NoError(t, err)

	assert.Equal(t, uint8(255), g.At(0, 0))
	assert.Equal(t, uint8(0), g.At(1, 0))
	assert.InDelta(t, 150, int(g.At(2, 0)), 1)
}

func TestFromBGRA_ShortBuffer(t *testing.T) {
	_, err := FromBGRA(2, 2, 8, make([]byte, 9))
	assert.Error(t, err)
}

func TestGray_Validate(t *testing.T) {
	var nilFrame *Gray
	assert.ErrorIs(t, nilFrame.Validate(), ErrEmpty)

	g := &Gray{Width: 2, Height: 2, Pix: []byte{1}}
	assert.Error(t, g.Validate())

	assert.NoError(t, NewGray(4, 3).Validate())
}

func TestGray_AtOutOfRange(t *testing.T) {
	g := NewGray(2, 2)
	g.Pix[3] = 9
	assert.Equal(t, uint8(9), g.At(1, 1))
	assert.Equal(t, uint8(0), g.At(-1, 0))
	assert.Equal(t, uint8(0), g.At(2, 0))
}

func TestGray_BGR(t *testing.T) {
	g := NewGray(4, 3)
	for i := range g.Pix {
		g.Pix[i] = 128
	}

	bgr, err := g.BGR()
	require.NoError(t, err)
	defer bgr.Close()

	assert.Equal(t, 3, bgr.Rows())
	assert.Equal(t, 4, bgr.Cols())
	assert.Equal(t, 3, bgr.Channels())
}

func TestSlot_LatestWins(t *testing.T) {
	var s Slot
	assert.Nil(t, s.Load())

	first := NewGray(1, 1)
	second := NewGray(1, 1)
	s.Store(first)
	s.Store(second)

	assert.Same(t, second, s.Load())
	assert.Equal(t, uint64(2), s.Stores())

	s.Clear()
	assert.Nil(t, s.Load())
}

func TestSlot_ConcurrentReadersSeeWholeFrames(t *testing.T) {
	var s Slot
	const n = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= n; i++ {
			g := NewGray(8, 8)
			for p := range g.Pix {
				g.Pix[p] = uint8(i)
			}
			s.Store(g)
		}
	}()

	for i := 0; i < n; i++ {
		g := s.Load()
		if g == nil {
			continue
		}
		v := g.Pix[0]
		for _, p := range g.Pix {
			if p != v {
				t.Fatalf("observed a partially written frame")
			}
		}
	}
	wg.Wait()
}

func TestFromRGBA_ChannelOrder(t *testing.T) {
	// Pure red in RGBA order must weigh like red, not like blue.
	g, err := FromRGBA(1, 1, 4, []byte{255, 0, 0, 255})
	require.NoError(t, err)
	assert.InDelta(t, 76, int(g.At(0, 0)), 1)

	b, err := FromBGRA(1, 1, 4, []byte{255, 0, 0, 255})
	require.NoError(t, err)
	assert.InDelta(t, 29, int(b.At(0, 0)), 1)
}
