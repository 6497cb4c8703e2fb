package source

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/irdrowsy/internal/log"
	"github.com/teslashibe/irdrowsy/pkg/frame"
)

// fakeQueue stands in for a streaming device. bufs are handed out in order;
// once they run out Ready reports stillReady.
type fakeQueue struct {
	bufs       [][]byte
	stillReady bool
	readyErr   error
	dequeueErr error

	dequeued int
	requeued []uint32
}

func (q *fakeQueue) Ready() (bool, error) {
	if q.readyErr != nil {
		return false, q.readyErr
	}
	return q.dequeued < len(q.bufs) || q.stillReady, nil
}

func (q *fakeQueue) Dequeue() ([]byte, uint32, error) {
	if q.dequeueErr != nil {
		q.dequeued++
		return nil, 0, q.dequeueErr
	}
	i := q.dequeued
	q.dequeued++
	return q.bufs[i], uint32(i), nil
}

func (q *fakeQueue) Requeue(index uint32) error {
	q.requeued = append(q.requeued, index)
	return nil
}

func decodeGray2x1(buf []byte) (*frame.Gray, error) {
	return Decode(Raw{Format: FormatGray8, Width: 2, Height: 1, Stride: 2, Data: buf})
}

func TestDrainLatest_KeepsNewest(t *testing.T) {
	q := &fakeQueue{bufs: [][]byte{{1, 1}, {2, 2}, {3, 3}}}

	g, err := drainLatest(q, 8, decodeGray2x1, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 3}, g.Pix)
	assert.Equal(t, []uint32{0, 1, 2}, q.requeued)
}

func TestDrainLatest_NothingReady(t *testing.T) {
	q := &fakeQueue{}
	_, err := drainLatest(q, 8, decodeGray2x1, log.Discard())
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestDrainLatest_DeadDeviceReturns(t *testing.T) {
	// An unplugged device polls ready forever while every dequeue fails.
	cause := errors.New("no such device")
	q := &fakeQueue{stillReady: true, dequeueErr: cause}

	_, err := drainLatest(q, 4, decodeGray2x1, log.Discard())
	require.ErrorIs(t, err, cause)
	assert.Equal(t, 1, q.dequeued)

	var de *DecodeError
	assert.False(t, errors.As(err, &de), "device failures are not decode failures")
}

func TestDrainLatest_DequeueFailureAfterFrame(t *testing.T) {
	q := &fakeQueue{bufs: [][]byte{{7, 7}}, stillReady: true}
	g, err := drainLatest(q, 4, func(buf []byte) (*frame.Gray, error) {
		q.dequeueErr = errors.New("io error")
		return decodeGray2x1(buf)
	}, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 7}, g.Pix)
}

func TestDrainLatest_BoundedByLimit(t *testing.T) {
	q := &fakeQueue{bufs: make([][]byte, 100)}
	for i := range q.bufs {
		q.bufs[i] = []byte{byte(i), byte(i)}
	}

	g, err := drainLatest(q, 4, decodeGray2x1, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, 4, q.dequeued)
	assert.Equal(t, []byte{3, 3}, g.Pix)

	_, err = drainLatest(&fakeQueue{stillReady: true, bufs: q.bufs}, 0, decodeGray2x1, log.Discard())
	require.NoError(t, err)
}

func TestDrainLatest_DecodeFailureReleasesBuffer(t *testing.T) {
	q := &fakeQueue{bufs: [][]byte{{1}}}

	_, err := drainLatest(q, 8, decodeGray2x1, log.Discard())
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, []uint32{0}, q.requeued)
}

func TestDrainLatest_WaitError(t *testing.T) {
	cause := errors.New("poll failed")
	_, err := drainLatest(&fakeQueue{readyErr: cause}, 8, decodeGray2x1, log.Discard())
	assert.ErrorIs(t, err, cause)
}

func TestFormatCandidates(t *testing.T) {
	tests := []struct {
		name    string
		offered []string
		want    []string
		wantErr bool
	}{
		{"gray preferred over color", []string{"XR24", "YUYV", "GREY"}, []string{"GREY", "XR24"}, false},
		{"color when gray is absent", []string{"MJPG", "XR24"}, []string{"XR24"}, false},
		{"Y800 is gray", []string{"Y800"}, []string{"Y800"}, false},
		{"rgba order", []string{"AB24", "AR24"}, []string{"AR24", "AB24"}, false},
		{"nothing decodable", []string{"YUYV", "MJPG", "Y16 "}, nil, true},
		{"no formats", nil, nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := formatCandidates(tc.offered)
			if tc.wantErr {
				assert.ErrorIs(t, err, errNoDecodableFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSelect_SkipsUndecodableInfrared(t *testing.T) {
	groups := []Group{{
		ID: "g0",
		Sources: []SourceInfo{
			{ID: "y16", Kind: KindInfrared, Role: RolePreview, Formats: []string{"Y16 "}},
			{ID: "grey", Kind: KindInfrared, Role: RolePreview, Formats: []string{"GREY"}},
		},
	}}
	info, _, err := Select(groups)
	require.NoError(t, err)
	assert.Equal(t, "grey", info.ID)

	_, _, err = Select([]Group{{ID: "g0", Sources: groups[0].Sources[:1]}})
	assert.ErrorIs(t, err, ErrNoSourceFound)
}

func TestGroupByBus(t *testing.T) {
	scanned := []videoNode{
		{Info: SourceInfo{ID: "/dev/video0", Name: "Integrated Camera: RGB"}, Bus: "usb-0000:00:14.0-5"},
		{Info: SourceInfo{ID: "/dev/video1", Name: "Integrated Camera: RGB"}, Bus: "usb-0000:00:14.0-5"},
		{Info: SourceInfo{ID: "/dev/video2", Name: "Integrated Camera: IR"}, Bus: "usb-0000:00:14.0-5"},
		{Info: SourceInfo{ID: "/dev/video4", Name: "USB Webcam"}, Bus: "usb-0000:00:14.0-2"},
		{Info: SourceInfo{ID: "/dev/video9", Name: "video9"}},
	}

	groups := groupByBus(scanned)
	require.Len(t, groups, 3)

	assert.Equal(t, "usb-0000:00:14.0-5", groups[0].ID)
	assert.Equal(t, "Integrated Camera: RGB", groups[0].Name)
	assert.Len(t, groups[0].Sources, 3)
	assert.Equal(t, "/dev/video2", groups[0].Sources[2].ID)

	assert.Equal(t, "usb-0000:00:14.0-2", groups[1].ID)
	assert.Equal(t, "/dev/video9", groups[2].ID)
}
