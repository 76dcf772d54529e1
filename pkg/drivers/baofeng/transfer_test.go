package baofeng

import (
	"bytes"
	"context"
	"testing"

	gochirp "github.com/karoldav/gochirp"
	"github.com/karoldav/gochirp/pkg/image"
	"github.com/karoldav/gochirp/pkg/serial/serialtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testIdent = []byte{0xAA, 0x35, 0x52, 0x00, 0x01, 0x02, 0x03, 0x04}

// handshakeScript plays the radio side of a successful handshake.
// With failFirstMagic the radio ignores the first magic variant the
// way newer firmware does.
func handshakeScript(failFirstMagic bool) []serialtest.Exchange {
	var script []serialtest.Exchange
	if failFirstMagic {
		script = append(script, serialtest.Exchange{Expect: magicA})
		script = append(script, serialtest.Exchange{Expect: magicB, Respond: []byte{ack}})
	} else {
		script = append(script, serialtest.Exchange{Expect: magicA, Respond: []byte{ack}})
	}
	script = append(script,
		serialtest.Exchange{Expect: []byte{cmdIdent}, Respond: append(append([]byte{}, testIdent...), identEnd)},
		serialtest.Exchange{Expect: []byte{ack}, Respond: []byte{ack}},
	)
	return script
}

func testRadioData() []byte {
	data := make([]byte, radioSize)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func downloadScript(data []byte, failFirstMagic bool) []serialtest.Exchange {
	script := handshakeScript(failFirstMagic)
	for addr := 0; addr < radioSize; addr += downloadBlock {
		req := []byte{cmdRead, byte(addr >> 8), byte(addr), downloadBlock}
		resp := []byte{cmdWrite, byte(addr >> 8), byte(addr), downloadBlock}
		resp = append(resp, data[addr:addr+downloadBlock]...)
		script = append(script,
			serialtest.Exchange{Expect: req, Respond: resp},
			serialtest.Exchange{Expect: []byte{ack}},
		)
	}
	return script
}

func TestDownloadMagicVariantFallback(t *testing.T) {
	data := testRadioData()
	port := serialtest.New(9600, downloadScript(data, true))
	img, err := New().Download(context.Background(), port, nil)
	require.NoError(t, err)
	require.Equal(t, fileSize, img.Len())

	header, _ := img.Get(0, headerSize)
	assert.Equal(t, testIdent, header, "image starts with the served ident")
	body, _ := img.Get(headerSize, radioSize)
	assert.Equal(t, data, body)

	// Exactly one fallback : magic A once, then magic B once
	assert.Equal(t, 1, bytes.Count(port.WriteLog, magicA))
	assert.Equal(t, 1, bytes.Count(port.WriteLog, magicB))
}

func TestDownloadFirstVariantGoodEnough(t *testing.T) {
	data := testRadioData()
	port := serialtest.New(9600, downloadScript(data, false))
	img, err := New().Download(context.Background(), port, nil)
	require.NoError(t, err)
	assert.Equal(t, fileSize, img.Len())
	assert.Equal(t, 0, bytes.Count(port.WriteLog, magicB))
}

func TestHandshakeFailsAfterBothVariants(t *testing.T) {
	port := serialtest.New(9600, nil)
	_, err := New().Download(context.Background(), port, nil)
	assert.ErrorIs(t, err, gochirp.ErrHandshakeFailed)
	assert.Equal(t, 1, bytes.Count(port.WriteLog, magicA))
	assert.Equal(t, 1, bytes.Count(port.WriteLog, magicB))
}

func TestHandshakeLeavesControlLinesLow(t *testing.T) {
	port := serialtest.New(9600, handshakeScript(false))
	d := New()
	ident, err := d.handshake(port)
	require.NoError(t, err)
	assert.Equal(t, testIdent, ident)
	assert.False(t, port.Dtr)
	assert.False(t, port.Rts)
}

func TestDownloadTimeoutAfterHandshake(t *testing.T) {
	// The radio answers the handshake, then plays dead
	port := serialtest.New(9600, handshakeScript(false))
	_, err := New().Download(context.Background(), port, nil)
	assert.ErrorIs(t, err, gochirp.ErrTimeout)
}

// allowedUploadAddrs lists every radio address an upload may write,
// in order.
func allowedUploadAddrs() []int {
	var addrs []int
	for addr := 0; addr < radioSize; addr += uploadBlock {
		if !inSkipRange(addr, uploadBlock) {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

func TestUploadSkipsCalibrationRegions(t *testing.T) {
	data := testRadioData()
	img := testImage()
	require.NoError(t, img.Put(0, testIdent))
	require.NoError(t, img.Put(headerSize, data))

	script := handshakeScript(false)
	for _, addr := range allowedUploadAddrs() {
		frame := []byte{cmdWrite, byte(addr >> 8), byte(addr), uploadBlock}
		frame = append(frame, data[addr:addr+uploadBlock]...)
		script = append(script, serialtest.Exchange{Expect: frame, Respond: []byte{ack}})
	}
	port := serialtest.New(9600, script)
	err := New().Upload(context.Background(), port, img, nil)
	require.NoError(t, err)
	assert.Equal(t, len(script), port.Consumed(), "every scripted block written, none extra")

	// The calibration blocks really are absent from the wire
	for _, addr := range []int{0x0CF0, 0x0D00, 0x0DF0, 0x0E00} {
		frame := []byte{cmdWrite, byte(addr >> 8), byte(addr), uploadBlock}
		assert.Equal(t, 0, bytes.Count(port.WriteLog, frame[:4]), "block x%04X", addr)
	}
	// 0x180 blocks in the region, 4 of them masked by the two ranges
	assert.Len(t, allowedUploadAddrs(), radioSize/uploadBlock-4)
}

func TestUploadRejectsWrongImageSize(t *testing.T) {
	port := serialtest.New(9600, nil)
	err := New().Upload(context.Background(), port, image.New(radioSize, "uv5r"), nil)
	assert.ErrorIs(t, err, gochirp.ErrOutOfRange)
}

func TestUploadBadAckIsProtocolError(t *testing.T) {
	data := testRadioData()
	img := testImage()
	require.NoError(t, img.Put(0, testIdent))
	require.NoError(t, img.Put(headerSize, data))

	script := handshakeScript(false)
	frame := []byte{cmdWrite, 0, 0, uploadBlock}
	frame = append(frame, data[0:uploadBlock]...)
	script = append(script, serialtest.Exchange{Expect: frame, Respond: []byte{0x15}})
	port := serialtest.New(9600, script)
	err := New().Upload(context.Background(), port, img, nil)
	assert.ErrorIs(t, err, gochirp.ErrProtocol)
}

func TestDownloadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	port := serialtest.New(9600, downloadScript(testRadioData(), false))
	_, err := New().Download(ctx, port, nil)
	assert.ErrorIs(t, err, gochirp.ErrCancelled)
}
