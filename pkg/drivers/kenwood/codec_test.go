package kenwood

import (
	"testing"

	gochirp "github.com/karoldav/gochirp"
	"github.com/karoldav/gochirp/internal/binfmt"
	"github.com/karoldav/gochirp/pkg/channel"
	"github.com/karoldav/gochirp/pkg/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRecordAddrGroupPadding(t *testing.T) {
	assert.Equal(t, 0x4000, RecordAddr(0))
	assert.Equal(t, 0x4028, RecordAddr(1))
	assert.Equal(t, 0x4100, RecordAddr(6))
	assert.Equal(t, 0x4550, RecordAddr(32))
	assert.Equal(t, 0x46A0, RecordAddr(40))
}

func testImage() *image.Image {
	return image.New(imageSize, "thd74")
}

// plantChannel writes a raw record the way the radio itself would,
// without going through the encoder.
func plantChannel(t *testing.T, img *image.Image, n int, rxHz uint32, duplex byte, offsetHz uint32, band byte) {
	t.Helper()
	rec := make([]byte, recordSize)
	binfmt.PutU32(rec[0:4], rxHz, true)
	binfmt.PutU32(rec[4:8], offsetHz, true)
	rec[10] = duplex
	for i := 15; i < 39; i++ {
		rec[i] = ' '
	}
	require.NoError(t, img.Put(RecordAddr(n), rec))
	require.NoError(t, img.Put(flagAddr(n), []byte{band, 0x00, 0x00, 0xFF}))
	name := make([]byte, nameSize)
	for i := range name {
		name[i] = ' '
	}
	require.NoError(t, img.Put(nameAddr(n), name))
}

func TestDecodeReferenceChannels(t *testing.T) {
	d := New()
	img := testImage()
	plantChannel(t, img, 0, 144_390_000, 0b00, 0, bandVHF)
	plantChannel(t, img, 32, 448_675_000, 0b10, 5_000_000, bandUHF)
	plantChannel(t, img, 40, 441_950_000, 0b01, 5_000_000, bandUHF)

	ch, ok, err := d.DecodeChannel(img, 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 144_390_000, ch.RxFreqHz)
	assert.Equal(t, channel.DuplexSimplex, ch.Duplex)
	assert.Equal(t, channel.ModeFM, ch.Mode)
	assert.False(t, ch.Skip)
	assert.Equal(t, 0, ch.Bank)

	ch, ok, err = d.DecodeChannel(img, 32)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 448_675_000, ch.RxFreqHz)
	assert.Equal(t, channel.DuplexMinus, ch.Duplex)
	assert.EqualValues(t, 443_675_000, ch.TxFreqHz)

	ch, ok, err = d.DecodeChannel(img, 40)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 441_950_000, ch.RxFreqHz)
	assert.Equal(t, channel.DuplexPlus, ch.Duplex)
	assert.EqualValues(t, 446_950_000, ch.TxFreqHz)
}

func TestEmptyDetection(t *testing.T) {
	d := New()
	img := testImage()

	// Factory image : flag 0xFF everywhere
	_, ok, err := d.DecodeChannel(img, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	// Flag claims occupied but the record was never written
	require.NoError(t, img.Put(flagAddr(3), []byte{bandVHF, 0, 0, 0xFF}))
	_, ok, err = d.DecodeChannel(img, 3)
	require.NoError(t, err)
	assert.False(t, ok, "rx 0xFFFFFFFF is empty")

	// Zeroed record is empty too
	require.NoError(t, img.Put(RecordAddr(3), make([]byte, recordSize)))
	_, ok, err = d.DecodeChannel(img, 3)
	require.NoError(t, err)
	assert.False(t, ok, "rx 0 is empty")
}

func TestChannelNumberBoundaries(t *testing.T) {
	d := New()
	img := testImage()
	for _, n := range []int{-1, channelCount} {
		_, _, err := d.DecodeChannel(img, n)
		assert.ErrorIs(t, err, gochirp.ErrValidation, "channel %v", n)
	}
	_, _, err := d.DecodeChannel(img, channelCount-1)
	assert.NoError(t, err)
}

func TestTsqlDecodeHasMatchingTones(t *testing.T) {
	d := New()
	img := testImage()
	plantChannel(t, img, 8, 146_940_000, 0b00, 0, bandVHF)
	rec, _ := img.Get(RecordAddr(8), recordSize)
	rec[10] |= 1 << 7
	rec[12] = 12 // 100.0 Hz
	ch, ok, err := d.DecodeChannel(img, 8)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, channel.ToneTSQL, ch.ToneMode)
	assert.Equal(t, 100.0, ch.TxToneHz)
	assert.Equal(t, ch.TxToneHz, ch.RxToneHz)
}

func TestDeletePreservesNeighbours(t *testing.T) {
	d := New()
	img := testImage()
	for _, n := range []int{4, 5, 6} {
		require.NoError(t, d.EncodeChannel(img, channel.Channel{
			Number: n, RxFreqHz: 145_000_000, TxFreqHz: 145_000_000,
			Mode: channel.ModeFM, PowerW: 5, TuningStepHz: 5000, Name: "KEEP",
		}))
	}
	before := img.Clone()
	require.NoError(t, d.EncodeChannel(img, channel.Channel{Number: 5}))

	rec, _ := img.Get(RecordAddr(5), recordSize)
	flag, _ := img.Get(flagAddr(5), flagSize)
	for _, by := range append(append([]byte{}, rec...), flag...) {
		assert.EqualValues(t, 0xFF, by)
	}
	// Nothing outside the deleted channel's record, flag and name
	// moved
	touched := map[int]bool{}
	for i := 0; i < recordSize; i++ {
		touched[RecordAddr(5)+i] = true
	}
	for i := 0; i < flagSize; i++ {
		touched[flagAddr(5)+i] = true
	}
	for i := 0; i < nameSize; i++ {
		touched[nameAddr(5)+i] = true
	}
	for addr, by := range img.Bytes() {
		if !touched[addr] && before.Bytes()[addr] != by {
			t.Fatalf("byte at x%X changed from x%02X to x%02X",
				addr, before.Bytes()[addr], by)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	d := New()
	img := testImage()
	cases := []channel.Channel{
		{Number: 0, RxFreqHz: 145_000_000, Mode: channel.ModeUSB},
		{Number: 0, RxFreqHz: 30_000_000, Mode: channel.ModeFM},
		{Number: 0, RxFreqHz: 145_000_000, Mode: channel.ModeFM, Bank: 10},
		{Number: 0, RxFreqHz: 145_000_000, Mode: channel.ModeFM, Bank: -1},
		{Number: 0, RxFreqHz: 145_000_000, Mode: channel.ModeFM,
			Duplex: channel.DuplexSplit, OffsetHz: 30_000_000},
		{Number: 0, RxFreqHz: 145_000_000, Mode: channel.ModeDV, URCall: "TOOLONGCALL"},
	}
	for i, ch := range cases {
		err := d.EncodeChannel(img, ch)
		assert.ErrorIs(t, err, gochirp.ErrValidation, "case %v", i)
	}
}

func TestSplitStepNibbleIsPreserved(t *testing.T) {
	d := New()
	img := testImage()
	plantChannel(t, img, 12, 145_000_000, 0b00, 0, bandVHF)
	rec, _ := img.Get(RecordAddr(12), recordSize)
	rec[8] = 0x90 // undocumented split step, tuning step index 0

	ch, ok, err := d.DecodeChannel(img, 12)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 0x9, ch.RawSplitStep)

	require.NoError(t, d.EncodeChannel(img, ch))
	rec, _ = img.Get(RecordAddr(12), recordSize)
	assert.EqualValues(t, 0x90, rec[8])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d := New()
	rapid.Check(t, func(t *rapid.T) {
		img := testImage()
		ch := channel.Channel{
			Number:       rapid.IntRange(0, channelCount-1).Draw(t, "number"),
			RxFreqHz:     uint64(rapid.IntRange(0, 7600).Draw(t, "rx"))*5000 + 136_000_000,
			Mode:         channel.ModeFM,
			PowerW:       5,
			TuningStepHz: channel.TuningSteps[rapid.IntRange(0, len(channel.TuningSteps)-1).Draw(t, "step")],
			Name:         rapid.StringMatching(`[A-Z0-9/]{0,16}`).Draw(t, "name"),
			Skip:         rapid.Bool().Draw(t, "skip"),
			Bank:         rapid.IntRange(0, 9).Draw(t, "bank"),
			RawSplitStep: byte(rapid.IntRange(0, 15).Draw(t, "rawstep")),
		}
		switch rapid.IntRange(0, 3).Draw(t, "mode") {
		case 1:
			ch.Mode = channel.ModeNFM
		case 2:
			ch.Mode = channel.ModeAM
		case 3:
			ch.Mode = channel.ModeDV
			ch.URCall = "CQCQCQ"
			ch.Rpt1Call = "KD8XYZ B"
			ch.Rpt2Call = "KD8XYZ G"
			ch.DVCode = rapid.IntRange(0, 99).Draw(t, "dvcode")
		}
		ch.TxFreqHz = ch.RxFreqHz
		switch rapid.IntRange(0, 2).Draw(t, "duplex") {
		case 1:
			ch.Duplex = channel.DuplexPlus
			ch.OffsetHz = 600_000
			ch.TxFreqHz = ch.RxFreqHz + ch.OffsetHz
		case 2:
			ch.Duplex = channel.DuplexMinus
			ch.OffsetHz = 600_000
			ch.TxFreqHz = ch.RxFreqHz - ch.OffsetHz
		}
		switch rapid.IntRange(0, 3).Draw(t, "tone") {
		case 1:
			ch.ToneMode = channel.ToneTone
			ch.TxToneHz = channel.Tones[rapid.IntRange(0, len(channel.Tones)-1).Draw(t, "txtone")]
		case 2:
			ch.ToneMode = channel.ToneTSQL
			ch.TxToneHz = channel.Tones[rapid.IntRange(0, len(channel.Tones)-1).Draw(t, "tsql")]
			ch.RxToneHz = ch.TxToneHz
		case 3:
			ch.ToneMode = channel.ToneDTCS
			ch.DtcsCode = channel.DtcsCodes[rapid.IntRange(0, len(channel.DtcsCodes)-1).Draw(t, "dtcs")]
			ch.DtcsPolarity = "NN"
		}
		if err := d.EncodeChannel(img, ch); err != nil {
			t.Fatalf("encode : %v", err)
		}
		got, ok, err := d.DecodeChannel(img, ch.Number)
		if err != nil || !ok {
			t.Fatalf("decode : ok=%v err=%v", ok, err)
		}
		if got != ch {
			t.Fatalf("round trip mismatch :\n in  %+v\n out %+v", ch, got)
		}
	})
}
