package kenwood

import (
	"fmt"
	"strings"

	gochirp "github.com/karoldav/gochirp"
	"github.com/karoldav/gochirp/internal/binfmt"
	"github.com/karoldav/gochirp/internal/bitfield"
	"github.com/karoldav/gochirp/pkg/channel"
	"github.com/karoldav/gochirp/pkg/image"
)

// 40 byte channel record :
//
//	0..3   rx frequency, u32 little endian Hz, 0xFFFFFFFF empty
//	4..7   offset, u32 little endian Hz, meaning depends on duplex
//	8      tuning step index in the low nibble, split step nibble high
//	9      bit 4 DV, bits 1..2 analog mode, bit 3 narrow
//	10     bits 0..1 duplex, bit 2 dtcs, bit 3 cross, bit 6 tone,
//	       bit 7 tsql
//	11     tx CTCSS table index
//	12     bits 0..5 rx CTCSS table index
//	13     bits 0..6 DTCS table index
//	14     bits 0..1 digital squelch
//	15..38 urcall / rpt1 / rpt2, 8 ASCII chars each
//	39     bits 0..6 DV code
//
// The matching 4 byte flag entry holds the band tag, the scan skip
// bit and the bank number.

const (
	emptyFreq = 0xFFFFFFFF

	bandVHF   = 0x00
	band220   = 0x01
	bandUHF   = 0x02
	bandEmpty = 0xFF

	modeBitsAM = 1
)

// Bands the radio accepts, in Hz. Index order matches the flag table
// band tags.
var bands = [][2]uint64{
	{136_000_000, 174_000_000},
	{216_000_000, 260_000_000},
	{400_000_000, 524_000_000},
}

func bandTag(freqHz uint64) (byte, bool) {
	for tag, b := range bands {
		if freqHz >= b[0] && freqHz <= b[1] {
			return byte(tag), true
		}
	}
	return bandEmpty, false
}

func (d *Driver) checkNumber(n int) error {
	if n < 0 || n >= channelCount {
		return &gochirp.ValidationError{Channel: n, Reason: "channel number out of range"}
	}
	return nil
}

func (d *Driver) DecodeChannel(img *image.Image, n int) (channel.Channel, bool, error) {
	if err := d.checkNumber(n); err != nil {
		return channel.Channel{}, false, err
	}
	flag, err := img.Get(flagAddr(n), flagSize)
	if err != nil {
		return channel.Channel{}, false, err
	}
	rec, err := img.Get(RecordAddr(n), recordSize)
	if err != nil {
		return channel.Channel{}, false, err
	}
	rxRaw := binfmt.U32(rec[0:4], true)
	if flag[0] == bandEmpty || rxRaw == emptyFreq || rxRaw == 0 {
		return channel.Channel{}, false, nil
	}
	ch := channel.Channel{
		Number:   n,
		RxFreqHz: uint64(rxRaw),
		OffsetHz: uint64(binfmt.U32(rec[4:8], true)),
		PowerW:   d.Descriptor().PowerLevels[0].Watts,
	}

	stepIdx := bitfield.Extract(rec[8], 0, 4)
	if int(stepIdx) < len(channel.TuningSteps) {
		ch.TuningStepHz = channel.TuningSteps[stepIdx]
	} else {
		ch.TuningStepHz = channel.TuningSteps[0]
	}
	ch.RawSplitStep = bitfield.Extract(rec[8], 4, 4)

	narrow := bitfield.Set(rec[9], 3)
	switch {
	case bitfield.Set(rec[9], 4):
		ch.Mode = channel.ModeDV
	case bitfield.Extract(rec[9], 1, 2) == modeBitsAM:
		ch.Mode = channel.ModeAM
	case narrow:
		ch.Mode = channel.ModeNFM
	default:
		ch.Mode = channel.ModeFM
	}

	ch.Duplex = channel.Duplex(bitfield.Extract(rec[10], 0, 2))
	if ch.Duplex == channel.DuplexSimplex {
		ch.TxFreqHz = ch.RxFreqHz
		ch.OffsetHz = 0
	} else {
		ch.TxFreqHz = txFreq(&ch)
	}

	txIdx := int(rec[11])
	rxIdx := int(bitfield.Extract(rec[12], 0, 6))
	dtcsIdx := int(bitfield.Extract(rec[13], 0, 7))
	switch {
	case bitfield.Set(rec[10], 7):
		ch.ToneMode = channel.ToneTSQL
		ch.TxToneHz = toneAt(rxIdx)
		ch.RxToneHz = ch.TxToneHz
	case bitfield.Set(rec[10], 6):
		ch.ToneMode = channel.ToneTone
		ch.TxToneHz = toneAt(txIdx)
	case bitfield.Set(rec[10], 2):
		ch.ToneMode = channel.ToneDTCS
		if dtcsIdx < len(channel.DtcsCodes) {
			ch.DtcsCode = channel.DtcsCodes[dtcsIdx]
		}
		ch.DtcsPolarity = "NN"
	case bitfield.Set(rec[10], 3):
		ch.ToneMode = channel.ToneCross
		ch.TxToneHz = toneAt(txIdx)
		ch.RxToneHz = toneAt(rxIdx)
	}

	if ch.Mode == channel.ModeDV {
		ch.URCall = decodeCall(rec[15:23])
		ch.Rpt1Call = decodeCall(rec[23:31])
		ch.Rpt2Call = decodeCall(rec[31:39])
		ch.DVCode = int(bitfield.Extract(rec[39], 0, 7))
	}

	ch.Skip = bitfield.Set(flag[1], 7)
	ch.Bank = int(flag[2])

	nameRaw, err := img.Get(nameAddr(n), nameSize)
	if err != nil {
		return channel.Channel{}, false, err
	}
	ch.Name = decodeCall(nameRaw)
	return ch, true, nil
}

func toneAt(idx int) float64 {
	if idx >= 0 && idx < len(channel.Tones) {
		return channel.Tones[idx]
	}
	return channel.Tones[0]
}

func txFreq(ch *channel.Channel) uint64 {
	switch ch.Duplex {
	case channel.DuplexPlus:
		return ch.RxFreqHz + ch.OffsetHz
	case channel.DuplexMinus:
		return ch.RxFreqHz - ch.OffsetHz
	case channel.DuplexSplit:
		return ch.OffsetHz
	}
	return ch.RxFreqHz
}

func decodeCall(raw []byte) string {
	end := len(raw)
	for end > 0 {
		by := raw[end-1]
		if by == 0xFF || by == 0x00 || by == ' ' {
			end--
			continue
		}
		break
	}
	var sb strings.Builder
	for _, by := range raw[:end] {
		if by >= 0x20 && by < 0x7F {
			sb.WriteByte(by)
		}
	}
	return sb.String()
}

func (d *Driver) EncodeChannel(img *image.Image, ch channel.Channel) error {
	if err := d.checkNumber(ch.Number); err != nil {
		return err
	}
	flag, err := img.Get(flagAddr(ch.Number), flagSize)
	if err != nil {
		return err
	}
	rec, err := img.Get(RecordAddr(ch.Number), recordSize)
	if err != nil {
		return err
	}
	nameRaw, err := img.Get(nameAddr(ch.Number), nameSize)
	if err != nil {
		return err
	}
	if ch.Empty() {
		// Deleting clears the record and the flag entry, nothing else
		for i := range rec {
			rec[i] = 0xFF
		}
		for i := range flag {
			flag[i] = 0xFF
		}
		return nil
	}
	if err := d.validate(&ch); err != nil {
		return err
	}

	for i := range rec {
		rec[i] = 0
	}
	binfmt.PutU32(rec[0:4], uint32(ch.RxFreqHz), true)
	offset := ch.OffsetHz
	if ch.Duplex == channel.DuplexSimplex {
		offset = 0
	}
	binfmt.PutU32(rec[4:8], uint32(offset), true)

	stepIdx := channel.StepIndex(ch.TuningStepHz)
	if stepIdx < 0 {
		stepIdx = 0
	}
	rec[8] = bitfield.Insert(0, 0, 4, byte(stepIdx))
	rec[8] = bitfield.Insert(rec[8], 4, 4, ch.RawSplitStep&0x0F)

	switch ch.Mode {
	case channel.ModeDV:
		rec[9] = bitfield.Insert(rec[9], 4, 1, 1)
	case channel.ModeAM:
		rec[9] = bitfield.Insert(rec[9], 1, 2, modeBitsAM)
	case channel.ModeNFM:
		rec[9] = bitfield.Insert(rec[9], 3, 1, 1)
	}

	rec[10] = bitfield.Insert(rec[10], 0, 2, byte(ch.Duplex))
	switch ch.ToneMode {
	case channel.ToneTone:
		rec[10] = bitfield.Insert(rec[10], 6, 1, 1)
		rec[11] = byte(channel.ToneIndex(ch.TxToneHz))
	case channel.ToneTSQL:
		rec[10] = bitfield.Insert(rec[10], 7, 1, 1)
		rec[11] = byte(channel.ToneIndex(ch.TxToneHz))
		rec[12] = bitfield.Insert(rec[12], 0, 6, byte(channel.ToneIndex(ch.TxToneHz)))
	case channel.ToneDTCS:
		rec[10] = bitfield.Insert(rec[10], 2, 1, 1)
		rec[13] = bitfield.Insert(rec[13], 0, 7, byte(channel.DtcsIndex(ch.DtcsCode)))
	case channel.ToneCross:
		rec[10] = bitfield.Insert(rec[10], 3, 1, 1)
		rec[11] = byte(channel.ToneIndex(ch.TxToneHz))
		rec[12] = bitfield.Insert(rec[12], 0, 6, byte(channel.ToneIndex(ch.RxToneHz)))
	}

	encodeCall(rec[15:23], ch.URCall)
	encodeCall(rec[23:31], ch.Rpt1Call)
	encodeCall(rec[31:39], ch.Rpt2Call)
	if ch.Mode == channel.ModeDV {
		rec[39] = bitfield.Insert(rec[39], 0, 7, byte(ch.DVCode&0x7F))
	}

	tag, _ := bandTag(ch.RxFreqHz)
	flag[0] = tag
	flag[1] = 0
	if ch.Skip {
		flag[1] = bitfield.Insert(flag[1], 7, 1, 1)
	}
	flag[2] = byte(ch.Bank)
	flag[3] = 0xFF

	encodeName(nameRaw, ch.Name)
	return nil
}

func (d *Driver) validate(ch *channel.Channel) error {
	desc := d.Descriptor()
	if !desc.ValidMode(ch.Mode) {
		return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("mode %v not supported", ch.Mode)}
	}
	if _, ok := bandTag(ch.RxFreqHz); !ok {
		return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("frequency %v Hz outside supported bands", ch.RxFreqHz)}
	}
	if ch.Duplex == channel.DuplexSplit {
		if _, ok := bandTag(ch.OffsetHz); !ok {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: "split TX frequency outside supported bands"}
		}
	}
	if ch.Bank < 0 || ch.Bank >= desc.Banks {
		return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("bank %v out of range", ch.Bank)}
	}
	switch ch.ToneMode {
	case channel.ToneTone, channel.ToneTSQL:
		if channel.ToneIndex(ch.TxToneHz) < 0 {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown CTCSS tone %v", ch.TxToneHz)}
		}
	case channel.ToneDTCS:
		if channel.DtcsIndex(ch.DtcsCode) < 0 {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown DTCS code %v", ch.DtcsCode)}
		}
	case channel.ToneCross:
		if channel.ToneIndex(ch.TxToneHz) < 0 || channel.ToneIndex(ch.RxToneHz) < 0 {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: "unknown CTCSS tone in cross mode"}
		}
	}
	for _, call := range []string{ch.URCall, ch.Rpt1Call, ch.Rpt2Call} {
		if len(call) > 8 {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("callsign %q longer than 8 chars", call)}
		}
	}
	return nil
}

func encodeCall(dst []byte, call string) {
	for i := range dst {
		if i < len(call) {
			dst[i] = call[i]
		} else {
			dst[i] = ' '
		}
	}
}

func encodeName(dst []byte, name string) {
	for i := range dst {
		if i < len(name) {
			dst[i] = name[i]
		} else {
			dst[i] = ' '
		}
	}
}
