package baofeng

import (
	"fmt"
	"math"
	"strings"

	gochirp "github.com/karoldav/gochirp"
	"github.com/karoldav/gochirp/internal/bcd"
	"github.com/karoldav/gochirp/internal/binfmt"
	"github.com/karoldav/gochirp/internal/bitfield"
	"github.com/karoldav/gochirp/pkg/channel"
	"github.com/karoldav/gochirp/pkg/image"
)

// 16 byte channel record, file offsets are radio address + 8 :
//
//	0..3   rx frequency, BCD little endian, 10 Hz units
//	4..7   tx frequency, same encoding
//	8..9   tx tone, u16 little endian
//	10..11 rx tone, u16 little endian
//	12     bit 3 isuhf, bits 4..7 scode ; bits 0..2 stay clear
//	13     bit 4 scan add
//	14     bits 0..1 low power, bit 2 narrow
//	15     other per channel flags, carried opaque

const (
	toneNone = 0xFFFF
	// CTCSS values are Hz*10, anything from 1 up to this is a tone ;
	// 0 decodes as no tone
	toneCtcssMax = 0x270F
	// Top nibbles of the DTCS encodings
	toneDtcsNormal   = 0x8
	toneDtcsReversed = 0xC

	// TX more than this far from RX decodes as split
	maxShiftHz = 70_000_000
)

func recordAddr(n int) int { return headerSize + recordSize*n }
func nameAddr(n int) int   { return headerSize + namesBase + recordSize*n }

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
	rec, err := img.Get(recordAddr(n), recordSize)
	if err != nil {
		return channel.Channel{}, false, err
	}
	// Uninitialized slots hold garbage BCD, never surface them
	if !bcd.Valid(rec[0:4]) {
		return channel.Channel{}, false, nil
	}
	rxRaw, _ := bcd.ToUint(rec[0:4], true)
	if rxRaw == 0 {
		return channel.Channel{}, false, nil
	}
	ch := channel.Channel{Number: n, RxFreqHz: rxRaw * 10}

	ch.TxFreqHz = ch.RxFreqHz
	if bcd.Valid(rec[4:8]) {
		if txRaw, err := bcd.ToUint(rec[4:8], true); err == nil && txRaw != 0 {
			ch.TxFreqHz = txRaw * 10
		}
	}
	switch {
	case ch.TxFreqHz == ch.RxFreqHz:
		ch.Duplex = channel.DuplexSimplex
	case ch.TxFreqHz > ch.RxFreqHz && ch.TxFreqHz-ch.RxFreqHz <= maxShiftHz:
		ch.Duplex = channel.DuplexPlus
		ch.OffsetHz = ch.TxFreqHz - ch.RxFreqHz
	case ch.RxFreqHz > ch.TxFreqHz && ch.RxFreqHz-ch.TxFreqHz <= maxShiftHz:
		ch.Duplex = channel.DuplexMinus
		ch.OffsetHz = ch.RxFreqHz - ch.TxFreqHz
	default:
		ch.Duplex = channel.DuplexSplit
		ch.OffsetHz = ch.TxFreqHz
	}

	txTone := binfmt.U16(rec[8:10], true)
	rxTone := binfmt.U16(rec[10:12], true)
	decodeTones(&ch, txTone, rxTone)

	if bitfield.Extract(rec[14], 0, 2) != 0 {
		// Tri power variants store 2 for their middle level, the
		// descriptor only declares two so both map to Low
		ch.PowerW = 1
	} else {
		ch.PowerW = 4
	}
	if bitfield.Set(rec[14], 2) {
		ch.Mode = channel.ModeNFM
	} else {
		ch.Mode = channel.ModeFM
	}
	ch.Skip = !bitfield.Set(rec[13], 4)

	nameRaw, err := img.Get(nameAddr(n), nameSize)
	if err != nil {
		return channel.Channel{}, false, err
	}
	ch.Name = decodeName(nameRaw)
	return ch, true, nil
}

func decodeTones(ch *channel.Channel, txTone, rxTone uint16) {
	txHz, txCode, txPol, txKind := splitTone(txTone)
	rxHz, rxCode, rxPol, rxKind := splitTone(rxTone)
	switch {
	case txKind == toneKindNone && rxKind == toneKindNone:
		ch.ToneMode = channel.ToneNone
	case txKind == toneKindCtcss && rxKind == toneKindNone:
		ch.ToneMode = channel.ToneTone
		ch.TxToneHz = txHz
	case txKind == toneKindCtcss && rxKind == toneKindCtcss && txHz == rxHz:
		ch.ToneMode = channel.ToneTSQL
		ch.TxToneHz = rxHz
		ch.RxToneHz = rxHz
	case txKind == toneKindDtcs && rxKind == toneKindDtcs && txCode == rxCode:
		ch.ToneMode = channel.ToneDTCS
		ch.DtcsCode = txCode
		ch.DtcsPolarity = txPol + rxPol
	default:
		ch.ToneMode = channel.ToneCross
		txSide, rxSide := "", ""
		switch txKind {
		case toneKindCtcss:
			ch.TxToneHz = txHz
			txSide = "Tone"
		case toneKindDtcs:
			ch.DtcsCode = txCode
			txSide = "DTCS"
		}
		switch rxKind {
		case toneKindCtcss:
			ch.RxToneHz = rxHz
			rxSide = "Tone"
		case toneKindDtcs:
			// One code field for both sides, the tx code wins when
			// an exotic record carries two different ones
			if ch.DtcsCode == 0 {
				ch.DtcsCode = rxCode
			}
			rxSide = "DTCS"
		}
		if txKind == toneKindDtcs || rxKind == toneKindDtcs {
			ch.DtcsPolarity = polOrN(txPol) + polOrN(rxPol)
		}
		ch.CrossMode = txSide + "->" + rxSide
	}
}

func polOrN(p string) string {
	if p == "" {
		return "N"
	}
	return p
}

// polReversed reads one side of a two letter polarity string.
func polReversed(s string, side int) bool {
	return side < len(s) && s[side] == 'R'
}

func crossSides(mode string) (tx string, rx string, ok bool) {
	parts := strings.SplitN(mode, "->", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	for _, side := range parts {
		if side != "" && side != "Tone" && side != "DTCS" {
			return "", "", false
		}
	}
	return parts[0], parts[1], true
}

type toneKind uint8

const (
	toneKindNone toneKind = iota
	toneKindCtcss
	toneKindDtcs
)

func splitTone(v uint16) (hz float64, code int, polarity string, kind toneKind) {
	switch {
	case v == toneNone || v == 0:
		return 0, 0, "", toneKindNone
	case v <= toneCtcssMax:
		return float64(v) / 10, 0, "", toneKindCtcss
	case v>>12 == toneDtcsNormal || v>>12 == toneDtcsReversed:
		code = int(v>>8&0xF)*100 + int(v>>4&0xF)*10 + int(v&0xF)
		polarity = "N"
		if v>>12 == toneDtcsReversed {
			polarity = "R"
		}
		return 0, code, polarity, toneKindDtcs
	default:
		// Reserved range, treat as no tone
		return 0, 0, "", toneKindNone
	}
}

func makeTone(hz float64) uint16 {
	return uint16(math.Round(hz * 10))
}

func makeDtcs(code int, reversed bool) (uint16, error) {
	if channel.DtcsIndex(code) < 0 {
		return 0, fmt.Errorf("not a standard DTCS code : %v", code)
	}
	v := uint16(code/100)<<8 | uint16(code/10%10)<<4 | uint16(code%10)
	if reversed {
		return uint16(toneDtcsReversed)<<12 | v, nil
	}
	return uint16(toneDtcsNormal)<<12 | v, nil
}

func decodeName(raw []byte) string {
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
	rec, err := img.Get(recordAddr(ch.Number), recordSize)
	if err != nil {
		return err
	}
	nameRaw, err := img.Get(nameAddr(ch.Number), nameSize)
	if err != nil {
		return err
	}
	if ch.Empty() {
		for i := range rec {
			rec[i] = 0xFF
		}
		for i := range nameRaw {
			nameRaw[i] = 0x00
		}
		return nil
	}
	if err := d.validate(&ch); err != nil {
		return err
	}

	occupied := bcd.Valid(rec[0:4])
	txFreq := ch.RxFreqHz
	switch ch.Duplex {
	case channel.DuplexPlus:
		txFreq = ch.RxFreqHz + ch.OffsetHz
	case channel.DuplexMinus:
		txFreq = ch.RxFreqHz - ch.OffsetHz
	case channel.DuplexSplit:
		txFreq = ch.OffsetHz
	}
	rxBcd, err := bcd.FromUint(ch.RxFreqHz/10, 4, true)
	if err != nil {
		return &gochirp.ValidationError{Channel: ch.Number, Reason: err.Error()}
	}
	txBcd, err := bcd.FromUint(txFreq/10, 4, true)
	if err != nil {
		return &gochirp.ValidationError{Channel: ch.Number, Reason: err.Error()}
	}
	txTone, rxTone, err := d.encodeTones(&ch)
	if err != nil {
		return err
	}
	copy(rec[0:4], rxBcd)
	copy(rec[4:8], txBcd)
	binfmt.PutU16(rec[8:10], txTone, true)
	binfmt.PutU16(rec[10:12], rxTone, true)

	// Keep the scode the user programmed from the keypad, recompute
	// the band bit, leave bits 0..2 clear
	scode := byte(0)
	if occupied {
		scode = bitfield.Extract(rec[12], 4, 4)
	}
	rec[12] = 0
	if ch.RxFreqHz >= 300_000_000 {
		rec[12] = bitfield.Insert(rec[12], 3, 1, 1)
	}
	rec[12] = bitfield.Insert(rec[12], 4, 4, scode)

	flags13 := byte(0)
	if occupied {
		flags13 = rec[13] &^ (1 << 4)
	}
	if !ch.Skip {
		flags13 |= 1 << 4
	}
	rec[13] = flags13

	flags14 := byte(0)
	if occupied {
		flags14 = rec[14] &^ 0b0000_0111
	}
	if ch.PowerW == 1 {
		flags14 |= 1
	}
	if ch.Mode == channel.ModeNFM {
		flags14 |= 1 << 2
	}
	rec[14] = flags14

	if !occupied {
		rec[15] = 0
	}

	encodeName(nameRaw, ch.Name)
	return nil
}

func (d *Driver) validate(ch *channel.Channel) error {
	desc := d.Descriptor()
	if !desc.ValidMode(ch.Mode) {
		return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("mode %v not supported", ch.Mode)}
	}
	if !desc.ValidPower(ch.PowerW) {
		return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("power %v W not supported", ch.PowerW)}
	}
	if ch.RxFreqHz%10 != 0 {
		return &gochirp.ValidationError{Channel: ch.Number, Reason: "frequency not a multiple of 10 Hz"}
	}
	if ch.Duplex == channel.DuplexSplit && (ch.OffsetHz < 100_000 || ch.OffsetHz > 999_999_990) {
		return &gochirp.ValidationError{Channel: ch.Number, Reason: "split TX frequency out of range"}
	}
	switch ch.ToneMode {
	case channel.ToneTone:
		if channel.ToneIndex(ch.TxToneHz) < 0 {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown CTCSS tone %v", ch.TxToneHz)}
		}
	case channel.ToneTSQL:
		if channel.ToneIndex(ch.TxToneHz) < 0 {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown CTCSS tone %v", ch.TxToneHz)}
		}
		if ch.RxToneHz != 0 && ch.RxToneHz != ch.TxToneHz {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: "tone squelch needs matching tones"}
		}
	case channel.ToneDTCS:
		if channel.DtcsIndex(ch.DtcsCode) < 0 {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown DTCS code %v", ch.DtcsCode)}
		}
		if !validPolarity(ch.DtcsPolarity) {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("bad DTCS polarity %q", ch.DtcsPolarity)}
		}
	case channel.ToneCross:
		txSide, rxSide, ok := crossSides(ch.CrossMode)
		if !ok {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown cross scheme %q", ch.CrossMode)}
		}
		// Schemes the plain tone modes already cover would not decode
		// back as cross, refuse them rather than alias silently
		switch {
		case txSide == "" && rxSide == "":
			return &gochirp.ValidationError{Channel: ch.Number, Reason: "cross scheme with no tones, use no tone mode"}
		case txSide == "Tone" && rxSide == "":
			return &gochirp.ValidationError{Channel: ch.Number, Reason: "tx tone only, use tone mode"}
		case txSide == "Tone" && rxSide == "Tone" && ch.TxToneHz == ch.RxToneHz:
			return &gochirp.ValidationError{Channel: ch.Number, Reason: "matching cross tones, use tone squelch"}
		case txSide == "DTCS" && rxSide == "DTCS":
			return &gochirp.ValidationError{Channel: ch.Number, Reason: "DTCS both ways is DTCS mode"}
		}
		if txSide == "Tone" && channel.ToneIndex(ch.TxToneHz) < 0 {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown CTCSS tone %v", ch.TxToneHz)}
		}
		if rxSide == "Tone" && channel.ToneIndex(ch.RxToneHz) < 0 {
			return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown CTCSS tone %v", ch.RxToneHz)}
		}
		if txSide == "DTCS" || rxSide == "DTCS" {
			if channel.DtcsIndex(ch.DtcsCode) < 0 {
				return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown DTCS code %v", ch.DtcsCode)}
			}
			if !validPolarity(ch.DtcsPolarity) {
				return &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("bad DTCS polarity %q", ch.DtcsPolarity)}
			}
		}
	}
	return nil
}

func validPolarity(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		if s[i] != 'N' && s[i] != 'R' {
			return false
		}
	}
	return true
}

func (d *Driver) encodeTones(ch *channel.Channel) (txTone, rxTone uint16, err error) {
	txTone, rxTone = toneNone, toneNone
	switch ch.ToneMode {
	case channel.ToneTone:
		txTone = makeTone(ch.TxToneHz)
	case channel.ToneTSQL:
		txTone = makeTone(ch.TxToneHz)
		rxTone = txTone
	case channel.ToneDTCS:
		// Each direction carries its own polarity nibble
		tx, err := makeDtcs(ch.DtcsCode, polReversed(ch.DtcsPolarity, 0))
		if err != nil {
			return 0, 0, &gochirp.ValidationError{Channel: ch.Number, Reason: err.Error()}
		}
		rx, err := makeDtcs(ch.DtcsCode, polReversed(ch.DtcsPolarity, 1))
		if err != nil {
			return 0, 0, &gochirp.ValidationError{Channel: ch.Number, Reason: err.Error()}
		}
		txTone, rxTone = tx, rx
	case channel.ToneCross:
		txSide, rxSide, ok := crossSides(ch.CrossMode)
		if !ok {
			return 0, 0, &gochirp.ValidationError{Channel: ch.Number, Reason: fmt.Sprintf("unknown cross scheme %q", ch.CrossMode)}
		}
		tx, err := encodeSide(txSide, ch.TxToneHz, ch.DtcsCode, polReversed(ch.DtcsPolarity, 0))
		if err != nil {
			return 0, 0, &gochirp.ValidationError{Channel: ch.Number, Reason: err.Error()}
		}
		rx, err := encodeSide(rxSide, ch.RxToneHz, ch.DtcsCode, polReversed(ch.DtcsPolarity, 1))
		if err != nil {
			return 0, 0, &gochirp.ValidationError{Channel: ch.Number, Reason: err.Error()}
		}
		txTone, rxTone = tx, rx
	}
	return txTone, rxTone, nil
}

// encodeSide renders one direction of a cross tone pair.
func encodeSide(side string, hz float64, code int, reversed bool) (uint16, error) {
	switch side {
	case "":
		return toneNone, nil
	case "Tone":
		return makeTone(hz), nil
	default:
		return makeDtcs(code, reversed)
	}
}

func encodeName(dst []byte, name string) {
	for i := range dst {
		if i < len(name) {
			dst[i] = name[i]
		} else {
			dst[i] = 0x00
		}
	}
}
