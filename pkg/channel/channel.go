// Normalized channel model shared by all radio drivers.
package channel

type Mode uint8

const (
	ModeFM Mode = iota
	ModeNFM
	ModeAM
	ModeDV
	ModeLSB
	ModeUSB
	ModeCW
	ModeRTTY
)

func (m Mode) String() string {
	switch m {
	case ModeFM:
		return "FM"
	case ModeNFM:
		return "NFM"
	case ModeAM:
		return "AM"
	case ModeDV:
		return "DV"
	case ModeLSB:
		return "LSB"
	case ModeUSB:
		return "USB"
	case ModeCW:
		return "CW"
	case ModeRTTY:
		return "RTTY"
	}
	return "?"
}

type Duplex uint8

const (
	DuplexSimplex Duplex = iota
	DuplexPlus
	DuplexMinus
	DuplexSplit
)

func (d Duplex) String() string {
	switch d {
	case DuplexPlus:
		return "+"
	case DuplexMinus:
		return "-"
	case DuplexSplit:
		return "split"
	}
	return ""
}

type ToneMode uint8

const (
	ToneNone ToneMode = iota
	ToneTone
	ToneTSQL
	ToneDTCS
	ToneCross
)

func (tm ToneMode) String() string {
	switch tm {
	case ToneTone:
		return "Tone"
	case ToneTSQL:
		return "TSQL"
	case ToneDTCS:
		return "DTCS"
	case ToneCross:
		return "Cross"
	}
	return ""
}

// A single editable memory channel. RxFreqHz == 0 means the slot is
// unused ; drivers never surface such channels.
type Channel struct {
	Number   int
	RxFreqHz uint64
	TxFreqHz uint64
	Name     string
	Mode     Mode
	Duplex   Duplex
	// Shift for DuplexPlus/DuplexMinus, TX frequency for DuplexSplit
	OffsetHz     uint64
	ToneMode ToneMode
	TxToneHz float64
	RxToneHz float64
	DtcsCode int
	// Two letters, transmit side then receive side, each N or R
	DtcsPolarity string
	// Cross scheme, transmit side then receive side, e.g.
	// CrossToneDtcs. Only meaningful when ToneMode == ToneCross.
	CrossMode string
	TuningStepHz uint32
	// Output power in watts, one of the radio's declared levels
	PowerW float64
	// Omit from scan
	Skip bool
	// Memory bank, radios without banks ignore this
	Bank int

	// D-STAR fields, meaningful only when Mode == ModeDV
	URCall   string
	Rpt1Call string
	Rpt2Call string
	DVCode   int

	// Split tuning step nibble carried through undocumented, see the
	// Kenwood codec
	RawSplitStep byte
}

// Empty reports whether the slot is unused.
func (c *Channel) Empty() bool {
	return c.RxFreqHz == 0
}

// Cross schemes. Combinations that collapse into a plain tone mode
// (tone and nothing, both sides equal) are not listed, those are
// ToneTone / ToneTSQL / ToneDTCS.
const (
	CrossNoneTone = "->Tone"
	CrossNoneDtcs = "->DTCS"
	CrossToneTone = "Tone->Tone"
	CrossToneDtcs = "Tone->DTCS"
	CrossDtcsNone = "DTCS->"
	CrossDtcsTone = "DTCS->Tone"
)
