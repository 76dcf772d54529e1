package serial

import (
	"testing"
	"time"

	gochirp "github.com/karoldav/gochirp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bugst "go.bug.st/serial"
)

func TestToMode(t *testing.T) {
	mode, err := toMode(gochirp.Config{
		Baud: 9600, DataBits: 8, Parity: gochirp.ParityNone,
		StopBits: 1, Timeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, bugst.NoParity, mode.Parity)
	assert.Equal(t, bugst.OneStopBit, mode.StopBits)

	mode, err = toMode(gochirp.Config{
		Baud: 57600, DataBits: 7, Parity: gochirp.ParityEven, StopBits: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, bugst.EvenParity, mode.Parity)
	assert.Equal(t, bugst.TwoStopBits, mode.StopBits)
}

func TestToModeRejectsUnsupported(t *testing.T) {
	_, err := toMode(gochirp.Config{Baud: 9600, DataBits: 8, StopBits: 3})
	assert.Error(t, err)
	_, err = toMode(gochirp.Config{Baud: 9600, DataBits: 9, StopBits: 1})
	assert.Error(t, err)
	_, err = toMode(gochirp.Config{Baud: 9600, DataBits: 8, StopBits: 1,
		Flow: gochirp.FlowHardware})
	assert.Error(t, err)
}

func TestOpenMissingPort(t *testing.T) {
	_, err := Open("/dev/does-not-exist", gochirp.Config{
		Baud: 9600, DataBits: 8, StopBits: 1, Timeout: time.Second,
	})
	assert.Error(t, err)
}
