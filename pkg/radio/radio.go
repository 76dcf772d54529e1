// Radio identities, static descriptors and the driver contract.
// The supported radios are a closed set : each identity maps to one
// driver with its own codec, there is no open registry.
package radio

import (
	"context"
	"fmt"

	gochirp "github.com/karoldav/gochirp"
	"github.com/karoldav/gochirp/pkg/channel"
	"github.com/karoldav/gochirp/pkg/image"
)

// ID names one supported radio family.
type ID string

const (
	IDKenwoodTHD74 ID = "thd74"
	IDBaofengUV5R  ID = "uv5r"
)

// All supported identities, in listing order.
var IDs = []ID{IDKenwoodTHD74, IDBaofengUV5R}

// ParseID resolves a user supplied radio name.
func ParseID(s string) (ID, error) {
	for _, id := range IDs {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown radio : %v", s)
}

type PowerLevel struct {
	Name  string
	Watts float64
}

// Descriptor is the static per radio metadata. Instances are
// immutable and identical across runs.
type Descriptor struct {
	Vendor           string
	Model            string
	ImageSize        int
	Channels         int
	ChannelWidth     int
	NameLength       int
	Modes            []channel.Mode
	PowerLevels      []PowerLevel
	HasVariablePower bool
	HasBanks         bool
	Banks            int
}

// ValidMode reports whether the radio supports a mode.
func (d *Descriptor) ValidMode(m channel.Mode) bool {
	for _, valid := range d.Modes {
		if valid == m {
			return true
		}
	}
	return false
}

// ValidPower reports whether the radio declares a power level.
func (d *Descriptor) ValidPower(watts float64) bool {
	for _, level := range d.PowerLevels {
		if level.Watts == watts {
			return true
		}
	}
	return false
}

// Driver is the per radio clone protocol and channel codec.
// Download and Upload own the port for their whole duration and leave
// it at its original baud on every exit path.
type Driver interface {
	Descriptor() Descriptor

	Download(ctx context.Context, port gochirp.Port, progress gochirp.ProgressFunc) (*image.Image, error)
	Upload(ctx context.Context, port gochirp.Port, img *image.Image, progress gochirp.ProgressFunc) error

	// DecodeChannel reads slot n. ok is false for empty slots and
	// for slots whose stored bytes are garbage.
	DecodeChannel(img *image.Image, n int) (ch channel.Channel, ok bool, err error)
	// EncodeChannel writes one channel into the image in place.
	// A channel with RxFreqHz == 0 erases the slot.
	EncodeChannel(img *image.Image, ch channel.Channel) error
}
