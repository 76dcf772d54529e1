// Orchestration of complete programming operations. A Programmer
// selects the driver for a radio identity, owns the serial port and
// the image for the duration of one operation, and enforces the
// download before upload discipline that keeps global radio settings
// intact.
package session

import (
	"context"
	"errors"
	"fmt"

	gochirp "github.com/karoldav/gochirp"
	"github.com/karoldav/gochirp/pkg/channel"
	"github.com/karoldav/gochirp/pkg/drivers/baofeng"
	"github.com/karoldav/gochirp/pkg/drivers/kenwood"
	"github.com/karoldav/gochirp/pkg/envelope"
	"github.com/karoldav/gochirp/pkg/image"
	"github.com/karoldav/gochirp/pkg/radio"
	"github.com/karoldav/gochirp/pkg/serial"
	log "github.com/sirupsen/logrus"
)

// driver extends the radio.Driver contract with the serial
// configuration a session opens the port with.
type driver interface {
	radio.Driver
	PortConfig() gochirp.Config
}

type Programmer struct {
	// Replaceable so the test suite can hand out scripted ports
	openPort func(name string, cfg gochirp.Config) (gochirp.Port, error)
}

func New() *Programmer {
	return &Programmer{openPort: serial.Open}
}

// NewWithPortOpener is used by tests and by collaborators that bring
// their own transport.
func NewWithPortOpener(open func(name string, cfg gochirp.Config) (gochirp.Port, error)) *Programmer {
	return &Programmer{openPort: open}
}

// The supported radios are a closed set, dispatch is a switch.
func driverFor(id radio.ID) (driver, error) {
	switch id {
	case radio.IDKenwoodTHD74:
		return kenwood.New(), nil
	case radio.IDBaofengUV5R:
		return baofeng.New(), nil
	}
	return nil, fmt.Errorf("no driver for radio : %v", id)
}

// ListSupportedRadios returns the static descriptors, in listing
// order.
func ListSupportedRadios() []radio.Descriptor {
	out := make([]radio.Descriptor, 0, len(radio.IDs))
	for _, id := range radio.IDs {
		d, _ := driverFor(id)
		out = append(out, d.Descriptor())
	}
	return out
}

// Descriptor returns the static metadata for one radio.
func Descriptor(id radio.ID) (radio.Descriptor, error) {
	d, err := driverFor(id)
	if err != nil {
		return radio.Descriptor{}, err
	}
	return d.Descriptor(), nil
}

// Download reads the radio's full memory image.
func (p *Programmer) Download(ctx context.Context, id radio.ID, portName string, progress gochirp.ProgressFunc) (*image.Image, error) {
	d, err := driverFor(id)
	if err != nil {
		return nil, err
	}
	port, err := p.openPort(portName, d.PortConfig())
	if err != nil {
		return nil, err
	}
	defer port.Close()
	img, err := d.Download(ctx, port, progress)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// ApplyEdits encodes each channel into the image in place. Channels
// that fail validation are skipped ; their errors come back so the
// caller can report them, the rest of the batch still applies.
func ApplyEdits(img *image.Image, id radio.ID, channels []channel.Channel) []error {
	d, err := driverFor(id)
	if err != nil {
		return []error{err}
	}
	var errs []error
	for _, ch := range channels {
		if err := d.EncodeChannel(img, ch); err != nil {
			log.Warnf("[SESSION] rejected edit of channel %v : %v", ch.Number, err)
			errs = append(errs, err)
		}
	}
	return errs
}

// Upload programs the given channels into the radio. It always
// downloads the current image first and edits that copy : the image
// carries calibration and global settings outside the channel
// regions, uploading a fresh image would destroy them.
func (p *Programmer) Upload(ctx context.Context, id radio.ID, portName string, channels []channel.Channel, progress gochirp.ProgressFunc) []error {
	d, err := driverFor(id)
	if err != nil {
		return []error{err}
	}
	port, err := p.openPort(portName, d.PortConfig())
	if err != nil {
		return []error{err}
	}
	defer port.Close()

	img, err := d.Download(ctx, port, progress)
	if err != nil {
		return []error{fmt.Errorf("pre upload download : %w", err)}
	}
	errs := ApplyEdits(img, id, channels)
	for _, err := range errs {
		if !errors.Is(err, gochirp.ErrValidation) {
			return errs
		}
	}
	if err := d.Upload(ctx, port, img, progress); err != nil {
		return append(errs, err)
	}
	return errs
}

// ImageToChannels decodes every occupied channel of an image.
func ImageToChannels(id radio.ID, img *image.Image) ([]channel.Channel, error) {
	d, err := driverFor(id)
	if err != nil {
		return nil, err
	}
	desc := d.Descriptor()
	out := make([]channel.Channel, 0, 64)
	for n := 0; n < desc.Channels; n++ {
		ch, ok, err := d.DecodeChannel(img, n)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ch)
		}
	}
	return out, nil
}

// ChannelsToImage builds a fresh image holding only the given
// channels. The result is fine for files and inspection but must
// never be uploaded directly, Upload insists on a downloaded image.
func ChannelsToImage(id radio.ID, channels []channel.Channel) (*image.Image, []error) {
	d, err := driverFor(id)
	if err != nil {
		return nil, []error{err}
	}
	img := image.New(d.Descriptor().ImageSize, string(id))
	return img, ApplyEdits(img, id, channels)
}

// SaveFile persists an image with envelope metadata.
func SaveFile(path string, img *image.Image, id radio.ID) error {
	desc, err := Descriptor(id)
	if err != nil {
		return err
	}
	if img.Len() != desc.ImageSize {
		return fmt.Errorf("%w : image is x%X bytes, %v wants x%X",
			gochirp.ErrOutOfRange, img.Len(), desc.Model, desc.ImageSize)
	}
	return envelope.Save(path, img, desc)
}

// LoadFile reads an image file, detecting the radio from its size.
func LoadFile(path string) (*image.Image, radio.Descriptor, error) {
	img, id, _, err := envelope.Load(path)
	if err != nil {
		return nil, radio.Descriptor{}, err
	}
	desc, err := Descriptor(id)
	if err != nil {
		return nil, radio.Descriptor{}, err
	}
	if img.Len() != desc.ImageSize {
		return nil, radio.Descriptor{}, fmt.Errorf("%w : file image is x%X bytes, %v wants x%X",
			gochirp.ErrOutOfRange, img.Len(), desc.Model, desc.ImageSize)
	}
	return img, desc, nil
}
