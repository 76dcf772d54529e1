package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/karoldav/gochirp/pkg/envelope"
	"github.com/karoldav/gochirp/pkg/radio"
	"github.com/karoldav/gochirp/pkg/session"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

const usage = `usage: gochirp <command> [flags]

commands:
  download   read the radio's memory image into a file
  upload     program channels from an image file into the radio
  parse      inspect an image file

flags:
`

func main() {
	flags := pflag.NewFlagSet("gochirp", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to gochirp.ini (default: ./gochirp.ini if present)")
	portName := flags.StringP("port", "p", "", "serial port, e.g. /dev/ttyUSB0")
	radioName := flags.StringP("radio", "r", "", "radio model: thd74 or uv5r (files auto detect)")
	inPath := flags.StringP("in", "i", "", "input image file")
	outPath := flags.StringP("out", "o", "", "output image file")
	hexRange := flags.String("hex", "", "parse: hex dump addr:len instead of channel listing")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}

	if len(os.Args) < 2 {
		flags.Usage()
		os.Exit(2)
	}
	command := os.Args[1]
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	applyConfig(*configPath, portName, radioName, verbose)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "download":
		err = download(ctx, *radioName, *portName, *outPath)
	case "upload":
		err = upload(ctx, *radioName, *portName, *inPath)
	case "parse":
		err = parse(*inPath, *hexRange)
	default:
		flags.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Errorf("%v failed : %v", command, err)
		os.Exit(1)
	}
}

// Flag defaults may come from an ini file so a cable that never moves
// does not need repeating on every invocation.
func applyConfig(path string, portName, radioName *string, verbose *bool) {
	if path == "" {
		if _, err := os.Stat("gochirp.ini"); err != nil {
			return
		}
		path = "gochirp.ini"
	}
	cfg, err := ini.Load(path)
	if err != nil {
		log.Warnf("config %v : %v", path, err)
		return
	}
	defaults := cfg.Section("defaults")
	if *portName == "" {
		*portName = defaults.Key("port").String()
	}
	if *radioName == "" {
		*radioName = defaults.Key("radio").String()
	}
	if !*verbose {
		*verbose, _ = defaults.Key("verbose").Bool()
	}
}

func resolveRadio(name string) (radio.ID, error) {
	if name == "" {
		return "", fmt.Errorf("--radio is required (thd74 or uv5r)")
	}
	return radio.ParseID(name)
}

func progress(done, total int, msg string) {
	fmt.Fprintf(os.Stderr, "\r%-40v", msg)
	if done == total {
		fmt.Fprintln(os.Stderr)
	}
}

func download(ctx context.Context, radioName, portName, outPath string) error {
	id, err := resolveRadio(radioName)
	if err != nil {
		return err
	}
	if portName == "" {
		return fmt.Errorf("--port is required")
	}
	if outPath == "" {
		return fmt.Errorf("--out is required")
	}
	img, err := session.New().Download(ctx, id, portName, progress)
	if err != nil {
		return err
	}
	if err := session.SaveFile(outPath, img, id); err != nil {
		return err
	}
	log.Infof("saved %v image to %v", id, outPath)
	return nil
}

func upload(ctx context.Context, radioName, portName, inPath string) error {
	if portName == "" {
		return fmt.Errorf("--port is required")
	}
	if inPath == "" {
		return fmt.Errorf("--in is required")
	}
	img, desc, err := session.LoadFile(inPath)
	if err != nil {
		return err
	}
	id, err := envelope.DetectRadio(img.Len())
	if err != nil {
		return err
	}
	if radioName != "" {
		if id, err = resolveRadio(radioName); err != nil {
			return err
		}
	}
	channels, err := session.ImageToChannels(id, img)
	if err != nil {
		return err
	}
	log.Infof("programming %v channels into %v %v", len(channels), desc.Vendor, desc.Model)
	errs := session.New().Upload(ctx, id, portName, channels, progress)
	for _, err := range errs {
		log.Errorf("%v", err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%v channel edits failed", len(errs))
	}
	return nil
}

func parse(inPath, hexRange string) error {
	if inPath == "" {
		return fmt.Errorf("--in is required")
	}
	img, desc, err := session.LoadFile(inPath)
	if err != nil {
		return err
	}
	if hexRange != "" {
		addr, n, err := parseHexRange(hexRange)
		if err != nil {
			return err
		}
		dump, err := img.HexDump(addr, n)
		if err != nil {
			return err
		}
		fmt.Print(dump)
		return nil
	}
	id, _ := envelope.DetectRadio(img.Len())
	channels, err := session.ImageToChannels(id, img)
	if err != nil {
		return err
	}
	out := listing{Vendor: desc.Vendor, Model: desc.Model}
	for _, ch := range channels {
		row := listedChannel{
			Number: ch.Number,
			RxMHz:  float64(ch.RxFreqHz) / 1e6,
			Name:   ch.Name,
			Mode:   ch.Mode.String(),
			Duplex: ch.Duplex.String(),
			Tone:   ch.ToneMode.String(),
			Power:  ch.PowerW,
			Skip:   ch.Skip,
		}
		if ch.OffsetHz != 0 {
			row.OffsetMHz = float64(ch.OffsetHz) / 1e6
		}
		out.Channels = append(out.Channels, row)
	}
	return yaml.NewEncoder(os.Stdout).Encode(out)
}

type listing struct {
	Vendor   string          `yaml:"vendor"`
	Model    string          `yaml:"model"`
	Channels []listedChannel `yaml:"channels"`
}

type listedChannel struct {
	Number    int     `yaml:"number"`
	RxMHz     float64 `yaml:"rx_mhz"`
	OffsetMHz float64 `yaml:"offset_mhz,omitempty"`
	Name      string  `yaml:"name,omitempty"`
	Mode      string  `yaml:"mode"`
	Duplex    string  `yaml:"duplex,omitempty"`
	Tone      string  `yaml:"tone,omitempty"`
	Power     float64 `yaml:"power_w"`
	Skip      bool    `yaml:"skip,omitempty"`
}

func parseHexRange(s string) (addr int, n int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("want addr:len, got %q", s)
	}
	a, err := strconv.ParseInt(strings.TrimPrefix(parts[0], "0x"), 16, 32)
	if err != nil {
		return 0, 0, err
	}
	l, err := strconv.ParseInt(parts[1], 0, 32)
	if err != nil {
		return 0, 0, err
	}
	return int(a), int(l), nil
}
