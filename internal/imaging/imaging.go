// Package imaging re-encodes images to make them smaller. Every codec keeps
// the original bytes when re-encoding does not help.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
)

// ErrUnsupported is returned for file types no codec handles.
var ErrUnsupported = errors.New("unsupported image type")

// PNGOptions mirrors optipng: levels 0-1 use default compression, 2 and up
// the best compression.
type PNGOptions struct {
	OptimizationLevel int `yaml:"optimization_level"`
}

// GIFOptions mirrors gifsicle. Level 0 leaves files alone; any other level
// re-encodes, which drops local palettes equal to the global one.
type GIFOptions struct {
	OptimizationLevel int `yaml:"optimization_level"`
}

// JPEGOptions mirrors mozjpeg/jpegtran. Progressive is accepted for
// configuration compatibility; the standard encoder writes baseline files.
type JPEGOptions struct {
	Quality     int  `yaml:"quality"`
	Progressive bool `yaml:"progressive"`
}

// SVGOptions mirrors the svgo flags the pipeline understands.
type SVGOptions struct {
	Precision                 int  `yaml:"precision"`
	RemoveUnknownsAndDefaults bool `yaml:"remove_unknowns_and_defaults"`
	CleanupIDs                bool `yaml:"cleanup_ids"`
}

// Options configures all codecs.
type Options struct {
	PNG  PNGOptions  `yaml:"optipng"`
	GIF  GIFOptions  `yaml:"gifsicle"`
	JPEG JPEGOptions `yaml:"jpeg"`
	SVG  SVGOptions  `yaml:"svgo"`
}

// DefaultOptions matches the built-in imagemin configuration.
func DefaultOptions() Options {
	return Options{
		PNG:  PNGOptions{OptimizationLevel: 7},
		GIF:  GIFOptions{OptimizationLevel: 3},
		JPEG: JPEGOptions{Quality: 75, Progressive: true},
	}
}

// Result describes one optimization.
type Result struct {
	Data     []byte
	Original int
	Saved    int64
	Changed  bool
}

// Optimizer re-encodes images by file extension.
type Optimizer struct {
	opts Options
	m    *minify.M
}

// New returns an Optimizer.
func New(opts Options) *Optimizer {
	m := minify.New()
	m.Add("image/svg+xml", &svg.Minifier{Precision: opts.SVG.Precision})
	return &Optimizer{opts: opts, m: m}
}

// Supports reports whether name has an extension a codec handles.
func Supports(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".svg":
		return true
	}
	return false
}

// Optimize re-encodes data according to the extension of name. The smaller
// of original and re-encoded bytes is returned.
func (o *Optimizer) Optimize(name string, data []byte) (Result, error) {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		out, err = o.png(data)
	case ".jpg", ".jpeg":
		out, err = o.jpeg(data)
	case ".gif":
		out, err = o.gif(data)
	case ".svg":
		out, err = o.m.Bytes("image/svg+xml", data)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	if err != nil {
		return Result{}, err
	}
	res := Result{Data: data, Original: len(data)}
	if len(out) < len(data) {
		res.Data = out
		res.Saved = int64(len(data) - len(out))
		res.Changed = true
	}
	return res, nil
}

func (o *Optimizer) png(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	level := png.DefaultCompression
	if o.opts.PNG.OptimizationLevel >= 2 {
		level = png.BestCompression
	}
	var buf bytes.Buffer
	enc := &png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Optimizer) jpeg(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	q := o.opts.JPEG.Quality
	if q <= 0 || q > 100 {
		q = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Optimizer) gif(data []byte) ([]byte, error) {
	if o.opts.GIF.OptimizationLevel < 1 {
		return data, nil
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
