// Package persist writes frames to disk and reads them back.
package persist

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/queue"
	"github.com/dudk/livestack/stage"
)

// Name is the stage name of the persister.
const Name = "persister"

// JPEGQuality used for all jpeg files.
const JPEGQuality = 90

var (
	// ErrFormat is returned for unsupported file extensions.
	ErrFormat = errors.New("unsupported image format")
	// ErrChannels is returned for frames which are neither gray nor rgb.
	ErrChannels = errors.New("unsupported number of channels")
	// ErrNoDestination is returned when frame has no destination path.
	ErrNoDestination = errors.New("frame has no destination")
)

// New creates the persister stage. Every frame it receives must carry a
// destination; failures are local to that frame.
func New(in *queue.Queue, options ...stage.Option) *stage.Stage {
	return stage.New(Name, in, func(f *frame.Frame) (*frame.Frame, error) {
		if err := Write(f); err != nil {
			return nil, err
		}
		return nil, nil
	}, options...)
}

// Write encodes frame into its destination. The format is defined by the
// destination extension. File is replaced atomically, so readers never
// observe partially written image.
func Write(f *frame.Frame) error {
	if f.Destination == "" {
		return ErrNoDestination
	}
	encode, err := encoder(f.Destination)
	if err != nil {
		return err
	}
	img, err := toImage(f)
	if err != nil {
		return err
	}

	dir, base := filepath.Split(f.Destination)
	tmp, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return err
	}
	if err = encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode %s: %w", f.Destination, err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.Destination)
}

// Read decodes image file into a new frame.
func Read(path string) (*frame.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		img, err = tiff.Decode(file)
	case ".png":
		img, err = png.Decode(file)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(file)
	default:
		return nil, fmt.Errorf("%w: %s", ErrFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	f := fromImage(img)
	f.Origin = path
	return f, nil
}

// Supported checks if file can be read by Read.
func Supported(path string) bool {
	_, err := encoder(path)
	return err == nil
}

type encodeFunc func(io.Writer, image.Image) error

func encoder(path string) (encodeFunc, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
		}, nil
	case ".png":
		return png.Encode, nil
	case ".jpg", ".jpeg":
		return func(w io.Writer, img image.Image) error {
			// jpeg is 8 bit, gray frames are kept single channel.
			if g, ok := img.(*image.Gray16); ok {
				gray := image.NewGray(g.Bounds())
				draw.Draw(gray, gray.Bounds(), g, g.Bounds().Min, draw.Src)
				img = gray
			}
			return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrFormat, path)
}

func toImage(f *frame.Frame) (image.Image, error) {
	if len(f.Pixels) != f.Len() {
		return nil, fmt.Errorf("frame %s has %d values for %dx%dx%d", f.ID, len(f.Pixels), f.Width, f.Height, f.Channels)
	}
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Channels {
	case 1:
		img := image.NewGray16(rect)
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: level(f.Pixels[y*f.Width+x])})
			}
		}
		return img, nil
	case 3:
		img := image.NewRGBA64(rect)
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				i := (y*f.Width + x) * 3
				img.SetRGBA64(x, y, color.RGBA64{
					R: level(f.Pixels[i]),
					G: level(f.Pixels[i+1]),
					B: level(f.Pixels[i+2]),
					A: 0xffff,
				})
			}
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrChannels, f.Channels)
}

func fromImage(img image.Image) *frame.Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		pixels := make([]float64, 0, w*h)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
				pixels = append(pixels, float64(g.Y)/0xffff)
			}
		}
		return frame.New(w, h, 1, pixels)
	}
	pixels := make([]float64, 0, w*h*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			pixels = append(pixels, float64(r)/0xffff, float64(g)/0xffff, float64(bl)/0xffff)
		}
	}
	return frame.New(w, h, 3, pixels)
}

// level converts normalized value into 16 bit level.
func level(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}
