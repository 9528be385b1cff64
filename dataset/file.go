package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/flagcube"
	"github.com/hupe1980/flagcube/internal/conv"
	"github.com/hupe1980/flagcube/internal/hash"
	"github.com/hupe1980/flagcube/resource"
)

// File layout:
//
//	header: magic "FLGC" | version u8 | compression u8 | reserved u16 |
//	        correlations u32 | channels u32 | baselines u32
//	record: time u32 | crc32c u32 | block
//
// A block holds one frame packed as a bitset (present rows, row flags, cell
// flags) in little-endian 64-bit words. The checksum covers the packed frame
// before compression. All integers are little-endian.
const (
	fileMagic      = "FLGC"
	fileVersion    = 1
	fileHeaderSize = 20

	recordHeaderSize = 8
)

// ErrInvalidFile is returned when a frame stream is malformed.
var ErrInvalidFile = errors.New("invalid frame file")

// FileHeader describes a frame stream.
type FileHeader struct {
	Compression     Compression
	NumCorrelations int
	NumChannels     int
	NumBaselines    int
}

func (h FileHeader) bits() uint {
	return uint(2*h.NumBaselines + h.NumCorrelations*h.NumChannels*h.NumBaselines)
}

// blockSize returns the packed size of one frame in bytes. It fails for
// empty dimensions and for frames a block header cannot describe.
func (h FileHeader) blockSize() (uint32, error) {
	if h.NumCorrelations <= 0 || h.NumChannels <= 0 || h.NumBaselines <= 0 {
		return 0, fmt.Errorf("%w: empty shape %dx%dx%d", ErrInvalidFile,
			h.NumCorrelations, h.NumChannels, h.NumBaselines)
	}
	cells, err := conv.KeySpace(h.NumCorrelations, h.NumChannels)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	perRow := uint64(cells) + 2
	if perRow > 8*math.MaxUint32/uint64(h.NumBaselines) {
		return 0, fmt.Errorf("%w: frame of %d baselines exceeds a block", ErrInvalidFile, h.NumBaselines)
	}
	size := 8 * ((perRow*uint64(h.NumBaselines) + 63) / 64)
	if size > math.MaxUint32 {
		return 0, fmt.Errorf("%w: frame of %d bytes exceeds a block", ErrInvalidFile, size)
	}
	return uint32(size), nil
}

// FileSink is a flagcube.Sink appending every published frame to a writer.
type FileSink struct {
	mu     sync.Mutex
	w      io.Writer
	header FileHeader
	rc     *resource.Controller
	frames int
}

// FileOption configures a FileSink.
type FileOption func(*FileSink)

// WithCompression selects the block compression. Default: CompressionNone.
func WithCompression(c Compression) FileOption {
	return func(s *FileSink) {
		s.header.Compression = c
	}
}

// WithRateLimit throttles writes through rc's IO budget.
func WithRateLimit(rc *resource.Controller) FileOption {
	return func(s *FileSink) {
		s.rc = rc
	}
}

// NewFileSink writes the stream header for shape and returns the sink.
func NewFileSink(w io.Writer, shape flagcube.Shape, optFns ...FileOption) (*FileSink, error) {
	s := &FileSink{
		w: w,
		header: FileHeader{
			NumCorrelations: shape.NumCorrelations,
			NumChannels:     shape.NumChannels,
			NumBaselines:    shape.NumBaselines,
		},
	}
	for _, fn := range optFns {
		fn(s)
	}

	var hdr [fileHeaderSize]byte
	copy(hdr[:4], fileMagic)
	hdr[4] = fileVersion
	hdr[5] = byte(s.header.Compression)
	binary.LittleEndian.PutUint32(hdr[8:], uint32(shape.NumCorrelations)) //nolint:gosec // validated shape
	binary.LittleEndian.PutUint32(hdr[12:], uint32(shape.NumChannels))    //nolint:gosec // validated shape
	binary.LittleEndian.PutUint32(hdr[16:], uint32(shape.NumBaselines))   //nolint:gosec // validated shape
	if _, err := w.Write(hdr[:]); err != nil {
		return nil, fmt.Errorf("write frame file header: %w", err)
	}
	return s, nil
}

// Frames returns the number of frames written.
func (s *FileSink) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// WriteFlags implements flagcube.Sink.
func (s *FileSink) WriteFlags(ctx context.Context, f *flagcube.Frame) error {
	if f.NumCorrelations != s.header.NumCorrelations ||
		f.NumChannels != s.header.NumChannels ||
		f.NumBaselines != s.header.NumBaselines {
		return fmt.Errorf("%w: frame does not match file header", flagcube.ErrShapeMismatch)
	}

	packed := packFrame(f, s.header.bits())
	block, err := compressBlock(packed, s.header.Compression)
	if err != nil {
		return fmt.Errorf("compress frame %d: %w", f.Time, err)
	}

	rec := make([]byte, recordHeaderSize+len(block))
	binary.LittleEndian.PutUint32(rec, uint32(f.Time)) //nolint:gosec // time indices are non-negative
	binary.LittleEndian.PutUint32(rec[4:], hash.CRC32C(packed))
	copy(rec[recordHeaderSize:], block)

	s.mu.Lock()
	defer s.mu.Unlock()
	w := resource.NewRateLimitedWriter(ctx, s.w, s.rc)
	if _, err := w.Write(rec); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Time, err)
	}
	s.frames++
	return nil
}

func packFrame(f *flagcube.Frame, n uint) []byte {
	b := bitset.New(n)
	off := uint(0)
	for _, v := range [][]bool{f.Present, f.RowFlags, f.Flags} {
		for i, set := range v {
			if set {
				b.Set(off + uint(i))
			}
		}
		off += uint(len(v))
	}

	words := b.Bytes()
	out := make([]byte, 8*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint64(out[8*i:], w)
	}
	return out
}

// readPayload reads n bytes, growing the buffer as data arrives so that a
// truncated stream costs no more than its length.
func readPayload(r io.Reader, n uint32) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpackFrame(t int, h FileHeader, data []byte) (*flagcube.Frame, error) {
	n := h.bits()
	if len(data) != 8*int((n+63)/64) {
		return nil, fmt.Errorf("%w: frame %d has %d bytes", ErrInvalidFile, t, len(data))
	}
	words := make([]uint64, len(data)/8)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(data[8*i:])
	}
	b := bitset.From(words)

	f := flagcube.NewFrame(t, flagcube.Shape{
		NumCorrelations: h.NumCorrelations,
		NumChannels:     h.NumChannels,
		NumBaselines:    h.NumBaselines,
	})
	off := uint(0)
	for _, v := range [][]bool{f.Present, f.RowFlags, f.Flags} {
		for i := range v {
			v[i] = b.Test(off + uint(i))
		}
		off += uint(len(v))
	}
	return f, nil
}

// ReadFrames decodes a stream written by FileSink.
func ReadFrames(r io.Reader) (FileHeader, []*flagcube.Frame, error) {
	br := bufio.NewReader(r)

	var hdr [fileHeaderSize]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return FileHeader{}, nil, fmt.Errorf("%w: header: %w", ErrInvalidFile, err)
	}
	if string(hdr[:4]) != fileMagic || hdr[4] != fileVersion {
		return FileHeader{}, nil, fmt.Errorf("%w: bad magic or version", ErrInvalidFile)
	}
	h := FileHeader{
		Compression:     Compression(hdr[5]),
		NumCorrelations: int(binary.LittleEndian.Uint32(hdr[8:])),
		NumChannels:     int(binary.LittleEndian.Uint32(hdr[12:])),
		NumBaselines:    int(binary.LittleEndian.Uint32(hdr[16:])),
	}
	if h.Compression > CompressionZSTD {
		return h, nil, fmt.Errorf("%w: unknown %v", ErrInvalidFile, h.Compression)
	}
	want, err := h.blockSize()
	if err != nil {
		return h, nil, err
	}

	var frames []*flagcube.Frame
	for {
		var rec [recordHeaderSize + blockHeaderSize]byte
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return h, frames, nil
			}
			return h, frames, fmt.Errorf("%w: record header: %w", ErrInvalidFile, err)
		}
		t := int(binary.LittleEndian.Uint32(rec[0:]))
		sum := binary.LittleEndian.Uint32(rec[4:])
		uncompressed := binary.LittleEndian.Uint32(rec[recordHeaderSize:])
		compressed := binary.LittleEndian.Uint32(rec[recordHeaderSize+4:])

		// Sizes are checked against the header before anything is allocated.
		if uncompressed != want {
			return h, frames, fmt.Errorf("%w: frame %d claims %d bytes, want %d",
				ErrInvalidFile, t, uncompressed, want)
		}
		if compressed >= want {
			return h, frames, fmt.Errorf("%w: frame %d compressed to %d of %d bytes",
				ErrInvalidFile, t, compressed, want)
		}
		size := uncompressed
		if compressed != 0 {
			size = compressed
		}
		payload, err := readPayload(br, size)
		if err != nil {
			return h, frames, fmt.Errorf("%w: frame %d: %w", ErrInvalidFile, t, err)
		}

		data := payload
		if compressed != 0 {
			if data, err = decompressBlock(uncompressed, payload, h.Compression); err != nil {
				return h, frames, fmt.Errorf("%w: frame %d: %w", ErrInvalidFile, t, err)
			}
		}

		if hash.CRC32C(data) != sum {
			return h, frames, fmt.Errorf("%w: frame %d: checksum mismatch", ErrInvalidFile, t)
		}

		f, err := unpackFrame(t, h, data)
		if err != nil {
			return h, frames, err
		}
		frames = append(frames, f)
	}
}
