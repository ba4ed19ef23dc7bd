package state

import (
	"hash"
	"hash/crc32"
	"io"
)

type (
	CRC32Writer struct {
		hasher hash.Hash32
		writer io.Writer
	}

	CRC32Reader struct {
		hasher         hash.Hash32
		reader         io.Reader
		buf            []byte
		checksumLength int
	}
)

func NewCRC32Writer(writer io.Writer) *CRC32Writer {
	return &CRC32Writer{
		hasher: crc32.NewIEEE(),
		writer: writer,
	}
}

func (c *CRC32Writer) Write(p []byte) (n int, err error) {
	_, _ = c.hasher.Write(p) // #nosec G104
	return c.writer.Write(p)
}

func (c *CRC32Writer) Sum() uint32 {
	return c.hasher.Sum32()
}

func NewCRC32Reader(reader io.Reader, checksumLength int) *CRC32Reader {
	return &CRC32Reader{
		hasher:         crc32.NewIEEE(),
		reader:         reader,
		buf:            make([]byte, 0, checksumLength),
		checksumLength: checksumLength,
	}
}

// Read calculates the checksum of a data stream that has the checksum
// appended to the end: the last checksumLength bytes of the stream are
// not included in the checksum calculation.
func (c *CRC32Reader) Read(p []byte) (n int, err error) {
	n, err = c.reader.Read(p)

	if n >= c.checksumLength {
		// no checksum bytes in the previously read data
		checksumStart := n - c.checksumLength
		_, _ = c.hasher.Write(c.buf)             // #nosec G104
		_, _ = c.hasher.Write(p[:checksumStart]) // #nosec G104

		c.buf = append(c.buf[:0], p[checksumStart:n]...)
	} else {
		c.buf = append(c.buf, p[:n]...)

		if len(c.buf) > c.checksumLength {
			checksumStart := len(c.buf) - c.checksumLength
			_, _ = c.hasher.Write(c.buf[:checksumStart]) // #nosec G104
			c.buf = append(c.buf[:0], c.buf[checksumStart:]...)
		}
	}

	return n, err
}

func (c *CRC32Reader) Sum() uint32 {
	return c.hasher.Sum32()
}
