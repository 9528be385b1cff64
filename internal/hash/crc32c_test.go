package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C_KnownValue(t *testing.T) {
	// RFC 3720 check value.
	assert.Equal(t, uint32(0xe3069283), CRC32C([]byte("123456789")))
}

func TestCRC32C_StreamingMatchesOneShot(t *testing.T) {
	data := []byte("present rows, row flags, cell flags")

	h := NewCRC32C()
	_, _ = h.Write(data[:10])
	_, _ = h.Write(data[10:])
	assert.Equal(t, CRC32C(data), h.Sum32())
}
