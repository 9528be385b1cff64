// Package hash provides the CRC32-Castagnoli checksum used to protect frame
// records in flag files.
//
// One-shot:
//
//	sum := hash.CRC32C(packed)
//
// Streaming:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	sum := h.Sum32()
package hash
