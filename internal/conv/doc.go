// Package conv provides checked integer conversions.
//
// Roaring bitmaps key agent membership by uint32; the helpers here validate,
// once at allocation, that a key space derived from the run's shape fits.
// Hot paths then convert with plain casts.
package conv
