// Package dataset provides flag sources and sinks for flagcube.
//
// Memory is an in-process Source and Sink that keeps each time slot as
// roaring bitmaps, so sparse flag data costs little memory. FileSink appends
// published frames to a block-compressed stream that ReadFrames decodes for
// offline inspection.
package dataset
