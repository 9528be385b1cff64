// Package codec writes the machine-readable output of the flagsim CLI.
//
// Run reports, storage estimates and the effective configuration are encoded
// through an Encoder picked by the output.codec setting. Every encoder
// terminates its document with a newline so that reports can be appended to
// a log.
package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnknown is returned by ByName for a name not in Names.
var ErrUnknown = errors.New("unknown codec")

// Encoder writes one document per call.
// Implementations must be safe for concurrent use.
type Encoder interface {
	Encode(w io.Writer, v any) error
	Name() string
}

// Names lists the built-in encoder names.
var Names = []string{"json", "json-indent"}

// Default is used when no codec is configured.
var Default Encoder = JSON{}

// ByName returns a built-in encoder by its stable name.
func ByName(name string) (Encoder, error) {
	switch name {
	case "", "json":
		return JSON{}, nil
	case "json-indent":
		return JSON{Indent: "  "}, nil
	default:
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknown, name, strings.Join(Names, ", "))
	}
}

// Marshal encodes v with e into a byte slice.
func Marshal(e Encoder, v any) ([]byte, error) {
	var b strings.Builder
	if err := e.Encode(&b, v); err != nil {
		return nil, fmt.Errorf("codec %s: %w", e.Name(), err)
	}
	return []byte(b.String()), nil
}
