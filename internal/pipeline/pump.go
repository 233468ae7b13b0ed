package pipeline

import (
	"fmt"
)

// InputWriter is the write side of an encoder's stdin pipe.
type InputWriter interface {
	WriteInput(p []byte) error
}

// Pump drains the relay into the encoder's input pipe, preserving buffer
// order. It returns nil once the relay is closed and exhausted, or the first
// write error. A broken pipe is fatal to this stream only; the caller must
// not propagate it to the sibling stream.
func Pump(name string, r *Relay, w InputWriter) error {
	for {
		buf, ok := r.Next()
		if !ok {
			log.Debug("relay closed, pump exiting", "relay", name)
			return nil
		}
		if err := w.WriteInput(buf); err != nil {
			return fmt.Errorf("writing %s stream to encoder: %w", name, err)
		}
	}
}
