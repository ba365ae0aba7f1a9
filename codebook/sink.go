package codebook

import "fmt"

// A Sink receives a write-once copy of a codebook. The machine never reads
// it back, so a sink can be stubbed or omitted without changing execution.
type Sink interface {
	// WriteEntries stores every entry of the named codebook.
	WriteEntries(codebook string, entries []Entry) error
}

// Mirror writes the whole codebook into the sink.
func Mirror(cb *Codebook, sink Sink) error {
	if sink == nil {
		return nil
	}

	if err := sink.WriteEntries(cb.Name(), cb.Entries()); err != nil {
		return fmt.Errorf("mirror codebook %s: %w", cb.Name(), err)
	}

	return nil
}
