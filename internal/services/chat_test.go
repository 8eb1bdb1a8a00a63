package services

import (
	"errors"
	"io"
	"testing"
)

// scriptedStream yields a fixed sequence of deltas, then a terminal error
// (io.EOF for normal completion).
type scriptedStream struct {
	deltas   []string
	terminal error
	pos      int
	closed   bool
}

func (s *scriptedStream) Recv() (string, error) {
	if s.pos < len(s.deltas) {
		delta := s.deltas[s.pos]
		s.pos++
		return delta, nil
	}
	return "", s.terminal
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// recordingSink captures forwarded deltas and can start failing after a set
// number of writes, simulating a client disconnect.
type recordingSink struct {
	written   []string
	failAfter int
	writes    int
}

func (s *recordingSink) Write(delta string) error {
	s.writes++
	if s.failAfter > 0 && s.writes > s.failAfter {
		return errors.New("broken pipe")
	}
	s.written = append(s.written, delta)
	return nil
}

func TestRelayStreamNormalCompletion(t *testing.T) {
	stream := &scriptedStream{deltas: []string{"Hel", "lo ", "there"}, terminal: io.EOF}
	sink := &recordingSink{}

	result := relayStream(stream, sink)

	if result.State != relayCompleted {
		t.Fatalf("state=%q, want %q", result.State, relayCompleted)
	}
	if result.Accumulated != "Hello there" {
		t.Fatalf("accumulated=%q, want %q", result.Accumulated, "Hello there")
	}
	forwarded := ""
	for _, d := range sink.written {
		forwarded += d
	}
	if forwarded != result.Accumulated {
		t.Fatalf("forwarded %q differs from accumulated %q", forwarded, result.Accumulated)
	}
	if len(sink.written) != 3 {
		t.Fatalf("deltas must be forwarded individually in order, got %d writes", len(sink.written))
	}
}

func TestRelayStreamClientDisconnectStillAccumulates(t *testing.T) {
	stream := &scriptedStream{deltas: []string{"a", "b", "c", "d"}, terminal: io.EOF}
	sink := &recordingSink{failAfter: 2}

	result := relayStream(stream, sink)

	if result.State != relayClientDisconnected {
		t.Fatalf("state=%q, want %q", result.State, relayClientDisconnected)
	}
	if result.Accumulated != "abcd" {
		t.Fatalf("accumulated=%q, want full reply despite disconnect", result.Accumulated)
	}
	if len(sink.written) != 2 {
		t.Fatalf("forwarding must stop after the sink fails, got %d writes", len(sink.written))
	}
}

func TestRelayStreamProviderErrorBeforeFirstDelta(t *testing.T) {
	providerErr := errors.New("overloaded")
	stream := &scriptedStream{terminal: providerErr}
	sink := &recordingSink{}

	result := relayStream(stream, sink)

	if result.State != relayProviderError {
		t.Fatalf("state=%q, want %q", result.State, relayProviderError)
	}
	if result.Accumulated != "" {
		t.Fatalf("nothing should accumulate before the first delta, got %q", result.Accumulated)
	}
	if !errors.Is(result.Err, providerErr) {
		t.Fatalf("expected provider error, got %v", result.Err)
	}
}

func TestRelayStreamProviderErrorAfterPartialDeltas(t *testing.T) {
	providerErr := errors.New("stream reset")
	stream := &scriptedStream{deltas: []string{"partial ", "reply"}, terminal: providerErr}
	sink := &recordingSink{}

	result := relayStream(stream, sink)

	if result.State != relayProviderError {
		t.Fatalf("state=%q, want %q", result.State, relayProviderError)
	}
	if result.Accumulated != "partial reply" {
		t.Fatalf("accumulated=%q, want the partial output preserved", result.Accumulated)
	}
	if !errors.Is(result.Err, providerErr) {
		t.Fatalf("expected provider error, got %v", result.Err)
	}
}

func TestRelayStreamDisconnectedThenProviderError(t *testing.T) {
	providerErr := errors.New("stream reset")
	stream := &scriptedStream{deltas: []string{"x", "y"}, terminal: providerErr}
	sink := &recordingSink{failAfter: 1}

	result := relayStream(stream, sink)

	if result.State != relayProviderError {
		t.Fatalf("state=%q, want %q", result.State, relayProviderError)
	}
	if result.Accumulated != "xy" {
		t.Fatalf("accumulated=%q, want drained output", result.Accumulated)
	}
}

func TestRelayStreamEmptyStream(t *testing.T) {
	stream := &scriptedStream{terminal: io.EOF}
	sink := &recordingSink{}

	result := relayStream(stream, sink)

	if result.State != relayCompleted {
		t.Fatalf("state=%q, want %q", result.State, relayCompleted)
	}
	if result.Accumulated != "" || len(sink.written) != 0 {
		t.Fatalf("empty stream must produce no output")
	}
}
