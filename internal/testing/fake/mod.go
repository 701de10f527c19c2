// Package fake provides fake implementations for interfaces commonly used in
// the repository.
//
// The implementations offer configuration to return errors when it is needed by
// the unit test and it is also possible to record the call of functions of an
// object in some cases.
package fake

import (
	"io"
	"sync"

	"go.dedis.ch/duet/serde"
	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// GetError returns the fake error.
func GetError() error {
	return fakeErr
}

// Err returns the message of an error wrapping the fake error with the
// prefix.
func Err(msg string) string {
	return msg + ": " + fakeErr.Error()
}

// Call is a tool to keep track of a function calls.
type Call struct {
	sync.Mutex
	calls [][]interface{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	if c == nil {
		return nil
	}

	c.Lock()
	defer c.Unlock()

	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	if c == nil {
		return 0
	}

	c.Lock()
	defer c.Unlock()

	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	if c == nil {
		return
	}

	c.Lock()
	c.calls = append(c.calls, args)
	c.Unlock()
}

// Message is a fake implementation of a serde message.
//
// - implements serde.Message
// - implements serde.Fingerprinter
type Message struct {
	Digest []byte
	err    error
}

// NewBadMessage returns a message that fails to serialize and fingerprint.
func NewBadMessage() Message {
	return Message{err: fakeErr}
}

// Serialize implements serde.Message.
func (m Message) Serialize(serde.Context) ([]byte, error) {
	return []byte("{}"), m.err
}

// Fingerprint implements serde.Fingerprinter.
func (m Message) Fingerprint(w io.Writer) error {
	if m.err != nil {
		return m.err
	}

	_, err := w.Write(m.Digest)

	return err
}

// MessageFactory is a fake implementation of a serde factory.
//
// - implements serde.Factory
type MessageFactory struct {
	err error
}

// NewBadMessageFactory returns a factory that always fails.
func NewBadMessageFactory() MessageFactory {
	return MessageFactory{err: fakeErr}
}

// Deserialize implements serde.Factory.
func (f MessageFactory) Deserialize(serde.Context, []byte) (serde.Message, error) {
	return Message{}, f.err
}

// Format is a fake format engine.
//
// - implements serde.FormatEngine
type Format struct {
	err    error
	Msg    serde.Message
	Call   *Call
	Result []byte
}

// NewBadFormat returns a format engine that always fails.
func NewBadFormat() Format {
	return Format{err: fakeErr}
}

// Encode implements serde.FormatEngine.
func (f Format) Encode(ctx serde.Context, m serde.Message) ([]byte, error) {
	f.Call.Add(ctx, m)

	return f.Result, f.err
}

// Decode implements serde.FormatEngine.
func (f Format) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	f.Call.Add(ctx, data)

	return f.Msg, f.err
}

// ContextEngine is a fake serde context engine that encodes with the JSON
// conventions but can be configured to fail.
//
// - implements serde.ContextEngine
type ContextEngine struct {
	Format serde.Format
	err    error
}

// NewContext returns a context using the fake engine.
func NewContext() serde.Context {
	return serde.NewContext(ContextEngine{Format: serde.FormatJSON})
}

// NewContextWithFormat returns a context using the fake engine with the
// format.
func NewContextWithFormat(f serde.Format) serde.Context {
	return serde.NewContext(ContextEngine{Format: f})
}

// NewBadContext returns a context that fails to marshal and unmarshal.
func NewBadContext() serde.Context {
	return serde.NewContext(ContextEngine{Format: serde.FormatJSON, err: fakeErr})
}

// GetFormat implements serde.ContextEngine.
func (e ContextEngine) GetFormat() serde.Format {
	return e.Format
}

// Marshal implements serde.ContextEngine.
func (e ContextEngine) Marshal(interface{}) ([]byte, error) {
	return []byte("{}"), e.err
}

// Unmarshal implements serde.ContextEngine.
func (e ContextEngine) Unmarshal([]byte, interface{}) error {
	return e.err
}
