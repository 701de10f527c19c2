// Package serde defines the primitives to serialize and deserialize (serde)
// the messages exchanged between the participants of a session and the
// ledger.
//
// A message implementation looks up the engine of the format provided by the
// context, which means the data model stays independent of the encoding.
// Formats are registered statically by the packages under the json
// directories.
package serde

import "io"

// Format is the identifier of a serialization format.
type Format string

// FormatJSON is the identifier of the JSON format.
const FormatJSON Format = "JSON"

// Message is the interface a data model should implement to be serialized.
type Message interface {
	// Serialize returns the bytes of the message encoded with the format of
	// the context.
	Serialize(ctx Context) ([]byte, error)
}

// Factory is the interface a factory should implement to deserialize a
// message.
type Factory interface {
	// Deserialize returns the message decoded from the data.
	Deserialize(ctx Context, data []byte) (Message, error)
}

// Fingerprinter is the interface of a message that can write a deterministic
// binary representation of itself, usually to compute a digest.
type Fingerprinter interface {
	Fingerprint(writer io.Writer) error
}

// FormatEngine is the interface of a format implementation for a specific
// message.
type FormatEngine interface {
	// Encode returns the bytes of the message.
	Encode(ctx Context, message Message) ([]byte, error)

	// Decode returns the message populated from the data.
	Decode(ctx Context, data []byte) (Message, error)
}

// ContextEngine is the interface to implement to create a context.
type ContextEngine interface {
	// GetFormat returns the name of the format for this context.
	GetFormat() Format

	// Marshal returns the bytes of the message according to the format of the
	// context.
	Marshal(message interface{}) ([]byte, error)

	// Unmarshal populates the message with the data according to the format of
	// the context.
	Unmarshal(data []byte, message interface{}) error
}

// Context is the context passed to the serialization and deserialization
// requests. It carries the factories required to decode nested messages.
type Context struct {
	ContextEngine

	factories map[interface{}]Factory
}

// NewContext returns a new empty context.
func NewContext(engine ContextEngine) Context {
	return Context{
		ContextEngine: engine,
		factories:     make(map[interface{}]Factory),
	}
}

// GetFactory returns the factory associated to the key or nil.
func (ctx Context) GetFactory(key interface{}) Factory {
	return ctx.factories[key]
}

// WithFactory returns a copy of the context with the factory registered under
// the key. The parent context is left untouched.
func WithFactory(ctx Context, key interface{}, f Factory) Context {
	factories := make(map[interface{}]Factory, len(ctx.factories)+1)
	for k, v := range ctx.factories {
		factories[k] = v
	}

	factories[key] = f

	ctx.factories = factories

	return ctx
}
