// Package types is the coercion layer: composable units that validate a raw
// input value and convert it into the value a function expects.
//
// A unit is anything implementing Type. Units never mutate their input and
// report failures as *Error so callers can aggregate them per parameter:
//
//	age := types.InRange(0, 150)
//	v, err := age.Convert("42") // 42, nil
//	_, err = age.Convert("200") // KindValue: "'200' reached the limit of 150"
package types

// Type is a coercion unit.
type Type interface {
	Convert(value any) (any, error)
	Description() string
}

// CLIBehavior is metadata consumed by the command-line adapter.
type CLIBehavior struct {
	// Action is "append" for repeatable flags or "store_true" for
	// presence flags.
	Action string
	// Choices restricts accepted values.
	Choices []string
	// List marks the flag as producing a list.
	List bool
}

// Merge returns b with zero fields filled from c.
func (c CLIBehavior) Merge(b CLIBehavior) CLIBehavior {
	if b.Action == "" {
		b.Action = c.Action
	}
	if b.Choices == nil {
		b.Choices = c.Choices
	}
	if !b.List {
		b.List = c.List
	}
	return b
}

// CLIer is implemented by units that carry CLI metadata.
type CLIer interface {
	CLI() CLIBehavior
}

// CLIOf returns the CLI metadata of t, if any.
func CLIOf(t Type) CLIBehavior {
	if c, ok := t.(CLIer); ok {
		return c.CLI()
	}
	return CLIBehavior{}
}

// Func adapts a plain converter into a Type with no description.
type Func func(value any) (any, error)

// Convert calls f.
func (f Func) Convert(value any) (any, error) { return f(value) }

// Description returns an empty description.
func (Func) Description() string { return "" }

type unit struct {
	desc string
	fn   func(any) (any, error)
	cli  CLIBehavior
}

func (u *unit) Convert(value any) (any, error) { return u.fn(value) }
func (u *unit) Description() string            { return u.desc }
func (u *unit) CLI() CLIBehavior               { return u.cli }

// New builds a named unit from a converter.
func New(desc string, fn func(any) (any, error)) Type {
	return &unit{desc: desc, fn: fn}
}

// Rewrite replaces a converter failure of a given Kind. An empty Message
// keeps the original message.
type Rewrite struct {
	Kind    Kind
	Message string
}

// AcceptOption configures Accept.
type AcceptOption func(*acceptConfig)

type acceptConfig struct {
	errorText string
	handlers  map[Kind]Rewrite
	cli       CLIBehavior
}

// WithErrorText turns any failure into a KindValue error with text.
func WithErrorText(text string) AcceptOption {
	return func(c *acceptConfig) {
		c.errorText = text
	}
}

// WithErrorHandlers rewrites failures by Kind. Handlers take precedence over
// WithErrorText.
func WithErrorHandlers(handlers map[Kind]Rewrite) AcceptOption {
	return func(c *acceptConfig) {
		c.handlers = handlers
	}
}

// WithCLI attaches CLI metadata, merged over what t already declares.
func WithCLI(b CLIBehavior) AcceptOption {
	return func(c *acceptConfig) {
		c.cli = b
	}
}

// Accept wraps t (or any converter via Func) into a documented unit,
// optionally rewriting its failures and attaching CLI metadata.
func Accept(t Type, doc string, opts ...AcceptOption) Type {
	cfg := acceptConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if doc == "" {
		doc = t.Description()
	}

	return &unit{
		desc: doc,
		cli:  CLIOf(t).Merge(cfg.cli),
		fn: func(value any) (any, error) {
			out, err := t.Convert(value)
			if err == nil {
				return out, nil
			}
			if rw, ok := cfg.handlers[KindOf(err)]; ok {
				msg := rw.Message
				if msg == "" {
					msg = err.Error()
				}
				return nil, &Error{Kind: rw.Kind, Message: msg, Err: err}
			}
			if cfg.errorText != "" {
				return nil, &Error{Kind: KindValue, Message: cfg.errorText, Err: err}
			}
			return nil, err
		},
	}
}
