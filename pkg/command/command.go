// Package command defines the decoded form of an arena command.
//
// A command arrives as an ordered token sequence
//
//	[device_name, action, args...]
//
// where every token is a string, a number, a boolean or null.
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the type of a Token.
type Kind int

// Token kinds.
const (
	Null Kind = iota
	String
	Number
	Bool
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	}
	return "null"
}

// Token is a single element of a command.
type Token struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
}

// Tokens is an ordered token sequence.
type Tokens []Token

var (
	// ErrMalformed indicates a token sequence which can't be a command.
	ErrMalformed = errors.New("malformed command")
)

// StringToken creates a string token.
func StringToken(s string) Token { return Token{Kind: String, Str: s} }

// NumberToken creates a number token.
func NumberToken(n float64) Token { return Token{Kind: Number, Num: n} }

// BoolToken creates a bool token.
func BoolToken(b bool) Token { return Token{Kind: Bool, Bool: b} }

// NullToken creates a null token.
func NullToken() Token { return Token{} }

// AsString returns the string value.
func (t Token) AsString() (string, bool) {
	return t.Str, t.Kind == String
}

// AsInt returns the value as an integer. Only integral numbers qualify.
func (t Token) AsInt() (int, bool) {
	if t.Kind != Number || t.Num != math.Trunc(t.Num) ||
		t.Num > math.MaxInt32 || t.Num < math.MinInt32 {
		return 0, false
	}
	return int(t.Num), true
}

// AsFloat returns the numeric value.
func (t Token) AsFloat() (float64, bool) {
	return t.Num, t.Kind == Number
}

// AsBool returns the bool value.
func (t Token) AsBool() (bool, bool) {
	return t.Bool, t.Kind == Bool
}

// Interface converts the token to a plain Go value.
func (t Token) Interface() interface{} {
	switch t.Kind {
	case String:
		return t.Str
	case Number:
		return t.Num
	case Bool:
		return t.Bool
	}
	return nil
}

func (t Token) String() string {
	switch t.Kind {
	case String:
		return strconv.Quote(t.Str)
	case Number:
		return strconv.FormatFloat(t.Num, 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(t.Bool)
	}
	return "null"
}

// String formats the tokens as a JSON array.
func (ts Tokens) String() string {
	strs := make([]string, len(ts))
	for n, t := range ts {
		strs[n] = t.String()
	}
	return "[" + strings.Join(strs, ",") + "]"
}

// ParseArg converts a word typed on a console into a Token:
// numbers, true/false and null are recognized, anything else is a string.
func ParseArg(s string) Token {
	switch s {
	case "null":
		return NullToken()
	case "true":
		return BoolToken(true)
	case "false":
		return BoolToken(false)
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return NumberToken(n)
	}
	return StringToken(s)
}

// ParseArgs converts console words to Tokens.
func ParseArgs(args ...string) Tokens {
	tokens := make(Tokens, len(args))
	for n, arg := range args {
		tokens[n] = ParseArg(arg)
	}
	return tokens
}

// Command is a parsed command addressed to a device.
type Command struct {
	Target string
	Action string
	Args   Tokens
}

// New creates a Command.
func New(target, action string, args ...Token) Command {
	return Command{Target: target, Action: action, Args: args}
}

// Parse splits a token sequence into target, action and arguments.
func Parse(tokens Tokens) (Command, error) {
	if len(tokens) < 2 {
		return Command{}, fmt.Errorf("%w: expecting at least 2 elements, got %d", ErrMalformed, len(tokens))
	}
	target, ok := tokens[0].AsString()
	if !ok {
		return Command{}, fmt.Errorf("%w: device name must be a string", ErrMalformed)
	}
	action, ok := tokens[1].AsString()
	if !ok {
		return Command{}, fmt.Errorf("%w: action must be a string", ErrMalformed)
	}
	return Command{Target: target, Action: action, Args: tokens[2:]}, nil
}

// Tokens converts the command back to its token sequence.
func (c Command) Tokens() Tokens {
	tokens := make(Tokens, 0, len(c.Args)+2)
	tokens = append(tokens, StringToken(c.Target), StringToken(c.Action))
	return append(tokens, c.Args...)
}

// Arg returns the n-th argument.
func (c Command) Arg(n int) (Token, bool) {
	if n < 0 || n >= len(c.Args) {
		return Token{}, false
	}
	return c.Args[n], true
}

// IntArg returns the n-th argument as an integer. The error message
// is ready to be reported back to the host.
func (c Command) IntArg(n int, what string) (int, error) {
	tok, ok := c.Arg(n)
	if !ok {
		return 0, fmt.Errorf("Missing %s value", what)
	}
	v, ok := tok.AsInt()
	if !ok {
		return 0, fmt.Errorf("Invalid %s value", what)
	}
	return v, nil
}

func (c Command) String() string {
	return c.Tokens().String()
}
