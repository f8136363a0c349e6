package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name   string
		tokens Tokens
		expect Command
		bad    bool
	}{
		{
			name:   "with args",
			tokens: Tokens{StringToken("led"), StringToken("set"), NumberToken(1)},
			expect: Command{Target: "led", Action: "set", Args: Tokens{NumberToken(1)}},
		},
		{
			name:   "no args",
			tokens: Tokens{StringToken("led"), StringToken("get")},
			expect: Command{Target: "led", Action: "get", Args: Tokens{}},
		},
		{name: "empty", tokens: Tokens{}, bad: true},
		{name: "one token", tokens: Tokens{StringToken("led")}, bad: true},
		{name: "numeric target", tokens: Tokens{NumberToken(1), StringToken("get")}, bad: true},
		{name: "null action", tokens: Tokens{StringToken("led"), NullToken()}, bad: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := Parse(tc.tokens)
			if tc.bad {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrMalformed))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expect, cmd)
		})
	}
}

func TestTokenAsInt(t *testing.T) {
	v, ok := NumberToken(3).AsInt()
	require.True(t, ok)
	require.Equal(t, 3, v)
	_, ok = NumberToken(1.5).AsInt()
	require.False(t, ok)
	_, ok = StringToken("1").AsInt()
	require.False(t, ok)
	_, ok = BoolToken(true).AsInt()
	require.False(t, ok)
}

func TestIntArg(t *testing.T) {
	cmd := New("led", "set")
	_, err := cmd.IntArg(0, "set")
	require.EqualError(t, err, "Missing set value")
	cmd = New("led", "set", StringToken("on"))
	_, err = cmd.IntArg(0, "set")
	require.EqualError(t, err, "Invalid set value")
	cmd = New("led", "set", NumberToken(0))
	v, err := cmd.IntArg(0, "set")
	require.NoError(t, err)
	require.Equal(t, 0, v)
}

func TestParseArgs(t *testing.T) {
	tokens := ParseArgs("led", "set", "1", "true", "null", "2.5")
	require.Equal(t, Tokens{
		StringToken("led"),
		StringToken("set"),
		NumberToken(1),
		BoolToken(true),
		NullToken(),
		NumberToken(2.5),
	}, tokens)
	require.Equal(t, `["led","set",1,true,null,2.5]`, tokens.String())
}
