package codec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/arena.go/pkg/command"
)

func decodeTokens(data string) (command.Tokens, error) {
	val, err := Decode([]byte(data))
	if err != nil {
		return nil, err
	}
	return Tokens(val)
}

func TestDecodeTokens(t *testing.T) {
	tokens, err := decodeTokens(`["led","set",1]`)
	require.NoError(t, err)
	require.Equal(t, command.Tokens{
		command.StringToken("led"),
		command.StringToken("set"),
		command.NumberToken(1),
	}, tokens)

	tokens, err = decodeTokens(`["x", "y", true, null, "z"]`)
	require.NoError(t, err)
	require.Len(t, tokens, 5)
	require.Equal(t, command.Bool, tokens[2].Kind)
	require.Equal(t, command.Null, tokens[3].Kind)
	require.Equal(t, command.String, tokens[4].Kind)
}

func TestDecodeTokensErrors(t *testing.T) {
	testCases := []struct {
		name string
		in   string
	}{
		{"not json", `["led",`},
		{"object", `{"led":1}`},
		{"nested", `["led","set",[1]]`},
		{"scalar", `42`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeTokens(tc.in)
			require.Error(t, err)
		})
	}
}

func TestDecodeObject(t *testing.T) {
	val, err := Decode([]byte(`{"arena":[{"name":"led","type":"line","pin":13}]}`))
	require.NoError(t, err)
	require.True(t, IsObject(val))
	require.False(t, IsCommand(val))
	obj, err := Object(val)
	require.NoError(t, err)
	records, ok := obj["arena"].([]interface{})
	require.True(t, ok)
	require.Len(t, records, 1)
	require.Equal(t, map[string]interface{}{
		"name": "led",
		"type": "line",
		"pin":  float64(13),
	}, records[0])
}

func TestEncode(t *testing.T) {
	t1 := 21.5
	testCases := []struct {
		name   string
		in     interface{}
		expect string
	}{
		{"int", map[string]interface{}{"led": 1}, `{"led":1}`},
		{"null", map[string]interface{}{"feeder": nil}, `{"feeder":null}`},
		{"bool", map[string]interface{}{"b": true}, `{"b":true}`},
		{"temps", map[string]interface{}{"temp": []*float64{&t1, nil}}, `{"temp":[21.5,null]}`},
		{"array", []interface{}{"led", "set", 1}, `["led","set",1]`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Encode(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.expect, out)
		})
	}
}

func TestEncodeValueReport(t *testing.T) {
	out, err := EncodeValueReport("led", 0)
	require.NoError(t, err)
	require.Equal(t, `{"led":0}`, out)

	_, err = EncodeValueReport("led", struct{}{})
	require.Error(t, err)
}
