package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare object", input: `{"a":1}`, want: `{"a":1}`},
		{name: "prose around", input: "Sure! Here it is:\n{\"a\":{\"b\":2}}\nLet me know.", want: `{"a":{"b":2}}`},
		{name: "code fence", input: "```json\n{\"a\":[1,2]}\n```", want: `{"a":[1,2]}`},
		{name: "braces in strings", input: `{"text":"use {curly} and \"}\" freely"} trailing`, want: `{"text":"use {curly} and \"}\" freely"}`},
		{name: "first of two", input: `{"a":1} {"b":2}`, want: `{"a":1}`},
		{name: "no object", input: "I cannot help with that.", wantErr: true},
		{name: "unterminated", input: `{"a":{"b":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				require.True(t, errors.Is(err, ErrNoJSON))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, string(got))
		})
	}
}

func TestDecodeObjectRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	var target struct {
		Name string `json:"name"`
	}
	require.NoError(t, DecodeObject(`reply: {"name":"Sarah"}`, &target))
	require.Equal(t, "Sarah", target.Name)

	err := DecodeObject(`{"name":"Sarah","mood":"happy"}`, &target)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}
