package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDUnmarshal(t *testing.T) {
	tests := map[string]ID{
		`42`:      "42",
		`"abc-1"`: "abc-1",
		`null`:    "",
	}
	for input, want := range tests {
		var got ID
		require.NoError(t, json.Unmarshal([]byte(input), &got), input)
		assert.Equal(t, want, got, input)
	}

	var bad ID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &bad))
}

func TestIDMarshalKeepsNumbersNumeric(t *testing.T) {
	b, err := json.Marshal(JSONFlagActionV1{Action: "x", EmailID: "42"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action": "x", "email_id": 42}`, string(b))

	b, err = json.Marshal(JSONFlagActionV1{Action: "x", EmailID: "m-42"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"action": "x", "email_id": "m-42"}`, string(b))
}

func TestIDMarshalQuotesNonCanonicalNumbers(t *testing.T) {
	tests := map[ID]string{
		"007": `"007"`,
		"+5":  `"+5"`,
		"-0":  `"-0"`,
		"-12": `-12`,
		"0":   `0`,
	}
	for id, want := range tests {
		b, err := json.Marshal(JSONFlagActionV1{Action: "x", EmailID: id})
		require.NoError(t, err, string(id))
		assert.JSONEq(t, `{"action": "x", "email_id": `+want+`}`, string(b), string(id))

		var back JSONFlagActionV1
		require.NoError(t, json.Unmarshal(b, &back), string(id))
		assert.Equal(t, id, back.EmailID, "round trip of %q", id)
	}
}

func TestTimestampLayouts(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{`"2024-03-01T10:11:12Z"`, time.Date(2024, 3, 1, 10, 11, 12, 0, time.UTC)},
		{`"2024-03-01T10:11:12.5"`, time.Date(2024, 3, 1, 10, 11, 12, 500000000, time.UTC)},
		{`"2024-03-01 10:11:12"`, time.Date(2024, 3, 1, 10, 11, 12, 0, time.UTC)},
		{`"2024-03-01"`, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{`null`, time.Time{}},
	}
	for _, tc := range tests {
		var got Timestamp
		require.NoError(t, json.Unmarshal([]byte(tc.input), &got), tc.input)
		assert.True(t, tc.want.Equal(got.Time), "%s: got %v", tc.input, got.Time)
	}

	var bad Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}
