package sanitize

import (
	"testing"
)

func TestFilterStyle(t *testing.T) {
	testCases := []struct {
		input, want string
	}{
		{"", ""},
		{"color: red;", "color:red"},
		{"background-color: black; color: white", "background-color:black; color:white"},
		{"background-color: black; invalid: true; color: white", "background-color:black; color:white"},
		{"COLOR : Red", "color:Red"},
		{"border: 1px solid #ccc", "border:1px solid #ccc"},
		{"color: rgb(1, 2, 3)", "color:rgb(1, 2, 3)"},
		{"font-family: 'Helvetica Neue', Arial", "font-family:'Helvetica Neue', Arial"},
		{"background-color: url(https://evil.test/x.png)", ""},
		{"width: expression(alert(1))", ""},
		{"position: fixed", ""},
		{"*zoom: 1; color: red", "color:red"},
		{"color:", ""},
		{"color red", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got := filterStyle(tc.input)
			if got != tc.want {
				t.Errorf("got: %q, want: %q, input: %q", got, tc.want, tc.input)
			}
		})
	}
}
