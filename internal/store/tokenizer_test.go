package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCamelCase(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"getUserById", []string{"get", "User", "By", "Id"}},
		{"HTTPHandler", []string{"HTTP", "Handler"}},
		{"parseHTTPRequest", []string{"parse", "HTTP", "Request"}},
		{"simple", []string{"simple"}},
		{"Pascal", []string{"Pascal"}},
		{"XMLHTTPRequest", []string{"XMLHTTP", "Request"}},
		{"a", []string{"a"}},
		{"ABC", []string{"ABC"}},
		{"", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCamelCase(tt.input))
		})
	}
}

func TestSplitCodeToken(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"get_user_by_id", []string{"get", "user", "by", "id"}},
		{"__init__", []string{"init"}},
		{"http_HandlerFunc", []string{"http", "Handler", "Func"}},
		{"getUserById", []string{"get", "User", "By", "Id"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitCodeToken(tt.input))
		})
	}
}

func TestTokenizeCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			"function definition",
			"def getUserById(user_id):",
			[]string{"def", "get", "user", "by", "id", "user", "id"},
		},
		{
			"acronyms lowercased",
			"HTTPHandler",
			[]string{"http", "handler"},
		},
		{
			"short tokens dropped",
			"a = b + c2",
			[]string{"c2"},
		},
		{
			"punctuation ignored",
			"user.save(); // persist",
			[]string{"user", "save", "persist"},
		},
		{
			"empty input",
			"",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenizeCode(tt.input))
		})
	}
}

func TestBuildStopWordMap(t *testing.T) {
	m := BuildStopWordMap([]string{"THE", "def", "Return"})

	assert.Len(t, m, 3)
	_, ok := m["the"]
	assert.True(t, ok)
	_, ok = m["return"]
	assert.True(t, ok)
	_, ok = m["DEF"]
	assert.False(t, ok, "lookups are expected against lowercased tokens")
}

func TestDefaultCodeStopWords(t *testing.T) {
	m := BuildStopWordMap(DefaultCodeStopWords)

	// Language keywords are in, domain words are not.
	for _, w := range []string{"def", "return", "func"} {
		_, ok := m[w]
		assert.True(t, ok, "expected stop word %q", w)
	}
	_, ok := m["authentication"]
	assert.False(t, ok)
}
