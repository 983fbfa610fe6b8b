package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTopic(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Resilience", "resilience"},
		{"  Distributed   Systems. ", "distributed systems"},
		{"\"Go Concurrency\"", "go concurrency"},
		{"ＡＰＩ Design", "api design"},
		{"Straße", "strasse"},
		{"***", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTopic(tt.in))
		})
	}
}

func TestNormalizeTopics(t *testing.T) {
	got := NormalizeTopics([]string{"Resilience", "resilience ", "", "Databases", "Caching", "Go", "Testing", "Extra"}, 5)
	assert.Equal(t, []string{"resilience", "databases", "caching", "go", "testing"}, got)
}

func TestParseAnalysis(t *testing.T) {
	a, err := parseAnalysis("Here you go:\n```json\n{\"insights\":\" Use timeouts. \",\"patterns\":[\"Bound every call\"],\"confidence\":3}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Use timeouts.", a.Insights)
	assert.Equal(t, []string{"Bound every call"}, a.Patterns)
	assert.Equal(t, 1.0, a.Confidence)

	a, err = parseAnalysis(`{"insights":"x"}`)
	require.NoError(t, err)
	assert.Equal(t, defaultConfidence, a.Confidence)

	_, err = parseAnalysis(`{"insights":"","patterns":[]}`)
	assert.Error(t, err)

	_, err = parseAnalysis("no json")
	assert.Error(t, err)
}

func TestParseTopics(t *testing.T) {
	topics, err := parseTopics(`Topics: ["resilience", "networking"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"resilience", "networking"}, topics)

	_, err = parseTopics("resilience")
	assert.Error(t, err)
}

func TestKeywords(t *testing.T) {
	assert.Equal(t, []string{"handle", "retries", "postgres"}, Keywords("How do I handle retries in Postgres? retries!"))
	assert.Empty(t, Keywords("is it ok?"))
}
