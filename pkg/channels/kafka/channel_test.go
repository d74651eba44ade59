package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected []string
	}{
		{input: "", expected: nil},
		{input: " , ", expected: nil},
		{input: "localhost:9092", expected: []string{"localhost:9092"}},
		{input: "a:9092, b:9092,", expected: []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseBrokers(tt.input), tt.input)
	}
}

func TestCreateChannel_NoBrokers(t *testing.T) {
	t.Parallel()

	_, _, err := CreateChannel(watermill.NopLogger{}, nil, "sqlgems")
	require.ErrorIs(t, err, ErrNoBrokers)
}
