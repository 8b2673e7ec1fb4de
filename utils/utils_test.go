package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRequestID(t *testing.T) {
	id1 := GenerateRequestID()
	id2 := GenerateRequestID()

	assert.NotEmpty(t, id1)
	assert.NotEmpty(t, id2)
	assert.NotEqual(t, id1, id2)

	// Test that IDs are expected length (14 timestamp + 1 dash + 8 random = 23)
	assert.Equal(t, 23, len(id1))
	assert.Equal(t, 23, len(id2))
}

func TestRandomString(t *testing.T) {
	for length := 1; length <= 20; length++ {
		result := RandomString(length)
		assert.Equal(t, length, len(result))

		for _, char := range result {
			assert.Contains(t, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789", string(char))
		}
	}
}

// Benchmark tests
func BenchmarkGenerateRequestID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		GenerateRequestID()
	}
}

func BenchmarkRandomString(b *testing.B) {
	for i := 0; i < b.N; i++ {
		RandomString(10)
	}
}
