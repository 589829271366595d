package randid

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var idPattern = regexp.MustCompile(`^[a-z0-9]*$`)

func TestGenerate(t *testing.T) {
	t.Run("length and alphabet", func(t *testing.T) {
		for _, n := range []int{1, 4, 12, 32} {
			id := Generate(n)
			assert.Len(t, id, n)
			assert.True(t, idPattern.MatchString(id), "Generate(%d) = %q, want lowercase alphanumeric", n, id)
		}
	})

	t.Run("non-positive length is empty", func(t *testing.T) {
		assert.Empty(t, Generate(0))
		assert.Empty(t, Generate(-5))
	})

	t.Run("mutation ids do not collide", func(t *testing.T) {
		// 36^12 possible ids; any repeat in 200 draws means the randomness
		// source is broken.
		seen := make(map[string]struct{})
		for range 200 {
			seen[Generate(12)] = struct{}{}
		}
		assert.Len(t, seen, 200)
	})

	t.Run("covers letters and digits", func(t *testing.T) {
		var hasLetter, hasDigit bool
		for range 500 {
			id := Generate(10)
			for i := range len(id) {
				switch {
				case id[i] >= 'a' && id[i] <= 'z':
					hasLetter = true
				case id[i] >= '0' && id[i] <= '9':
					hasDigit = true
				}
			}
		}
		assert.True(t, hasLetter, "no lowercase letters in 5000 characters")
		assert.True(t, hasDigit, "no digits in 5000 characters")
	})
}
