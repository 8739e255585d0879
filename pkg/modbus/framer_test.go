package modbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyFramerOptions(t *testing.T) {
	tests := []struct {
		name string
		max  int
		want int
	}{
		{"unset", 0, DefaultMaxBuffer},
		{"negative", -1, DefaultMaxBuffer},
		{"below largest frame", 16, MaxADULength},
		{"largest frame", MaxADULength, MaxADULength},
		{"above", 1024, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := ApplyFramerOptions(MaxBuffer(tt.max))
			assert.Equal(t, tt.want, o.MaxBuffer)
			assert.NotNil(t, o.OnDiscard)
			assert.False(t, o.Strict)
		})
	}
	assert.Equal(t, 260, MaxADULength)
}
