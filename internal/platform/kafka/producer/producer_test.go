package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRequiresBrokers(t *testing.T) {
	for _, brokers := range []string{"", " , "} {
		_, err := New(Config{Brokers: brokers}, nil)
		assert.ErrorContains(t, err, "kafka brokers not configured")
	}
}
