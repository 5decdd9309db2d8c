package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitRegistryEnablesAndExposesRegistry(t *testing.T) {
	reg := InitRegistry()
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())
}
