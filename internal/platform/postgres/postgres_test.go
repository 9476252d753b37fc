package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskDSN(t *testing.T) {
	masked := MaskDSN("postgres://verigate:secret@db:5432/verigate?sslmode=disable")
	assert.NotContains(t, masked, "secret")
	assert.Contains(t, masked, "verigate:")
	assert.Contains(t, masked, "@db:5432/verigate?sslmode=disable")

	assert.Equal(t, "postgres://verigate@db/verigate", MaskDSN("postgres://verigate@db/verigate"))
	assert.Equal(t, "***", MaskDSN("postgres://[::1"))
}
