package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestIDSelector(t *testing.T) {
	assert.Equal(t, `[data-test-id="e2e-save"]`, testIDSelector("e2e-save"))
	assert.Equal(t, `[data-test-id="a\"b"]`, testIDSelector(`a"b`))
}

func TestXPathLiteral(t *testing.T) {
	assert.Equal(t, `"Save"`, xpathLiteral("Save"))
	assert.Equal(t, `'say "hi"'`, xpathLiteral(`say "hi"`))
	assert.Equal(t, `concat("it's ", '"', "quoted", '"', "")`, xpathLiteral(`it's "quoted"`))
	assert.Equal(t, `//*[normalize-space(text())="Save"]`, textXPath("  Save "))
}
