package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameValid(t *testing.T) {
	for _, n := range Names() {
		assert.True(t, n.Valid(), string(n))
	}
	assert.False(t, Name("appmessage").Valid())
	assert.False(t, Name("Ready").Valid(), "names are case sensitive")
	assert.False(t, Name("").Valid())
}

func TestNew(t *testing.T) {
	e := New(WebviewClosed, "%7B%7D")
	assert.Equal(t, WebviewClosed, e.Name)
	assert.Equal(t, "%7B%7D", e.Response)
	assert.False(t, e.ReceivedAt.IsZero())
}
