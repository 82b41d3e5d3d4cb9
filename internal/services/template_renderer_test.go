package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	payload := map[string]string{"channel": "Kitchen Lab", "count": "3"}

	assert.Equal(t, "Kitchen Lab posted 3 videos", RenderTemplate("{{channel}} posted {{ count }} videos", payload))
	assert.Equal(t, "Hi {{name}}", RenderTemplate("Hi {{name}}", payload))
	assert.Equal(t, "", RenderTemplate("", payload))
	assert.Equal(t, "{{channel}}", RenderTemplate("{{channel}}", nil))
}
