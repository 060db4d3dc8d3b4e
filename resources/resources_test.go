package resources_test

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/livestack/resources"
)

func TestFS(t *testing.T) {
	for _, name := range []string{resources.Index, resources.Waiting} {
		data, err := fs.ReadFile(resources.FS, name)
		assert.Nil(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}
