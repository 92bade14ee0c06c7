package myaml

import (
	"os"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/brandur/framejob"
	"github.com/brandur/framejob/modules/mtesting"
)

func TestParseFile(t *testing.T) {
	path := mtesting.WriteTempFile(t, []byte(`
concurrency: 3
refresh_interval: 250ms
port: 8080
`))
	defer os.Remove(path)

	var fc framejob.FileConfig
	err := ParseFile(mtesting.NewLogger(), path, &fc)
	assert.NoError(t, err)

	assert.Equal(t, 3, fc.Concurrency)
	assert.Equal(t, "250ms", fc.RefreshInterval)
	assert.Equal(t, 8080, fc.Port)
}

func TestParseFile_UnknownField(t *testing.T) {
	path := mtesting.WriteTempFile(t, []byte(`concurency: 3`))
	defer os.Remove(path)

	var fc framejob.FileConfig
	err := ParseFile(mtesting.NewLogger(), path, &fc)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error unmarshaling YAML")
}
