package mtesting

import (
	"os"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/brandur/framejob"
)

// NewContext is a convenience helper to create a new framejob.Context
// suitable for use in the test suite.
func NewContext() *framejob.Context {
	return framejob.NewContext(&framejob.Args{Log: NewLogger()})
}

// NewLogger returns a logger suitable for use in the test suite.
func NewLogger() framejob.LoggerInterface {
	return &framejob.Logger{Level: framejob.LevelInfo}
}

// WriteTempFile writes the given data to a temporary file. It returns the path
// to the temporary file which should be removed with `defer os.Remove(path)`.
func WriteTempFile(t *testing.T, data []byte) string {
	t.Helper()

	tempFile, err := os.CreateTemp("", "framejob")
	assert.NoError(t, err)

	_, err = tempFile.Write(data)
	assert.NoError(t, err)

	err = tempFile.Close()
	assert.NoError(t, err)

	return tempFile.Name()
}

// WriteTempFileExt is like WriteTempFile, but gives the file a specific
// extension like ".toml".
func WriteTempFileExt(t *testing.T, ext string, data []byte) string {
	t.Helper()

	tempFile, err := os.CreateTemp("", "framejob*"+ext)
	assert.NoError(t, err)

	_, err = tempFile.Write(data)
	assert.NoError(t, err)

	err = tempFile.Close()
	assert.NoError(t, err)

	return tempFile.Name()
}
