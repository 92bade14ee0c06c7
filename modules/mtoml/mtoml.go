package mtoml

import (
	"os"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/xerrors"

	"github.com/brandur/framejob"
)

// ParseFile is a shortcut from parsing a source file as TOML.
func ParseFile(log framejob.LoggerInterface, source string, v interface{}) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return xerrors.Errorf("error reading file: %w", err)
	}

	err = toml.Unmarshal(data, v)
	if err != nil {
		return xerrors.Errorf("error unmarshaling TOML: %w", err)
	}

	log.Debugf("mtoml: Parsed file: %s", source)
	return nil
}
