package myaml

import (
	"os"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/brandur/framejob"
)

// ParseFile is a shortcut from parsing a source file as YAML.
func ParseFile(log framejob.LoggerInterface, source string, v interface{}) error {
	raw, err := os.ReadFile(source)
	if err != nil {
		return xerrors.Errorf("error reading file: %w", err)
	}

	err = yaml.UnmarshalStrict(raw, v)
	if err != nil {
		return xerrors.Errorf("error unmarshaling YAML: %w", err)
	}

	log.Debugf("myaml: Parsed file: %s", source)
	return nil
}
