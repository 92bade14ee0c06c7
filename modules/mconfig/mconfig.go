// Package mconfig loads framejob configuration from TOML or YAML files.
package mconfig

import (
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/brandur/framejob"
	"github.com/brandur/framejob/modules/mtoml"
	"github.com/brandur/framejob/modules/myaml"
)

// LoadFile loads a configuration file, picking a parser based on its
// extension (".toml", ".yaml", or ".yml"). Defaults are filled in for
// anything the file doesn't specify.
func LoadFile(log framejob.LoggerInterface, path string) (*framejob.Config, error) {
	var fc framejob.FileConfig
	var err error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = mtoml.ParseFile(log, path, &fc)
	case ".yaml", ".yml":
		err = myaml.ParseFile(log, path, &fc)
	default:
		return nil, xerrors.Errorf("unsupported config extension '%s': %s", ext, path)
	}
	if err != nil {
		return nil, xerrors.Errorf("error loading config '%s': %w", path, err)
	}

	return fc.Config()
}

// Loader returns a function that loads configuration files with LoadFile,
// suitable for use with framejob.WatchConfig.
func Loader(log framejob.LoggerInterface) func(path string) (*framejob.Config, error) {
	return func(path string) (*framejob.Config, error) {
		return LoadFile(log, path)
	}
}
