package ml

import (
	"encoding/gob"
	"os"

	"refuge/pkg/errors"
)

// SaveArtifact gob-encodes a value to a file, creating or truncating it.
func SaveArtifact(path string, v interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	return nil
}

// LoadArtifact gob-decodes a file into the given value.
func LoadArtifact(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}
