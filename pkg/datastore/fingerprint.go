package datastore

import (
	"github.com/spf13/afero"

	"github.com/kudato/fcosinstall/pkg/errors"
	"github.com/kudato/fcosinstall/pkg/internal/hashutil"
)

// Fingerprint identifies an install by its inputs: the spec version, the
// target device and the content of every template, in order.
func Fingerprint(fs afero.Fs, specVersion, device string, templates []string) (string, error) {
	parts := []string{specVersion, device}
	for _, t := range templates {
		sum, err := hashutil.CalculateFileChecksum(fs, t)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrTemplateNotFound, "cannot read template %s", t).
				WithDetail("template", t).
				WithStage(errors.StageInput)
		}
		parts = append(parts, sum)
	}
	return hashutil.CalculatePartsChecksum(parts...), nil
}
