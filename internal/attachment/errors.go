package attachment

import (
	"github.com/tphakala/pushcore/internal/errors"
)

const component = "attachment"

// Sentinels matched with errors.Is.
var (
	ErrNotFound = errors.Newf("attachment not found").
			Component(component).
			Category(errors.CategoryAttachmentMissing).
			Build()

	ErrTooLarge = errors.Newf("attachment exceeds size limit").
			Component(component).
			Category(errors.CategoryAttachmentSize).
			Build()

	ErrInaccessible = errors.Newf("attachment source not permitted").
			Component(component).
			Category(errors.CategoryAttachmentAccess).
			Build()

	ErrUnsupportedSource = errors.Newf("unsupported attachment source").
				Component(component).
				Category(errors.CategoryUnsupportedScheme).
				Build()
)

func notFoundError(location string, cause error) error {
	return notFound(location, cause).Build()
}

func notFound(location string, cause error) *errors.ErrorBuilder {
	b := errors.Newf("attachment %s could not be read: %w", location, cause)
	if cause == nil {
		b = errors.Newf("attachment %s could not be read", location)
	}
	return b.Component(component).
		Category(errors.CategoryAttachmentMissing).
		Context("location", location)
}

func tooLargeError(location string, size, limit int64) error {
	b := errors.Newf("attachment %s exceeds the %d byte limit", location, limit).
		Component(component).
		Category(errors.CategoryAttachmentSize).
		Context("location", location).
		Context("limit", limit)
	if size >= 0 {
		b = b.Context("size", size)
	}
	return b.Build()
}

func inaccessibleError(location string, class, policy AccessClass) error {
	return errors.Newf("attachment %s is %s, collection accepts %s sources only", location, class, policy).
		Component(component).
		Category(errors.CategoryAttachmentAccess).
		Context("location", location).
		Context("access_class", class.String()).
		Context("policy", policy.String()).
		Build()
}
