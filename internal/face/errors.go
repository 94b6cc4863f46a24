package face

import "errors"

var (
	// ErrIdentityNotFound means the NIM is unknown to the campus directory.
	ErrIdentityNotFound = errors.New("student not found in reference directory")

	// ErrNoFaceDetected means the detector found no face in the input image.
	ErrNoFaceDetected = errors.New("no face detected in image")

	// ErrEnrollmentNotFound means no face registration exists for the NIM.
	ErrEnrollmentNotFound = errors.New("face registration not found")
)
