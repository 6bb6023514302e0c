package dds

import "errors"

var (
	ErrNotFound           = errors.New("dds: not found")
	ErrAlreadyExists      = errors.New("dds: already exists")
	ErrInvalidInput       = errors.New("dds: invalid input")
	ErrInvalidAssociation = errors.New("dds: cross-group association")
	ErrInvalidNonce       = errors.New("dds: invalid nonce format")
	ErrDurationInUse      = errors.New("dds: grant duration is referenced by a grant")
)
