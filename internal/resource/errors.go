package resource

import "errors"

var (
	errNoValueOrData = errors.New("resource: create_value requires a vtype or data")
	errShareNeedsArg = errors.New("resource: share requires data or a timestamp")
)
