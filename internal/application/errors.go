package application

import "errors"

var ErrNotFound = errors.New("not found")
var ErrBadRequest = errors.New("bad request")
var ErrExportUnauthorized = errors.New("snapshot export requires a write credential")
