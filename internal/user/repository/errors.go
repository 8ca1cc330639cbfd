package repository

import "errors"

var ErrRunningAppNotFound = errors.New("running app not found")
