package controllers

import "errors"

// asType matches errors.AsType from Go 1.26, which is unavailable in the
// toolchain this module is built with.
func asType[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}
