//go:build !linux

package sandbox

// Init is a no-op outside linux, where programs cannot be launched.
func Init() {}
