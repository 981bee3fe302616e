//go:build !unix

package system

import "runtime"

func getOSInfo() (name, version string, err error) {
	return runtime.GOOS, "", nil
}
