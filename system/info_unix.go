//go:build unix

package system

import "golang.org/x/sys/unix"

func getOSInfo() (name, version string, err error) {
	var uts unix.Utsname
	if err = unix.Uname(&uts); err != nil {
		return
	}
	name = unix.ByteSliceToString(uts.Sysname[:])
	version = unix.ByteSliceToString(uts.Release[:])
	return
}
