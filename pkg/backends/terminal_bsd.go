//go:build darwin || freebsd || netbsd || openbsd

package backends

import "golang.org/x/sys/unix"

const ioctlReadTermios = unix.TIOCGETA
