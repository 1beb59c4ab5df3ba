//go:build unix

package filemap

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/replayfs/replayfs/src/internal/errors"
)

// IdentityOf returns the identity of the file at path, following symlinks.
func IdentityOf(path string) (FileIdentity, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return FileIdentity{}, errors.Wrapf(&os.PathError{Op: "stat", Path: path, Err: err}, "identify file")
	}
	return identityOf(&st), nil
}

// IdentityOfFile returns the identity of an open file.
func IdentityOfFile(f *os.File) (FileIdentity, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return FileIdentity{}, errors.Wrapf(&os.PathError{Op: "fstat", Path: f.Name(), Err: err}, "identify file")
	}
	return identityOf(&st), nil
}

func identityOf(st *unix.Stat_t) FileIdentity {
	return FileIdentity{Inode: uint64(st.Ino), Device: uint64(st.Dev)}
}
