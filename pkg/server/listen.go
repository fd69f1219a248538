package server

import (
	"net"
	"os"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Listen opens a Unix socket at path with the given permissions. A stale
// socket left by a previous run is removed first; any other file at path is
// an error.
func Listen(path string, mode os.FileMode) (net.Listener, error) {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, errors.Errorf("%s exists and is not a socket", path)
		}
		glog.Infof("removing stale socket %s", path)
		if err := os.Remove(path); err != nil {
			return nil, errors.Wrap(err, "removing stale socket")
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", path)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't listen on %s", path)
	}

	if err := os.Chmod(path, mode); err != nil {
		ln.Close()
		return nil, errors.Wrap(err, "setting socket permissions")
	}
	return ln, nil
}
