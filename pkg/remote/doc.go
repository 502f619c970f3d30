// Package remote runs commands and moves files on the target host.
//
// A Client wraps one transport (an SSH connection, or the local machine when
// fcosinstall runs inside the live environment) and builds file transfer and
// file reads on top of plain command execution. Commands are argument
// vectors; the SSH transport quotes them for the remote POSIX shell, so no
// value is ever interpolated into a command string.
package remote
