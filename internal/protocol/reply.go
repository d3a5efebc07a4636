package protocol

import "strings"

// ErrorPrefix starts every failure line sent to a peer.
const ErrorPrefix = "ERROR:"

// WriteAck is sent once a WRITE destination has been opened; the peer then
// streams the payload.
const WriteAck = "Directory found\n"

// Failure reasons reported to peers.
const (
	ReasonPathTooLong     = "Path is too long"
	ReasonNoSpace         = "Not enough disk space"
	ReasonNoSuchDirectory = "No such directory"
	ReasonFileOpenFailed  = "File open failed: No such file or directory"
	ReasonDirOpenFailed   = "Directory open failed"
)

// ErrorLine formats a failure reply.
func ErrorLine(reason string) string {
	return ErrorPrefix + " " + reason + "\n"
}

// IsError reports whether a reply begins with ErrorPrefix.
func IsError(reply string) bool {
	return strings.HasPrefix(reply, ErrorPrefix)
}

// ListLine formats one directory entry of a LIST reply.
func ListLine(name string) string {
	return name + "\n"
}

// FilePath joins root and a WRITE/READ path with a single separator.
// No cleaning is applied: ".." segments pass through.
func FilePath(root, path string) string {
	return root + "/" + path
}

// ListPath joins root and a LIST path with no separator, so "LIST /sub"
// is needed to list root/sub.
func ListPath(root, path string) string {
	return root + path
}

// PathTooLong reports whether FilePath(root, path) would not fit in a
// MaxLineLength buffer together with its terminator.
func PathTooLong(root, path string) bool {
	return len(root)+len(path)+2 > MaxLineLength
}
