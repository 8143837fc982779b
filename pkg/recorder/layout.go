package recorder

import "path/filepath"

// FileKind identifies one of the files kept for a target.
type FileKind int

const (
	ReceivingPre FileKind = iota
	ReceivingPost
	Params
	Returned
	LibraryInvocations
	InvocationCount
	ObjectProfileSize
)

// InvokedMethodsFile is the summary shared by every target.
const InvokedMethodsFile = "invoked-methods.csv"

var kindSuffixes = map[FileKind]string{
	ReceivingPre:       "-receiving.xml",
	ReceivingPost:      "-receiving-post.xml",
	Params:             "-params.xml",
	Returned:           "-returned.xml",
	LibraryInvocations: "-library-invocations.xml",
	InvocationCount:    "-count.txt",
	ObjectProfileSize:  "-object-profile-sizes.txt",
}

// ObjectLogKinds are the logs holding serialized object state. Only these
// count toward a target's storage budget.
var ObjectLogKinds = []FileKind{ReceivingPre, ReceivingPost, Params, Returned, LibraryInvocations}

// String returns the string representation of the FileKind
func (k FileKind) String() string {
	switch k {
	case ReceivingPre:
		return "ReceivingPre"
	case ReceivingPost:
		return "ReceivingPost"
	case Params:
		return "Params"
	case Returned:
		return "Returned"
	case LibraryInvocations:
		return "LibraryInvocations"
	case InvocationCount:
		return "InvocationCount"
	case ObjectProfileSize:
		return "ObjectProfileSize"
	default:
		return "Unknown"
	}
}

// Layout names the files of one target inside the storage directory.
// Names derive from the target's path code so they stay short regardless
// of the method's signature.
type Layout struct {
	Dir  string
	Code string
}

// Path returns the file for kind.
func (l Layout) Path(kind FileKind) string {
	return filepath.Join(l.Dir, l.Code+kindSuffixes[kind])
}

// ObjectLogs returns the files guarded by the size budget.
func (l Layout) ObjectLogs() []string {
	paths := make([]string, 0, len(ObjectLogKinds))
	for _, k := range ObjectLogKinds {
		paths = append(paths, l.Path(k))
	}
	return paths
}

// All returns every per-target file, object logs first.
func (l Layout) All() []string {
	return append(l.ObjectLogs(), l.Path(InvocationCount), l.Path(ObjectProfileSize))
}

// InvokedMethodsPath returns the shared summary file in dir.
func InvokedMethodsPath(dir string) string {
	return filepath.Join(dir, InvokedMethodsFile)
}
