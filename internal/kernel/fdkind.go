package kernel

// FdKind tags what a process's small integer file descriptor actually
// refers to. The four terminal kinds are preloaded at fd 0-3 for every
// process; FileSys descriptors are opened on demand via the OpenFd ecall.
type FdKind struct {
	Term  TermKind
	IsFS  bool
	Path  string // valid when IsFS: the vfs path this fd was opened against
}

type TermKind int

const (
	TermIn TermKind = iota
	TermOut
	TermErr
	TermLog
)

func termFd(k TermKind) FdKind           { return FdKind{Term: k} }
func fsFd(path string) FdKind           { return FdKind{IsFS: true, Path: path} }
func (f FdKind) isTerm(k TermKind) bool { return !f.IsFS && f.Term == k }
