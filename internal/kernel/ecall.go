package kernel

import (
	"github.com/tci-lang/tci/internal/bytecode"
	"github.com/tci-lang/tci/internal/vfs"
	"go.uber.org/zap"
)

// ecall error codes pushed back onto the process's operand stack, mirroring
// the original EcallError::to_u64 encoding: small negative-looking unsigned
// values a C caller compares against 0 to detect failure.
const (
	errDoesntExist  = ^uint64(0)       // -1
	errReadTermOut  = ^uint64(0) - 1   // -2
	errReadTermErr  = ^uint64(0) - 2   // -3
	errReadTermLog  = ^uint64(0) - 3   // -4
	errWriteTermIn  = ^uint64(0) - 4   // -5
	errNotFound     = ^uint64(0) - 5   // -6
	errAlreadyExist = ^uint64(0) - 6   // -7
	errPermission   = ^uint64(0) - 7   // -8
)

// dispatchEcall services one ecall raised by proc, mutating shared kernel
// state (files, terminal output buffer) and pushing the ecall's result (if
// any) onto the process's operand stack before reporting Running/Blocked/
// Exited back to RunOpCount.
func (k *Kernel) dispatchEcall(procIdx int, proc *Process, num int64) (string, error) {
	switch num {
	case bytecode.EcallExit:
		args := proc.Memory.PopArgs(1)
		code := int32(int64(int32(args[0])))
		proc.Status = StatusExited
		proc.ExitVal = code
		k.log.Debug("process exited via ecall", zap.Int("proc", procIdx), zap.Int32("code", code))
		return "Exited", nil

	case bytecode.EcallOpenFd:
		args := proc.Memory.PopArgs(2)
		nameAddr, mode := uint32(args[0]), int32(args[1])
		name := string(proc.Memory.ReadCString(nameAddr))

		var openMode vfs.OpenMode
		switch mode {
		case 1:
			openMode = vfs.OpenCreate
		case 2:
			openMode = vfs.OpenCreateClear
		default:
			openMode = vfs.OpenExisting
		}

		if err := k.files.Open(name, openMode); err != nil {
			proc.Memory.PushResult(errNotFound)
			k.log.Debug("openfd failed", zap.String("path", name), zap.Error(err))
			return "Blocked", nil
		}

		fd := len(proc.Fds)
		proc.Fds = append(proc.Fds, fsFd(name))
		proc.Memory.PushResult(uint64(fd))
		k.log.Debug("openfd", zap.Int("proc", procIdx), zap.String("path", name), zap.Int("fd", fd))
		return "Blocked", nil

	case bytecode.EcallReadFd:
		args := proc.Memory.PopArgs(4)
		fd, bufAddr, begin, length := int(args[0]), uint32(args[1]), int(int32(args[2])), int(int32(args[3]))
		n := k.readFd(proc, fd, bufAddr, begin, length)
		proc.Memory.PushResult(n)
		return "Running", nil

	case bytecode.EcallWriteFd:
		args := proc.Memory.PopArgs(4)
		fd, bufAddr, begin, length := int(args[0]), uint32(args[1]), int(int32(args[2])), int(int32(args[3]))
		data := proc.Memory.ReadBytes(bufAddr, length)
		status := k.writeFd(proc, fd, data, begin, true)
		return status, nil

	case bytecode.EcallAppendFd:
		args := proc.Memory.PopArgs(3)
		fd, bufAddr, length := int(args[0]), uint32(args[1]), int(int32(args[2]))
		data := proc.Memory.ReadBytes(bufAddr, length)
		status := k.writeFd(proc, fd, data, 0, false)
		return status, nil

	default:
		return "Errored", nil
	}
}

func (k *Kernel) readFd(proc *Process, fd int, bufAddr uint32, begin, length int) uint64 {
	if fd < 0 || fd >= len(proc.Fds) {
		return errDoesntExist
	}
	kind := proc.Fds[fd]
	switch {
	case kind.isTerm(TermIn):
		// Terminal reads ignore begin and consume from the unread front of
		// the shared stdin buffer.
		start := k.inBegin
		end := start + length
		if end > len(k.input) {
			end = len(k.input)
		}
		data := k.input[start:end]
		proc.Memory.WriteBytes(bufAddr, []byte(data))
		if end == len(k.input) {
			k.input = ""
			k.inBegin = 0
		} else {
			k.inBegin = end
		}
		return uint64(len(data))
	case kind.isTerm(TermOut):
		return errReadTermOut
	case kind.isTerm(TermErr):
		return errReadTermErr
	case kind.isTerm(TermLog):
		return errReadTermLog
	case kind.IsFS:
		buf := make([]byte, length)
		n, err := k.files.ReadRange(kind.Path, begin, buf)
		if err != nil {
			return errNotFound
		}
		proc.Memory.WriteBytes(bufAddr, buf[:n])
		return uint64(n)
	default:
		return errDoesntExist
	}
}

func (k *Kernel) writeFd(proc *Process, fd int, data []byte, begin int, isRangedWrite bool) string {
	if fd < 0 || fd >= len(proc.Fds) {
		proc.Memory.PushResult(errDoesntExist)
		return "Running"
	}
	kind := proc.Fds[fd]
	switch {
	case kind.isTerm(TermIn):
		proc.Memory.PushResult(errWriteTermIn)
		return "Running"
	case kind.isTerm(TermOut):
		k.output = append(k.output, WriteEvent{Kind: StdoutWrite, Data: data})
		proc.Memory.PushResult(0)
		return "Running"
	case kind.isTerm(TermErr):
		k.output = append(k.output, WriteEvent{Kind: StderrWrite, Data: data})
		proc.Memory.PushResult(0)
		return "Running"
	case kind.isTerm(TermLog):
		k.output = append(k.output, WriteEvent{Kind: StdlogWrite, Data: data})
		proc.Memory.PushResult(0)
		return "Running"
	case kind.IsFS:
		var err error
		if isRangedWrite {
			err = k.files.WriteRange(kind.Path, begin, data)
		} else {
			_, err = k.files.Append(kind.Path, data)
		}
		if err != nil {
			proc.Memory.PushResult(errNotFound)
		} else {
			proc.Memory.PushResult(uint64(len(data)))
		}
		return "Blocked"
	default:
		proc.Memory.PushResult(errDoesntExist)
		return "Running"
	}
}
