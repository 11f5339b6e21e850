package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tci-lang/tci/internal/assembler"
	"github.com/tci-lang/tci/internal/compiler"
	"github.com/tci-lang/tci/internal/diag"
	"github.com/tci-lang/tci/internal/hostmsg"
	"github.com/tci-lang/tci/internal/kernel"
	"github.com/tci-lang/tci/internal/telemetry"
	"github.com/tci-lang/tci/internal/vfs"
)

func newRootCmd() *cobra.Command {
	var (
		sizeReportPath string
		fsReadAccess   bool
		verbose        bool
	)

	root := &cobra.Command{
		Use:          "tci <file.c> [file2.c ...]",
		Short:        "Compile and run a small C subset against the cooperative TCI kernel",
		SilenceUsage: true,
		Args:         cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCmd(args, sizeReportPath, fsReadAccess, verbose)
		},
	}
	root.PersistentFlags().StringVar(&sizeReportPath, "size-report", "", "write a per-function bytecode size report as JSON to this path")
	root.PersistentFlags().BoolVar(&fsReadAccess, "fs-read-access", false, "permit #include \"...\" to resolve against the host filesystem")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level scheduler/ecall logging")

	root.AddCommand(newServeCmd(&fsReadAccess, &verbose))
	return root
}

func runCmd(paths []string, sizeReportPath string, fsReadAccess, verbose bool) error {
	sources, err := readSources(paths)
	if err != nil {
		return err
	}

	result, errs := compiler.Compile(sources, hostOS{}, fsReadAccess)
	if len(errs) > 0 {
		for _, e := range errs {
			diag.Render(os.Stderr, result.Store, e)
		}
		os.Exit(1)
	}

	if sizeReportPath != "" {
		report := assembler.CollectSizes(result.Store, result.Program)
		if err := assembler.WriteSizeReport(sizeReportPath, report); err != nil {
			return fmt.Errorf("writing size report: %w", err)
		}
	}

	log := telemetry.Nop()
	if verbose {
		log = telemetry.New(true)
	}

	files := vfs.New()
	k := kernel.New(files, log)
	loaded := kernel.LoadProgram(result.Store, result.Checked, result.Program)
	k.LoadAndStart(loaded)

	if stdin, err := io.ReadAll(os.Stdin); err == nil && len(stdin) > 0 {
		k.FeedStdin(string(stdin))
	}

	code, err := k.Run()
	drainEvents(k, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	os.Exit(int(code))
	return nil
}

func drainEvents(k *kernel.Kernel, stdout, stderr io.Writer) {
	for _, ev := range k.Events() {
		switch ev.Kind {
		case kernel.StdoutWrite:
			stdout.Write(ev.Data)
		case kernel.StderrWrite, kernel.StdlogWrite:
			stderr.Write(ev.Data)
		}
	}
}

func readSources(paths []string) ([]compiler.Source, error) {
	sources := make([]compiler.Source, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", p, err)
		}
		sources = append(sources, compiler.Source{Name: p, Text: string(data)})
	}
	return sources, nil
}

// hostOS resolves #include "..." against the real filesystem for
// --fs-read-access runs.
type hostOS struct{}

func (hostOS) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func newServeCmd(fsReadAccess, verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "drive the compiler/kernel over a line-delimited JSON protocol on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveLoop(os.Stdin, os.Stdout, *fsReadAccess, *verbose)
		},
	}
}

// serveLoop implements the hostmsg protocol as a synchronous request/response
// loop: each line of input is one hostmsg.In; after a Run message compiles
// and starts a kernel, the loop drives it ProcMaxOpCount instructions at a
// time between reads, mirroring the original wasm.rs run() loop's
// recv-then-step cadence without the browser RunEnv.
func serveLoop(in io.Reader, out io.Writer, fsReadAccess, verbose bool) error {
	enc := json.NewEncoder(out)
	send := func(msg hostmsg.Out) { enc.Encode(msg) }

	log := telemetry.Nop()
	if verbose {
		log = telemetry.New(true)
	}

	send(hostmsg.Startup())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var (
		k      *kernel.Kernel
		result *compiler.Result
	)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var msg hostmsg.In
		if err := json.Unmarshal(line, &msg); err != nil {
			send(hostmsg.InvalidInput(string(line)))
			continue
		}

		switch msg.Type {
		case hostmsg.InRun:
			payload, err := hostmsg.DecodeRun(msg)
			if err != nil {
				send(hostmsg.InvalidInput(err.Error()))
				continue
			}
			sources := make([]compiler.Source, 0, len(payload.Sources))
			for name, text := range payload.Sources {
				sources = append(sources, compiler.Source{Name: name, Text: text})
			}

			var errs []*diag.Error
			result, errs = compiler.Compile(sources, hostOS{}, fsReadAccess)
			if len(errs) > 0 {
				rendered := renderAll(result, errs)
				send(hostmsg.CompileError(rendered, errs))
				k = nil
				continue
			}

			send(hostmsg.Compiled())
			files := vfs.New()
			k = kernel.New(files, log)
			loaded := kernel.LoadProgram(result.Store, result.Checked, result.Program)
			k.LoadAndStart(loaded)

		case hostmsg.InEcall:
			// The in-process kernel here never actually blocks waiting on a
			// host-resolved ecall (vfs/terminal ecalls all resolve
			// synchronously against the in-memory state above), so an
			// incoming Ecall message has nothing to apply; acknowledged via
			// Debug so a driving front-end can see it was received.
			send(hostmsg.Debug("ecall resolution is not required by this kernel"))

		default:
			send(hostmsg.InvalidInput(msg.Type))
		}

		if k != nil {
			stepKernel(k, send)
		}
	}
	return scanner.Err()
}

func stepKernel(k *kernel.Kernel, send func(hostmsg.Out)) {
	status, err := k.RunOpCount(kernel.ProcMaxOpCount)
	for _, ev := range k.Events() {
		switch ev.Kind {
		case kernel.StdoutWrite:
			send(hostmsg.Stdout(string(ev.Data)))
		case kernel.StderrWrite:
			send(hostmsg.Stderr(string(ev.Data)))
		case kernel.StdlogWrite:
			send(hostmsg.Stdlog(string(ev.Data)))
		}
	}
	if err != nil {
		send(hostmsg.Stderr(err.Error()))
		return
	}
	_ = status
}

func renderAll(result *compiler.Result, errs []*diag.Error) string {
	var b renderBuf
	for _, e := range errs {
		diag.Render(&b, result.Store, e)
	}
	return string(b)
}

type renderBuf []byte

func (b *renderBuf) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}
