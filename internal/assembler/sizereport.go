package assembler

import (
	"encoding/json"
	"os"

	"github.com/tci-lang/tci/internal/bytecode"
	"github.com/tci-lang/tci/internal/symtab"
)

// FuncSize records one function's assembled bytecode footprint, adapted
// from the teacher's native-code byte-offset report to this bytecode
// target: since instructions here are fixed-shape Insts rather than
// variable-length machine code, size is instruction count rather than a
// byte-offset delta between consecutive function starts.
type FuncSize struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// SizeReport is the top-level document written to the --size-report path.
type SizeReport struct {
	Total     int        `json:"total"`
	Functions []FuncSize `json:"functions"`
}

// CollectSizes builds a SizeReport over every function prog defines, in
// Program.Funcs order.
func CollectSizes(store *symtab.Store, prog *bytecode.Program) SizeReport {
	report := SizeReport{Functions: make([]FuncSize, 0, len(prog.Funcs))}
	for _, fn := range prog.Funcs {
		size := len(fn.Insts)
		report.Functions = append(report.Functions, FuncSize{
			Name: store.SymbolToStr(fn.Name),
			Size: size,
		})
		report.Total += size
	}
	return report
}

// WriteSizeReport marshals a SizeReport as JSON to path, always writing the
// file. cmd/tci calls it only when --size-report is given (unlike the
// teacher's unconditional writeSizeAnalysis).
func WriteSizeReport(path string, report SizeReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
