// Package syslibs bundles the seven system headers named in the external
// interface spec, each paired with a libs/<name>.c implementation, directly
// into the tci binary.
package syslibs

import "embed"

//go:embed include/*.h libs/*.c
var bundle embed.FS

// SysLib pairs one bundled header with its implementation source.
type SysLib struct {
	Header string
	Impl   string
}

// Headers maps a bracket-include name ("stdio.h") to its bundled pair.
var Headers = map[string]SysLib{}

func init() {
	names := []string{
		"tci.h", "stdio.h", "stdlib.h", "string.h",
		"stddef.h", "stdint.h", "stdarg.h",
	}
	for _, name := range names {
		header, err := bundle.ReadFile("include/" + name)
		if err != nil {
			panic(err)
		}
		implName := name[:len(name)-len(".h")] + ".c"
		impl, err := bundle.ReadFile("libs/" + implName)
		if err != nil {
			panic(err)
		}
		Headers[name] = SysLib{Header: string(header), Impl: string(impl)}
	}
}
