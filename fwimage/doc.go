// Package fwimage parses firmware update payloads into loadable segments.
//
// Two payload forms are accepted:
//
//   - ELF32 little-endian executables (the build system's normal output).
//     Every PT_LOAD program header with a nonzero file size becomes one
//     segment; the load address is p_paddr when nonzero (LMA), else p_vaddr.
//     Segments are returned sorted by address.
//   - Anything without the ELF magic is treated as a flat binary targeting
//     the MCU's flash base address 0x08000000.
//
// A payload that carries the ELF magic but is malformed fails hard with a
// FormatError; there is no silent fallback for corrupt ELF files.
//
// Example:
//
//	img, err := fwimage.Parse(payload)
//	if err != nil {
//	    return err
//	}
//	for _, seg := range img.Segments {
//	    program(seg.Addr, seg.Data)
//	}
package fwimage
