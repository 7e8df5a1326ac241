package fwimage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// ELF32 constants per the System V ABI.
const (
	elfClass32   = 1 // EI_CLASS: 32-bit objects
	elfData2LSB  = 1 // EI_DATA: little-endian
	elfHeaderLen = 52
	ptLoad       = 1 // PT_LOAD program header

	// minPhentSize is the smallest acceptable e_phentsize: the standard
	// ELF32 program header is exactly 32 bytes.
	minPhentSize = 32
)

// elfMagic identifies an ELF payload.
var elfMagic = []byte{0x7F, 'E', 'L', 'F'}

// Parse parses a firmware payload into an Image. Payloads without the ELF
// magic are flat binaries at FlashBase; malformed ELF payloads fail with
// FormatError.
func Parse(payload []byte) (*Image, error) {
	if len(payload) == 0 {
		return nil, &FormatError{Reason: "empty payload"}
	}
	if len(payload) < len(elfMagic) || !bytes.Equal(payload[:len(elfMagic)], elfMagic) {
		return &Image{
			Segments: []Segment{{Addr: FlashBase, Data: payload}},
		}, nil
	}
	return parseELF(payload)
}

func parseELF(payload []byte) (*Image, error) {
	if len(payload) < elfHeaderLen {
		return nil, &FormatError{Reason: "truncated ELF header"}
	}
	if payload[4] != elfClass32 {
		return nil, &FormatError{Reason: fmt.Sprintf("EI_CLASS %d, only 32-bit supported", payload[4])}
	}
	if payload[5] != elfData2LSB {
		return nil, &FormatError{Reason: fmt.Sprintf("EI_DATA %d, only little-endian supported", payload[5])}
	}

	le := binary.LittleEndian
	phoff := le.Uint32(payload[28:])
	phentsize := le.Uint16(payload[42:])
	phnum := le.Uint16(payload[44:])

	if phnum == 0 {
		return nil, &FormatError{Reason: "no program headers"}
	}
	if phentsize < minPhentSize {
		return nil, &FormatError{Reason: fmt.Sprintf("e_phentsize %d below minimum %d", phentsize, minPhentSize)}
	}
	tableEnd := uint64(phoff) + uint64(phnum)*uint64(phentsize)
	if tableEnd > uint64(len(payload)) {
		return nil, &FormatError{Reason: "program header table extends past end of file"}
	}

	var segments []Segment
	for i := uint16(0); i < phnum; i++ {
		ph := payload[uint32(i)*uint32(phentsize)+phoff:]

		pType := le.Uint32(ph[0:])
		if pType != ptLoad {
			continue
		}
		pOffset := le.Uint32(ph[4:])
		pVaddr := le.Uint32(ph[8:])
		pPaddr := le.Uint32(ph[12:])
		pFilesz := le.Uint32(ph[16:])
		if pFilesz == 0 {
			continue
		}
		if uint64(pOffset)+uint64(pFilesz) > uint64(len(payload)) {
			return nil, &FormatError{
				Reason: fmt.Sprintf("segment %d extends past end of file (offset 0x%X size 0x%X)", i, pOffset, pFilesz),
			}
		}

		// The physical address is the flash location; the virtual address
		// is only a fallback for images built without separate LMAs.
		addr := pPaddr
		if addr == 0 {
			addr = pVaddr
		}
		segments = append(segments, Segment{
			Addr: addr,
			Data: payload[pOffset : pOffset+pFilesz],
		})
	}

	if len(segments) == 0 {
		return nil, &FormatError{Reason: "no loadable segments"}
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Addr < segments[j].Addr })

	return &Image{Segments: segments, ELF: true}, nil
}
