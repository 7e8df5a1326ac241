package dfu

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
)

// recordedTransfer is one control transfer seen by the fake device.
type recordedTransfer struct {
	requestType byte
	request     byte
	value       uint16
	data        []byte
}

// fakeDevice simulates the DFU-mode bootloader for testing.
type fakeDevice struct {
	transferSize uint16
	transfers    []recordedTransfer

	// statusQueue overrides GETSTATUS replies; when drained the device
	// reports OK/dfuDNLOAD_IDLE forever.
	statusQueue []deviceStatus

	closed bool
}

func newFakeDevice(transferSize uint16) *fakeDevice {
	return &fakeDevice{transferSize: transferSize}
}

func (d *fakeDevice) ControlTransfer(requestType, request byte, value, index uint16, data []byte) (int, error) {
	rec := recordedTransfer{requestType: requestType, request: request, value: value}
	if requestType&0x80 == 0 {
		rec.data = append([]byte(nil), data...)
	}
	d.transfers = append(d.transfers, rec)

	switch {
	case requestType == requestTypeStandardIn && request == requestGetDescriptor:
		data[0] = dfuFunctionalDescSize
		data[1] = dfuFunctionalDescType
		data[2] = 0x0B // bmAttributes
		binary.LittleEndian.PutUint16(data[5:], d.transferSize)
		return dfuFunctionalDescSize, nil

	case requestType == requestTypeClassIn && request == reqGetStatus:
		st := deviceStatus{status: statusOK, state: stateDnloadIdle}
		if len(d.statusQueue) > 0 {
			st = d.statusQueue[0]
			d.statusQueue = d.statusQueue[1:]
		}
		data[0] = st.status
		timeout := uint32(st.pollTimeout.Milliseconds())
		data[1] = byte(timeout)
		data[2] = byte(timeout >> 8)
		data[3] = byte(timeout >> 16)
		data[4] = st.state
		return statusReplySize, nil

	default:
		return len(data), nil
	}
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

// downloads returns the recorded DNLOAD transfers.
func (d *fakeDevice) downloads() []recordedTransfer {
	var out []recordedTransfer
	for _, tr := range d.transfers {
		if tr.requestType == requestTypeClassOut && tr.request == reqDnload {
			out = append(out, tr)
		}
	}
	return out
}

func TestProgramFlatBinary(t *testing.T) {
	// 3000 bytes at transfer size 1024: blocks 2, 3, 4 with sizes
	// 1024, 1024, 952, then the terminating empty download to block 0.
	device := newFakeDevice(1024)
	prog := New(device)

	payload := bytes.Repeat([]byte{0xFF}, 3000)
	if err := prog.Program(context.Background(), payload); err != nil {
		t.Fatalf("Program: %v", err)
	}

	dls := device.downloads()
	if len(dls) != 5 {
		t.Fatalf("download count = %d, want 5", len(dls))
	}

	// Block 0: SET_ADDRESS_POINTER to the flash base.
	if dls[0].value != 0 {
		t.Errorf("first download block = %d, want 0", dls[0].value)
	}
	wantCmd := []byte{dfuseSetAddressPointer, 0x00, 0x00, 0x00, 0x08}
	if !bytes.Equal(dls[0].data, wantCmd) {
		t.Errorf("address pointer payload = %X, want %X", dls[0].data, wantCmd)
	}

	wantBlocks := []uint16{2, 3, 4}
	wantSizes := []int{1024, 1024, 952}
	for i := 0; i < 3; i++ {
		if dls[1+i].value != wantBlocks[i] {
			t.Errorf("data download %d block = %d, want %d", i, dls[1+i].value, wantBlocks[i])
		}
		if len(dls[1+i].data) != wantSizes[i] {
			t.Errorf("data download %d size = %d, want %d", i, len(dls[1+i].data), wantSizes[i])
		}
	}

	// Terminating download: block 0, empty payload.
	last := dls[4]
	if last.value != 0 || len(last.data) != 0 {
		t.Errorf("manifest download block=%d size=%d, want 0/0", last.value, len(last.data))
	}
}

// fixtureSegment describes one loadable segment for buildELFFixture.
type fixtureSegment struct {
	addr uint32
	data []byte
}

// buildELFFixture assembles a minimal ELF32 LE image whose program headers
// load the given segments.
func buildELFFixture(t *testing.T, segs []fixtureSegment) []byte {
	t.Helper()
	const headerLen = 52
	const phentsize = 32

	image := make([]byte, headerLen+len(segs)*phentsize)
	copy(image, []byte{0x7F, 'E', 'L', 'F'})
	image[4] = 1 // ELFCLASS32
	image[5] = 1 // ELFDATA2LSB

	le := binary.LittleEndian
	le.PutUint32(image[28:], headerLen) // e_phoff
	le.PutUint16(image[42:], phentsize)
	le.PutUint16(image[44:], uint16(len(segs)))

	offset := uint32(len(image))
	for i, s := range segs {
		ph := image[headerLen+i*phentsize:]
		le.PutUint32(ph[0:], 1) // PT_LOAD
		le.PutUint32(ph[4:], offset)
		le.PutUint32(ph[12:], s.addr) // p_paddr
		le.PutUint32(ph[16:], uint32(len(s.data)))
		offset += uint32(len(s.data))
	}
	for _, s := range segs {
		image = append(image, s.data...)
	}
	return image
}

func TestProgramBlockNumberingPerSegment(t *testing.T) {
	// Each ELF segment restarts data blocks at 2 after its own address
	// pointer command.
	image := buildELFFixture(t, []fixtureSegment{
		{addr: 0x08000000, data: bytes.Repeat([]byte{0x11}, 200)},
		{addr: 0x08008000, data: bytes.Repeat([]byte{0x22}, 80)},
	})

	device := newFakeDevice(0)
	prog := New(device, WithTransferSize(128))
	if err := prog.Program(context.Background(), image); err != nil {
		t.Fatalf("Program: %v", err)
	}

	dls := device.downloads()
	// seg0: addr cmd + blocks 2,3; seg1: addr cmd + block 2; manifest.
	wantBlocks := []uint16{0, 2, 3, 0, 2, 0}
	if len(dls) != len(wantBlocks) {
		t.Fatalf("download count = %d, want %d", len(dls), len(wantBlocks))
	}
	for i, want := range wantBlocks {
		if dls[i].value != want {
			t.Errorf("download %d block = %d, want %d", i, dls[i].value, want)
		}
	}

	// Address pointers name each segment base.
	addr0 := binary.LittleEndian.Uint32(dls[0].data[1:])
	addr1 := binary.LittleEndian.Uint32(dls[3].data[1:])
	if addr0 != 0x08000000 || addr1 != 0x08008000 {
		t.Errorf("segment addresses = 0x%08X, 0x%08X", addr0, addr1)
	}

	// 200 bytes at the 128-byte override: blocks of 128 and 72.
	if len(dls[1].data) != 128 || len(dls[2].data) != 72 {
		t.Errorf("seg0 chunk sizes = %d, %d, want 128, 72", len(dls[1].data), len(dls[2].data))
	}
}

func TestProgramClearsErrorState(t *testing.T) {
	device := newFakeDevice(1024)
	// First GETSTATUS (pre-segment check) reports a latched error.
	device.statusQueue = []deviceStatus{
		{status: statusOK, state: stateError},
	}

	prog := New(device)
	if err := prog.Program(context.Background(), []byte{0xAA}); err != nil {
		t.Fatalf("Program: %v", err)
	}

	var cleared bool
	for _, tr := range device.transfers {
		if tr.requestType == requestTypeClassOut && tr.request == reqClrStatus {
			cleared = true
		}
	}
	if !cleared {
		t.Error("no CLRSTATUS issued for a device in dfuERROR")
	}
}

func TestProgramStatusErrorAborts(t *testing.T) {
	device := newFakeDevice(1024)
	device.statusQueue = []deviceStatus{
		{status: statusOK, state: stateDfuIdle},      // pre-segment check
		{status: statusOK, state: stateDnloadIdle},   // address pointer poll
		{status: statusErrVerify, state: stateError}, // first data block poll
	}

	prog := New(device)
	err := prog.Program(context.Background(), bytes.Repeat([]byte{1}, 100))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.Status != statusErrVerify {
		t.Errorf("Status = 0x%02X, want errVERIFY", se.Status)
	}
}

func TestProgramBusyStatePolls(t *testing.T) {
	device := newFakeDevice(1024)
	device.statusQueue = []deviceStatus{
		{status: statusOK, state: stateDfuIdle}, // pre-segment check
		{status: statusOK, state: stateDnBusy},  // address pointer: busy once
		{status: statusOK, state: stateDnloadIdle},
	}

	prog := New(device)
	if err := prog.Program(context.Background(), []byte{0xAA}); err != nil {
		t.Fatalf("Program: %v", err)
	}
}

func TestProgramCancelled(t *testing.T) {
	device := newFakeDevice(1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prog := New(device)
	err := prog.Program(ctx, bytes.Repeat([]byte{1}, 100))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestProgramRejectsCorruptELF(t *testing.T) {
	device := newFakeDevice(1024)
	prog := New(device)

	// ELF magic with a truncated header must fail hard, not fall back to
	// flat binary.
	err := prog.Program(context.Background(), []byte{0x7F, 'E', 'L', 'F', 1, 1})
	if err == nil {
		t.Fatal("Program accepted corrupt ELF")
	}
	if len(device.downloads()) != 0 {
		t.Error("downloads issued for rejected image")
	}
}

func TestTransferSizeClamping(t *testing.T) {
	tests := []struct {
		name     string
		reported uint16
		want     int
	}{
		{name: "below minimum", reported: 8, want: MinTransferSize},
		{name: "above maximum", reported: 0x2000, want: MaxTransferSize},
		{name: "in range", reported: 2048, want: 2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := newFakeDevice(tt.reported)
			prog := New(device)
			size, err := prog.transferSize()
			if err != nil {
				t.Fatalf("transferSize: %v", err)
			}
			if size != tt.want {
				t.Errorf("transferSize = %d, want %d", size, tt.want)
			}
		})
	}
}

func TestProgressReported(t *testing.T) {
	device := newFakeDevice(1024)
	var phases []string
	prog := New(device, WithProgressCallback(func(p Progress) {
		phases = append(phases, p.Phase)
	}))

	if err := prog.Program(context.Background(), bytes.Repeat([]byte{1}, 2000)); err != nil {
		t.Fatalf("Program: %v", err)
	}

	if len(phases) == 0 || phases[0] != PhasePreparing {
		t.Fatalf("phases = %v, want to start with %q", phases, PhasePreparing)
	}
	if phases[len(phases)-1] != PhaseComplete {
		t.Errorf("last phase = %q, want %q", phases[len(phases)-1], PhaseComplete)
	}
}
