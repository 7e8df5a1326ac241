package dfu

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ElmorLabs-ThermalGrizzly/WireViewDeviceLib/fwimage"
)

// Programmer drives the DfuSe download state machine over a Device.
type Programmer struct {
	device Device
	config Config
}

// New creates a Programmer for an open DFU device.
//
// Example:
//
//	dev, err := dfu.Open()
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//	prog := dfu.New(dev, dfu.WithProgressCallback(progressFunc))
//	err = prog.Program(ctx, firmwareBytes)
func New(device Device, opts ...Option) *Programmer {
	if device == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{
		device: device,
		config: cfg,
	}
}

// Program transfers a firmware payload to the device:
//
//  1. Parse the payload (ELF32 segments, or a flat binary at the flash base).
//  2. Read the DFU functional descriptor and size download chunks.
//  3. Per segment: clear a latched error state, set the DfuSe address
//     pointer, then download data blocks starting at block 2.
//  4. Send the zero-length terminating download so the device manifests the
//     new firmware.
//
// A nonzero DFU status aborts with a StatusError. The context is observed
// between transfers.
func (p *Programmer) Program(ctx context.Context, payload []byte) error {
	img, err := fwimage.Parse(payload)
	if err != nil {
		return fmt.Errorf("parse firmware: %w", err)
	}

	startTime := time.Now()
	totalBytes := img.TotalSize()

	p.reportProgress(Progress{
		Phase:         PhasePreparing,
		TotalSegments: len(img.Segments),
		TotalBytes:    totalBytes,
	})

	transferSize, err := p.transferSize()
	if err != nil {
		return err
	}

	p.logDebug("starting download",
		"segments", len(img.Segments),
		"bytes", totalBytes,
		"transfer_size", transferSize,
		"elf", img.ELF,
	)

	bytesWritten := 0
	for i, seg := range img.Segments {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cancelled: %w", err)
		}

		if err := p.clearStatusIfError(); err != nil {
			return err
		}
		if err := p.setAddressPointer(seg.Addr); err != nil {
			return fmt.Errorf("segment %d at 0x%08X: %w", i, seg.Addr, err)
		}

		data := seg.Data
		blockNum := uint16(firstDataBlock)
		for len(data) > 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("cancelled: %w", err)
			}

			chunk := data
			if len(chunk) > transferSize {
				chunk = chunk[:transferSize]
			}
			if err := p.download(blockNum, chunk); err != nil {
				return fmt.Errorf("segment %d block %d: %w", i, blockNum, err)
			}
			data = data[len(chunk):]
			blockNum++
			bytesWritten += len(chunk)

			p.reportProgress(Progress{
				Phase:         PhaseProgramming,
				Segment:       i,
				TotalSegments: len(img.Segments),
				BytesWritten:  bytesWritten,
				TotalBytes:    totalBytes,
				Percentage:    float64(bytesWritten) / float64(totalBytes) * 95,
				ElapsedTime:   time.Since(startTime),
			})
		}
	}

	// Zero-length download to block 0 triggers manifestation.
	p.reportProgress(Progress{
		Phase:         PhaseManifesting,
		Segment:       len(img.Segments) - 1,
		TotalSegments: len(img.Segments),
		BytesWritten:  bytesWritten,
		TotalBytes:    totalBytes,
		Percentage:    98,
		ElapsedTime:   time.Since(startTime),
	})
	if err := p.download(0, nil); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	p.reportProgress(Progress{
		Phase:         PhaseComplete,
		Segment:       len(img.Segments) - 1,
		TotalSegments: len(img.Segments),
		BytesWritten:  bytesWritten,
		TotalBytes:    totalBytes,
		Percentage:    100,
		ElapsedTime:   time.Since(startTime),
	})
	p.logInfo("download complete",
		"bytes", bytesWritten,
		"elapsed", time.Since(startTime).String(),
	)

	return nil
}

// transferSize resolves the download chunk size: the configured override if
// set, else the device's wTransferSize, clamped either way.
func (p *Programmer) transferSize() (int, error) {
	size := p.config.TransferSize
	if size == 0 {
		desc := make([]byte, dfuFunctionalDescSize)
		n, err := p.device.ControlTransfer(
			requestTypeStandardIn,
			requestGetDescriptor,
			dfuFunctionalDescType<<8|0,
			dfuInterfaceNumber,
			desc,
		)
		if err != nil {
			return 0, fmt.Errorf("read DFU functional descriptor: %w", err)
		}
		if n < 7 || desc[1] != dfuFunctionalDescType {
			return 0, fmt.Errorf("read DFU functional descriptor: short or invalid reply (%d bytes)", n)
		}
		size = int(binary.LittleEndian.Uint16(desc[5:]))
	}

	if size < MinTransferSize {
		size = MinTransferSize
	}
	if size > MaxTransferSize {
		size = MaxTransferSize
	}
	return size, nil
}

// clearStatusIfError resets a device stuck in dfuERROR so a fresh download
// can start.
func (p *Programmer) clearStatusIfError() error {
	st, err := p.getStatus()
	if err != nil {
		return err
	}
	if st.state != stateError {
		return nil
	}
	p.logDebug("clearing error state", "status", st.status)
	if _, err := p.device.ControlTransfer(requestTypeClassOut, reqClrStatus, 0, dfuInterfaceNumber, nil); err != nil {
		return fmt.Errorf("clear status: %w", err)
	}
	return nil
}

// setAddressPointer issues the DfuSe SET_ADDRESS_POINTER command for the
// segment's base address and waits for the device to accept it.
func (p *Programmer) setAddressPointer(addr uint32) error {
	cmd := make([]byte, 5)
	cmd[0] = dfuseSetAddressPointer
	binary.LittleEndian.PutUint32(cmd[1:], addr)

	if _, err := p.device.ControlTransfer(requestTypeClassOut, reqDnload, 0, dfuInterfaceNumber, cmd); err != nil {
		return fmt.Errorf("set address pointer: %w", err)
	}
	return p.pollUntilReady("set address pointer")
}

// download sends one DNLOAD block and waits until the device is ready for
// the next.
func (p *Programmer) download(blockNum uint16, data []byte) error {
	if _, err := p.device.ControlTransfer(requestTypeClassOut, reqDnload, blockNum, dfuInterfaceNumber, data); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	return p.pollUntilReady("download")
}

// deviceStatus is one decoded GETSTATUS reply.
type deviceStatus struct {
	status      byte
	state       byte
	pollTimeout time.Duration
}

func (p *Programmer) getStatus() (deviceStatus, error) {
	buf := make([]byte, statusReplySize)
	n, err := p.device.ControlTransfer(requestTypeClassIn, reqGetStatus, 0, dfuInterfaceNumber, buf)
	if err != nil {
		return deviceStatus{}, fmt.Errorf("get status: %w", err)
	}
	if n < statusReplySize {
		return deviceStatus{}, fmt.Errorf("get status: short reply (%d bytes)", n)
	}
	timeout := uint32(buf[1]) | uint32(buf[2])<<8 | uint32(buf[3])<<16
	return deviceStatus{
		status:      buf[0],
		state:       buf[4],
		pollTimeout: time.Duration(timeout) * time.Millisecond,
	}, nil
}

// pollUntilReady loops on GETSTATUS until the device reaches an idle state.
// A nonzero bStatus is fatal. Busy states sleep the device-reported poll
// timeout capped at StatusPollCap; unexpected states poll at 1-100 ms.
func (p *Programmer) pollUntilReady(operation string) error {
	for {
		st, err := p.getStatus()
		if err != nil {
			return err
		}
		if st.status != statusOK {
			return &StatusError{Operation: operation, Status: st.status, State: st.state}
		}

		switch st.state {
		case stateDnloadIdle, stateDfuIdle, stateManifestSync, stateManifestWaitReset:
			return nil
		case stateDnBusy, stateManifest:
			wait := st.pollTimeout
			if wait > p.config.StatusPollCap {
				wait = p.config.StatusPollCap
			}
			time.Sleep(wait)
		default:
			wait := st.pollTimeout
			if wait < time.Millisecond {
				wait = time.Millisecond
			}
			if wait > 100*time.Millisecond {
				wait = 100 * time.Millisecond
			}
			time.Sleep(wait)
		}
	}
}

func (p *Programmer) reportProgress(progress Progress) {
	if p.config.ProgressCallback != nil {
		p.config.ProgressCallback(progress)
	}
}

func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}
