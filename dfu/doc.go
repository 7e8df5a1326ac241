// Package dfu programs device firmware over the USB DFU 1.1 protocol with
// the STMicroelectronics DfuSe extensions.
//
// After the application firmware receives the bootloader command, the device
// re-enumerates as an STM32 bootloader (VID 0x0483, PID 0xDF11) exposing a
// DFU interface. This package opens that interface over a raw USB driver
// (WinUSB on Windows) and drives the download state machine.
//
// # Download sequence
//
// For every firmware segment:
//
//  1. GETSTATUS; if the device is latched in dfuERROR, CLRSTATUS.
//  2. DNLOAD to block 0 with the DfuSe SET_ADDRESS_POINTER command
//     (0x21 followed by the 32-bit target address).
//  3. DNLOAD the segment data in wTransferSize chunks, block numbers
//     counting up from 2 (block 0 is the command channel and block 1 is
//     reserved by DfuSe).
//
// After the last segment, a zero-length DNLOAD to block 0 triggers
// manifestation and the device boots the new image.
//
// Every download is followed by a GETSTATUS poll loop that honors the
// device-reported bwPollTimeout. A nonzero bStatus aborts programming.
//
// # Usage
//
//	dev, err := dfu.Open()
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	prog := dfu.New(dev,
//	    dfu.WithProgressCallback(func(p dfu.Progress) {
//	        fmt.Printf("[%s] %.1f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
//	err = prog.Program(ctx, firmwareBytes)
//
// Firmware payloads are parsed by the fwimage package: ELF32 executables
// are split into their loadable segments; anything else is downloaded as a
// flat binary to the flash base address.
package dfu
