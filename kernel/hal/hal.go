// Package hal exposes the kernel's single active terminal, combining the
// framebuffer console the bootloader handed off with the COM1 serial
// sink so boot diagnostics survive even on a headless machine.
package hal

import (
	"io"

	"github.com/evkrnl/evkrnl/kernel/driver/serial"
	"github.com/evkrnl/evkrnl/kernel/driver/tty"
	"github.com/evkrnl/evkrnl/kernel/driver/video/console"
	"github.com/evkrnl/evkrnl/kernel/hal/bootinfo"
)

var (
	fbConsole = &console.Ega{}

	// ActiveTerminal is the currently active framebuffer terminal.
	ActiveTerminal = &tty.Vt{}
)

// InitTerminal attaches the framebuffer terminal to the device described
// by fb and brings up the COM1 UART, returning an io.Writer that fans
// kernel output out to both.
func InitTerminal(fb bootinfo.Framebuffer) io.Writer {
	fbConsole.Init(uint16(fb.Width), uint16(fb.Height), fb.PhysAddr)
	ActiveTerminal.AttachTo(fbConsole)

	serial.Init()

	return io.MultiWriter(ActiveTerminal, serial.COM1)
}
