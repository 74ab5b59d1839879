// Package serial drives the COM1 16550 UART as a secondary logging sink,
// so kernel output survives even when the framebuffer console is
// unreadable (headless QEMU, a real serial console, etc).
package serial

import "github.com/evkrnl/evkrnl/kernel/cpu"

const (
	com1Base = 0x3F8

	regData        = com1Base + 0
	regDivisorLow  = com1Base + 0
	regDivisorHigh = com1Base + 1
	regIER         = com1Base + 1
	regFCR         = com1Base + 2
	regLCR         = com1Base + 3
	regMCR         = com1Base + 4
	regLSR         = com1Base + 5

	lcrDLAB       = 1 << 7
	lcr8n1        = 0x03
	fcrEnableFIFO = 0xC7
	mcrRTSDTROut2 = 0x0B

	lsrTransmitEmpty = 1 << 5

	// divisorFor115200 programs the baud-rate generator for 115200 baud
	// against the UART's 1.8432 MHz input clock.
	divisorFor115200 = 1
)

var (
	outbFn = cpu.Outb
	inbFn  = cpu.Inb
)

// COM1 is the package-level serial sink; callers use it as an io.Writer.
var COM1 com1Writer

type com1Writer struct{}

// Init programs the UART for 115200-8N1 with FIFOs enabled.
func Init() {
	outbFn(regIER, 0x00) // disable UART interrupts; polled writes only
	outbFn(regLCR, lcrDLAB)
	outbFn(regDivisorLow, divisorFor115200&0xFF)
	outbFn(regDivisorHigh, (divisorFor115200>>8)&0xFF)
	outbFn(regLCR, lcr8n1)
	outbFn(regFCR, fcrEnableFIFO)
	outbFn(regMCR, mcrRTSDTROut2)
}

func transmitReady() bool {
	return inbFn(regLSR)&lsrTransmitEmpty != 0
}

// Write implements io.Writer, busy-waiting on the transmit-holding
// register for each byte.
func (com1Writer) Write(p []byte) (int, error) {
	for _, b := range p {
		for !transmitReady() {
		}
		outbFn(regData, b)
	}
	return len(p), nil
}
