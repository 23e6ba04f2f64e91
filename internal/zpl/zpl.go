package zpl

import (
	"fmt"
	"strings"
)

// Command builds ZPL II label formats
type Command struct {
	buf strings.Builder
}

func New() *Command {
	return &Command{}
}

// Start opens a label format (^XA)
func (c *Command) Start() *Command {
	c.buf.WriteString("^XA")
	return c
}

// FieldOrigin positions the next field in dots (^FO)
func (c *Command) FieldOrigin(x, y int) *Command {
	fmt.Fprintf(&c.buf, "^FO%d,%d", x, y)
	return c
}

// BarDefaults sets the narrow module width for the next barcode (^BY)
func (c *Command) BarDefaults(moduleWidth int) *Command {
	fmt.Fprintf(&c.buf, "^BY%d", moduleWidth)
	return c
}

// Code39 selects a Code 39 barcode (^B3)
// checkDigit: mod-43 check digit
// height: bar height in dots
// interpretation: print human readable line
// above: put the interpretation line above the code
func (c *Command) Code39(checkDigit bool, height int, interpretation, above bool) *Command {
	fmt.Fprintf(&c.buf, "^B3N,%s,%d,%s,%s", yesNo(checkDigit), height, yesNo(interpretation), yesNo(above))
	return c
}

// Font selects a device font with normal orientation (^A)
func (c *Command) Font(name byte, height, width int) *Command {
	fmt.Fprintf(&c.buf, "^A%cN,%d,%d", name, height, width)
	return c
}

// FieldData adds field content and closes the field (^FD ... ^FS)
func (c *Command) FieldData(data string) *Command {
	c.buf.WriteString("^FD")
	c.buf.WriteString(data)
	c.buf.WriteString("^FS")
	return c
}

// PrintQuantity sets how many copies of the label to print (^PQ)
func (c *Command) PrintQuantity(copies int) *Command {
	fmt.Fprintf(&c.buf, "^PQ%d", copies)
	return c
}

// End closes the label format (^XZ)
func (c *Command) End() *Command {
	c.buf.WriteString("^XZ")
	return c
}

// Bytes returns the raw command bytes to send to printer
func (c *Command) Bytes() []byte {
	return []byte(c.buf.String())
}

// String returns the command as a string (for debugging)
func (c *Command) String() string {
	return c.buf.String()
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
