package cpcl

import (
	"fmt"
	"strings"
)

// Line separator and terminator used by the label formats this builder emits.
// Each line keeps a trailing space before the newline; the form ends without one.
const (
	lineSeparator = " \n"
	terminator    = "\nFORM\nPRINT "
)

// Command builds a CPCL label as a sequence of text lines
type Command struct {
	lines []string
}

func New() *Command {
	return &Command{}
}

// Start writes the session header
// offset: horizontal offset in dots
// hres, vres: resolution in dots per inch
// height: maximum label height in dots
// quantity: number of labels to print
func (c *Command) Start(offset, hres, vres, height, quantity int) *Command {
	c.lines = append(c.lines, fmt.Sprintf("! %d %d %d %d %d", offset, hres, vres, height, quantity))
	return c
}

// Barcode adds a horizontal linear barcode line
func (c *Command) Barcode(symbology string, width, ratio, height, x, y int, data string) *Command {
	c.lines = append(c.lines, fmt.Sprintf("BARCODE %s %d %d %d %d %d %s", symbology, width, ratio, height, x, y, data))
	return c
}

// Text adds a text line using a resident font
func (c *Command) Text(font, size, x, y int, data string) *Command {
	c.lines = append(c.lines, fmt.Sprintf("TEXT %d %d %d %d %s", font, size, x, y, data))
	return c
}

// Bytes returns the raw command bytes to send to printer
func (c *Command) Bytes() []byte {
	return []byte(c.String())
}

// String returns the complete form including the FORM/PRINT terminator
func (c *Command) String() string {
	return strings.Join(c.lines, lineSeparator) + terminator
}
