// ABOUTME: Console program wrapper
// ABOUTME: Runs the bubbletea program and forwards status updates
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Console manages the mixer console program
type Console struct {
	program  *tea.Program
	quitChan chan struct{}
}

// NewConsole creates a console over ctrl
func NewConsole(ctrl Controller, fade time.Duration) *Console {
	m := NewModel(ctrl, fade)
	return &Console{
		program:  tea.NewProgram(m, tea.WithAltScreen()),
		quitChan: m.quitChan,
	}
}

// Run blocks until the user quits or Stop is called
func (c *Console) Run() error {
	_, err := c.program.Run()
	return err
}

// SetConnected updates the event bus line
func (c *Console) SetConnected(connected bool, addr string) {
	c.program.Send(StatusMsg{Connected: &connected, BrokerAddr: addr})
}

// Stop stops the console
func (c *Console) Stop() {
	c.program.Quit()
}

// QuitChan returns the channel that signals when the user wants to quit
func (c *Console) QuitChan() <-chan struct{} {
	return c.quitChan
}
