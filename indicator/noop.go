package indicator

import "time"

// Noop implements Indicator but does nothing.
// Used when no indicators are configured.
type Noop struct{}

func (n *Noop) Idle(info *Info)       {}
func (n *Noop) Busy(info *Info)       {}
func (n *Noop) Scanning(info *Info)   {}
func (n *Noop) Decoded(info *Info)    {}
func (n *Noop) Failed(info *Info)     {}
func (n *Noop) ConnectionLost()       {}
func (n *Noop) Connected()            {}
func (n *Noop) Pulse(d time.Duration) {}
func (n *Noop) Shutdown()             {}
func (n *Noop) Release() error        { return nil }
