package waitevent

import (
	"fmt"
	"strings"
)

// Info is a bit-packed wait event code: the class identifier lives in
// the top byte, the event number in the low 24 bits. The zero value
// means "not waiting" and is never recorded by the sampler.
type Info uint32

// Class identifies the broad category of resource a worker waits on.
type Class uint8

const (
	ClassNone Class = iota
	ClassLWLock
	ClassLock
	ClassBufferPin
	ClassActivity
	ClassClient
	ClassExtension
	ClassIPC
	ClassTimeout
	ClassIO
)

var classNames = map[Class]string{
	ClassNone:      "None",
	ClassLWLock:    "LWLock",
	ClassLock:      "Lock",
	ClassBufferPin: "BufferPin",
	ClassActivity:  "Activity",
	ClassClient:    "Client",
	ClassExtension: "Extension",
	ClassIPC:       "IPC",
	ClassTimeout:   "Timeout",
	ClassIO:        "IO",
}

const eventMask = 0x00FFFFFF

// Make packs a class and event number into an Info.
func Make(c Class, event uint32) Info {
	return Info(uint32(c)<<24 | event&eventMask)
}

// Class returns the class byte of the code.
func (i Info) Class() Class {
	return Class(i >> 24)
}

// Event returns the event number within the class.
func (i Info) Event() uint32 {
	return uint32(i) & eventMask
}

// Waiting reports whether the code describes an actual wait.
func (i Info) Waiting() bool {
	return i != 0
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Class(%d)", uint8(c))
}

func (i Info) String() string {
	if i == 0 {
		return "None"
	}
	return fmt.Sprintf("%s:%d", i.Class(), i.Event())
}

// ParseClass resolves a class by its name, case-insensitively.
func ParseClass(name string) (Class, error) {
	for c, n := range classNames {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}
	return ClassNone, fmt.Errorf("unknown wait event class: %s", name)
}
