package addrreg

import (
	"fmt"
	"strings"

	"github.com/vkngwrapper/core/v2/common"
)

// BindingType distinguishes driver bind notifications from unbind notifications
type BindingType uint8

const (
	BindingTypeBind BindingType = iota
	BindingTypeUnbind
)

var bindingTypeMapping = map[BindingType]string{
	BindingTypeBind:   "Bind",
	BindingTypeUnbind: "Unbind",
}

func (t BindingType) String() string {
	return bindingTypeMapping[t]
}

// BindingFlags are the flags the driver attaches to an address binding notification
type BindingFlags int32

var bindingFlagsMapping = common.NewFlagStringMapping[BindingFlags]()

func (f BindingFlags) Register(str string) {
	bindingFlagsMapping.Register(f, str)
}
func (f BindingFlags) String() string {
	return bindingFlagsMapping.FlagsToString(f)
}

const (
	// BindingInternalObject indicates that the bound memory belongs to an object the driver created
	// internally rather than one the application created
	BindingInternalObject BindingFlags = 1 << iota
)

func init() {
	BindingInternalObject.Register("BindingInternalObject")
}

// Object identifies a native object that owns an address range
type Object struct {
	Handle uint64
	Type   string
	Name   string
}

func (o Object) String() string {
	if o.Name != "" {
		return o.Name
	}
	return fmt.Sprintf("%s(0x%x)", o.Type, o.Handle)
}

// RangeEvent is one entry of the registry's binding log. Sequence gives the log a total order that
// does not depend on wall-clock time, and is restamped whenever an event is retired.
type RangeEvent struct {
	Base        uint64
	Size        uint64
	BindingType BindingType
	Sequence    uint64
	Alive       bool
	Flags       BindingFlags
	Objects     []Object
}

// End returns the first address past the end of the event's range
func (e RangeEvent) End() uint64 {
	return e.Base + e.Size
}

func (e RangeEvent) clone() RangeEvent {
	cloned := e
	if e.Objects != nil {
		cloned.Objects = make([]Object, len(e.Objects))
		copy(cloned.Objects, e.Objects)
	}
	return cloned
}

func (e RangeEvent) objectNames() string {
	if len(e.Objects) == 0 {
		return "<none>"
	}

	names := make([]string, 0, len(e.Objects))
	for _, object := range e.Objects {
		names = append(names, object.String())
	}
	return strings.Join(names, ", ")
}
