package sig

import "fmt"

// ElementType is a type tag inside a signature blob (ECMA-335 II.23.1.16).
//
// IMPORTANT: these values are fixed by the file format.
type ElementType uint8

const (
	ElementEnd         ElementType = 0x00
	ElementVoid        ElementType = 0x01
	ElementBoolean     ElementType = 0x02
	ElementChar        ElementType = 0x03
	ElementI1          ElementType = 0x04
	ElementU1          ElementType = 0x05
	ElementI2          ElementType = 0x06
	ElementU2          ElementType = 0x07
	ElementI4          ElementType = 0x08
	ElementU4          ElementType = 0x09
	ElementI8          ElementType = 0x0A
	ElementU8          ElementType = 0x0B
	ElementR4          ElementType = 0x0C
	ElementR8          ElementType = 0x0D
	ElementString      ElementType = 0x0E
	ElementPtr         ElementType = 0x0F
	ElementByRef       ElementType = 0x10
	ElementValueType   ElementType = 0x11
	ElementClass       ElementType = 0x12
	ElementVar         ElementType = 0x13
	ElementArray       ElementType = 0x14
	ElementGenericInst ElementType = 0x15
	ElementTypedByRef  ElementType = 0x16
	ElementI           ElementType = 0x18
	ElementU           ElementType = 0x19
	ElementFnPtr       ElementType = 0x1B
	ElementObject      ElementType = 0x1C
	ElementSzArray     ElementType = 0x1D
	ElementMVar        ElementType = 0x1E
	ElementCModReqd    ElementType = 0x1F
	ElementCModOpt     ElementType = 0x20
	ElementInternal    ElementType = 0x21
	ElementModifier    ElementType = 0x40
	ElementSentinel    ElementType = 0x41
	ElementPinned      ElementType = 0x45

	// Custom attribute blobs only.
	ElementSystemType ElementType = 0x50
	ElementBoxed      ElementType = 0x51
	ElementEnum       ElementType = 0x55
)

var corLibNames = map[ElementType]string{
	ElementVoid:       "void",
	ElementBoolean:    "bool",
	ElementChar:       "char",
	ElementI1:         "int8",
	ElementU1:         "uint8",
	ElementI2:         "int16",
	ElementU2:         "uint16",
	ElementI4:         "int32",
	ElementU4:         "uint32",
	ElementI8:         "int64",
	ElementU8:         "uint64",
	ElementR4:         "float32",
	ElementR8:         "float64",
	ElementString:     "string",
	ElementTypedByRef: "typedref",
	ElementI:          "native int",
	ElementU:          "native uint",
	ElementObject:     "object",
}

// IsCorLib reports whether e is a primitive that stands alone in a blob.
func (e ElementType) IsCorLib() bool {
	_, ok := corLibNames[e]
	return ok
}

func (e ElementType) String() string {
	if s, ok := corLibNames[e]; ok {
		return s
	}
	switch e {
	case ElementPtr:
		return "ptr"
	case ElementByRef:
		return "byref"
	case ElementValueType:
		return "valuetype"
	case ElementClass:
		return "class"
	case ElementVar:
		return "var"
	case ElementArray:
		return "array"
	case ElementGenericInst:
		return "genericinst"
	case ElementFnPtr:
		return "fnptr"
	case ElementSzArray:
		return "szarray"
	case ElementMVar:
		return "mvar"
	case ElementCModReqd:
		return "modreq"
	case ElementCModOpt:
		return "modopt"
	case ElementSentinel:
		return "sentinel"
	case ElementPinned:
		return "pinned"
	}
	return fmt.Sprintf("ElementType(0x%02x)", uint8(e))
}
