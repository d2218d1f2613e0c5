// Package metadata models tokens and the definitions they name.
package metadata

import "fmt"

// TableIndex identifies a metadata table (ECMA-335 II.22).
type TableIndex uint8

const (
	TableModule                 TableIndex = 0x00
	TableTypeRef                TableIndex = 0x01
	TableTypeDef                TableIndex = 0x02
	TableField                  TableIndex = 0x04
	TableMethod                 TableIndex = 0x06
	TableParam                  TableIndex = 0x08
	TableInterfaceImpl          TableIndex = 0x09
	TableMemberRef              TableIndex = 0x0A
	TableConstant               TableIndex = 0x0B
	TableCustomAttribute        TableIndex = 0x0C
	TableStandAloneSig          TableIndex = 0x11
	TableEvent                  TableIndex = 0x14
	TableProperty               TableIndex = 0x17
	TableModuleRef              TableIndex = 0x1A
	TableTypeSpec               TableIndex = 0x1B
	TableAssembly               TableIndex = 0x20
	TableAssemblyRef            TableIndex = 0x23
	TableGenericParam           TableIndex = 0x2A
	TableMethodSpec             TableIndex = 0x2B
	TableGenericParamConstraint TableIndex = 0x2C
)

var tableNames = map[TableIndex]string{
	TableModule:                 "Module",
	TableTypeRef:                "TypeRef",
	TableTypeDef:                "TypeDef",
	TableField:                  "Field",
	TableMethod:                 "Method",
	TableParam:                  "Param",
	TableInterfaceImpl:          "InterfaceImpl",
	TableMemberRef:              "MemberRef",
	TableConstant:               "Constant",
	TableCustomAttribute:        "CustomAttribute",
	TableStandAloneSig:          "StandAloneSig",
	TableEvent:                  "Event",
	TableProperty:               "Property",
	TableModuleRef:              "ModuleRef",
	TableTypeSpec:               "TypeSpec",
	TableAssembly:               "Assembly",
	TableAssemblyRef:            "AssemblyRef",
	TableGenericParam:           "GenericParam",
	TableMethodSpec:             "MethodSpec",
	TableGenericParamConstraint: "GenericParamConstraint",
}

func (t TableIndex) String() string {
	if s, ok := tableNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Table(0x%02x)", uint8(t))
}

// ParseTableIndex returns the table with the given name.
func ParseTableIndex(name string) (TableIndex, bool) {
	for t, s := range tableNames {
		if s == name {
			return t, true
		}
	}
	return 0, false
}

// MaxRID is the largest row number a token can carry.
const MaxRID = 0x00FFFFFF

// Token is a table index packed with a 1-based row number.
// Layout: bits 24-31 table, bits 0-23 row.
type Token uint32

// NewToken packs table and rid. rid is truncated to 24 bits.
func NewToken(table TableIndex, rid uint32) Token {
	return Token(uint32(table)<<24 | rid&MaxRID)
}

func (t Token) Table() TableIndex { return TableIndex(t >> 24) }
func (t Token) RID() uint32       { return uint32(t) & MaxRID }

// IsNull reports whether the token names no row. Row 0 is null for every
// table.
func (t Token) IsNull() bool { return t.RID() == 0 }

func (t Token) String() string {
	return fmt.Sprintf("%s[0x%08x]", t.Table(), uint32(t))
}
