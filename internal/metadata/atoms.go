package metadata

import (
	"encoding/binary"
	"strconv"
	"strings"
)

// Data type indicators of an ilst 'data' atom.
const (
	dataTypeImplicit = 0
	dataTypeUTF8     = 1
	dataTypeBEInt    = 21
	dataTypeBEUint   = 22
)

// metaItem is one entry of an iTunes/QuickTime ilst atom.
type metaItem struct {
	kind     [4]byte
	name     string // freeform items: "----:<mean>:<name>"
	dataType uint32
	value    []byte
}

// keyIndex returns the 1-based keys table index the item refers to when the
// ilst is keyed by a 'keys' atom.
func (m metaItem) keyIndex() uint32 {
	return binary.BigEndian.Uint32(m.kind[:])
}

func (m metaItem) text() string {
	return strings.TrimSpace(strings.TrimRight(string(m.value), "\x00"))
}

func (m metaItem) integer() (int, bool) {
	switch m.dataType {
	case dataTypeImplicit, dataTypeBEInt, dataTypeBEUint:
		switch len(m.value) {
		case 1:
			return int(int8(m.value[0])), true
		case 2:
			return int(int16(binary.BigEndian.Uint16(m.value))), true
		case 4:
			return int(int32(binary.BigEndian.Uint32(m.value))), true
		case 8:
			return int(int64(binary.BigEndian.Uint64(m.value))), true
		}
	}
	n, err := strconv.Atoi(m.text())
	if err != nil {
		return 0, false
	}
	return n, true
}

// walkAtoms calls fn for each atom laid out back to back in b. A truncated or
// malformed atom ends the walk.
func walkAtoms(b []byte, fn func(kind [4]byte, body []byte)) {
	for len(b) >= 8 {
		size := uint64(binary.BigEndian.Uint32(b[0:4]))
		var kind [4]byte
		copy(kind[:], b[4:8])
		header := uint64(8)

		switch size {
		case 0:
			size = uint64(len(b))
		case 1:
			if len(b) < 16 {
				return
			}
			size = binary.BigEndian.Uint64(b[8:16])
			header = 16
		}
		if size < header || size > uint64(len(b)) {
			return
		}

		fn(kind, b[header:size])
		b = b[size:]
	}
}

// parseIlst decodes the payload of an 'ilst' atom.
func parseIlst(b []byte) []metaItem {
	var items []metaItem
	walkAtoms(b, func(kind [4]byte, body []byte) {
		item := metaItem{kind: kind}
		var mean, name string
		found := false

		walkAtoms(body, func(child [4]byte, payload []byte) {
			switch string(child[:]) {
			case "mean":
				mean = fullBoxString(payload)
			case "name":
				name = fullBoxString(payload)
			case "data":
				// type indicator (4) + locale (4) + value; first one wins
				if found || len(payload) < 8 {
					return
				}
				item.dataType = binary.BigEndian.Uint32(payload[0:4]) & 0x00ffffff
				item.value = payload[8:]
				found = true
			}
		})

		if !found {
			return
		}
		if string(kind[:]) == "----" {
			item.name = "----:" + mean + ":" + name
		} else {
			item.name = string(kind[:])
		}
		items = append(items, item)
	})
	return items
}

// parseKeys decodes the payload of a QuickTime 'keys' atom into its key
// names, in table order.
func parseKeys(b []byte) []string {
	if len(b) < 8 {
		return nil
	}
	count := binary.BigEndian.Uint32(b[4:8])
	b = b[8:]

	// Each entry is at least 8 bytes, so the payload bounds the table size.
	keys := make([]string, 0, min(int64(count), int64(len(b)/8)))
	for i := uint32(0); i < count && len(b) >= 8; i++ {
		size := binary.BigEndian.Uint32(b[0:4])
		if size < 8 || uint64(size) > uint64(len(b)) {
			break
		}
		keys = append(keys, string(b[8:size]))
		b = b[size:]
	}
	return keys
}

// parseUserDataString decodes a QuickTime user-data text atom such as
// udta/©xyz: a 16-bit length and a 16-bit language code before the text.
func parseUserDataString(b []byte) string {
	if len(b) < 4 {
		return ""
	}
	n := int(binary.BigEndian.Uint16(b[0:2]))
	b = b[4:]
	if n > len(b) {
		n = len(b)
	}
	return strings.TrimSpace(string(b[:n]))
}

func fullBoxString(b []byte) string {
	if len(b) < 4 {
		return ""
	}
	return string(b[4:])
}
