package core

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// ClarityTypeID is the one-byte consensus type prefix Clarity values are
// serialized with.
type ClarityTypeID byte

const (
	ClarityInt            ClarityTypeID = 0x00
	ClarityUInt           ClarityTypeID = 0x01
	ClarityBuffer         ClarityTypeID = 0x02
	ClarityBoolTrue       ClarityTypeID = 0x03
	ClarityBoolFalse      ClarityTypeID = 0x04
	ClarityPrincipalStd   ClarityTypeID = 0x05
	ClarityPrincipalContr ClarityTypeID = 0x06
	ClarityResponseOk     ClarityTypeID = 0x07
	ClarityResponseErr    ClarityTypeID = 0x08
	ClarityOptionalNone   ClarityTypeID = 0x09
	ClarityOptionalSome   ClarityTypeID = 0x0a
	ClarityList           ClarityTypeID = 0x0b
	ClarityTuple          ClarityTypeID = 0x0c
	ClarityStringASCII    ClarityTypeID = 0x0d
	ClarityStringUTF8     ClarityTypeID = 0x0e
)

// ClarityValue is the recursive sum type described in spec.md §4.2's clarity
// value decoding section. Exactly one of the typed fields is populated,
// selected by TypeID; composite variants hold boxed children.
type ClarityValue struct {
	TypeID ClarityTypeID

	Int  *big.Int // Int and UInt
	Buf  []byte   // Buffer
	Bool bool

	PrincipalAddress  string // standard or contract principal
	PrincipalContract string // non-empty only for contract principals

	Response *ClarityValue // boxed inner value for response-ok/response-err
	IsOk     bool

	Optional *ClarityValue // nil means "none"

	List []ClarityValue

	TupleKeys   []string // preserves field order
	TupleValues map[string]ClarityValue

	ASCII string
	UTF8  string
}

// DecodeClarityValue consensus-deserializes raw (not hex-prefixed) bytes into
// a ClarityValue. It is the inverse of ClarityValue.Encode's byte form.
func DecodeClarityValue(raw []byte) (ClarityValue, error) {
	v, rest, err := decodeClarityValue(raw)
	if err != nil {
		return ClarityValue{}, err
	}
	if len(rest) != 0 {
		return ClarityValue{}, fmt.Errorf("%w: %d trailing bytes", ErrConsensusDeserialize, len(rest))
	}
	return v, nil
}

// DecodeClarityValueHex decodes a 0x-prefixed (or bare) hex string.
func DecodeClarityValueHex(s string) (ClarityValue, error) {
	raw, err := decodeHexPrefixed(s)
	if err != nil {
		return ClarityValue{}, fmt.Errorf("%w: %v", ErrConsensusDeserialize, err)
	}
	return DecodeClarityValue(raw)
}

func decodeClarityValue(b []byte) (ClarityValue, []byte, error) {
	if len(b) < 1 {
		return ClarityValue{}, nil, fmt.Errorf("%w: empty clarity value", ErrConsensusDeserialize)
	}
	id := ClarityTypeID(b[0])
	b = b[1:]
	switch id {
	case ClarityInt, ClarityUInt:
		if len(b) < 16 {
			return ClarityValue{}, nil, fmt.Errorf("%w: short int", ErrConsensusDeserialize)
		}
		n := new(big.Int).SetBytes(b[:16])
		if id == ClarityInt {
			// two's-complement 128-bit signed
			max := new(big.Int).Lsh(big.NewInt(1), 127)
			if n.Cmp(max) >= 0 {
				mod := new(big.Int).Lsh(big.NewInt(1), 128)
				n.Sub(n, mod)
			}
		}
		return ClarityValue{TypeID: id, Int: n}, b[16:], nil
	case ClarityBuffer:
		if len(b) < 4 {
			return ClarityValue{}, nil, fmt.Errorf("%w: short buffer length", ErrConsensusDeserialize)
		}
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < n {
			return ClarityValue{}, nil, fmt.Errorf("%w: truncated buffer", ErrConsensusDeserialize)
		}
		return ClarityValue{TypeID: id, Buf: append([]byte(nil), b[:n]...)}, b[n:], nil
	case ClarityBoolTrue:
		return ClarityValue{TypeID: id, Bool: true}, b, nil
	case ClarityBoolFalse:
		return ClarityValue{TypeID: id, Bool: false}, b, nil
	case ClarityPrincipalStd:
		addr, rest, err := decodeStandardPrincipal(b)
		if err != nil {
			return ClarityValue{}, nil, err
		}
		return ClarityValue{TypeID: id, PrincipalAddress: addr}, rest, nil
	case ClarityPrincipalContr:
		addr, rest, err := decodeStandardPrincipal(b)
		if err != nil {
			return ClarityValue{}, nil, err
		}
		if len(rest) < 1 {
			return ClarityValue{}, nil, fmt.Errorf("%w: missing contract name length", ErrConsensusDeserialize)
		}
		n := int(rest[0])
		rest = rest[1:]
		if len(rest) < n {
			return ClarityValue{}, nil, fmt.Errorf("%w: truncated contract name", ErrConsensusDeserialize)
		}
		name := string(rest[:n])
		return ClarityValue{TypeID: id, PrincipalAddress: addr, PrincipalContract: name}, rest[n:], nil
	case ClarityResponseOk, ClarityResponseErr:
		inner, rest, err := decodeClarityValue(b)
		if err != nil {
			return ClarityValue{}, nil, err
		}
		return ClarityValue{TypeID: id, Response: &inner, IsOk: id == ClarityResponseOk}, rest, nil
	case ClarityOptionalNone:
		return ClarityValue{TypeID: id}, b, nil
	case ClarityOptionalSome:
		inner, rest, err := decodeClarityValue(b)
		if err != nil {
			return ClarityValue{}, nil, err
		}
		return ClarityValue{TypeID: id, Optional: &inner}, rest, nil
	case ClarityList:
		if len(b) < 4 {
			return ClarityValue{}, nil, fmt.Errorf("%w: short list length", ErrConsensusDeserialize)
		}
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		items := make([]ClarityValue, 0, n)
		for i := uint32(0); i < n; i++ {
			var v ClarityValue
			var err error
			v, b, err = decodeClarityValue(b)
			if err != nil {
				return ClarityValue{}, nil, err
			}
			items = append(items, v)
		}
		return ClarityValue{TypeID: id, List: items}, b, nil
	case ClarityTuple:
		if len(b) < 4 {
			return ClarityValue{}, nil, fmt.Errorf("%w: short tuple length", ErrConsensusDeserialize)
		}
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		keys := make([]string, 0, n)
		vals := make(map[string]ClarityValue, n)
		for i := uint32(0); i < n; i++ {
			if len(b) < 1 {
				return ClarityValue{}, nil, fmt.Errorf("%w: missing tuple key length", ErrConsensusDeserialize)
			}
			klen := int(b[0])
			b = b[1:]
			if len(b) < klen {
				return ClarityValue{}, nil, fmt.Errorf("%w: truncated tuple key", ErrConsensusDeserialize)
			}
			key := string(b[:klen])
			b = b[klen:]
			var v ClarityValue
			var err error
			v, b, err = decodeClarityValue(b)
			if err != nil {
				return ClarityValue{}, nil, err
			}
			keys = append(keys, key)
			vals[key] = v
		}
		return ClarityValue{TypeID: id, TupleKeys: keys, TupleValues: vals}, b, nil
	case ClarityStringASCII:
		if len(b) < 4 {
			return ClarityValue{}, nil, fmt.Errorf("%w: short ascii length", ErrConsensusDeserialize)
		}
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < n {
			return ClarityValue{}, nil, fmt.Errorf("%w: truncated ascii string", ErrConsensusDeserialize)
		}
		return ClarityValue{TypeID: id, ASCII: string(b[:n])}, b[n:], nil
	case ClarityStringUTF8:
		if len(b) < 4 {
			return ClarityValue{}, nil, fmt.Errorf("%w: short utf8 length", ErrConsensusDeserialize)
		}
		n := binary.BigEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < n {
			return ClarityValue{}, nil, fmt.Errorf("%w: truncated utf8 string", ErrConsensusDeserialize)
		}
		return ClarityValue{TypeID: id, UTF8: string(b[:n])}, b[n:], nil
	default:
		return ClarityValue{}, nil, fmt.Errorf("%w: unknown clarity type 0x%02x", ErrConsensusDeserialize, byte(id))
	}
}

func decodeStandardPrincipal(b []byte) (string, []byte, error) {
	if len(b) < 21 {
		return "", nil, fmt.Errorf("%w: short principal", ErrConsensusDeserialize)
	}
	version := b[0]
	hash160 := b[1:21]
	addr := fmt.Sprintf("v%d-%s", version, hex.EncodeToString(hash160))
	return addr, b[21:], nil
}

// Encode re-serializes v to its consensus byte form. Used for the
// decoded-value round-trip property (spec.md §8).
func (v ClarityValue) Encode() []byte {
	out := []byte{byte(v.TypeID)}
	switch v.TypeID {
	case ClarityInt, ClarityUInt:
		n := v.Int
		if n == nil {
			n = big.NewInt(0)
		}
		bi := new(big.Int).Set(n)
		if v.TypeID == ClarityInt && bi.Sign() < 0 {
			mod := new(big.Int).Lsh(big.NewInt(1), 128)
			bi.Add(bi, mod)
		}
		buf := make([]byte, 16)
		b := bi.Bytes()
		copy(buf[16-len(b):], b)
		out = append(out, buf...)
	case ClarityBuffer:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v.Buf)))
		out = append(out, lenBuf[:]...)
		out = append(out, v.Buf...)
	case ClarityBoolTrue, ClarityBoolFalse:
		// discriminant alone encodes the value.
	case ClarityPrincipalStd, ClarityPrincipalContr:
		var version byte
		var hash160 []byte
		fmt.Sscanf(v.PrincipalAddress, "v%d-", &version)
		if idx := strings.Index(v.PrincipalAddress, "-"); idx >= 0 {
			hash160, _ = hex.DecodeString(v.PrincipalAddress[idx+1:])
		}
		out = append(out, version)
		padded := make([]byte, 20)
		copy(padded, hash160)
		out = append(out, padded...)
		if v.TypeID == ClarityPrincipalContr {
			out = append(out, byte(len(v.PrincipalContract)))
			out = append(out, []byte(v.PrincipalContract)...)
		}
	case ClarityResponseOk, ClarityResponseErr:
		if v.Response != nil {
			out = append(out, v.Response.Encode()...)
		}
	case ClarityOptionalNone:
	case ClarityOptionalSome:
		if v.Optional != nil {
			out = append(out, v.Optional.Encode()...)
		}
	case ClarityList:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v.List)))
		out = append(out, lenBuf[:]...)
		for _, item := range v.List {
			out = append(out, item.Encode()...)
		}
	case ClarityTuple:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v.TupleKeys)))
		out = append(out, lenBuf[:]...)
		for _, k := range v.TupleKeys {
			out = append(out, byte(len(k)))
			out = append(out, []byte(k)...)
			val := v.TupleValues[k]
			out = append(out, val.Encode()...)
		}
	case ClarityStringASCII:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v.ASCII)))
		out = append(out, lenBuf[:]...)
		out = append(out, []byte(v.ASCII)...)
	case ClarityStringUTF8:
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v.UTF8)))
		out = append(out, lenBuf[:]...)
		out = append(out, []byte(v.UTF8)...)
	}
	return out
}

// EncodeHex returns the 0x-prefixed hex form of Encode.
func (v ClarityValue) EncodeHex() string { return hexPrefixed(v.Encode()) }

// JSON renders v per the deterministic serialization rules of spec.md §4.2:
// integers as JSON numbers, buffers as "0x...", ascii/utf8 as unescaped
// strings, optional-none as null, response as {result:{success,value}},
// tuple as an object keyed by field name, list as a JSON array.
func (v ClarityValue) JSON() interface{} {
	switch v.TypeID {
	case ClarityInt, ClarityUInt:
		if v.Int == nil {
			return json.Number("0")
		}
		return json.Number(v.Int.String())
	case ClarityBuffer:
		return hexPrefixed(v.Buf)
	case ClarityBoolTrue:
		return true
	case ClarityBoolFalse:
		return false
	case ClarityPrincipalStd:
		return v.PrincipalAddress
	case ClarityPrincipalContr:
		return v.PrincipalAddress + "." + v.PrincipalContract
	case ClarityResponseOk, ClarityResponseErr:
		var inner interface{}
		if v.Response != nil {
			inner = v.Response.JSON()
		}
		return map[string]interface{}{
			"result": map[string]interface{}{
				"success": v.TypeID == ClarityResponseOk,
				"value":   inner,
			},
		}
	case ClarityOptionalNone:
		return nil
	case ClarityOptionalSome:
		if v.Optional == nil {
			return nil
		}
		return v.Optional.JSON()
	case ClarityList:
		out := make([]interface{}, 0, len(v.List))
		for _, item := range v.List {
			out = append(out, item.JSON())
		}
		return out
	case ClarityTuple:
		out := make(map[string]interface{}, len(v.TupleKeys))
		for _, k := range v.TupleKeys {
			out[k] = v.TupleValues[k].JSON()
		}
		return out
	case ClarityStringASCII:
		return v.ASCII
	case ClarityStringUTF8:
		return v.UTF8
	default:
		return nil
	}
}

// Display renders v the way `print`-event predicates compare it against:
// Clarity's human-readable repr, e.g. `{event: "trade", amount: u10}`.
func (v ClarityValue) Display() string {
	switch v.TypeID {
	case ClarityInt:
		if v.Int == nil {
			return "0"
		}
		return v.Int.String()
	case ClarityUInt:
		if v.Int == nil {
			return "u0"
		}
		return "u" + v.Int.String()
	case ClarityBuffer:
		return "0x" + hex.EncodeToString(v.Buf)
	case ClarityBoolTrue:
		return "true"
	case ClarityBoolFalse:
		return "false"
	case ClarityPrincipalStd:
		return v.PrincipalAddress
	case ClarityPrincipalContr:
		return v.PrincipalAddress + "." + v.PrincipalContract
	case ClarityResponseOk:
		return "(ok " + displayOrNone(v.Response) + ")"
	case ClarityResponseErr:
		return "(err " + displayOrNone(v.Response) + ")"
	case ClarityOptionalNone:
		return "none"
	case ClarityOptionalSome:
		return "(some " + displayOrNone(v.Optional) + ")"
	case ClarityList:
		parts := make([]string, 0, len(v.List))
		for _, item := range v.List {
			parts = append(parts, item.Display())
		}
		return "(list " + strings.Join(parts, " ") + ")"
	case ClarityTuple:
		parts := make([]string, 0, len(v.TupleKeys))
		for _, k := range v.TupleKeys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, v.TupleValues[k].Display()))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ClarityStringASCII:
		return `"` + v.ASCII + `"`
	case ClarityStringUTF8:
		return `u"` + v.UTF8 + `"`
	default:
		return ""
	}
}

func displayOrNone(v *ClarityValue) string {
	if v == nil {
		return ""
	}
	return v.Display()
}
