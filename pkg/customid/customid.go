// Package customid encodes a component name plus typed payload into a
// transport-limited custom id and decodes it back.
//
// Wire format:
//
//	[v2:]name—seg1—seg2—...
//
// Each segment is a raw string or a sigil followed by its value. Values that
// cannot be inlined are parked in a refstore.Store and sent as ¤token.
package customid

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/morezero/dbi/pkg/refstore"
)

const logPrefix = "customid:customid"

// Wire constants.
const (
	Delimiter     = "—"
	VersionMarker = "v2:"
	MaxLength     = 100

	SigilNumber = "π"
	SigilBool   = "𝞫"
	SigilBigInt = "ᙖ"
	SigilRef    = "¤"

	SentinelUndefined = "🗶u"
	SentinelNull      = "🗶n"
)

var (
	// ErrPayloadTooLarge is matched by errors.Is on *PayloadTooLargeError.
	ErrPayloadTooLarge = errors.New("custom id payload too large")
	// ErrInvalidSegment reports a name or string value containing the delimiter,
	// or a string value that would decode as a sigil or sentinel.
	ErrInvalidSegment = errors.New("invalid custom id segment")
)

// maxExactFloat is the largest integer magnitude a float64 holds exactly.
// Integers beyond it are sent as big integers.
const maxExactFloat = 1 << 53

var reservedPrefixes = []string{SigilNumber, SigilBool, SigilBigInt, SigilRef}

// PayloadTooLargeError is returned by strict encoders when the id exceeds MaxLength.
type PayloadTooLargeError struct {
	Length int
	Limit  int
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("%s (%d > %d)", ErrPayloadTooLarge.Error(), e.Length, e.Limit)
}

// Is lets errors.Is match ErrPayloadTooLarge.
func (e *PayloadTooLargeError) Is(target error) bool {
	return target == ErrPayloadTooLarge
}

// UndefinedValue marks an explicitly absent payload slot, distinct from nil.
type UndefinedValue struct{}

// Undefined is the decoded value of the undefined sentinel and of expired references.
var Undefined = UndefinedValue{}

// Codec encodes and decodes custom ids against one reference store.
type Codec struct {
	refs   *refstore.Store
	strict bool
}

// NewCodec creates a Codec. In strict mode oversize ids fail with
// ErrPayloadTooLarge; otherwise trailing segments are dropped to fit.
func NewCodec(refs *refstore.Store, strict bool) *Codec {
	return &Codec{refs: refs, strict: strict}
}

// Strict reports whether the codec rejects oversize ids.
func (c *Codec) Strict() bool { return c.strict }

// Refs returns the backing reference store.
func (c *Codec) Refs() *refstore.Store { return c.refs }

// EncodeOptions tune a single Encode call.
type EncodeOptions struct {
	// TTL applied to references created by this call.
	TTL time.Duration
	// Version prefixes the name with VersionMarker.
	Version bool
}

// Encode builds the custom id for name and data. It returns the handles of any
// references it created so callers can Unref them once the component is gone.
func (c *Codec) Encode(name string, data []interface{}, opts EncodeOptions) (string, []refstore.Handle, error) {
	if strings.Contains(name, Delimiter) {
		return "", nil, fmt.Errorf("%s - name %q: %w", logPrefix, name, ErrInvalidSegment)
	}

	head := name
	if opts.Version {
		head = VersionMarker + name
	}

	segments := make([]string, 0, len(data)+1)
	segments = append(segments, head)

	var created []refstore.Handle
	// owner[i] is the segment index that carries created[i].
	var owner []int
	for i, item := range data {
		seg, handle, err := c.encodeValue(item, opts.TTL)
		if err != nil {
			for _, h := range created {
				h.Unref()
			}
			return "", nil, fmt.Errorf("%s - data[%d]: %w", logPrefix, i, err)
		}
		if handle != nil {
			created = append(created, *handle)
			owner = append(owner, len(segments))
		}
		segments = append(segments, seg)
	}

	id := strings.Join(segments, Delimiter)
	length := Length(id)
	if length <= MaxLength {
		return id, created, nil
	}
	if c.strict {
		for _, h := range created {
			h.Unref()
		}
		return "", nil, &PayloadTooLargeError{Length: length, Limit: MaxLength}
	}
	id, kept := truncate(segments)
	live := created[:0]
	for i, h := range created {
		if owner[i] < kept {
			live = append(live, h)
			continue
		}
		h.Unref()
	}
	return id, live, nil
}

func (c *Codec) encodeValue(item interface{}, ttl time.Duration) (string, *refstore.Handle, error) {
	switch v := item.(type) {
	case nil:
		return SentinelNull, nil, nil
	case UndefinedValue:
		return SentinelUndefined, nil, nil
	case string:
		if reserved(v) {
			return "", nil, ErrInvalidSegment
		}
		return v, nil, nil
	case bool:
		if v {
			return SigilBool + "1", nil, nil
		}
		return SigilBool + "0", nil, nil
	case int:
		return encodeInt(int64(v)), nil, nil
	case int8:
		return SigilNumber + strconv.FormatInt(int64(v), 10), nil, nil
	case int16:
		return SigilNumber + strconv.FormatInt(int64(v), 10), nil, nil
	case int32:
		return SigilNumber + strconv.FormatInt(int64(v), 10), nil, nil
	case int64:
		return encodeInt(v), nil, nil
	case uint:
		return encodeUint(uint64(v)), nil, nil
	case uint8:
		return SigilNumber + strconv.FormatUint(uint64(v), 10), nil, nil
	case uint16:
		return SigilNumber + strconv.FormatUint(uint64(v), 10), nil, nil
	case uint32:
		return SigilNumber + strconv.FormatUint(uint64(v), 10), nil, nil
	case uint64:
		return encodeUint(v), nil, nil
	case float32:
		return SigilNumber + strconv.FormatFloat(float64(v), 'f', -1, 32), nil, nil
	case float64:
		return SigilNumber + strconv.FormatFloat(v, 'f', -1, 64), nil, nil
	case *big.Int:
		if v == nil {
			return SentinelNull, nil, nil
		}
		return SigilBigInt + v.String(), nil, nil
	case big.Int:
		return SigilBigInt + v.String(), nil, nil
	case refstore.Handle:
		return SigilRef + v.Token, nil, nil
	case *refstore.Handle:
		return SigilRef + v.Token, nil, nil
	default:
		h := c.refs.Put(v, ttl)
		return SigilRef + h.Token, &h, nil
	}
}

// reserved reports whether a raw string value cannot be sent as-is.
func reserved(v string) bool {
	if strings.Contains(v, Delimiter) || v == SentinelNull || v == SentinelUndefined {
		return true
	}
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	return false
}

func encodeInt(v int64) string {
	if v > maxExactFloat || v < -maxExactFloat {
		return SigilBigInt + strconv.FormatInt(v, 10)
	}
	return SigilNumber + strconv.FormatInt(v, 10)
}

func encodeUint(v uint64) string {
	if v > maxExactFloat {
		return SigilBigInt + strconv.FormatUint(v, 10)
	}
	return SigilNumber + strconv.FormatUint(v, 10)
}

// Decoded is the result of Decode.
type Decoded struct {
	Name    string
	Data    []interface{}
	Version bool
}

// Decode splits id into its name and typed data. Unknown or expired references
// decode to Undefined, as does any sigil segment whose payload does not parse
// (π, 𝞫 other than 1 or 0, ᙖ). Decode never mutates the reference store.
func (c *Codec) Decode(id string) *Decoded {
	parts := strings.Split(id, Delimiter)

	out := &Decoded{Name: parts[0], Data: make([]interface{}, 0, len(parts)-1)}
	if strings.HasPrefix(out.Name, VersionMarker) {
		out.Name = strings.TrimPrefix(out.Name, VersionMarker)
		out.Version = true
	}

	for _, seg := range parts[1:] {
		out.Data = append(out.Data, c.decodeValue(seg))
	}
	return out
}

// DecodeName returns only the name part of id, skipping payload decoding.
func DecodeName(id string) string {
	name := id
	if idx := strings.Index(id, Delimiter); idx >= 0 {
		name = id[:idx]
	}
	return strings.TrimPrefix(name, VersionMarker)
}

func (c *Codec) decodeValue(seg string) interface{} {
	switch {
	case seg == SentinelNull:
		return nil
	case seg == SentinelUndefined:
		return Undefined
	case strings.HasPrefix(seg, SigilNumber):
		f, err := strconv.ParseFloat(strings.TrimPrefix(seg, SigilNumber), 64)
		if err != nil {
			return Undefined
		}
		return f
	case strings.HasPrefix(seg, SigilBool):
		switch strings.TrimPrefix(seg, SigilBool) {
		case "1":
			return true
		case "0":
			return false
		}
		return Undefined
	case strings.HasPrefix(seg, SigilBigInt):
		n, ok := new(big.Int).SetString(strings.TrimPrefix(seg, SigilBigInt), 10)
		if !ok {
			return Undefined
		}
		return n
	case strings.HasPrefix(seg, SigilRef):
		if c.refs == nil {
			return Undefined
		}
		v, ok := c.refs.Get(strings.TrimPrefix(seg, SigilRef))
		if !ok {
			return Undefined
		}
		return v
	default:
		return seg
	}
}

// Length counts id the way the platform does, in UTF-16 code units.
func Length(id string) int {
	return len(utf16.Encode([]rune(id)))
}

// truncate drops whole trailing segments until the id fits and reports how
// many segments were kept. A head that is too long on its own is cut at a
// rune boundary.
func truncate(segments []string) (string, int) {
	n := len(segments)
	for n > 1 {
		n--
		if id := strings.Join(segments[:n], Delimiter); Length(id) <= MaxLength {
			return id, n
		}
	}

	units := 0
	var b strings.Builder
	for _, r := range segments[0] {
		w := 1
		if r >= 0x10000 {
			w = 2
		}
		if units+w > MaxLength {
			break
		}
		units += w
		b.WriteRune(r)
	}
	return b.String(), 1
}
