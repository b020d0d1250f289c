package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// UUri addresses a uEntity resource: a topic, an rpc method or the entity
// itself (ResourceID 0).
type UUri struct {
	Authority      string
	UEID           uint32
	UEVersionMajor uint32
	ResourceID     uint32
}

// String returns the canonical form //authority/ue_id/version/resource with
// lower-case hex numbers. A missing authority yields /ue_id/version/resource.
func (u UUri) String() string {
	var sb strings.Builder
	sb.Grow(len(u.Authority) + 24)
	if u.Authority != "" {
		sb.WriteString("//")
		sb.WriteString(u.Authority)
	}
	sb.WriteByte('/')
	sb.WriteString(strconv.FormatUint(uint64(u.UEID), 16))
	sb.WriteByte('/')
	sb.WriteString(strconv.FormatUint(uint64(u.UEVersionMajor), 16))
	sb.WriteByte('/')
	sb.WriteString(strconv.FormatUint(uint64(u.ResourceID), 16))
	return sb.String()
}

// IsZero reports whether u has no fields set.
func (u UUri) IsZero() bool { return u == UUri{} }

// WithResource returns a copy of u addressing another resource of the same entity.
func (u UUri) WithResource(id uint32) UUri {
	u.ResourceID = id
	return u
}

// ParseURI parses the canonical string form produced by String. An optional
// "up:" scheme prefix is accepted.
func ParseURI(s string) (UUri, error) {
	rest := strings.TrimPrefix(strings.TrimSpace(s), "up:")
	var u UUri
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		i := strings.IndexByte(rest, '/')
		if i <= 0 {
			return UUri{}, fmt.Errorf("uri %q: missing authority or path", s)
		}
		u.Authority = rest[:i]
		rest = rest[i:]
	}
	if !strings.HasPrefix(rest, "/") {
		return UUri{}, fmt.Errorf("uri %q: path must start with '/'", s)
	}
	parts := strings.Split(rest[1:], "/")
	if len(parts) != 3 {
		return UUri{}, fmt.Errorf("uri %q: want 3 path segments, got %d", s, len(parts))
	}
	var nums [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 16, 32)
		if err != nil {
			return UUri{}, fmt.Errorf("uri %q: segment %d: %w", s, i+1, err)
		}
		nums[i] = uint32(n)
	}
	if nums[1] > 0xff {
		return UUri{}, fmt.Errorf("uri %q: ue_version_major %#x exceeds 8 bits", s, nums[1])
	}
	if nums[2] > 0xffff {
		return UUri{}, fmt.Errorf("uri %q: resource_id %#x exceeds 16 bits", s, nums[2])
	}
	u.UEID, u.UEVersionMajor, u.ResourceID = nums[0], nums[1], nums[2]
	return u, nil
}

// MustParseURI is ParseURI that panics on error. Intended for constants.
func MustParseURI(s string) UUri {
	u, err := ParseURI(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Fingerprint is the SHA-256 digest of a topic's canonical string form. It is
// the dispatch key for listeners.
type Fingerprint [sha256.Size]byte

// FingerprintOf computes the fingerprint of u.
func FingerprintOf(u UUri) Fingerprint { return Fingerprint(sha256.Sum256([]byte(u.String()))) }

// String returns a short hex prefix suitable for logs.
func (f Fingerprint) String() string { return hex.EncodeToString(f[:8]) }
