package types

import (
	"errors"
	"fmt"
	"sort"

	"github.com/eth2030/admission/rlp"
	"github.com/minio/sha256-simd"
)

var (
	ErrEmptyRequestGroup = errors.New("requests: empty request group")
	ErrRequestsOrder     = errors.New("requests: groups not in strictly ascending type order")
	ErrRequestsHash      = errors.New("requests: commitment mismatch")
)

// EmptyRequestsHash is the commitment of a block without requests.
var EmptyRequestsHash = Hash(sha256.Sum256(nil))

// Requests is a list of EL requests in execution order.
type Requests []Request

// FilterByType returns all requests of the given type.
func (rs Requests) FilterByType(reqType byte) Requests {
	var result Requests
	for _, r := range rs {
		if r.Type() == reqType {
			result = append(result, r)
		}
	}
	return result
}

// Encode serializes all requests to their wire formats.
func (rs Requests) Encode() [][]byte {
	result := make([][]byte, len(rs))
	for i, r := range rs {
		result[i] = EncodeRequest(r)
	}
	return result
}

// Hash returns the requests commitment of rs.
func (rs Requests) Hash() Hash {
	return ComputeRequestsHash(FlattenRequests(rs))
}

// RequestGroup holds the requests of one type in execution order.
type RequestGroup struct {
	Type     byte
	Requests Requests
}

// Encode returns type || concat(inner encodings).
func (g RequestGroup) Encode() []byte {
	out := []byte{g.Type}
	for _, r := range g.Requests {
		out = rlp.AppendList(out, r.appendFields(nil))
	}
	return out
}

// GroupRequests partitions rs by type. Groups are returned in ascending type
// order, only non-empty groups are returned and the relative execution
// order of requests inside a group is preserved.
func GroupRequests(rs Requests) []RequestGroup {
	byType := make(map[byte]Requests)
	for _, r := range rs {
		byType[r.Type()] = append(byType[r.Type()], r)
	}
	groups := make([]RequestGroup, 0, len(byType))
	for t, list := range byType {
		groups = append(groups, RequestGroup{Type: t, Requests: list})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Type < groups[j].Type })
	return groups
}

// FlattenRequests returns the block requests list: one entry per non-empty
// group, each encoded as type || concat(inner encodings).
func FlattenRequests(rs Requests) [][]byte {
	groups := GroupRequests(rs)
	out := make([][]byte, len(groups))
	for i, g := range groups {
		out[i] = g.Encode()
	}
	return out
}

// ValidateRequestsOrder checks a flattened requests list: every group must
// carry data and the type bytes must be strictly ascending.
func ValidateRequestsOrder(groups [][]byte) error {
	for i, g := range groups {
		if len(g) < 2 {
			return fmt.Errorf("%w at index %d", ErrEmptyRequestGroup, i)
		}
		if i > 0 && groups[i-1][0] >= g[0] {
			return fmt.Errorf("%w: type %#02x after %#02x", ErrRequestsOrder, g[0], groups[i-1][0])
		}
	}
	return nil
}

// SplitRequests decodes a flattened requests list back into requests. It is
// the inverse of FlattenRequests.
func SplitRequests(groups [][]byte) (Requests, error) {
	if err := ValidateRequestsOrder(groups); err != nil {
		return nil, err
	}
	var out Requests
	for _, g := range groups {
		t, data := g[0], g[1:]
		if _, ok := requestTypes[t]; !ok {
			return nil, &DecodeError{Kind: DecodeUnknownType, Type: t}
		}
		for len(data) > 0 {
			_, _, rest, err := rlp.SplitItem(data)
			if err != nil {
				return nil, &DecodeError{Kind: decodeErrorKind(err), Type: t, Err: err}
			}
			r, err := DecodeRequestPayload(t, data[:len(data)-len(rest)])
			if err != nil {
				return nil, err
			}
			out = append(out, r)
			data = rest
		}
	}
	return out, nil
}

// ComputeRequestsHash computes the SHA-256 commitment over a flattened
// requests list: sha256(sha256(group_0) ++ sha256(group_1) ++ ...).
// Groups without data are skipped.
func ComputeRequestsHash(groups [][]byte) Hash {
	h := sha256.New()
	for _, g := range groups {
		if len(g) <= 1 {
			continue
		}
		sum := sha256.Sum256(g)
		h.Write(sum[:])
	}
	var result Hash
	h.Sum(result[:0])
	return result
}

// VerifyRequestsHash recomputes the commitment of groups and compares it
// with the one a header declares.
func VerifyRequestsHash(want Hash, groups [][]byte) error {
	if got := ComputeRequestsHash(groups); got != want {
		return fmt.Errorf("%w: header=%s computed=%s", ErrRequestsHash, want.Hex(), got.Hex())
	}
	return nil
}
