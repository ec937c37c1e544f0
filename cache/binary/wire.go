// Package binary implements the wire encoding for wayupdate's Delta and
// Skeleton types, using the same count-prefixed, delta-varint idiom imposm3
// uses for coordinate bunches in deltacoords.go: a uvarint length followed
// by zig-zag varint deltas against the previous value, which compresses
// well because consecutive node ids and bucket-local coordinates cluster
// tightly.
package binary

import (
	"encoding/binary"
	"errors"

	"github.com/omniscale/osmdelta/wayupdate"
)

var errTruncated = errors.New("binary: truncated or corrupt varint stream")

func putNodeIds(buf []byte, ids []wayupdate.NodeId) []byte {
	buf = appendUvarint(buf, uint64(len(ids)))
	var last int64
	for _, id := range ids {
		v := int64(id)
		buf = appendVarint(buf, v-last)
		last = v
	}
	return buf
}

func takeNodeIds(buf []byte) ([]wayupdate.NodeId, []byte, error) {
	n, buf, err := takeUvarint(buf)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]wayupdate.NodeId, n)
	var last int64
	for i := range ids {
		d, rest, err := takeVarint(buf)
		if err != nil {
			return nil, nil, err
		}
		last += d
		ids[i] = wayupdate.NodeId(last)
		buf = rest
	}
	return ids, buf, nil
}

func putCoords(buf []byte, coords []wayupdate.Coord) []byte {
	buf = appendUvarint(buf, uint64(len(coords)))
	var lastUpper, lastLower int64
	for _, c := range coords {
		buf = appendVarint(buf, int64(c.Upper)-lastUpper)
		buf = appendVarint(buf, int64(c.Lower)-lastLower)
		lastUpper = int64(c.Upper)
		lastLower = int64(c.Lower)
	}
	return buf
}

func takeCoords(buf []byte) ([]wayupdate.Coord, []byte, error) {
	n, buf, err := takeUvarint(buf)
	if err != nil {
		return nil, nil, err
	}
	coords := make([]wayupdate.Coord, n)
	var lastUpper, lastLower int64
	for i := range coords {
		du, rest, err := takeVarint(buf)
		if err != nil {
			return nil, nil, err
		}
		buf = rest
		dl, rest, err := takeVarint(buf)
		if err != nil {
			return nil, nil, err
		}
		buf = rest
		lastUpper += du
		lastLower += dl
		coords[i] = wayupdate.Coord{Upper: wayupdate.Bucket(lastUpper), Lower: uint32(lastLower)}
	}
	return coords, buf, nil
}

// MarshalDelta encodes a Delta in wire form, including its RemovedAt/AddedAt
// replay positions so a reader can call wayupdate.ExpandDelta standalone,
// without re-deriving them from a diff against the original target.
func MarshalDelta(d wayupdate.Delta) []byte {
	buf := make([]byte, 0, 32)
	buf = appendUvarint(buf, uint64(d.ID))
	if d.Full {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = putNodeIds(buf, d.NodesAdded)
	buf = putNodeIds(buf, d.NodesRemoved)
	buf = putCoords(buf, d.GeometryAdded)
	buf = putCoords(buf, d.GeometryRemoved)
	buf = putPositions(buf, d.RemovedAt)
	buf = putPositions(buf, d.AddedAt)
	return buf
}

// UnmarshalDelta decodes a Delta previously produced by MarshalDelta.
func UnmarshalDelta(buf []byte) (wayupdate.Delta, error) {
	id, buf, err := takeUvarint(buf)
	if err != nil {
		return wayupdate.Delta{}, err
	}
	if len(buf) < 1 {
		return wayupdate.Delta{}, errTruncated
	}
	full := buf[0] == 1
	buf = buf[1:]

	added, buf, err := takeNodeIds(buf)
	if err != nil {
		return wayupdate.Delta{}, err
	}
	removed, buf, err := takeNodeIds(buf)
	if err != nil {
		return wayupdate.Delta{}, err
	}
	geomAdded, buf, err := takeCoords(buf)
	if err != nil {
		return wayupdate.Delta{}, err
	}
	geomRemoved, buf, err := takeCoords(buf)
	if err != nil {
		return wayupdate.Delta{}, err
	}
	removedAt, buf, err := takePositions(buf)
	if err != nil {
		return wayupdate.Delta{}, err
	}
	addedAt, _, err := takePositions(buf)
	if err != nil {
		return wayupdate.Delta{}, err
	}

	return wayupdate.Delta{
		ID:              wayupdate.WayId(id),
		Full:            full,
		NodesAdded:      added,
		NodesRemoved:    removed,
		GeometryAdded:   geomAdded,
		GeometryRemoved: geomRemoved,
		RemovedAt:       removedAt,
		AddedAt:         addedAt,
	}, nil
}

func putPositions(buf []byte, positions []int) []byte {
	buf = appendUvarint(buf, uint64(len(positions)))
	for _, p := range positions {
		buf = appendUvarint(buf, uint64(p))
	}
	return buf
}

func takePositions(buf []byte) ([]int, []byte, error) {
	n, buf, err := takeUvarint(buf)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 {
		return nil, buf, nil
	}
	out := make([]int, n)
	for i := range out {
		v, rest, err := takeUvarint(buf)
		if err != nil {
			return nil, nil, err
		}
		out[i] = int(v)
		buf = rest
	}
	return out, buf, nil
}

// MarshalSkeleton encodes a Skeleton in wire form.
func MarshalSkeleton(s wayupdate.Skeleton) []byte {
	buf := make([]byte, 0, 32)
	buf = appendUvarint(buf, uint64(s.ID))
	buf = putNodeIds(buf, s.Nodes)
	if s.Geometry != nil {
		buf = append(buf, 1)
		buf = putCoords(buf, s.Geometry)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

// UnmarshalSkeleton decodes a Skeleton previously produced by
// MarshalSkeleton.
func UnmarshalSkeleton(buf []byte) (wayupdate.Skeleton, error) {
	id, buf, err := takeUvarint(buf)
	if err != nil {
		return wayupdate.Skeleton{}, err
	}
	nodes, buf, err := takeNodeIds(buf)
	if err != nil {
		return wayupdate.Skeleton{}, err
	}
	if len(buf) < 1 {
		return wayupdate.Skeleton{}, errTruncated
	}
	hasGeom := buf[0] == 1
	buf = buf[1:]

	out := wayupdate.Skeleton{ID: wayupdate.WayId(id), Nodes: nodes}
	if hasGeom {
		geom, _, err := takeCoords(buf)
		if err != nil {
			return wayupdate.Skeleton{}, err
		}
		out.Geometry = geom
	}
	return out, nil
}

// MarshalMeta encodes a MetaRecord in wire form.
func MarshalMeta(m wayupdate.MetaRecord) []byte {
	buf := make([]byte, 0, 32)
	buf = appendUvarint(buf, uint64(m.ID))
	buf = appendVarint(buf, int64(m.Version))
	buf = appendUvarint(buf, uint64(m.Timestamp))
	buf = appendVarint(buf, m.Changeset)
	buf = appendVarint(buf, int64(m.UserID))
	return buf
}

// UnmarshalMeta decodes a MetaRecord previously produced by MarshalMeta.
func UnmarshalMeta(buf []byte) (wayupdate.MetaRecord, error) {
	id, buf, err := takeUvarint(buf)
	if err != nil {
		return wayupdate.MetaRecord{}, err
	}
	version, buf, err := takeVarint(buf)
	if err != nil {
		return wayupdate.MetaRecord{}, err
	}
	ts, buf, err := takeUvarint(buf)
	if err != nil {
		return wayupdate.MetaRecord{}, err
	}
	changeset, buf, err := takeVarint(buf)
	if err != nil {
		return wayupdate.MetaRecord{}, err
	}
	userID, _, err := takeVarint(buf)
	if err != nil {
		return wayupdate.MetaRecord{}, err
	}
	return wayupdate.MetaRecord{
		ID:        wayupdate.WayId(id),
		Version:   int(version),
		Timestamp: wayupdate.Timestamp(ts),
		Changeset: changeset,
		UserID:    int32(userID),
	}, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendVarint(buf []byte, v int64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func takeUvarint(buf []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(buf)
	if n <= 0 {
		return 0, nil, errTruncated
	}
	return v, buf[n:], nil
}

func takeVarint(buf []byte) (int64, []byte, error) {
	v, n := binary.Varint(buf)
	if n <= 0 {
		return 0, nil, errTruncated
	}
	return v, buf[n:], nil
}
