package tokenstore

import (
	"encoding/binary"
	"time"
)

// recordVersion is the on-wire blob version. The revoked flag sits at a
// fixed offset so the compare-and-revoke script can flip it without
// understanding the rest of the encoding.
const recordVersion = 1

const recordHeaderLen = 18 // version(1) + revoked(1) + expiresAt(8) + createdAt(8)

// Record is one stored refresh token. ValueHash is the SHA-256 of the
// token's compact serialization; the raw value is never persisted.
type Record struct {
	ID        string
	OwnerID   string
	ValueHash [32]byte
	Scope     []string
	Revoked   bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

func encodeRecord(rec *Record) []byte {
	size := recordHeaderLen + 2 + len(rec.ID) + 2 + len(rec.OwnerID) + 2
	for _, s := range rec.Scope {
		size += 2 + len(s)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, recordVersion)
	if rec.Revoked {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(rec.ExpiresAt.Unix()))
	buf = binary.BigEndian.AppendUint64(buf, uint64(rec.CreatedAt.Unix()))

	buf = appendString(buf, rec.ID)
	buf = appendString(buf, rec.OwnerID)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(rec.Scope)))
	for _, s := range rec.Scope {
		buf = appendString(buf, s)
	}

	return buf
}

func decodeRecord(data []byte) (*Record, error) {
	if len(data) < recordHeaderLen || data[0] != recordVersion {
		return nil, ErrRecordCorrupt
	}

	rec := &Record{
		Revoked:   data[1] == 1,
		ExpiresAt: time.Unix(int64(binary.BigEndian.Uint64(data[2:10])), 0).UTC(),
		CreatedAt: time.Unix(int64(binary.BigEndian.Uint64(data[10:18])), 0).UTC(),
	}

	rest := data[recordHeaderLen:]
	var err error

	rec.ID, rest, err = readString(rest)
	if err != nil {
		return nil, err
	}
	rec.OwnerID, rest, err = readString(rest)
	if err != nil {
		return nil, err
	}

	if len(rest) < 2 {
		return nil, ErrRecordCorrupt
	}
	count := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]

	if count > 0 {
		rec.Scope = make([]string, 0, count)
		for i := 0; i < count; i++ {
			var s string
			s, rest, err = readString(rest)
			if err != nil {
				return nil, err
			}
			rec.Scope = append(rec.Scope, s)
		}
	}

	if len(rest) != 0 {
		return nil, ErrRecordCorrupt
	}

	return rec, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, ErrRecordCorrupt
	}
	n := int(binary.BigEndian.Uint16(data))
	data = data[2:]
	if len(data) < n {
		return "", nil, ErrRecordCorrupt
	}
	return string(data[:n]), data[n:], nil
}
