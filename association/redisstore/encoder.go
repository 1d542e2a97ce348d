package redisstore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/authlink/association"
)

const (
	recordFormatVersionCurrent = 1

	flagDeleted byte = 1 << 0
)

type recordFields struct {
	ref       string
	deleted   bool
	createdAt time.Time
	updatedAt time.Time
}

func encodeRecord(f recordFields) ([]byte, error) {
	if len(f.ref) > association.MaxIDLength {
		return nil, fmt.Errorf("%w: reference longer than %d bytes", association.ErrInvalidID, association.MaxIDLength)
	}

	var buf bytes.Buffer
	buf.Grow(2 + 1 + len(f.ref) + 16)

	buf.WriteByte(recordFormatVersionCurrent)

	var flags byte
	if f.deleted {
		flags |= flagDeleted
	}
	buf.WriteByte(flags)

	buf.WriteByte(byte(len(f.ref)))
	buf.WriteString(f.ref)

	if err := binary.Write(&buf, binary.BigEndian, unixMilli(f.createdAt)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, unixMilli(f.updatedAt)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (recordFields, error) {
	var f recordFields
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return f, corrupt(err)
	}
	if version != recordFormatVersionCurrent {
		return f, fmt.Errorf("%w: unknown version %d", association.ErrRecordCorrupt, version)
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return f, corrupt(err)
	}
	f.deleted = flags&flagDeleted != 0

	refLen, err := reader.ReadByte()
	if err != nil {
		return f, corrupt(err)
	}
	ref := make([]byte, refLen)
	if _, err := io.ReadFull(reader, ref); err != nil {
		return f, corrupt(err)
	}
	f.ref = string(ref)

	var createdMs, updatedMs int64
	if err := binary.Read(reader, binary.BigEndian, &createdMs); err != nil {
		return f, corrupt(err)
	}
	if err := binary.Read(reader, binary.BigEndian, &updatedMs); err != nil {
		return f, corrupt(err)
	}
	if reader.Len() != 0 {
		return f, fmt.Errorf("%w: %d trailing bytes", association.ErrRecordCorrupt, reader.Len())
	}
	f.createdAt = fromUnixMilli(createdMs)
	f.updatedAt = fromUnixMilli(updatedMs)

	return f, nil
}

func encodeAuthIDRecord(rec *association.AuthIDRecord) ([]byte, error) {
	return encodeRecord(recordFields{
		ref:       rec.UserID,
		deleted:   rec.Deleted,
		createdAt: rec.CreatedAt,
		updatedAt: rec.UpdatedAt,
	})
}

func decodeAuthIDRecord(authID string, data []byte) (*association.AuthIDRecord, error) {
	f, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	return &association.AuthIDRecord{
		AuthID:    authID,
		UserID:    f.ref,
		Deleted:   f.deleted,
		CreatedAt: f.createdAt,
		UpdatedAt: f.updatedAt,
	}, nil
}

func encodeUserAuthRecord(rec *association.UserAuthRecord) ([]byte, error) {
	return encodeRecord(recordFields{
		ref:       rec.AuthID,
		deleted:   rec.Deleted,
		createdAt: rec.CreatedAt,
		updatedAt: rec.UpdatedAt,
	})
}

func decodeUserAuthRecord(userID string, data []byte) (*association.UserAuthRecord, error) {
	f, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	return &association.UserAuthRecord{
		UserID:    userID,
		AuthID:    f.ref,
		Deleted:   f.deleted,
		CreatedAt: f.createdAt,
		UpdatedAt: f.updatedAt,
	}, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", association.ErrRecordCorrupt, err)
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
