package vectorindex

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/minio/highwayhash"
)

// File layout, little endian:
//
//	magic "MHVX" | version u16 | dim u32 | count u32
//	buildLen u16 | build id                        (version 2 only)
//	count * (idLen u16 | id | dim * float32 bits)
//	highwayhash64(all preceding bytes) u64
//
// Version 1 files carry no build id and are still readable.
const (
	fileMagic     = "MHVX"
	fileVersion   = uint16(2)
	legacyVersion = uint16(1)
	headerLen     = 14
	maxIDLen      = math.MaxUint16
)

var checksumKey = []byte("mhire/vectorindex/file/checksum1")

var (
	ErrBadMagic    = errors.New("vectorindex: not an index file")
	ErrBadVersion  = errors.New("vectorindex: unsupported file version")
	ErrBadChecksum = errors.New("vectorindex: checksum mismatch")
)

// Persist writes the index to path atomically: a temp file in the same
// directory is synced and renamed over path.
func (x *Index) Persist(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp index: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := x.encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync index: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename index: %w", err)
	}
	return nil
}

func (x *Index) encode(w io.Writer) error {
	h, err := highwayhash.New64(checksumKey)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(io.MultiWriter(w, h))

	if len(x.buildID) > maxIDLen {
		return fmt.Errorf("vectorindex: build id too long: %d bytes", len(x.buildID))
	}
	var hdr [headerLen + 2]byte
	copy(hdr[:4], fileMagic)
	binary.LittleEndian.PutUint16(hdr[4:6], fileVersion)
	binary.LittleEndian.PutUint32(hdr[6:10], uint32(x.dim))
	binary.LittleEndian.PutUint32(hdr[10:14], uint32(len(x.entries)))
	binary.LittleEndian.PutUint16(hdr[14:16], uint16(len(x.buildID)))
	if _, err := bw.Write(hdr[:]); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}
	if _, err := bw.WriteString(x.buildID); err != nil {
		return fmt.Errorf("write index header: %w", err)
	}

	var buf [4]byte
	for _, e := range x.entries {
		if len(e.id) > maxIDLen {
			return fmt.Errorf("vectorindex: id too long: %d bytes", len(e.id))
		}
		binary.LittleEndian.PutUint16(buf[:2], uint16(len(e.id)))
		bw.Write(buf[:2])
		bw.WriteString(e.id)
		for _, f := range e.vec {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
			if _, err := bw.Write(buf[:]); err != nil {
				return fmt.Errorf("write index entry: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	var sum [8]byte
	binary.LittleEndian.PutUint64(sum[:], h.Sum64())
	if _, err := w.Write(sum[:]); err != nil {
		return fmt.Errorf("write index checksum: %w", err)
	}
	return nil
}

// Load reads an index written by Persist and verifies its checksum.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*Index, error) {
	if len(data) < headerLen+8 {
		return nil, ErrBadMagic
	}
	if string(data[:4]) != fileMagic {
		return nil, ErrBadMagic
	}
	body, tail := data[:len(data)-8], data[len(data)-8:]
	if highwayhash.Sum64(body, checksumKey) != binary.LittleEndian.Uint64(tail) {
		return nil, ErrBadChecksum
	}
	version := binary.LittleEndian.Uint16(body[4:6])
	if version != fileVersion && version != legacyVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}
	dim := int(binary.LittleEndian.Uint32(body[6:10]))
	count := int(binary.LittleEndian.Uint32(body[10:14]))

	x := New(dim)
	x.entries = make([]entry, 0, count)
	r := bytes.NewReader(body[headerLen:])
	var buf [4]byte
	if version == fileVersion {
		if _, err := io.ReadFull(r, buf[:2]); err != nil {
			return nil, fmt.Errorf("vectorindex: truncated header: %w", err)
		}
		build := make([]byte, binary.LittleEndian.Uint16(buf[:2]))
		if _, err := io.ReadFull(r, build); err != nil {
			return nil, fmt.Errorf("vectorindex: truncated build id: %w", err)
		}
		x.buildID = string(build)
	}
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, buf[:2]); err != nil {
			return nil, fmt.Errorf("vectorindex: truncated entry %d: %w", i, err)
		}
		id := make([]byte, binary.LittleEndian.Uint16(buf[:2]))
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, fmt.Errorf("vectorindex: truncated id %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, fmt.Errorf("vectorindex: truncated vector %d: %w", i, err)
			}
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
		}
		if _, dup := x.ids[string(id)]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		x.ids[string(id)] = len(x.entries)
		x.entries = append(x.entries, entry{id: string(id), vec: vec, norm: norm(vec)})
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("vectorindex: %d trailing bytes", r.Len())
	}
	return x, nil
}
