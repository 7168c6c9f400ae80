package flat

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"

	"github.com/custodia-labs/scholar/internal/core/domain"
	"github.com/custodia-labs/scholar/internal/core/ports/driven"
)

// Artifact layout, little endian:
//
//	magic "SCIX" | version u16 | dim u32 | count u32 | checksum (u16 len + bytes)
//	count × { position u32 | text (u32 len + bytes) | dim × f32 }
//	crc32 (IEEE) of everything above
var magic = [4]byte{'S', 'C', 'I', 'X'}

const formatVersion uint16 = 1

// limits guard against allocating from a corrupt header.
const (
	maxDim      = 1 << 16
	maxEntries  = 1 << 22
	maxTextSize = 1 << 24
)

// Encode writes the index artifact to w.
func (x *Index) Encode(w io.Writer) error {
	var body bytes.Buffer
	le := binary.LittleEndian

	body.Write(magic[:])
	_ = binary.Write(&body, le, formatVersion)
	_ = binary.Write(&body, le, uint32(x.dim))
	_ = binary.Write(&body, le, uint32(len(x.entries)))
	_ = binary.Write(&body, le, uint16(len(x.checksum)))
	body.WriteString(x.checksum)

	for _, e := range x.entries {
		_ = binary.Write(&body, le, uint32(e.Position))
		_ = binary.Write(&body, le, uint32(len(e.Text)))
		body.WriteString(e.Text)
		for _, v := range e.Vector {
			_ = binary.Write(&body, le, math.Float32bits(v))
		}
	}

	sum := crc32.ChecksumIEEE(body.Bytes())
	_ = binary.Write(&body, le, sum)

	_, err := w.Write(body.Bytes())
	return err
}

// Decode reads an index artifact. Any structural problem is reported as
// domain.ErrCorruptIndex.
func Decode(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	if len(data) < 4 {
		return nil, corrupt("truncated")
	}

	payload, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(trailer) {
		return nil, corrupt("checksum mismatch")
	}

	rd := bytes.NewReader(payload)
	le := binary.LittleEndian

	var m [4]byte
	if _, err := io.ReadFull(rd, m[:]); err != nil || m != magic {
		return nil, corrupt("bad magic")
	}

	var (
		version     uint16
		dim, count  uint32
		checksumLen uint16
	)
	if err := readAll(rd, le, &version, &dim, &count, &checksumLen); err != nil {
		return nil, corrupt("short header")
	}
	if version != formatVersion {
		return nil, corrupt(fmt.Sprintf("unsupported version %d", version))
	}
	if dim == 0 || dim > maxDim || count == 0 || count > maxEntries {
		return nil, corrupt("implausible header")
	}

	checksum := make([]byte, checksumLen)
	if _, err := io.ReadFull(rd, checksum); err != nil {
		return nil, corrupt("short checksum")
	}

	entries := make([]driven.IndexEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var pos, textLen uint32
		if err := readAll(rd, le, &pos, &textLen); err != nil {
			return nil, corrupt("short entry header")
		}
		if textLen > maxTextSize {
			return nil, corrupt("implausible text length")
		}
		text := make([]byte, textLen)
		if _, err := io.ReadFull(rd, text); err != nil {
			return nil, corrupt("short entry text")
		}
		vec := make([]float32, dim)
		for j := range vec {
			var bits uint32
			if err := binary.Read(rd, le, &bits); err != nil {
				return nil, corrupt("short vector")
			}
			vec[j] = math.Float32frombits(bits)
		}
		entries = append(entries, driven.IndexEntry{Position: int(pos), Text: string(text), Vector: vec})
	}
	if rd.Len() != 0 {
		return nil, corrupt("trailing bytes")
	}

	idx, err := Build(string(checksum), entries)
	if err != nil {
		return nil, errors.Join(corrupt("invalid entries"), err)
	}
	return idx, nil
}

func readAll(r io.Reader, order binary.ByteOrder, fields ...any) error {
	for _, f := range fields {
		if err := binary.Read(r, order, f); err != nil {
			return err
		}
	}
	return nil
}

func corrupt(reason string) error {
	return fmt.Errorf("%s: %w", reason, domain.ErrCorruptIndex)
}
