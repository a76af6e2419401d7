// Package archive is the random-access reader for the cloud-optimized tile
// archive format (component A). It parses a PMTiles v3 header and
// directory once, then serves individual tiles by byte range — backed
// either by a local file (pread) or an HTTP range source. Grounded on
// pspoerri-geotiff2pmtiles's internal/pmtiles reader, generalized to also
// read over HTTP instead of only writing local files.
package archive

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

const headerSize = 127

// tile type constants, matching the PMTiles v3 spec.
const (
	tileTypeUnknown = 0
	tileTypeMVT     = 1
	tileTypePNG     = 2
	tileTypeJPEG    = 3
	tileTypeWebP    = 4
)

// header is the parsed 127-byte PMTiles v3 header.
type header struct {
	RootDirOffset  uint64
	RootDirLength  uint64
	MetadataOffset uint64
	MetadataLength uint64
	LeafDirOffset  uint64
	LeafDirLength  uint64
	TileDataOffset uint64
	TileDataLength uint64
	TileType       uint8
	MinZoom        uint8
	MaxZoom        uint8
}

func deserializeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, fmt.Errorf("archive: header too short: %d bytes (need %d)", len(buf), headerSize)
	}
	if string(buf[0:7]) != "PMTiles" {
		return header{}, fmt.Errorf("archive: invalid magic bytes: %q", buf[0:7])
	}
	if buf[7] != 3 {
		return header{}, fmt.Errorf("archive: unsupported PMTiles version: %d (expected 3)", buf[7])
	}
	h := header{
		RootDirOffset:  binary.LittleEndian.Uint64(buf[8:16]),
		RootDirLength:  binary.LittleEndian.Uint64(buf[16:24]),
		MetadataOffset: binary.LittleEndian.Uint64(buf[24:32]),
		MetadataLength: binary.LittleEndian.Uint64(buf[32:40]),
		LeafDirOffset:  binary.LittleEndian.Uint64(buf[40:48]),
		LeafDirLength:  binary.LittleEndian.Uint64(buf[48:56]),
		TileDataOffset: binary.LittleEndian.Uint64(buf[56:64]),
		TileDataLength: binary.LittleEndian.Uint64(buf[64:72]),
		TileType:       buf[99],
		MinZoom:        buf[100],
		MaxZoom:        buf[101],
	}
	return h, nil
}

// entry is a single directory entry: a run of consecutive tile IDs sharing
// contiguous data, or (when RunLength == 0) a pointer to a leaf directory.
type entry struct {
	TileID    uint64
	Offset    uint64
	Length    uint32
	RunLength uint32
}

func deserializeDirectory(data []byte) ([]entry, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("archive: decompressing directory: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("archive: reading directory: %w", err)
	}

	r := bytes.NewReader(raw)
	numEntries, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("archive: reading entry count: %w", err)
	}

	entries := make([]entry, numEntries)
	var lastID uint64
	for i := range entries {
		delta, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("archive: reading tile id delta: %w", err)
		}
		lastID += delta
		entries[i].TileID = lastID
	}
	for i := range entries {
		runLength, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("archive: reading run length: %w", err)
		}
		entries[i].RunLength = uint32(runLength)
	}
	for i := range entries {
		length, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("archive: reading length: %w", err)
		}
		entries[i].Length = uint32(length)
	}
	var lastOffset uint64
	for i := range entries {
		offset, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("archive: reading offset: %w", err)
		}
		if offset == 0 && i > 0 {
			entries[i].Offset = lastOffset + uint64(entries[i-1].Length)
		} else {
			entries[i].Offset = offset - 1
		}
		lastOffset = entries[i].Offset
	}
	return entries, nil
}

// zxyToTileID converts z/x/y to a PMTiles v3 tile ID using Hilbert ordering.
func zxyToTileID(z, x, y int) uint64 {
	if z == 0 {
		return 0
	}
	var acc uint64
	for i := 0; i < z; i++ {
		n := uint64(1) << uint(i)
		acc += n * n
	}
	n := uint64(1) << uint(z)
	return acc + xyToHilbert(uint64(x), uint64(y), n)
}

func xyToHilbert(x, y, n uint64) uint64 {
	var d uint64
	s := n / 2
	for s > 0 {
		var rx, ry uint64
		if (x & s) > 0 {
			rx = 1
		}
		if (y & s) > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		if ry == 0 {
			if rx == 1 {
				x = s*2 - 1 - x
				y = s*2 - 1 - y
			}
			x, y = y, x
		}
		s /= 2
	}
	return d
}

// tileRef is the absolute file offset and length of one tile's data.
type tileRef struct {
	offset uint64
	length uint32
}

// source is the minimal capability a backend (local file or HTTP range
// client) must provide; Reader is built on top of it so the directory
// parsing logic is shared between backends.
type source interface {
	io.ReaderAt
	io.Closer
}

// Reader is a random-access reader over one archive file, opened once and
// reused across many Get calls.
type Reader struct {
	src     source
	hdr     header
	tileIdx map[uint64]tileRef
}

func open(src source) (*Reader, error) {
	headerBuf := make([]byte, headerSize)
	if _, err := src.ReadAt(headerBuf, 0); err != nil {
		src.Close()
		return nil, fmt.Errorf("archive: reading header: %w", err)
	}
	hdr, err := deserializeHeader(headerBuf)
	if err != nil {
		src.Close()
		return nil, err
	}

	rootDirData := make([]byte, hdr.RootDirLength)
	if _, err := src.ReadAt(rootDirData, int64(hdr.RootDirOffset)); err != nil {
		src.Close()
		return nil, fmt.Errorf("archive: reading root directory: %w", err)
	}
	rootEntries, err := deserializeDirectory(rootDirData)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("archive: parsing root directory: %w", err)
	}

	var allEntries []entry
	for _, e := range rootEntries {
		if e.RunLength == 0 {
			leafData := make([]byte, e.Length)
			absOffset := int64(hdr.LeafDirOffset + e.Offset)
			if _, err := src.ReadAt(leafData, absOffset); err != nil {
				src.Close()
				return nil, fmt.Errorf("archive: reading leaf directory at %d: %w", absOffset, err)
			}
			leafEntries, err := deserializeDirectory(leafData)
			if err != nil {
				src.Close()
				return nil, fmt.Errorf("archive: parsing leaf directory: %w", err)
			}
			allEntries = append(allEntries, leafEntries...)
		} else {
			allEntries = append(allEntries, e)
		}
	}

	tileIdx := make(map[uint64]tileRef, len(allEntries)*2)
	for _, e := range allEntries {
		for r := uint32(0); r < e.RunLength; r++ {
			tileID := e.TileID + uint64(r)
			tileIdx[tileID] = tileRef{
				offset: hdr.TileDataOffset + e.Offset + uint64(r)*uint64(e.Length),
				length: e.Length,
			}
		}
	}

	return &Reader{src: src, hdr: hdr, tileIdx: tileIdx}, nil
}

// Get returns the raw tile bytes at z/x/y, or nil, nil if the archive is
// valid but has no tile at that coordinate (§4.A: absent is not failure).
func (r *Reader) Get(z, x, y int) ([]byte, error) {
	ref, ok := r.tileIdx[zxyToTileID(z, x, y)]
	if !ok {
		return nil, nil
	}
	data := make([]byte, ref.length)
	if _, err := r.src.ReadAt(data, int64(ref.offset)); err != nil {
		return nil, fmt.Errorf("archive: reading tile %d/%d/%d: %w", z, x, y, err)
	}
	return data, nil
}

// MinZoom and MaxZoom report the archive's declared zoom range.
func (r *Reader) MinZoom() int { return int(r.hdr.MinZoom) }
func (r *Reader) MaxZoom() int { return int(r.hdr.MaxZoom) }

// Metadata reads and decompresses the archive's JSON metadata block.
// Returns nil if the archive carries no metadata.
func (r *Reader) Metadata() (map[string]interface{}, error) {
	if r.hdr.MetadataLength == 0 {
		return nil, nil
	}
	raw := make([]byte, r.hdr.MetadataLength)
	if _, err := r.src.ReadAt(raw, int64(r.hdr.MetadataOffset)); err != nil {
		return nil, fmt.Errorf("archive: reading metadata: %w", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("archive: decompressing metadata: %w", err)
	}
	defer gz.Close()
	jsonData, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("archive: reading decompressed metadata: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(jsonData, &meta); err != nil {
		return nil, fmt.Errorf("archive: parsing metadata json: %w", err)
	}
	return meta, nil
}

// Close releases the underlying file or HTTP transport.
func (r *Reader) Close() error {
	return r.src.Close()
}
