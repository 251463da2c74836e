// Package rdb reads RetroArch game databases (.rdb) so a loaded image can
// be titled by its CRC32.
//
// An .rdb file is a 16 byte header followed by one MessagePack map per
// game and a terminating nil.
package rdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrTruncated is returned when an entry runs past the end of the data.
var ErrTruncated = errors.New("rdb: truncated entry")

const headerSize = 0x10

// MessagePack type bytes used by the format
const (
	mpfFixMap   = 0x80
	mpfFixArray = 0x90
	mpfFixStr   = 0xa0
	mpfNil      = 0xc0
	mpfBin8     = 0xc4
	mpfBin16    = 0xc5
	mpfBin32    = 0xc6
	mpfUint8    = 0xcc
	mpfUint16   = 0xcd
	mpfUint32   = 0xce
	mpfUint64   = 0xcf
	mpfStr8     = 0xd9
	mpfStr16    = 0xda
	mpfStr32    = 0xdb
	mpfMap16    = 0xde
	mpfMap32    = 0xdf
)

// Game is one database entry.
type Game struct {
	Name        string // full No-Intro name, e.g. "Tetris (USA)"
	ROMName     string
	Developer   string
	Publisher   string
	ReleaseYear uint
	Size        uint64
	CRC32       uint32
}

// DisplayName returns Name without its region and revision tags.
func (g *Game) DisplayName() string {
	return GetDisplayName(g.Name)
}

// DB is a parsed database indexed by CRC32.
type DB struct {
	games   []Game
	byCRC32 map[uint32]*Game
}

// Load reads and parses the database at path.
func Load(path string) (*DB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read RDB file: %w", err)
	}
	return Parse(data)
}

// Parse decodes database content. Entries decoded before a truncation are
// kept and returned alongside ErrTruncated.
func Parse(data []byte) (*DB, error) {
	games, err := parseGames(data)

	db := &DB{
		games:   games,
		byCRC32: make(map[uint32]*Game, len(games)),
	}
	for i := range db.games {
		if db.games[i].CRC32 != 0 {
			db.byCRC32[db.games[i].CRC32] = &db.games[i]
		}
	}
	return db, err
}

// Lookup returns the first game matching any of the checksums, or nil.
func (db *DB) Lookup(crcs ...uint32) *Game {
	if db == nil {
		return nil
	}
	for _, c := range crcs {
		if g := db.byCRC32[c]; g != nil {
			return g
		}
	}
	return nil
}

// Len returns the number of games in the database.
func (db *DB) Len() int {
	return len(db.games)
}

// GetDisplayName strips everything from the first " (" onwards.
func GetDisplayName(name string) string {
	if idx := strings.Index(name, " ("); idx > 0 {
		return strings.TrimSpace(name[:idx])
	}
	return name
}

// decoder walks the MessagePack stream.
type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, ErrTruncated
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// length reads a big-endian length of n bytes.
func (d *decoder) length(n int) (int, error) {
	b, err := d.take(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return int(v), nil
}

// token is one decoded value: either a new map (isMap) or a scalar.
type token struct {
	isMap bool
	value []byte
}

func (d *decoder) next() (token, error) {
	t, err := d.take(1)
	if err != nil {
		return token{}, err
	}
	typ := int(t[0])

	switch {
	case typ < mpfFixMap:
		return token{value: t}, nil
	case typ < mpfFixArray:
		return token{isMap: true}, nil
	case typ >= mpfFixStr && typ < mpfNil:
		v, err := d.take(typ - mpfFixStr)
		return token{value: v}, err
	}

	var n int
	switch typ {
	case mpfStr8, mpfBin8:
		n, err = d.length(1)
	case mpfStr16, mpfBin16:
		n, err = d.length(2)
	case mpfStr32, mpfBin32:
		n, err = d.length(4)
	case mpfUint8, mpfUint16, mpfUint32, mpfUint64:
		n = 1 << (typ - mpfUint8)
	case mpfMap16:
		_, err = d.take(2)
		return token{isMap: true}, err
	case mpfMap32:
		_, err = d.take(4)
		return token{isMap: true}, err
	default:
		return token{}, fmt.Errorf("rdb: unsupported type %#x at %d", typ, d.pos-1)
	}
	if err != nil {
		return token{}, err
	}
	v, err := d.take(n)
	return token{value: v}, err
}

func parseGames(data []byte) ([]Game, error) {
	if len(data) <= headerSize {
		return nil, nil
	}

	d := &decoder{data: data, pos: headerSize}
	var (
		games []Game
		g     Game
		key   string
		isKey bool
		open  bool
	)
	flush := func() {
		if open && (g.Name != "" || g.CRC32 != 0) {
			games = append(games, g)
		}
	}

	for d.pos < len(d.data) && d.data[d.pos] != mpfNil {
		tok, err := d.next()
		if err != nil {
			flush()
			return games, err
		}
		if tok.isMap {
			flush()
			g, open, isKey = Game{}, true, true
			continue
		}
		if isKey {
			key = string(tok.value)
		} else {
			setGameField(&g, key, tok.value)
		}
		isKey = !isKey
	}
	flush()
	return games, nil
}

// beUint decodes a big-endian unsigned value of up to 8 bytes.
func beUint(b []byte) uint64 {
	if len(b) > 8 {
		b = b[len(b)-8:]
	}
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return binary.BigEndian.Uint64(buf[:])
}

func setGameField(g *Game, key string, value []byte) {
	switch key {
	case "name":
		g.Name = string(value)
	case "rom_name":
		g.ROMName = string(value)
	case "developer":
		g.Developer = string(value)
	case "publisher":
		g.Publisher = string(value)
	case "releaseyear":
		g.ReleaseYear = uint(beUint(value))
	case "size":
		g.Size = beUint(value)
	case "crc":
		g.CRC32 = uint32(beUint(value))
	}
}
