package schema

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"

	"arena-server/internal/ident"
)

var (
	// ErrShortBuffer is returned when a payload ends inside a header or record.
	ErrShortBuffer = errors.New("schema: short buffer")
	// ErrMalformed is returned for payloads that are not in canonical form.
	ErrMalformed = errors.New("schema: malformed snapshot")
	// ErrTooLarge is returned when an array exceeds MaxRecords.
	ErrTooLarge = errors.New("schema: too many records")
)

var le = binary.LittleEndian

// EncodedSize returns the exact byte length AppendSnapshot produces.
func EncodedSize(s *Snapshot) int {
	n := HeaderSize
	add := func(count, size int) {
		if count > 0 {
			n += ArrayHeaderSize + count*size
		}
	}
	st := &s.State
	add(len(st.Sounds), SoundSize)
	add(len(st.Persons), PersonSize)
	add(len(st.Weapons), WeaponSize)
	add(len(st.Bullets), BulletSize)
	add(len(st.Items), ItemSize)
	add(len(st.Walls), WallSize)
	return n
}

// AppendSnapshot appends the wire form of s to dst. Empty arrays are left
// out.
func AppendSnapshot(dst []byte, s *Snapshot) ([]byte, error) {
	st := &s.State
	for kind, n := range [...]int{len(st.Sounds), len(st.Persons), len(st.Weapons), len(st.Bullets), len(st.Items), len(st.Walls)} {
		if n > MaxRecords {
			return dst, fmt.Errorf("%w: %d %s", ErrTooLarge, n, Kind(kind))
		}
	}

	dst = slices.Grow(dst, EncodedSize(s))
	dst = append(dst, s.ID[:]...)
	dst = le.AppendUint64(dst, s.Time)

	if len(st.Sounds) > 0 {
		dst = appendArrayHeader(dst, KindSounds, len(st.Sounds))
		for i := range st.Sounds {
			dst = appendSound(dst, &st.Sounds[i])
		}
	}
	if len(st.Persons) > 0 {
		dst = appendArrayHeader(dst, KindPersons, len(st.Persons))
		for i := range st.Persons {
			dst = appendPerson(dst, &st.Persons[i])
		}
	}
	if len(st.Weapons) > 0 {
		dst = appendArrayHeader(dst, KindWeapons, len(st.Weapons))
		for i := range st.Weapons {
			dst = appendWeapon(dst, &st.Weapons[i])
		}
	}
	if len(st.Bullets) > 0 {
		dst = appendArrayHeader(dst, KindBullets, len(st.Bullets))
		for i := range st.Bullets {
			dst = appendBullet(dst, &st.Bullets[i])
		}
	}
	if len(st.Items) > 0 {
		dst = appendArrayHeader(dst, KindItems, len(st.Items))
		for i := range st.Items {
			dst = appendItem(dst, &st.Items[i])
		}
	}
	if len(st.Walls) > 0 {
		dst = appendArrayHeader(dst, KindWalls, len(st.Walls))
		for i := range st.Walls {
			dst = appendWall(dst, &st.Walls[i])
		}
	}
	return dst, nil
}

// Encode is AppendSnapshot into a fresh buffer.
func Encode(s *Snapshot) ([]byte, error) {
	return AppendSnapshot(nil, s)
}

// Decode parses buf into s, reusing the capacity of s's arrays. Kinds absent
// from buf decode to empty, non-nil arrays. Only canonical payloads are
// accepted: tags strictly increasing, counts non-zero, no trailing bytes. On
// error s is left reset and must not be used.
func Decode(buf []byte, s *Snapshot) error {
	if err := decode(buf, s); err != nil {
		s.ID, s.Time = ident.Zero, 0
		s.State.Reset()
		return err
	}
	return nil
}

func decode(buf []byte, s *Snapshot) error {
	s.State.Reset()
	s.State.Fill()

	if len(buf) < HeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, have %d", ErrShortBuffer, HeaderSize, len(buf))
	}
	copy(s.ID[:], buf[:ident.Size])
	s.Time = le.Uint64(buf[ident.Size:])
	off := HeaderSize

	last := -1
	for off < len(buf) {
		if len(buf)-off < ArrayHeaderSize {
			return fmt.Errorf("%w: array header at %d", ErrShortBuffer, off)
		}
		kind := Kind(buf[off])
		count := int(le.Uint16(buf[off+1:]))
		off += ArrayHeaderSize

		if kind >= kindCount {
			return fmt.Errorf("%w: unknown kind %d", ErrMalformed, kind)
		}
		if int(kind) <= last {
			return fmt.Errorf("%w: %s out of order", ErrMalformed, kind)
		}
		if count == 0 {
			return fmt.Errorf("%w: empty %s array", ErrMalformed, kind)
		}
		last = int(kind)

		size := recordSize(kind)
		if len(buf)-off < count*size {
			return fmt.Errorf("%w: %d %s need %d bytes, have %d", ErrShortBuffer, count, kind, count*size, len(buf)-off)
		}
		body := buf[off : off+count*size]
		off += count * size

		var err error
		st := &s.State
		switch kind {
		case KindSounds:
			st.Sounds = slices.Grow(st.Sounds, count)[:count]
			for i := range st.Sounds {
				if err = readSound(body[i*size:], &st.Sounds[i]); err != nil {
					break
				}
			}
		case KindPersons:
			st.Persons = slices.Grow(st.Persons, count)[:count]
			for i := range st.Persons {
				readPerson(body[i*size:], &st.Persons[i])
			}
		case KindWeapons:
			st.Weapons = slices.Grow(st.Weapons, count)[:count]
			for i := range st.Weapons {
				readWeapon(body[i*size:], &st.Weapons[i])
			}
		case KindBullets:
			st.Bullets = slices.Grow(st.Bullets, count)[:count]
			for i := range st.Bullets {
				readBullet(body[i*size:], &st.Bullets[i])
			}
		case KindItems:
			st.Items = slices.Grow(st.Items, count)[:count]
			for i := range st.Items {
				readItem(body[i*size:], &st.Items[i])
			}
		case KindWalls:
			st.Walls = slices.Grow(st.Walls, count)[:count]
			for i := range st.Walls {
				readWall(body[i*size:], &st.Walls[i])
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func recordSize(k Kind) int {
	switch k {
	case KindSounds:
		return SoundSize
	case KindPersons:
		return PersonSize
	case KindWeapons:
		return WeaponSize
	case KindBullets:
		return BulletSize
	case KindItems:
		return ItemSize
	default:
		return WallSize
	}
}

func appendArrayHeader(dst []byte, k Kind, count int) []byte {
	dst = append(dst, byte(k))
	return le.AppendUint16(dst, uint16(count))
}

func appendInt(dst []byte, v int64) []byte {
	return le.AppendUint64(dst, uint64(v))
}

func appendFloat(dst []byte, v float32) []byte {
	return le.AppendUint32(dst, math.Float32bits(v))
}

func appendSound(dst []byte, r *Sound) []byte {
	dst = append(dst, r.ID[:]...)
	dst = append(dst, r.Resource[:]...)
	dst = appendFloat(dst, r.Volume)
	dst = le.AppendUint64(dst, r.Range)
	dst = appendInt(dst, r.X)
	dst = appendInt(dst, r.Y)
	if r.Played {
		return append(dst, 1)
	}
	return append(dst, 0)
}

func appendPerson(dst []byte, r *Person) []byte {
	dst = append(dst, r.ID[:]...)
	dst = append(dst, r.Owner[:]...)
	dst = appendInt(dst, r.X)
	dst = appendInt(dst, r.Y)
	dst = appendFloat(dst, r.Angle)
	dst = appendInt(dst, r.HP)
	return append(dst, r.Sprite, r.Animation)
}

func appendWeapon(dst []byte, r *Weapon) []byte {
	dst = append(dst, r.ID[:]...)
	dst = append(dst, r.Owner[:]...)
	dst = le.AppendUint64(dst, r.Ammo)
	dst = append(dst, r.Variant)
	return appendFloat(dst, r.Energy)
}

func appendBullet(dst []byte, r *Bullet) []byte {
	dst = append(dst, r.ID[:]...)
	dst = appendInt(dst, r.X)
	dst = appendInt(dst, r.Y)
	dst = appendFloat(dst, r.Angle)
	return append(dst, r.Sprite)
}

func appendItem(dst []byte, r *Item) []byte {
	dst = append(dst, r.ID[:]...)
	dst = appendInt(dst, r.X)
	dst = appendInt(dst, r.Y)
	return append(dst, r.Variant)
}

func appendWall(dst []byte, r *Wall) []byte {
	dst = append(dst, r.ID[:]...)
	dst = appendInt(dst, r.X)
	dst = appendInt(dst, r.Y)
	dst = appendInt(dst, r.Width)
	return appendInt(dst, r.Height)
}

func readInt(b []byte) int64 {
	return int64(le.Uint64(b))
}

func readFloat(b []byte) float32 {
	return math.Float32frombits(le.Uint32(b))
}

func readSound(b []byte, r *Sound) error {
	copy(r.ID[:], b)
	b = b[ident.Size:]
	copy(r.Resource[:], b)
	b = b[ResourceSize:]
	r.Volume = readFloat(b)
	r.Range = le.Uint64(b[4:])
	r.X = readInt(b[12:])
	r.Y = readInt(b[20:])
	switch b[28] {
	case 0:
		r.Played = false
	case 1:
		r.Played = true
	default:
		return fmt.Errorf("%w: sound played flag %d", ErrMalformed, b[28])
	}
	return nil
}

func readPerson(b []byte, r *Person) {
	copy(r.ID[:], b)
	copy(r.Owner[:], b[ident.Size:])
	b = b[2*ident.Size:]
	r.X = readInt(b)
	r.Y = readInt(b[8:])
	r.Angle = readFloat(b[16:])
	r.HP = readInt(b[20:])
	r.Sprite = b[28]
	r.Animation = b[29]
}

func readWeapon(b []byte, r *Weapon) {
	copy(r.ID[:], b)
	copy(r.Owner[:], b[ident.Size:])
	b = b[2*ident.Size:]
	r.Ammo = le.Uint64(b)
	r.Variant = b[8]
	r.Energy = readFloat(b[9:])
}

func readBullet(b []byte, r *Bullet) {
	copy(r.ID[:], b)
	b = b[ident.Size:]
	r.X = readInt(b)
	r.Y = readInt(b[8:])
	r.Angle = readFloat(b[16:])
	r.Sprite = b[20]
}

func readItem(b []byte, r *Item) {
	copy(r.ID[:], b)
	b = b[ident.Size:]
	r.X = readInt(b)
	r.Y = readInt(b[8:])
	r.Variant = b[16]
}

func readWall(b []byte, r *Wall) {
	copy(r.ID[:], b)
	b = b[ident.Size:]
	r.X = readInt(b)
	r.Y = readInt(b[8:])
	r.Width = readInt(b[16:])
	r.Height = readInt(b[24:])
}
