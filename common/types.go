// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

const (
	HashLength        = 32
	AddressLength     = 20
	IncarnationLength = 8
)

type Hash [HashLength]byte

func BytesToHash(b []byte) (h Hash) {
	h.SetBytes(b)
	return h
}

func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

func (h Hash) Bytes() []byte { return h[:] }
func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

type Address [AddressLength]byte

func BytesToAddress(b []byte) (a Address) {
	a.SetBytes(b)
	return a
}

func (a *Address) SetBytes(b []byte) {
	if len(b) > len(a) {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

func (a Address) Bytes() []byte  { return a[:] }
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// HashData keccak256s the given byte slices, the way the teacher's
// core/state package hashes addresses and storage keys before they are
// used as HashedAccount/HashedStorage keys.
func HashData(data []byte) (Hash, error) {
	d := sha3.NewLegacyKeccak256()
	if _, err := d.Write(data); err != nil {
		return Hash{}, err
	}
	var h Hash
	d.Sum(h[:0])
	return h, nil
}

func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}

func Bytes2Hex(b []byte) string { return hex.EncodeToString(b) }

func Hex2Bytes(s string) []byte {
	b, _ := hex.DecodeString(s)
	return b
}

// EncodeBlockNumber big-endian-encodes a block number the way every
// ordered table in this module keys itself: iteration order equals key
// byte order (spec.md I1/I2, §4.1).
func EncodeBlockNumber(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

func DecodeBlockNumber(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

type StorageSize float64

func (s StorageSize) String() string {
	if s > 1099511627776 {
		return fmt.Sprintf("%.2fTiB", s/1099511627776)
	} else if s > 1073741824 {
		return fmt.Sprintf("%.2fGiB", s/1073741824)
	} else if s > 1048576 {
		return fmt.Sprintf("%.2fMiB", s/1048576)
	} else if s > 1024 {
		return fmt.Sprintf("%.2fKiB", s/1024)
	}
	return fmt.Sprintf("%.2fB", s)
}
