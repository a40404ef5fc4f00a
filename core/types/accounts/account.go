// Package accounts implements the Account value stored in
// PlainAccountState/HashedAccount (spec.md §3), grounded on the
// teacher's core/types/accounts.Account — referenced throughout
// core/state/db_state_writer.go as acc.EncodeForStorage /
// acc.DecodeForStorage / acc.Incarnation / acc.IsEmptyCodeHash.
package accounts

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/erigon-core/common"
)

var emptyCodeHash = common.Hash{0xc5, 0xd2, 0x46, 0x01, 0x86, 0xf7, 0x23, 0x3c, 0x92, 0x7e, 0x7d, 0xb2, 0xdc, 0xc7, 0x03, 0xc0, 0xe5, 0x00, 0xb6, 0x53, 0xca, 0x82, 0x27, 0x3b, 0x7b, 0xfa, 0xd8, 0x04, 0x5d, 0x85, 0xa4, 0x70}

// Account mirrors the teacher's storage-encoded account: nonce,
// balance, storage root, code hash, plus the incarnation counter that
// erigon's lineage added to disambiguate storage rows across
// self-destruct/recreate cycles at the same address.
type Account struct {
	Initialised bool
	Nonce       uint64
	Balance     uint256.Int
	Root        common.Hash // storage trie root; empty for EOAs
	CodeHash    common.Hash
	Incarnation uint64
}

func (a *Account) SelfCopy() *Account {
	cp := *a
	return &cp
}

func (a *Account) IsEmptyCodeHash() bool {
	return a.CodeHash == (common.Hash{}) || a.CodeHash == emptyCodeHash
}

func (a *Account) IsEmptyRoot() bool {
	return a.Root == (common.Hash{})
}

// fieldSet bits, matching the teacher's variable-length storage
// encoding: only non-zero fields are written.
const (
	fieldNonce = 1 << iota
	fieldBalance
	fieldRoot
	fieldCodeHash
)

// EncodingLengthForStorage returns the exact length EncodeForStorage
// will produce, so callers can preallocate (as
// DbStateWriter.originalAccountData does).
func (a *Account) EncodingLengthForStorage() int {
	structLength := 1 // field set byte
	if a.Nonce > 0 {
		structLength += 1 + byteLen(a.Nonce)
	}
	if !a.Balance.IsZero() {
		structLength += 1 + len(a.Balance.Bytes())
	}
	if !a.IsEmptyRoot() {
		structLength += 1 + common.HashLength
	}
	if !a.IsEmptyCodeHash() {
		structLength += 1 + common.HashLength
	}
	if a.Incarnation > 0 {
		structLength += 1 + byteLen(a.Incarnation)
	}
	return structLength
}

func byteLen(v uint64) int {
	n := 0
	for v > 0 {
		n++
		v >>= 8
	}
	if n == 0 {
		n = 1
	}
	return n
}

// EncodeForStorage serializes the account the way PlainAccountState /
// HashedAccount rows are stored: a field-set byte, then each present
// field length-prefixed.
func (a *Account) EncodeForStorage(buf []byte) {
	var fieldSet byte
	pos := 1
	if a.Nonce > 0 {
		fieldSet |= fieldNonce
		n := byteLen(a.Nonce)
		buf[pos] = byte(n)
		putUintTrimmed(buf[pos+1:pos+1+n], a.Nonce)
		pos += 1 + n
	}
	if !a.Balance.IsZero() {
		fieldSet |= fieldBalance
		b := a.Balance.Bytes()
		buf[pos] = byte(len(b))
		copy(buf[pos+1:], b)
		pos += 1 + len(b)
	}
	if !a.IsEmptyRoot() {
		fieldSet |= fieldRoot
		buf[pos] = common.HashLength
		copy(buf[pos+1:], a.Root[:])
		pos += 1 + common.HashLength
	}
	if !a.IsEmptyCodeHash() {
		fieldSet |= fieldCodeHash
		buf[pos] = common.HashLength
		copy(buf[pos+1:], a.CodeHash[:])
		pos += 1 + common.HashLength
	}
	if a.Incarnation > 0 {
		n := byteLen(a.Incarnation)
		buf = append(buf[:pos], make([]byte, 1+n)...)
		buf[pos] = byte(n)
		putUintTrimmed(buf[pos+1:pos+1+n], a.Incarnation)
	}
	buf[0] = fieldSet
}

func putUintTrimmed(dst []byte, v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	copy(dst, tmp[8-len(dst):])
}

func getUintTrimmed(src []byte) uint64 {
	var tmp [8]byte
	copy(tmp[8-len(src):], src)
	return binary.BigEndian.Uint64(tmp[:])
}

var ErrAccountDecoding = errors.New("accounts: malformed storage encoding")

// DecodeForStorage is the inverse of EncodeForStorage.
func (a *Account) DecodeForStorage(enc []byte) error {
	*a = Account{}
	if len(enc) == 0 {
		return nil
	}
	a.Initialised = true
	fieldSet := enc[0]
	pos := 1
	read := func() ([]byte, error) {
		if pos >= len(enc) {
			return nil, ErrAccountDecoding
		}
		n := int(enc[pos])
		pos++
		if pos+n > len(enc) {
			return nil, ErrAccountDecoding
		}
		v := enc[pos : pos+n]
		pos += n
		return v, nil
	}
	if fieldSet&fieldNonce != 0 {
		v, err := read()
		if err != nil {
			return err
		}
		a.Nonce = getUintTrimmed(v)
	}
	if fieldSet&fieldBalance != 0 {
		v, err := read()
		if err != nil {
			return err
		}
		a.Balance.SetBytes(v)
	}
	if fieldSet&fieldRoot != 0 {
		v, err := read()
		if err != nil {
			return err
		}
		a.Root.SetBytes(v)
	}
	if fieldSet&fieldCodeHash != 0 {
		v, err := read()
		if err != nil {
			return err
		}
		a.CodeHash.SetBytes(v)
	} else {
		a.CodeHash = emptyCodeHash
	}
	if pos < len(enc) {
		v, err := read()
		if err != nil {
			return err
		}
		a.Incarnation = getUintTrimmed(v)
	}
	return nil
}

// Equals compares two accounts for the bit-identical equality P1/I3
// require (reversibility, unwind-equals-replay).
func (a *Account) Equals(b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	bufA := make([]byte, a.EncodingLengthForStorage())
	a.EncodeForStorage(bufA)
	bufB := make([]byte, b.EncodingLengthForStorage())
	b.EncodeForStorage(bufB)
	return bytes.Equal(bufA, bufB)
}
