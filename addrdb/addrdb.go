// Copyright (c) 2026 The peerdir developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package addrdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/decred/dcrd/wire"
	"github.com/peerdir/peerdird/addrmgr"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// currentVersion is the version of the record format written by this
	// package.
	currentVersion = 1

	// addrPrefix is the namespace byte of address records.
	addrPrefix = 'a'

	keyLen   = 1 + 16 + 2
	valueLen = 8 + 8 + 8
)

// versionKey is the key of the format version record.
var versionKey = []byte("version")

// DB is a leveldb backed address snapshot.
type DB struct {
	ldb *leveldb.DB
}

// convertLdbErr wraps the passed leveldb error into an Error with the given
// description.
func convertLdbErr(ldbErr error, desc string) Error {
	kind := ErrDatabase
	if ldberrors.IsCorrupted(ldbErr) {
		kind = ErrCorruptRecord
	}
	return Error{
		Err:         kind,
		Description: fmt.Sprintf("%s: %v", desc, ldbErr),
		RawErr:      ldbErr,
	}
}

// Open opens, creating it when needed, the address database at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, err
	}
	opts := opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.NoCompression,
		Filter:      filter.NewBloomFilter(10),
	}
	ldb, err := leveldb.OpenFile(path, &opts)
	if err != nil {
		return nil, convertLdbErr(err, "failed to open address database")
	}
	return newDB(ldb)
}

// OpenMem opens an address database that lives in memory only.
func OpenMem() (*DB, error) {
	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, convertLdbErr(err, "failed to open address database")
	}
	return newDB(ldb)
}

func newDB(ldb *leveldb.DB) (*DB, error) {
	db := &DB{ldb: ldb}
	if err := db.checkVersion(); err != nil {
		ldb.Close()
		return nil, err
	}
	return db, nil
}

// checkVersion ensures the database uses the current record format, writing
// the version to new databases.
func (db *DB) checkVersion() error {
	v, err := db.ldb.Get(versionKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], currentVersion)
		if err := db.ldb.Put(versionKey, b[:], nil); err != nil {
			return convertLdbErr(err, "failed to write database version")
		}
		return nil
	}
	if err != nil {
		return convertLdbErr(err, "failed to read database version")
	}
	if len(v) != 4 || binary.LittleEndian.Uint32(v) != currentVersion {
		str := fmt.Sprintf("unsupported address database version %x", v)
		return makeError(ErrUnsupportedVersion, str)
	}
	return nil
}

func encodeKey(na *addrmgr.NetAddress) []byte {
	key := make([]byte, keyLen)
	key[0] = addrPrefix
	ip := na.IPBytes()
	copy(key[1:17], ip[:])
	binary.BigEndian.PutUint16(key[17:], na.Port())
	return key
}

func encodeValue(na *addrmgr.NetAddress) []byte {
	value := make([]byte, valueLen)
	binary.LittleEndian.PutUint64(value[0:8], uint64(na.Services))
	binary.LittleEndian.PutUint64(value[8:16], uint64(na.LastSeen().Unix()))
	binary.LittleEndian.PutUint64(value[16:24],
		uint64(na.Penalty()/time.Second))
	return value
}

// maxPenaltySecs is the largest penalty in seconds that fits a duration.
const maxPenaltySecs = math.MaxInt64 / uint64(time.Second)

func decodeRecord(key, value []byte) (*addrmgr.NetAddress, error) {
	if len(key) != keyLen || len(value) != valueLen {
		str := fmt.Sprintf("malformed address record %x: %x", key, value)
		return nil, makeError(ErrCorruptRecord, str)
	}
	var ip [16]byte
	copy(ip[:], key[1:17])
	port := binary.BigEndian.Uint16(key[17:])
	services := wire.ServiceFlag(binary.LittleEndian.Uint64(value[0:8]))
	lastSeen := time.Unix(int64(binary.LittleEndian.Uint64(value[8:16])), 0)
	penaltySecs := binary.LittleEndian.Uint64(value[16:24])
	if penaltySecs > maxPenaltySecs {
		str := fmt.Sprintf("address record %x has out of range penalty "+
			"%d", key, penaltySecs)
		return nil, makeError(ErrCorruptRecord, str)
	}
	penalty := time.Duration(penaltySecs) * time.Second
	return addrmgr.NewNetAddressWithPenalty(ip, port, services, lastSeen,
		penalty), nil
}

// Save replaces the stored snapshot with the passed addresses.
func (db *DB) Save(addrs []*addrmgr.NetAddress) error {
	tx, err := db.ldb.OpenTransaction()
	if err != nil {
		return convertLdbErr(err, "failed to open transaction")
	}

	var batch leveldb.Batch
	iter := tx.NewIterator(util.BytesPrefix([]byte{addrPrefix}), nil)
	for iter.Next() {
		batch.Delete(iter.Key())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		tx.Discard()
		return convertLdbErr(err, "failed to iterate addresses")
	}
	for _, na := range addrs {
		batch.Put(encodeKey(na), encodeValue(na))
	}
	if err := tx.Write(&batch, nil); err != nil {
		tx.Discard()
		return convertLdbErr(err, "failed to write addresses")
	}
	if err := tx.Commit(); err != nil {
		tx.Discard()
		return convertLdbErr(err, "failed to commit addresses")
	}
	log.Debugf("Saved %d addresses", len(addrs))
	return nil
}

// ForEach invokes fn with every stored address.  Iteration stops at the first
// error, which is returned.
func (db *DB) ForEach(fn func(na *addrmgr.NetAddress) error) error {
	iter := db.ldb.NewIterator(util.BytesPrefix([]byte{addrPrefix}), nil)
	defer iter.Release()
	for iter.Next() {
		na, err := decodeRecord(iter.Key(), iter.Value())
		if err != nil {
			return err
		}
		if err := fn(na); err != nil {
			return err
		}
	}
	if err := iter.Error(); err != nil {
		return convertLdbErr(err, "failed to iterate addresses")
	}
	return nil
}

// Count returns the number of stored addresses.
func (db *DB) Count() (int, error) {
	var n int
	err := db.ForEach(func(*addrmgr.NetAddress) error {
		n++
		return nil
	})
	return n, err
}

// Close closes the database.
func (db *DB) Close() error {
	if err := db.ldb.Close(); err != nil {
		return convertLdbErr(err, "failed to close address database")
	}
	return nil
}
