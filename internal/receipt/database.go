package receipt

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const extractionBucket = "extractions"

// DB stores extraction records.
type DB interface {
	// SaveExtraction saves a record.
	SaveExtraction(rec *ExtractionRecord) error

	// GetExtraction retrieves a record by ID.
	GetExtraction(id string) (*ExtractionRecord, error)

	// ListExtractions returns all records.
	ListExtractions() ([]*ExtractionRecord, error)

	// DeleteExtraction removes a record.
	DeleteExtraction(id string) error

	// Close closes the database.
	Close() error
}

// BoltDB implements DB using BoltDB.
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB opens (or creates) the database at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(extractionBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveExtraction saves a record keyed by its ID.
func (b *BoltDB) SaveExtraction(rec *ExtractionRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(extractionBucket))
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshaling record: %w", err)
		}
		return bucket.Put([]byte(rec.ID), data)
	})
}

// GetExtraction retrieves a record by ID.
func (b *BoltDB) GetExtraction(id string) (*ExtractionRecord, error) {
	var rec *ExtractionRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(extractionBucket))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("extraction not found: %s", id)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListExtractions returns all records.
func (b *BoltDB) ListExtractions() ([]*ExtractionRecord, error) {
	records := make([]*ExtractionRecord, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(extractionBucket))
		return bucket.ForEach(func(k, v []byte) error {
			var rec ExtractionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling record: %w", err)
			}
			records = append(records, &rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteExtraction removes a record.
func (b *BoltDB) DeleteExtraction(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(extractionBucket))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("extraction not found: %s", id)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database.
func (b *BoltDB) Close() error {
	return b.db.Close()
}
