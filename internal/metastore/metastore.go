// Package metastore persists and retrieves database, table, job and video
// descriptors over a storage.Backend, with bounded-retry wrapping around
// every I/O site to ride out transient storage errors.
package metastore

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/framecast/videoengine/internal/catalog"
	"github.com/framecast/videoengine/internal/logging"
	"github.com/framecast/videoengine/internal/retry"
	"github.com/framecast/videoengine/internal/storage"
)

// Store reads and writes descriptors through a storage.Backend.
type Store struct {
	backend storage.Backend
	retry   retry.Config
	log     *logging.Logger
}

// New wraps backend with the default retry policy.
func New(backend storage.Backend, log *logging.Logger) *Store {
	return &Store{backend: backend, retry: retry.DefaultConfig(), log: log}
}

func (s *Store) readBytes(ctx context.Context, path string) ([]byte, error) {
	var buf []byte
	err := retry.Do(ctx, s.retry, func() error {
		f, err := s.backend.OpenRead(path)
		if err != nil {
			return err
		}
		defer f.Close()
		size, err := f.Size()
		if err != nil {
			return err
		}
		buf = make([]byte, size)
		return f.ReadAt(buf, 0)
	})
	if err != nil {
		s.log.Errorf("read %s failed: %v", path, err)
	}
	return buf, err
}

func (s *Store) writeBytes(ctx context.Context, path string, data []byte) error {
	err := retry.Do(ctx, s.retry, func() error {
		f, err := s.backend.OpenWrite(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return f.Append(data)
	})
	if err != nil {
		s.log.Errorf("write %s failed: %v", path, err)
	}
	return err
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("metastore: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(v); err != nil {
		return fmt.Errorf("metastore: decode: %w", err)
	}
	return nil
}

// ReadDatabase loads the database metadata. A never-ingested database
// (no database.meta yet) is reported as a permanent not-found error; the
// caller (master startup) treats that as "start from an empty Database".
func (s *Store) ReadDatabase(ctx context.Context) (*catalog.Database, error) {
	data, err := s.readBytes(ctx, DatabasePath())
	if err != nil {
		return nil, err
	}
	db := catalog.NewDatabase()
	if err := decode(data, db); err != nil {
		return nil, err
	}
	return db, nil
}

// WriteDatabase persists the database metadata.
func (s *Store) WriteDatabase(ctx context.Context, db *catalog.Database) error {
	data, err := encode(db)
	if err != nil {
		return err
	}
	return s.writeBytes(ctx, DatabasePath(), data)
}

// ReadTable loads a table descriptor by id.
func (s *Store) ReadTable(ctx context.Context, tableID int) (*catalog.Table, error) {
	data, err := s.readBytes(ctx, TableDescriptorPath(tableID))
	if err != nil {
		return nil, err
	}
	var t catalog.Table
	if err := decode(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// WriteTable persists a table descriptor. Tables are immutable once
// written, so this is only ever called once per table id.
func (s *Store) WriteTable(ctx context.Context, t *catalog.Table) error {
	data, err := encode(t)
	if err != nil {
		return err
	}
	return s.writeBytes(ctx, TableDescriptorPath(t.ID), data)
}

// ReadJob loads a job descriptor by id.
func (s *Store) ReadJob(ctx context.Context, jobID int) (*catalog.JobDescriptor, error) {
	data, err := s.readBytes(ctx, JobDescriptorPath(jobID))
	if err != nil {
		return nil, err
	}
	var j catalog.JobDescriptor
	if err := decode(data, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// WriteJob persists a job descriptor.
func (s *Store) WriteJob(ctx context.Context, j *catalog.JobDescriptor) error {
	data, err := encode(j)
	if err != nil {
		return err
	}
	return s.writeBytes(ctx, JobDescriptorPath(j.ID), data)
}

// ReadVideoDescriptor loads one video item's keyframe index.
func (s *Store) ReadVideoDescriptor(ctx context.Context, tableID, columnID, itemID int) (*catalog.VideoDescriptor, error) {
	data, err := s.readBytes(ctx, VideoDescriptorPath(tableID, columnID, itemID))
	if err != nil {
		return nil, err
	}
	var vd catalog.VideoDescriptor
	if err := decode(data, &vd); err != nil {
		return nil, err
	}
	return &vd, nil
}

// WriteVideoDescriptor persists one video item's keyframe index. Used by
// the (out-of-scope) ingest path; kept here so metastore owns every
// descriptor kind end to end.
func (s *Store) WriteVideoDescriptor(ctx context.Context, tableID, columnID, itemID int, vd *catalog.VideoDescriptor) error {
	data, err := encode(vd)
	if err != nil {
		return err
	}
	return s.writeBytes(ctx, VideoDescriptorPath(tableID, columnID, itemID), data)
}
