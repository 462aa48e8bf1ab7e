package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore keeps blobs in a JetStream object store bucket.
type NATSStore struct {
	conn  *nats.Conn
	store jetstream.ObjectStore
}

// NewNATSStore connects to url and opens (or creates) bucket.
func NewNATSStore(ctx context.Context, url, bucket string) (*NATSStore, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	store, err := js.ObjectStore(ctx, bucket)
	if err != nil {
		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "pinchat uploads",
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("create object store %s: %w", bucket, err)
		}
	}

	return &NATSStore{conn: conn, store: store}, nil
}

// Put stores r under name.
func (s *NATSStore) Put(ctx context.Context, name string, r io.Reader) (int64, error) {
	info, err := s.store.Put(ctx, jetstream.ObjectMeta{Name: name}, r)
	if err != nil {
		return 0, fmt.Errorf("put object: %w", err)
	}
	return int64(info.Size), nil
}

// Open streams a stored object.
func (s *NATSStore) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	res, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("get object: %w", err)
	}
	info, err := res.Info()
	if err != nil {
		res.Close()
		return nil, 0, fmt.Errorf("object info: %w", err)
	}
	return res, int64(info.Size), nil
}

// Delete removes a stored object.
func (s *NATSStore) Delete(ctx context.Context, name string) error {
	if err := s.store.Delete(ctx, name); err != nil && !errors.Is(err, jetstream.ErrObjectNotFound) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (s *NATSStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
