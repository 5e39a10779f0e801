package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"docverify-service/internal/config"
	"docverify-service/internal/util"
)

// PreparedStatements holds the prepared statements used by the remote store.
type PreparedStatements struct {
	InsertDoc      *gocql.Query
	SelectByBucket *gocql.Query
	SelectDoc      *gocql.Query
	DeleteDoc      *gocql.Query
}

// ScyllaClient wraps the gocql session for the generic documents table:
//
//	CREATE TABLE documents (
//	    collection text,
//	    bucket int,
//	    doc_id text,
//	    data text,
//	    updated_at timestamp,
//	    PRIMARY KEY ((collection, bucket), doc_id)
//	)
type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.RWMutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 2
	cluster.SocketKeepalive = 30 * time.Second
	cluster.PageSize = 1000
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB document store initialized",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace),
		zap.String("table", scyllaConfig.Table))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	table := s.config.Table
	prepared := &PreparedStatements{}

	prepared.InsertDoc = s.Session.Query(fmt.Sprintf(`
        INSERT INTO %s (collection, bucket, doc_id, data, updated_at)
        VALUES (?, ?, ?, ?, ?)`, table))

	prepared.SelectByBucket = s.Session.Query(fmt.Sprintf(`
        SELECT doc_id, data FROM %s WHERE collection = ? AND bucket = ?`, table))

	prepared.SelectDoc = s.Session.Query(fmt.Sprintf(`
        SELECT data FROM %s WHERE collection = ? AND bucket = ? AND doc_id = ?`, table))

	prepared.DeleteDoc = s.Session.Query(fmt.Sprintf(`
        DELETE FROM %s WHERE collection = ? AND bucket = ? AND doc_id = ?`, table))

	s.Prepared = prepared
	s.isPrepared = true

	util.Info("ScyllaDB prepared statements created")
	return nil
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
		util.Info("ScyllaDB client closed")
	}
}

func (s *ScyllaClient) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var clusterName string
	err := s.Session.Query(`SELECT cluster_name FROM system.local`).WithContext(ctx).Scan(&clusterName)
	if err != nil {
		return fmt.Errorf("scylla health check failed: %w", err)
	}

	util.Debug("ScyllaDB health check passed", zap.String("cluster_name", clusterName))
	return nil
}

func (s *ScyllaClient) ExecuteWithRetry(query *gocql.Query, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := query.Exec(); err != nil {
			lastErr = err
			if i < maxRetries {
				time.Sleep(time.Duration(i+1) * 100 * time.Millisecond)
				continue
			}
		} else {
			return nil
		}
	}
	return lastErr
}
