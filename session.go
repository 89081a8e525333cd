// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"context"

	"github.com/google/uuid"
)

// Session binds an Executor to one EMS team. Sessions are safe for
// concurrent use. There is no package level default session.
type Session struct {
	id       string
	cfg      *Config
	rest     *restClient
	executor *Executor
}

// NewSession validates cfg and opens a session over the EMS export API.
// cfg is not modified.
func NewSession(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, newConfigurationError(ErrCodeEmptyURL, errMsgEmptyURL)
	}
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := initClientLogging(c.ClientConfigFile); err != nil {
		return nil, err
	}
	rest, err := newRestClient(&c)
	if err != nil {
		return nil, err
	}
	s := &Session{
		id:       uuid.NewString(),
		cfg:      &c,
		rest:     rest,
		executor: NewExecutor(rest),
	}
	logger.WithField(string(PQLSessionIDKey), s.id).Infof("session opened for %v", c.BaseURL)
	return s, nil
}

// NewSessionWithTransport wraps any Transport. Schema and DataModels are not
// available on such a session.
func NewSessionWithTransport(t Transport) *Session {
	return &Session{
		id:       uuid.NewString(),
		cfg:      &Config{},
		executor: NewExecutor(t),
	}
}

// ID returns the session id written to logs.
func (s *Session) ID() string {
	return s.id
}

// Executor returns the executor of this session.
func (s *Session) Executor() *Executor {
	return s.executor
}

func (s *Session) prepare(ctx context.Context, q Query) (context.Context, Query) {
	if q.DataModelID() == "" && s.cfg.DataModelID != "" {
		q = q.ForDataModel(s.cfg.DataModelID)
	}
	return withLogValue(ctx, PQLSessionIDKey, s.id), q
}

// Execute runs q and returns the whole result. A query without data model
// runs against Config.DataModelID.
func (s *Session) Execute(ctx context.Context, q Query, opts ...ExecuteOption) (*ResultSet, error) {
	ctx, q = s.prepare(ctx, q)
	return s.executor.Execute(ctx, q, opts...)
}

// Stream returns a lazy iterator with one ResultSet per exported chunk.
func (s *Session) Stream(ctx context.Context, q Query, opts ...ExecuteOption) *BatchIterator {
	ctx, q = s.prepare(ctx, q)
	return s.executor.Stream(ctx, q, opts...)
}

// IterChunks returns a lazy iterator with ResultSets of chunkSize rows.
func (s *Session) IterChunks(ctx context.Context, q Query, chunkSize int, opts ...ExecuteOption) (*ChunkIterator, error) {
	ctx, q = s.prepare(ctx, q)
	return s.executor.IterChunks(ctx, q, chunkSize, opts...)
}

func (s *Session) requireRest() error {
	if s.rest == nil {
		return newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, "Transport", "custom transport has no data model API")
	}
	return nil
}

// Tables lists the tables of a data model. Empty ids fall back to
// Config.PoolID and Config.DataModelID.
func (s *Session) Tables(ctx context.Context, poolID, dataModelID string) ([]Table, error) {
	if err := s.requireRest(); err != nil {
		return nil, err
	}
	if poolID == "" {
		poolID = s.cfg.PoolID
	}
	if dataModelID == "" {
		dataModelID = s.cfg.DataModelID
	}
	if poolID == "" {
		return nil, newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, "PoolID", poolID)
	}
	if dataModelID == "" {
		return nil, newConfigurationError(ErrCodeMissingDataModel, errMsgMissingDataModel)
	}
	ctx = withLogValue(withLogValue(ctx, PQLSessionIDKey, s.id), PQLDataModelIDKey, dataModelID)
	tables, err := s.rest.dataModelTables(ctx, poolID, dataModelID)
	if err != nil {
		return nil, normalizeError(err)
	}
	return tables, nil
}

// Schema is Tables indexed for column lookups, ready for Query.WithSchema.
func (s *Session) Schema(ctx context.Context, poolID, dataModelID string) (*StaticSchema, error) {
	tables, err := s.Tables(ctx, poolID, dataModelID)
	if err != nil {
		return nil, err
	}
	return NewStaticSchema(tables), nil
}

// DataModels lists the data models of a pool, Config.PoolID when empty.
func (s *Session) DataModels(ctx context.Context, poolID string) ([]DataModel, error) {
	if err := s.requireRest(); err != nil {
		return nil, err
	}
	if poolID == "" {
		poolID = s.cfg.PoolID
	}
	if poolID == "" {
		return nil, newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, "PoolID", poolID)
	}
	models, err := s.rest.dataModels(withLogValue(ctx, PQLSessionIDKey, s.id), poolID)
	if err != nil {
		return nil, normalizeError(err)
	}
	return models, nil
}

// Config returns a copy of the validated session configuration.
func (s *Session) Config() Config {
	return *s.cfg
}

// Close releases idle connections. The session must not be used afterwards.
func (s *Session) Close() error {
	if s.rest != nil {
		s.rest.client.CloseIdleConnections()
	}
	logger.WithField(string(PQLSessionIDKey), s.id).Info("session closed")
	return nil
}
