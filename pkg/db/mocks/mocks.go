// Package mocks provides testify doubles of the db interfaces for failure
// injection.
package mocks

import (
	"github.com/eigerco/prefixdb/pkg/db"
	"github.com/stretchr/testify/mock"
)

// MockKVStore mocks db.KVStore.
type MockKVStore struct {
	mock.Mock
}

func (m *MockKVStore) Put(key, value []byte) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *MockKVStore) Get(key []byte) ([]byte, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKVStore) Delete(key []byte) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockKVStore) NewBatch() db.Batch {
	args := m.Called()
	return args.Get(0).(db.Batch)
}

func (m *MockKVStore) NewIterator(start, end []byte) (db.Iterator, error) {
	args := m.Called(start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(db.Iterator), args.Error(1)
}

func (m *MockKVStore) Kind() db.Kind {
	args := m.Called()
	return args.Get(0).(db.Kind)
}

// MockBatch mocks db.Batch.
type MockBatch struct {
	mock.Mock
}

func (m *MockBatch) Put(key, value []byte) error {
	args := m.Called(key, value)
	return args.Error(0)
}

func (m *MockBatch) Delete(key []byte) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockBatch) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockBatch) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEngine mocks db.Engine.
type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) CreateCollection(name string, kind db.Kind) error {
	args := m.Called(name, kind)
	return args.Error(0)
}

func (m *MockEngine) Collection(name string) (db.KVStore, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(db.KVStore), args.Error(1)
}

func (m *MockEngine) Close() error {
	args := m.Called()
	return args.Error(0)
}
