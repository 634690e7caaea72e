package mocks

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockStoreForTest creates a new mock Store for testing
func NewMockStoreForTest(t *testing.T) *MockStore {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockStore(ctrl)
}

// NewMockWriterForTest creates a new mock Writer for testing
func NewMockWriterForTest(t *testing.T) *MockWriter {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockWriter(ctrl)
}

// NewMockTransfersFetcherForTest creates a new mock TransfersFetcher for testing
func NewMockTransfersFetcherForTest(t *testing.T) *MockTransfersFetcher {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockTransfersFetcher(ctrl)
}

// NewMockPriceSourceForTest creates a new mock PriceSource for testing
func NewMockPriceSourceForTest(t *testing.T) *MockPriceSource {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockPriceSource(ctrl)
}

// NewMockTokenDataSourceForTest creates a new mock TokenDataSource for testing
func NewMockTokenDataSourceForTest(t *testing.T) *MockTokenDataSource {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockTokenDataSource(ctrl)
}

// NewMockBalanceReaderForTest creates a new mock BalanceReader for testing
func NewMockBalanceReaderForTest(t *testing.T) *MockBalanceReader {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return NewMockBalanceReader(ctrl)
}
