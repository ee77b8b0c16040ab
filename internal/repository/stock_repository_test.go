package repository_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"

	"github.com/nikolayk812/checkout/internal/domain"
	"github.com/nikolayk812/checkout/internal/port"
	"github.com/nikolayk812/checkout/internal/repository"
)

type stockRepositorySuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	repo      port.StockRepository
	container testcontainers.Container
}

func TestStockRepositorySuite(t *testing.T) {
	defer goleak.VerifyNone(t)

	suite.Run(t, new(stockRepositorySuite))
}

func (suite *stockRepositorySuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	suite.NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.NoError(err)

	suite.repo = repository.NewStock(suite.pool)
}

func (suite *stockRepositorySuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *stockRepositorySuite) TestDecrement() {
	t := suite.T()
	ctx := t.Context()

	product := fakeProduct(10)
	require.NoError(t, insertProduct(ctx, suite.pool, product))

	remaining, err := suite.repo.Decrement(ctx, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)

	remaining, err = suite.repo.Decrement(ctx, product.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func (suite *stockRepositorySuite) TestDecrementInsufficient() {
	t := suite.T()
	ctx := t.Context()

	product := fakeProduct(2)
	require.NoError(t, insertProduct(ctx, suite.pool, product))

	_, err := suite.repo.Decrement(ctx, product.ID, 3)

	var stockErr domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Shortfalls, 1)
	assert.Equal(t, product.ID, stockErr.Shortfalls[0].ProductID)
	assert.Equal(t, 3, stockErr.Shortfalls[0].Requested)
	assert.Equal(t, 2, stockErr.Shortfalls[0].Available)

	// the failed attempt must not touch the stored level
	stock, err := productStock(ctx, suite.pool, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stock)
}

func (suite *stockRepositorySuite) TestDecrementMissingProduct() {
	t := suite.T()

	_, err := suite.repo.Decrement(t.Context(), uuid.New(), 1)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

// Two callers racing for the last units: with 5 in stock and both asking
// for 3, exactly one of them may win.
func (suite *stockRepositorySuite) TestDecrementConcurrent() {
	t := suite.T()
	ctx := t.Context()

	product := fakeProduct(5)
	require.NoError(t, insertProduct(ctx, suite.pool, product))

	var wg sync.WaitGroup
	results := make([]error, 2)

	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = suite.repo.Decrement(ctx, product.ID, 3)
		}()
	}
	wg.Wait()

	var succeeded, failed int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}

		failed++
		var stockErr domain.InsufficientStockError
		assert.True(t, errors.As(err, &stockErr))
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	stock, err := productStock(ctx, suite.pool, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stock)
}

func (suite *stockRepositorySuite) TestRestore() {
	t := suite.T()
	ctx := t.Context()

	product := fakeProduct(5)
	require.NoError(t, insertProduct(ctx, suite.pool, product))

	_, err := suite.repo.Decrement(ctx, product.ID, 4)
	require.NoError(t, err)

	level, err := suite.repo.Restore(ctx, product.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, level)

	// restores are unconditional additions, not capped at any prior level
	level, err = suite.repo.Restore(ctx, product.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 15, level)
}

func (suite *stockRepositorySuite) TestRestoreMissingProduct() {
	t := suite.T()

	_, err := suite.repo.Restore(t.Context(), uuid.New(), 1)
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}
