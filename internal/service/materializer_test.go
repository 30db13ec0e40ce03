package service

import (
	"context"
	"errors"
	"testing"

	"av-rental/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMaterializer_Failures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(order *model.Order, cartRepo *MockCartRepository, orderRepo *MockOrderRepository, tx *MockTx)
		wantErr error
	}{
		{
			name: "Order vanished",
			setup: func(order *model.Order, cartRepo *MockCartRepository, orderRepo *MockOrderRepository, tx *MockTx) {
				orderRepo.On("LockByID", ctx, tx, order.ID).Return(nil, nil)
			},
			wantErr: model.ErrOrderNotFound,
		},
		{
			name: "Empty cart",
			setup: func(order *model.Order, cartRepo *MockCartRepository, orderRepo *MockOrderRepository, tx *MockTx) {
				orderRepo.On("LockByID", ctx, tx, order.ID).Return(order, nil)
				orderRepo.On("GetLinesTx", ctx, tx, order.ID).Return(nil, nil)
				cartRepo.On("ListByUserForUpdate", ctx, tx, "user-1").Return([]model.CartLine{}, nil)
			},
			wantErr: model.ErrEmptyCart,
		},
		{
			name: "Cart dates changed after checkout",
			setup: func(order *model.Order, cartRepo *MockCartRepository, orderRepo *MockOrderRepository, tx *MockTx) {
				orderRepo.On("LockByID", ctx, tx, order.ID).Return(order, nil)
				orderRepo.On("GetLinesTx", ctx, tx, order.ID).Return(nil, nil)
				cartRepo.On("ListByUserForUpdate", ctx, tx, "user-1").Return([]model.CartLine{
					cartLine("P1", "25.00", 2, day1, day1),
				}, nil)
			},
			wantErr: model.ErrCartDateMismatch,
		},
		{
			name: "Insert fails",
			setup: func(order *model.Order, cartRepo *MockCartRepository, orderRepo *MockOrderRepository, tx *MockTx) {
				orderRepo.On("LockByID", ctx, tx, order.ID).Return(order, nil)
				orderRepo.On("GetLinesTx", ctx, tx, order.ID).Return(nil, nil)
				cartRepo.On("ListByUserForUpdate", ctx, tx, "user-1").Return(twoLineCart(), nil)
				orderRepo.On("CreateLines", ctx, tx, mock.Anything).Return(errors.New("unique violation"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cartRepo := new(MockCartRepository)
			orderRepo := new(MockOrderRepository)
			tx := new(MockTx)
			order := paidOf(pendingOrder())

			orderRepo.On("BeginTx", ctx).Return(tx, nil)
			tx.On("Rollback", ctx).Return(nil)
			tt.setup(order, cartRepo, orderRepo, tx)

			m := newMaterializer(cartRepo, orderRepo, zerolog.Nop())
			created, err := m.materialize(ctx, order)

			require.Error(t, err)
			assert.False(t, created)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.True(t, tx.rolledBack)
			assert.False(t, tx.committed)
			cartRepo.AssertNotCalled(t, "DeleteByIDs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestMaterializer_PriceDriftStillMaterializes(t *testing.T) {
	ctx := context.Background()
	cartRepo := new(MockCartRepository)
	orderRepo := new(MockOrderRepository)
	tx := new(MockTx)

	order := paidOf(pendingOrder())
	order.TotalAmount = 19999
	cart := []model.CartLine{cartLine("P1", "30.00", 1, day1, day3)}

	orderRepo.On("BeginTx", ctx).Return(tx, nil)
	orderRepo.On("LockByID", ctx, tx, order.ID).Return(order, nil)
	orderRepo.On("GetLinesTx", ctx, tx, order.ID).Return(nil, nil)
	cartRepo.On("ListByUserForUpdate", ctx, tx, "user-1").Return(cart, nil)
	orderRepo.On("CreateLines", ctx, tx, mock.MatchedBy(func(lines []model.OrderLine) bool {
		return len(lines) == 1 && lines[0].UnitPrice == 3000 && lines[0].Quantity == 3 && lines[0].ID != uuid.Nil
	})).Return(nil)
	cartRepo.On("DeleteByIDs", ctx, tx, "user-1", []uuid.UUID{cart[0].ID}).Return(int64(1), nil)
	tx.On("Commit", ctx).Return(nil)

	created, err := newMaterializer(cartRepo, orderRepo, zerolog.Nop()).materialize(ctx, order)

	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, tx.committed)
	orderRepo.AssertExpectations(t)
	cartRepo.AssertExpectations(t)
}

func TestMaterializer_BeginFails(t *testing.T) {
	ctx := context.Background()
	orderRepo := new(MockOrderRepository)
	orderRepo.On("BeginTx", ctx).Return(nil, errors.New("pool closed"))

	created, err := newMaterializer(new(MockCartRepository), orderRepo, zerolog.Nop()).materialize(ctx, pendingOrder())

	require.Error(t, err)
	assert.False(t, created)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}
