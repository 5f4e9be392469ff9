package services

import (
	"testing"

	"campustrade_go/models"

	"github.com/stretchr/testify/assert"
)

func TestLookupTransition(t *testing.T) {
	tests := []struct {
		from    models.OrderStatus
		action  models.OrderAction
		ok      bool
		to      models.OrderStatus
		allowed OrderRole
		resets  bool
	}{
		{models.OrderPending, models.ActionPay, true, models.OrderPaid, RoleBuyer, false},
		{models.OrderPaid, models.ActionShip, true, models.OrderShipped, RoleSeller, false},
		{models.OrderShipped, models.ActionConfirm, true, models.OrderCompleted, RoleBuyer, false},
		{models.OrderPending, models.ActionCancel, true, models.OrderCancelled, RoleBuyer | RoleSeller, true},
		{models.OrderPaid, models.ActionCancel, true, models.OrderCancelled, RoleSeller, true},
		{models.OrderShipped, models.ActionCancel, false, "", 0, false},
		{models.OrderPending, models.ActionShip, false, "", 0, false},
		{models.OrderCompleted, models.ActionCancel, false, "", 0, false},
		{models.OrderCancelled, models.ActionPay, false, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			rule, ok := LookupTransition(tt.from, tt.action)
			assert.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.to, rule.To)
			assert.Equal(t, tt.allowed, rule.Allowed)
			assert.Equal(t, tt.resets, rule.ResetsListing)
		})
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for key := range orderTransitions {
		assert.False(t, key.from.IsTerminal(), "terminal status %s has an outgoing transition", key.from)
	}
}

func TestRolesFor(t *testing.T) {
	assert.Equal(t, RoleBuyer, RolesFor(models.ActionPay))
	assert.Equal(t, RoleSeller, RolesFor(models.ActionShip))
	assert.Equal(t, RoleBuyer, RolesFor(models.ActionConfirm))
	assert.Equal(t, RoleBuyer|RoleSeller, RolesFor(models.ActionCancel))
	assert.Equal(t, OrderRole(0), RolesFor(models.OrderAction("refund")))
}

func TestAvailableActions(t *testing.T) {
	assert.Equal(t, []models.OrderAction{models.ActionPay, models.ActionCancel}, AvailableActions(models.OrderPending, RoleBuyer))
	assert.Equal(t, []models.OrderAction{models.ActionCancel}, AvailableActions(models.OrderPending, RoleSeller))
	assert.Equal(t, []models.OrderAction{models.ActionShip, models.ActionCancel}, AvailableActions(models.OrderPaid, RoleSeller))
	assert.Empty(t, AvailableActions(models.OrderPaid, RoleBuyer))
	assert.Empty(t, AvailableActions(models.OrderCompleted, RoleBuyer|RoleSeller))
	assert.Empty(t, AvailableActions(models.OrderPending, 0))
}

func TestRoleOf(t *testing.T) {
	order := &models.Order{BuyerID: "b", Listing: &models.Listing{SellerID: "s"}}

	assert.Equal(t, RoleBuyer, roleOf(order, "b"))
	assert.Equal(t, RoleSeller, roleOf(order, "s"))
	assert.Equal(t, OrderRole(0), roleOf(order, "x"))
	assert.Equal(t, OrderRole(0), roleOf(order, ""))
	assert.Equal(t, "buyer|seller", (RoleBuyer | RoleSeller).String())
	assert.Equal(t, "none", OrderRole(0).String())
}
