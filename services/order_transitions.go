package services

import (
	"strings"
	"time"

	"campustrade_go/models"
)

// OrderRole 调用者在某个订单中的角色（位掩码）
type OrderRole uint8

const (
	RoleBuyer OrderRole = 1 << iota
	RoleSeller
)

// Allows 是否包含任一角色
func (r OrderRole) Allows(role OrderRole) bool {
	return r&role != 0
}

func (r OrderRole) String() string {
	var names []string
	if r&RoleBuyer != 0 {
		names = append(names, "buyer")
	}
	if r&RoleSeller != 0 {
		names = append(names, "seller")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// TransitionRule 状态转换规则
type TransitionRule struct {
	Allowed       OrderRole
	To            models.OrderStatus
	ResetsListing bool // 取消订单时商品恢复为可售
}

type transitionKey struct {
	from   models.OrderStatus
	action models.OrderAction
}

// orderTransitions 订单状态机：(当前状态, 操作) -> (允许的角色, 目标状态)
// completed 与 cancelled 为终态，没有出边
var orderTransitions = map[transitionKey]TransitionRule{
	{models.OrderPending, models.ActionPay}:     {Allowed: RoleBuyer, To: models.OrderPaid},
	{models.OrderPaid, models.ActionShip}:       {Allowed: RoleSeller, To: models.OrderShipped},
	{models.OrderShipped, models.ActionConfirm}: {Allowed: RoleBuyer, To: models.OrderCompleted},
	{models.OrderPending, models.ActionCancel}:  {Allowed: RoleBuyer | RoleSeller, To: models.OrderCancelled, ResetsListing: true},
	// 付款后买家不能取消，只有卖家可以
	{models.OrderPaid, models.ActionCancel}: {Allowed: RoleSeller, To: models.OrderCancelled, ResetsListing: true},
}

// actionRoles 每个操作允许的角色，取该操作所有转换规则的并集
var actionRoles = func() map[models.OrderAction]OrderRole {
	roles := make(map[models.OrderAction]OrderRole)
	for key, rule := range orderTransitions {
		roles[key.action] |= rule.Allowed
	}
	return roles
}()

// RolesFor 可以执行该操作的角色（与订单当前状态无关）
func RolesFor(action models.OrderAction) OrderRole {
	return actionRoles[action]
}

// LookupTransition 查找状态转换规则
func LookupTransition(from models.OrderStatus, action models.OrderAction) (TransitionRule, bool) {
	rule, ok := orderTransitions[transitionKey{from: from, action: action}]
	return rule, ok
}

// AvailableActions 指定角色在当前状态下可执行的操作
func AvailableActions(status models.OrderStatus, role OrderRole) []models.OrderAction {
	actions := []models.OrderAction{}
	for _, action := range []models.OrderAction{models.ActionPay, models.ActionShip, models.ActionConfirm, models.ActionCancel} {
		if rule, ok := LookupTransition(status, action); ok && rule.Allowed.Allows(role) {
			actions = append(actions, action)
		}
	}
	return actions
}

// roleOf 调用者在订单中的角色，需要已加载 Listing
func roleOf(order *models.Order, actorID string) OrderRole {
	var role OrderRole
	if actorID == "" {
		return role
	}
	if order.BuyerID == actorID {
		role |= RoleBuyer
	}
	if order.SellerID() == actorID {
		role |= RoleSeller
	}
	return role
}

// stampTransition 记录进入新状态的时间
func stampTransition(order *models.Order, to models.OrderStatus, at time.Time) string {
	switch to {
	case models.OrderPaid:
		order.PaidAt = &at
		return "paid_at"
	case models.OrderShipped:
		order.ShippedAt = &at
		return "shipped_at"
	case models.OrderCompleted:
		order.CompletedAt = &at
		return "completed_at"
	case models.OrderCancelled:
		order.CancelledAt = &at
		return "cancelled_at"
	}
	return ""
}
