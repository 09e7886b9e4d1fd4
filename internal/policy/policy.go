// Package policy is the single place role and ownership checks live.
// Every gated operation is a row in the table below instead of an ad-hoc
// comparison inside a handler.
package policy

import (
	"fmt"

	"github.com/mekonnend/ourlocalmarket/internal/domain"
	"github.com/mekonnend/ourlocalmarket/internal/models"
)

// Principal is the authenticated caller as supplied by the session layer.
// It is trusted completely; no credential check happens here.
type Principal struct {
	ID   uint
	Role string
}

type Action string

const (
	ActionCreateOrder      Action = "order.create"
	ActionViewOrder        Action = "order.view"
	ActionCancelPending    Action = "order.cancel_pending"
	ActionCancelInFlight   Action = "order.cancel_in_flight"
	ActionAdvanceOrder     Action = "order.advance"
	ActionSetPaymentStatus Action = "order.set_payment_status"

	ActionCreateProduct   Action = "product.create"
	ActionUpdateProduct   Action = "product.update"
	ActionDeleteProduct   Action = "product.delete"
	ActionModerateProduct Action = "product.moderate"

	ActionUpdateReview Action = "review.update"
	ActionDeleteReview Action = "review.delete"

	ActionViewAdminOrders  Action = "admin.view_orders"
	ActionViewAdminStats   Action = "admin.view_stats"
	ActionViewAdminReviews Action = "admin.view_reviews"
)

// Resource carries the ownership facts a rule may need. Zero values mean
// "no such relation".
type Resource struct {
	OwnerID   uint   // buyer of an order, author of a review, farmer of a product
	FarmerIDs []uint // farmers appearing in an order's items
}

type requirement int

const (
	anyResource requirement = iota
	owner
	itemFarmer
)

type grant struct {
	role string
	req  requirement
}

var table = map[Action][]grant{
	ActionCreateOrder: {{models.RoleBuyer, anyResource}},
	ActionViewOrder: {
		{models.RoleBuyer, owner},
		{models.RoleFarmer, itemFarmer},
		{models.RoleAdmin, anyResource},
	},
	ActionCancelPending: {
		{models.RoleBuyer, owner},
		{models.RoleAdmin, anyResource},
	},
	ActionCancelInFlight: {
		{models.RoleFarmer, itemFarmer},
		{models.RoleAdmin, anyResource},
	},
	ActionAdvanceOrder: {
		{models.RoleFarmer, itemFarmer},
		{models.RoleAdmin, anyResource},
	},
	ActionSetPaymentStatus: {{models.RoleAdmin, anyResource}},

	ActionCreateProduct: {{models.RoleFarmer, anyResource}},
	ActionUpdateProduct: {
		{models.RoleFarmer, owner},
		{models.RoleAdmin, anyResource},
	},
	ActionDeleteProduct: {
		{models.RoleFarmer, owner},
		{models.RoleAdmin, anyResource},
	},
	ActionModerateProduct: {{models.RoleAdmin, anyResource}},

	ActionUpdateReview: {
		{models.RoleBuyer, owner},
		{models.RoleFarmer, owner},
	},
	ActionDeleteReview: {
		{models.RoleBuyer, owner},
		{models.RoleFarmer, owner},
		{models.RoleAdmin, anyResource},
	},

	ActionViewAdminOrders:  {{models.RoleAdmin, anyResource}},
	ActionViewAdminStats:   {{models.RoleAdmin, anyResource}},
	ActionViewAdminReviews: {{models.RoleAdmin, anyResource}},
}

// Allow evaluates the policy table once per operation entry. It returns
// domain.ErrForbidden when no grant matches.
func Allow(a Action, p Principal, res Resource) error {
	for _, g := range table[a] {
		if g.role != p.Role {
			continue
		}
		if satisfied(g.req, p, res) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s not permitted", domain.ErrForbidden, a)
}

func satisfied(req requirement, p Principal, res Resource) bool {
	switch req {
	case anyResource:
		return true
	case owner:
		return res.OwnerID != 0 && res.OwnerID == p.ID
	case itemFarmer:
		for _, id := range res.FarmerIDs {
			if id == p.ID {
				return true
			}
		}
	}
	return false
}
