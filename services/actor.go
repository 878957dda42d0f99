package services

import (
	"strconv"
)

// Actor is the resolved (restaurant, actor, role) of the terminal issuing a
// request. It is passed explicitly to every floor operation.
type Actor struct {
	RestaurantID string
	ActorID      uint
	Role         string
}

func (a Actor) validate() error {
	if a.RestaurantID == "" {
		return &ValidationError{Field: "restaurant", Reason: "actor has no restaurant context"}
	}
	return nil
}

// owns fails with CrossTenantError when restaurantID is not the actor's.
func (a Actor) owns(entity, id, restaurantID string) error {
	if restaurantID != a.RestaurantID {
		return &CrossTenantError{Entity: entity, ID: id, Owner: restaurantID, Caller: a.RestaurantID}
	}
	return nil
}

func idString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
