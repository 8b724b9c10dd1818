// Tourdesk - Tour Booking Marketplace Admin Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tourdesk

package api

import (
	"context"
	"net/http"
	"net/url"
)

// Record is an untyped backend entity. Entity schemas belong to the backend.
type Record map[string]any

// Resource is a REST collection rooted at Path.
type Resource[T any] struct {
	client *Client
	Path   string
}

// NewResource returns the collection at path.
func NewResource[T any](c *Client, path string) *Resource[T] {
	return &Resource[T]{client: c, Path: path}
}

// List returns one page of the collection.
func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	resp, err := r.client.Request(ctx, http.MethodGet, r.Path, nil, query)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one entity.
func (r *Resource[T]) Get(ctx context.Context, id string) (*T, error) {
	return r.one(ctx, http.MethodGet, r.Path+"/"+id, nil)
}

// Create posts a new entity.
func (r *Resource[T]) Create(ctx context.Context, body any) (*T, error) {
	return r.one(ctx, http.MethodPost, r.Path, body)
}

// Update replaces an entity.
func (r *Resource[T]) Update(ctx context.Context, id string, body any) (*T, error) {
	return r.one(ctx, http.MethodPut, r.Path+"/"+id, body)
}

// Delete removes an entity.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	_, err := r.client.Request(ctx, http.MethodDelete, r.Path+"/"+id, nil, nil)
	return err
}

// Action posts to a sub-path of an entity, e.g. /reservations/7/confirm.
func (r *Resource[T]) Action(ctx context.Context, id, action string, body any) (*Response, error) {
	return r.client.Request(ctx, http.MethodPost, r.Path+"/"+id+"/"+action, body, nil)
}

func (r *Resource[T]) one(ctx context.Context, method, path string, body any) (*T, error) {
	resp, err := r.client.Request(ctx, method, path, body, nil)
	if err != nil {
		return nil, err
	}
	var out T
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Collections of the admin backend.
func (c *Client) Countries() *Resource[Record] { return NewResource[Record](c, "/countries") }
func (c *Client) Cities() *Resource[Record] { return NewResource[Record](c, "/cities") }
func (c *Client) Categories() *Resource[Record] { return NewResource[Record](c, "/categories") }
func (c *Client) Activities() *Resource[Record] { return NewResource[Record](c, "/activities") }
func (c *Client) Agencies() *Resource[Record] { return NewResource[Record](c, "/agencies") }
func (c *Client) Reservations() *Resource[Record] { return NewResource[Record](c, "/reservations") }
func (c *Client) Users() *Resource[Record] { return NewResource[Record](c, "/users") }
func (c *Client) Roles() *Resource[Record] { return NewResource[Record](c, "/roles") }
func (c *Client) Menus() *Resource[Record] { return NewResource[Record](c, "/menus") }

// ConfirmReservation confirms a pending reservation.
func (c *Client) ConfirmReservation(ctx context.Context, id, notes string) error {
	_, err := c.Reservations().Action(ctx, id, "confirm", map[string]string{"notes": notes})
	return err
}

// CancelReservation cancels a reservation with a reason.
func (c *Client) CancelReservation(ctx context.Context, id, reason string) error {
	_, err := c.Reservations().Action(ctx, id, "cancel", map[string]string{"reason": reason})
	return err
}

// CompleteReservation marks a reservation as completed.
func (c *Client) CompleteReservation(ctx context.Context, id string) error {
	_, err := c.Reservations().Action(ctx, id, "complete", nil)
	return err
}

// SetMenuRoleAccess replaces the roles that can see a menu item. Callers
// should refresh the session menu afterwards.
func (c *Client) SetMenuRoleAccess(ctx context.Context, menuID string, roleIDs []string) error {
	_, err := c.Request(ctx, http.MethodPut, "/menus/"+menuID+"/access", map[string][]string{"roleIds": roleIDs}, nil)
	return err
}

// SetRolePermissions replaces the menu items a role can see.
func (c *Client) SetRolePermissions(ctx context.Context, roleID string, menuItemIDs []string) error {
	_, err := c.Request(ctx, http.MethodPut, "/roles/"+roleID+"/permissions", map[string][]string{"menuItemIds": menuItemIDs}, nil)
	return err
}
