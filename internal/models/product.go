package models

import "time"

type Product struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"priceCents"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p *Product) ResourceID() string { return p.ID }

func (p *Product) Version() time.Time { return p.UpdatedAt }

func (p *Product) SetVersion(at time.Time) { p.UpdatedAt = at }

func (p *Product) Owner() string { return p.OwnerID }

func (p *Product) SetCreated(at time.Time) { p.CreatedAt = at }
