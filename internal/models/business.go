package models

import "time"

type Business struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	TotalCustomer int       `json:"total_customer"`
	TotalIncome   float64   `json:"total_income"`
	TotalDue      float64   `json:"total_due"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateBusinessRequest represents the request body for creating a business
type CreateBusinessRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// UpdateBusinessRequest represents the request body for updating a business
type UpdateBusinessRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}
