package domain

import "time"

const (
	ActivityExpense = "expense"
	ActivityIncome  = "income"
)

type Activity struct {
	ActivityID string    `json:"id" dynamodbav:"activity_id"`
	UserID     string    `json:"user_id" dynamodbav:"user_id"`
	Type       string    `json:"type" dynamodbav:"type"`
	Category   string    `json:"category" dynamodbav:"category"`
	Amount     float64   `json:"amount" dynamodbav:"amount"`
	Date       time.Time `json:"date" dynamodbav:"date"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt  time.Time `json:"updated" dynamodbav:"updated_at"`
}

type CreateActivityRequest struct {
	Type     string  `json:"type" validate:"required,oneof=expense income"`
	Category string  `json:"category" validate:"required"`
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Date     string  `json:"date"` // YYYY-MM-DD or RFC3339; defaults to now
}
