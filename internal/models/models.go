package models

import "math"

// Product is one catalog entry. Immutable once loaded; identity is ID.
type Product struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// CartLine is one product's entry in the cart. Title, Price and Image are a
// snapshot taken when the product was added; they are not re-joined to the
// catalog afterwards, so the price at add time is the price that is charged.
type CartLine struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	Image  string  `json:"image"`
	Amount int     `json:"amount"`
}

// CartTotals is the derived aggregate over a cart.
type CartTotals struct {
	ItemCount int     `json:"item_count"`
	AmountDue float64 `json:"amount_due"`
}

// Round2 rounds a monetary value to two decimal places for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
