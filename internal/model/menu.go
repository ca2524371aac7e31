package model

// Pizza 是第三方 API 菜单中的一项。
type Pizza struct {
	ID          int      `json:"id"`
	Name        string   `json:"name"`
	UnitPrice   float64  `json:"unitPrice"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	Ingredients []string `json:"ingredients,omitempty"`
	SoldOut     bool     `json:"soldOut"`
}
