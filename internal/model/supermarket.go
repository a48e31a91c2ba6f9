package model

type Supermarket struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultSupermarkets is shown while the supermarkets collection is empty or unreadable.
var DefaultSupermarkets = []Supermarket{
	{ID: "Dia", Name: "Dia"},
	{ID: "Ahorramas", Name: "Ahorramas"},
	{ID: "Mercadona", Name: "Mercadona"},
	{ID: "Aldi", Name: "Aldi"},
	{ID: "Carrefour", Name: "Carrefour"},
}
