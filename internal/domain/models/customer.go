package models

// Customer is a registered buyer. Phone is optional.
type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// CustomerCreate is the payload for POST /customers.
type CustomerCreate struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}
