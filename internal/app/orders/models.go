package orders

type CreateOrderRequest struct {
	OrderID  string `json:"order_id"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Email    string `json:"email"`
}

type OrderResponse struct {
	OrderID  string `json:"order_id"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Email    string `json:"email"`
	Status   string `json:"status"`
}
