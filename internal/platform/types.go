package platform

// Product is a catalog product as returned by the admin API.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Tags     string    `json:"tags"`
	Variants []Variant `json:"variants"`
}

// Variant is one purchasable unit of a product.
type Variant struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	Title             string `json:"title"`
	SKU               string `json:"sku"`
	Barcode           string `json:"barcode"`
	InventoryItemID   int64  `json:"inventory_item_id"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

// Location is a stock location.
type Location struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
	Legacy bool   `json:"legacy"`
}

// Shop identifies the store the credentials belong to.
type Shop struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Email  string `json:"email"`
}

// InventoryLevel is the body of an absolute-quantity write.
type InventoryLevel struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       int   `json:"available"`
}

type productsPage struct {
	Products []Product `json:"products"`
}

type locationsPage struct {
	Locations []Location `json:"locations"`
}

type shopResponse struct {
	Shop Shop `json:"shop"`
}
