package models

import "time"

// Product categories
const (
	CategoryDigital  = "digital"
	CategoryPhysical = "physical"
	CategoryService  = "service"
)

// Product represents a catalog entry. Rating and ReviewCount are derived from Reviews.
type Product struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"reviewCount"`
	Category    string   `json:"category"`
	Image       *string  `json:"image,omitempty"`
	InStock     bool     `json:"inStock"`
	Reviews     []Review `json:"reviews"`
}

// Review is a user rating of a product. UserName is captured when the review is written.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	ProductID string    `json:"productId"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	Date      time.Time `json:"date"`
	Verified  bool      `json:"verified"`
}

// CartItem is a product snapshot with a quantity of at least one
type CartItem struct {
	Product
	Quantity int `json:"quantity"`
}

// User represents a registered account
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Password  string     `json:"password"`
	Name      string     `json:"name"`
	IsAdmin   bool       `json:"isAdmin"`
	IsActive  bool       `json:"isActive"`
	CreatedAt time.Time  `json:"createdAt"`
	LastLogin *time.Time `json:"lastLogin,omitempty"`
}

// Message is a directed note between two users. Names are copied at send time
// and are not updated when a user renames themselves.
type Message struct {
	ID           string    `json:"id"`
	SenderID     string    `json:"senderId"`
	SenderName   string    `json:"senderName"`
	ReceiverID   string    `json:"receiverId"`
	ReceiverName string    `json:"receiverName"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	Date         time.Time `json:"date"`
	Read         bool      `json:"read"`
	Replied      bool      `json:"replied"`
}

// Snapshot is the complete application state at a point in time
type Snapshot struct {
	Products       []Product  `json:"products"`
	Cart           []CartItem `json:"cart"`
	Users          []User     `json:"users"`
	CurrentUser    *User      `json:"currentUser"`
	Messages       []Message  `json:"messages"`
	UnreadMessages int        `json:"unreadMessages"`
}

// Normalize replaces nil collections with empty ones so the snapshot always
// serializes its lists as arrays.
func (s Snapshot) Normalize() Snapshot {
	products := make([]Product, len(s.Products))
	copy(products, s.Products)
	for i := range products {
		if products[i].Reviews == nil {
			products[i].Reviews = []Review{}
		}
	}
	s.Products = products

	cart := make([]CartItem, len(s.Cart))
	copy(cart, s.Cart)
	for i := range cart {
		if cart[i].Reviews == nil {
			cart[i].Reviews = []Review{}
		}
	}
	s.Cart = cart

	if s.Users == nil {
		s.Users = []User{}
	}
	if s.Messages == nil {
		s.Messages = []Message{}
	}
	return s
}

// Redacted returns a copy of the snapshot with all passwords blanked
func (s Snapshot) Redacted() Snapshot {
	users := make([]User, len(s.Users))
	for i, u := range s.Users {
		u.Password = ""
		users[i] = u
	}
	s.Users = users
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		u.Password = ""
		s.CurrentUser = &u
	}
	return s
}
