package state

import (
	"encoding/json"
	"fmt"

	"securemarket/internal/models"
)

// Kind names an intent on the wire
type Kind string

// Intent kinds
const (
	KindAddToCart        Kind = "ADD_TO_CART"
	KindRemoveFromCart   Kind = "REMOVE_FROM_CART"
	KindUpdateQuantity   Kind = "UPDATE_QUANTITY"
	KindClearCart        Kind = "CLEAR_CART"
	KindAddProduct       Kind = "ADD_PRODUCT"
	KindUpdateProduct    Kind = "UPDATE_PRODUCT"
	KindDeleteProduct    Kind = "DELETE_PRODUCT"
	KindRegisterUser     Kind = "REGISTER_USER"
	KindLogin            Kind = "LOGIN"
	KindLogout           Kind = "LOGOUT"
	KindUpdateUser       Kind = "UPDATE_USER"
	KindDeleteUser       Kind = "DELETE_USER"
	KindToggleUserStatus Kind = "TOGGLE_USER_STATUS"
	KindAddReview        Kind = "ADD_REVIEW"
	KindDeleteReview     Kind = "DELETE_REVIEW"
	KindSendMessage      Kind = "SEND_MESSAGE"
	KindReadMessage      Kind = "READ_MESSAGE"
	KindDeleteMessage    Kind = "DELETE_MESSAGE"
	KindReplyMessage     Kind = "REPLY_MESSAGE"
	KindLoadSnapshot     Kind = "LOAD_SNAPSHOT"
)

// Intent is a request to change the application state
type Intent interface {
	Kind() Kind
}

type AddToCart struct {
	Product models.Product `json:"product"`
}

type RemoveFromCart struct {
	ProductID string `json:"productId"`
}

// UpdateQuantity sets the quantity of a cart line; zero or less removes the line
type UpdateQuantity struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type ClearCart struct{}

type AddProduct struct {
	Product models.Product `json:"product"`
}

// UpdateProduct replaces the catalog fields of the product with the same id.
// Reviews and the fields derived from them are kept.
type UpdateProduct struct {
	Product models.Product `json:"product"`
}

type DeleteProduct struct {
	ProductID string `json:"productId"`
}

// NewUser is the caller-supplied part of a registration
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	IsAdmin  bool   `json:"isAdmin"`
	IsActive *bool  `json:"isActive,omitempty"`
}

type RegisterUser struct {
	User NewUser `json:"user"`
}

type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Logout struct{}

type UpdateUser struct {
	User models.User `json:"user"`
}

type DeleteUser struct {
	UserID string `json:"userId"`
}

type ToggleUserStatus struct {
	UserID string `json:"userId"`
}

// ReviewDraft is the caller-supplied part of a review; the author comes from the session
type ReviewDraft struct {
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	Verified  bool   `json:"verified"`
}

type AddReview struct {
	Review ReviewDraft `json:"review"`
}

type DeleteReview struct {
	ReviewID  string `json:"reviewId"`
	ProductID string `json:"productId"`
}

// MessageDraft is the caller-supplied part of a message; the sender is the session user
type MessageDraft struct {
	ReceiverID string `json:"receiverId"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

type SendMessage struct {
	Message MessageDraft `json:"message"`
}

type ReadMessage struct {
	MessageID string `json:"messageId"`
}

type DeleteMessage struct {
	MessageID string `json:"messageId"`
}

// ReplyMessage marks a message as replied. With a non-empty Body it also sends
// the reply to the original sender when the sender is a registered user.
type ReplyMessage struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body,omitempty"`
}

type LoadSnapshot struct {
	Snapshot models.Snapshot `json:"data"`
}

func (AddToCart) Kind() Kind        { return KindAddToCart }
func (RemoveFromCart) Kind() Kind   { return KindRemoveFromCart }
func (UpdateQuantity) Kind() Kind   { return KindUpdateQuantity }
func (ClearCart) Kind() Kind        { return KindClearCart }
func (AddProduct) Kind() Kind       { return KindAddProduct }
func (UpdateProduct) Kind() Kind    { return KindUpdateProduct }
func (DeleteProduct) Kind() Kind    { return KindDeleteProduct }
func (RegisterUser) Kind() Kind     { return KindRegisterUser }
func (Login) Kind() Kind            { return KindLogin }
func (Logout) Kind() Kind           { return KindLogout }
func (UpdateUser) Kind() Kind       { return KindUpdateUser }
func (DeleteUser) Kind() Kind       { return KindDeleteUser }
func (ToggleUserStatus) Kind() Kind { return KindToggleUserStatus }
func (AddReview) Kind() Kind        { return KindAddReview }
func (DeleteReview) Kind() Kind     { return KindDeleteReview }
func (SendMessage) Kind() Kind      { return KindSendMessage }
func (ReadMessage) Kind() Kind      { return KindReadMessage }
func (DeleteMessage) Kind() Kind    { return KindDeleteMessage }
func (ReplyMessage) Kind() Kind     { return KindReplyMessage }
func (LoadSnapshot) Kind() Kind     { return KindLoadSnapshot }

var decoders = map[Kind]func([]byte) (Intent, error){
	KindAddToCart:        decodeAs[AddToCart],
	KindRemoveFromCart:   decodeAs[RemoveFromCart],
	KindUpdateQuantity:   decodeAs[UpdateQuantity],
	KindClearCart:        decodeAs[ClearCart],
	KindAddProduct:       decodeAs[AddProduct],
	KindUpdateProduct:    decodeAs[UpdateProduct],
	KindDeleteProduct:    decodeAs[DeleteProduct],
	KindRegisterUser:     decodeAs[RegisterUser],
	KindLogin:            decodeAs[Login],
	KindLogout:           decodeAs[Logout],
	KindUpdateUser:       decodeAs[UpdateUser],
	KindDeleteUser:       decodeAs[DeleteUser],
	KindToggleUserStatus: decodeAs[ToggleUserStatus],
	KindAddReview:        decodeAs[AddReview],
	KindDeleteReview:     decodeAs[DeleteReview],
	KindSendMessage:      decodeAs[SendMessage],
	KindReadMessage:      decodeAs[ReadMessage],
	KindDeleteMessage:    decodeAs[DeleteMessage],
	KindReplyMessage:     decodeAs[ReplyMessage],
	KindLoadSnapshot:     decodeAs[LoadSnapshot],
}

func decodeAs[T Intent](data []byte) (Intent, error) {
	var in T
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return in, nil
}

// DecodeIntent parses a tagged intent of the form {"type": "<KIND>", ...payload}
func DecodeIntent(data []byte) (Intent, error) {
	var tag struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("failed to decode intent: %w", err)
	}

	decode, ok := decoders[tag.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, tag.Type)
	}

	in, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", tag.Type, err)
	}
	return in, nil
}

// EncodeIntent renders an intent in its tagged wire form
func EncodeIntent(in Intent) ([]byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode intent: %w", err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode intent: %w", err)
	}

	kind, err := json.Marshal(in.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = kind

	return json.Marshal(fields)
}
