package state

import (
	"fmt"
	"strings"

	"securemarket/internal/models"
)

// ReplyPrefix is prepended to the subject of a reply
const ReplyPrefix = "RE: "

// Apply returns the snapshot that results from applying in to s.
// It never modifies s. When the intent is rejected the returned snapshot is s
// and the error names the reason.
func Apply(s models.Snapshot, in Intent, env Env) (models.Snapshot, error) {
	switch in := in.(type) {
	case AddToCart:
		return addToCart(s, in), nil
	case RemoveFromCart:
		return removeFromCart(s, in)
	case UpdateQuantity:
		return updateQuantity(s, in)
	case ClearCart:
		s.Cart = []models.CartItem{}
		return s, nil
	case AddProduct:
		return addProduct(s, in)
	case UpdateProduct:
		return updateProduct(s, in)
	case DeleteProduct:
		return deleteProduct(s, in)
	case RegisterUser:
		return registerUser(s, in, env)
	case Login:
		return login(s, in, env)
	case Logout:
		return logout(s), nil
	case UpdateUser:
		return updateUser(s, in)
	case DeleteUser:
		return deleteUser(s, in)
	case ToggleUserStatus:
		return toggleUserStatus(s, in)
	case AddReview:
		return addReview(s, in, env)
	case DeleteReview:
		return deleteReview(s, in)
	case SendMessage:
		return sendMessage(s, in.Message, env)
	case ReadMessage:
		return readMessage(s, in)
	case DeleteMessage:
		return deleteMessage(s, in)
	case ReplyMessage:
		return replyMessage(s, in, env)
	case LoadSnapshot:
		return in.Snapshot.Normalize(), nil
	default:
		return s, fmt.Errorf("%w: %T", ErrUnknownIntent, in)
	}
}

func addToCart(s models.Snapshot, in AddToCart) models.Snapshot {
	cart := make([]models.CartItem, 0, len(s.Cart)+1)
	found := false
	for _, item := range s.Cart {
		if item.ID == in.Product.ID {
			item.Quantity++
			found = true
		}
		cart = append(cart, item)
	}
	if !found {
		cart = append(cart, models.CartItem{Product: in.Product, Quantity: 1})
	}
	s.Cart = cart
	return s
}

func removeFromCart(s models.Snapshot, in RemoveFromCart) (models.Snapshot, error) {
	if cartIndex(s.Cart, in.ProductID) < 0 {
		return s, fmt.Errorf("%w: cart item %s", ErrNotFound, in.ProductID)
	}
	s.Cart = withoutCartItem(s.Cart, in.ProductID)
	return s, nil
}

func updateQuantity(s models.Snapshot, in UpdateQuantity) (models.Snapshot, error) {
	if cartIndex(s.Cart, in.ProductID) < 0 {
		return s, fmt.Errorf("%w: cart item %s", ErrNotFound, in.ProductID)
	}
	if in.Quantity <= 0 {
		s.Cart = withoutCartItem(s.Cart, in.ProductID)
		return s, nil
	}

	cart := make([]models.CartItem, len(s.Cart))
	for i, item := range s.Cart {
		if item.ID == in.ProductID {
			item.Quantity = in.Quantity
		}
		cart[i] = item
	}
	s.Cart = cart
	return s, nil
}

func addProduct(s models.Snapshot, in AddProduct) (models.Snapshot, error) {
	if err := validateProduct(in.Product); err != nil {
		return s, err
	}

	p := in.Product
	p.Reviews = append([]models.Review{}, p.Reviews...)
	p = withDerivedRating(p)

	products := make([]models.Product, 0, len(s.Products)+1)
	products = append(products, s.Products...)
	s.Products = append(products, p)
	return s, nil
}

func updateProduct(s models.Snapshot, in UpdateProduct) (models.Snapshot, error) {
	if err := validateProduct(in.Product); err != nil {
		return s, err
	}
	if productIndex(s.Products, in.Product.ID) < 0 {
		return s, fmt.Errorf("%w: product %s", ErrNotFound, in.Product.ID)
	}

	products := make([]models.Product, len(s.Products))
	for i, p := range s.Products {
		if p.ID == in.Product.ID {
			updated := in.Product
			updated.Reviews = p.Reviews
			updated.Rating = p.Rating
			updated.ReviewCount = p.ReviewCount
			p = updated
		}
		products[i] = p
	}
	s.Products = products
	return s, nil
}

func deleteProduct(s models.Snapshot, in DeleteProduct) (models.Snapshot, error) {
	if productIndex(s.Products, in.ProductID) < 0 {
		return s, fmt.Errorf("%w: product %s", ErrNotFound, in.ProductID)
	}

	products := make([]models.Product, 0, len(s.Products))
	for _, p := range s.Products {
		if p.ID != in.ProductID {
			products = append(products, p)
		}
	}
	s.Products = products
	s.Cart = withoutCartItem(s.Cart, in.ProductID)
	return s, nil
}

func registerUser(s models.Snapshot, in RegisterUser, env Env) (models.Snapshot, error) {
	email := strings.TrimSpace(in.User.Email)
	if email == "" || in.User.Password == "" {
		return s, fmt.Errorf("%w: email and password are required", ErrInvalidUser)
	}
	if emailTaken(s.Users, email, "") {
		return s, fmt.Errorf("%w: %s", ErrDuplicateEmail, email)
	}
	if ValidatePassword(in.User.Password).Score < MinPasswordScore {
		return s, ErrWeakPassword
	}

	name := strings.TrimSpace(in.User.Name)
	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	active := true
	if in.User.IsActive != nil {
		active = *in.User.IsActive
	}

	u := models.User{
		ID:        env.NewID("user"),
		Email:     email,
		Password:  in.User.Password,
		Name:      name,
		IsAdmin:   in.User.IsAdmin,
		IsActive:  active,
		CreatedAt: env.Now(),
	}

	users := make([]models.User, 0, len(s.Users)+1)
	users = append(users, s.Users...)
	s.Users = append(users, u)
	return s, nil
}

func login(s models.Snapshot, in Login, env Env) (models.Snapshot, error) {
	idx := -1
	inactive := false
	for i, u := range s.Users {
		if u.Email != in.Email || u.Password != in.Password {
			continue
		}
		if u.IsActive {
			idx = i
			break
		}
		inactive = true
	}
	if idx < 0 {
		if inactive {
			return s, fmt.Errorf("%w: %s", ErrAccountInactive, in.Email)
		}
		return s, ErrInvalidCredentials
	}

	now := env.Now()
	updated := s.Users[idx]
	updated.LastLogin = &now

	s.Users = replaceUser(s.Users, updated)
	s.CurrentUser = &updated
	s.UnreadMessages = CountUnread(s.Messages, s.CurrentUser)
	return s, nil
}

func logout(s models.Snapshot) models.Snapshot {
	s.CurrentUser = nil
	s.Cart = []models.CartItem{}
	s.UnreadMessages = 0
	return s
}

func updateUser(s models.Snapshot, in UpdateUser) (models.Snapshot, error) {
	idx := userIndex(s.Users, in.User.ID)
	if idx < 0 {
		return s, fmt.Errorf("%w: user %s", ErrNotFound, in.User.ID)
	}
	existing := s.Users[idx]

	updated := in.User
	updated.Email = strings.TrimSpace(updated.Email)
	if updated.Email == "" {
		return s, fmt.Errorf("%w: email is required", ErrInvalidUser)
	}
	if emailTaken(s.Users, updated.Email, updated.ID) {
		return s, fmt.Errorf("%w: %s", ErrDuplicateEmail, updated.Email)
	}
	if isActiveAdmin(existing) && !isActiveAdmin(updated) && activeAdminCount(s.Users) == 1 {
		return s, fmt.Errorf("%w: %s", ErrLastAdmin, existing.ID)
	}

	// An edit without a password keeps the current one.
	if updated.Password == "" {
		updated.Password = existing.Password
	}
	if updated.CreatedAt.IsZero() {
		updated.CreatedAt = existing.CreatedAt
	}
	if updated.LastLogin == nil {
		updated.LastLogin = existing.LastLogin
	}

	s.Users = replaceUser(s.Users, updated)
	if s.CurrentUser != nil && s.CurrentUser.ID == updated.ID {
		s.CurrentUser = &updated
	}
	return s, nil
}

func deleteUser(s models.Snapshot, in DeleteUser) (models.Snapshot, error) {
	idx := userIndex(s.Users, in.UserID)
	if idx < 0 {
		return s, fmt.Errorf("%w: user %s", ErrNotFound, in.UserID)
	}
	if isActiveAdmin(s.Users[idx]) && activeAdminCount(s.Users) == 1 {
		return s, fmt.Errorf("%w: %s", ErrLastAdmin, in.UserID)
	}

	users := make([]models.User, 0, len(s.Users))
	for _, u := range s.Users {
		if u.ID != in.UserID {
			users = append(users, u)
		}
	}
	s.Users = users

	if s.CurrentUser != nil && s.CurrentUser.ID == in.UserID {
		s = logout(s)
	}
	return s, nil
}

func toggleUserStatus(s models.Snapshot, in ToggleUserStatus) (models.Snapshot, error) {
	idx := userIndex(s.Users, in.UserID)
	if idx < 0 {
		return s, fmt.Errorf("%w: user %s", ErrNotFound, in.UserID)
	}
	if isActiveAdmin(s.Users[idx]) && activeAdminCount(s.Users) == 1 {
		return s, fmt.Errorf("%w: %s", ErrLastAdmin, in.UserID)
	}

	updated := s.Users[idx]
	updated.IsActive = !updated.IsActive
	s.Users = replaceUser(s.Users, updated)
	if s.CurrentUser != nil && s.CurrentUser.ID == updated.ID {
		s.CurrentUser = &updated
	}
	return s, nil
}

func addReview(s models.Snapshot, in AddReview, env Env) (models.Snapshot, error) {
	if s.CurrentUser == nil {
		return s, ErrNotAuthenticated
	}
	if in.Review.Rating < 1 || in.Review.Rating > 5 {
		return s, fmt.Errorf("%w: rating %d out of range 1-5", ErrInvalidReview, in.Review.Rating)
	}
	if productIndex(s.Products, in.Review.ProductID) < 0 {
		return s, fmt.Errorf("%w: product %s", ErrNotFound, in.Review.ProductID)
	}

	r := models.Review{
		ID:        env.NewID("review"),
		UserID:    s.CurrentUser.ID,
		UserName:  s.CurrentUser.Name,
		ProductID: in.Review.ProductID,
		Rating:    in.Review.Rating,
		Comment:   in.Review.Comment,
		Date:      env.Now(),
		Verified:  in.Review.Verified,
	}

	products := make([]models.Product, len(s.Products))
	for i, p := range s.Products {
		if p.ID == r.ProductID {
			reviews := make([]models.Review, 0, len(p.Reviews)+1)
			reviews = append(reviews, p.Reviews...)
			p.Reviews = append(reviews, r)
			p = withDerivedRating(p)
		}
		products[i] = p
	}
	s.Products = products
	return s, nil
}

func deleteReview(s models.Snapshot, in DeleteReview) (models.Snapshot, error) {
	idx := productIndex(s.Products, in.ProductID)
	if idx < 0 {
		return s, fmt.Errorf("%w: product %s", ErrNotFound, in.ProductID)
	}
	found := false
	for _, r := range s.Products[idx].Reviews {
		if r.ID == in.ReviewID {
			found = true
			break
		}
	}
	if !found {
		return s, fmt.Errorf("%w: review %s", ErrNotFound, in.ReviewID)
	}

	products := make([]models.Product, len(s.Products))
	for i, p := range s.Products {
		if p.ID == in.ProductID {
			reviews := make([]models.Review, 0, len(p.Reviews))
			for _, r := range p.Reviews {
				if r.ID != in.ReviewID {
					reviews = append(reviews, r)
				}
			}
			p.Reviews = reviews
			p = withDerivedRating(p)
		}
		products[i] = p
	}
	s.Products = products
	return s, nil
}

func sendMessage(s models.Snapshot, draft MessageDraft, env Env) (models.Snapshot, error) {
	if s.CurrentUser == nil {
		return s, ErrNotAuthenticated
	}
	if strings.TrimSpace(draft.Subject) == "" || strings.TrimSpace(draft.Body) == "" {
		return s, fmt.Errorf("%w: subject and body are required", ErrInvalidMessage)
	}
	idx := userIndex(s.Users, draft.ReceiverID)
	if idx < 0 {
		return s, fmt.Errorf("%w: receiver %s", ErrNotFound, draft.ReceiverID)
	}
	receiver := s.Users[idx]

	m := models.Message{
		ID:           env.NewID("msg"),
		SenderID:     s.CurrentUser.ID,
		SenderName:   s.CurrentUser.Name,
		ReceiverID:   receiver.ID,
		ReceiverName: receiver.Name,
		Subject:      draft.Subject,
		Body:         draft.Body,
		Date:         env.Now(),
	}

	messages := make([]models.Message, 0, len(s.Messages)+1)
	messages = append(messages, s.Messages...)
	s.Messages = append(messages, m)
	s.UnreadMessages = CountUnread(s.Messages, s.CurrentUser)
	return s, nil
}

func readMessage(s models.Snapshot, in ReadMessage) (models.Snapshot, error) {
	if messageIndex(s.Messages, in.MessageID) < 0 {
		return s, fmt.Errorf("%w: message %s", ErrNotFound, in.MessageID)
	}
	s.Messages = mapMessage(s.Messages, in.MessageID, func(m *models.Message) { m.Read = true })
	s.UnreadMessages = CountUnread(s.Messages, s.CurrentUser)
	return s, nil
}

func deleteMessage(s models.Snapshot, in DeleteMessage) (models.Snapshot, error) {
	if messageIndex(s.Messages, in.MessageID) < 0 {
		return s, fmt.Errorf("%w: message %s", ErrNotFound, in.MessageID)
	}

	messages := make([]models.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.ID != in.MessageID {
			messages = append(messages, m)
		}
	}
	s.Messages = messages
	s.UnreadMessages = CountUnread(s.Messages, s.CurrentUser)
	return s, nil
}

func replyMessage(s models.Snapshot, in ReplyMessage, env Env) (models.Snapshot, error) {
	idx := messageIndex(s.Messages, in.MessageID)
	if idx < 0 {
		return s, fmt.Errorf("%w: message %s", ErrNotFound, in.MessageID)
	}
	original := s.Messages[idx]

	// Senders that are not accounts, such as "system", cannot receive the reply
	// text; the message is still marked replied.
	next := s
	if in.Body != "" && userIndex(s.Users, original.SenderID) >= 0 {
		var err error
		next, err = sendMessage(s, MessageDraft{
			ReceiverID: original.SenderID,
			Subject:    ReplyPrefix + original.Subject,
			Body:       in.Body,
		}, env)
		if err != nil {
			return s, err
		}
	}

	next.Messages = mapMessage(next.Messages, in.MessageID, func(m *models.Message) { m.Replied = true })
	return next, nil
}

func validateProduct(p models.Product) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: negative price %.2f", ErrInvalidProduct, p.Price)
	}
	switch p.Category {
	case models.CategoryDigital, models.CategoryPhysical, models.CategoryService:
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidProduct, p.Category)
	}
	return nil
}

func cartIndex(cart []models.CartItem, productID string) int {
	for i, item := range cart {
		if item.ID == productID {
			return i
		}
	}
	return -1
}

func withoutCartItem(cart []models.CartItem, productID string) []models.CartItem {
	out := make([]models.CartItem, 0, len(cart))
	for _, item := range cart {
		if item.ID != productID {
			out = append(out, item)
		}
	}
	return out
}

func productIndex(products []models.Product, id string) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func userIndex(users []models.User, id string) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func messageIndex(messages []models.Message, id string) int {
	for i, m := range messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func replaceUser(users []models.User, updated models.User) []models.User {
	out := make([]models.User, len(users))
	for i, u := range users {
		if u.ID == updated.ID {
			u = updated
		}
		out[i] = u
	}
	return out
}

func mapMessage(messages []models.Message, id string, fn func(*models.Message)) []models.Message {
	out := make([]models.Message, len(messages))
	for i, m := range messages {
		if m.ID == id {
			fn(&m)
		}
		out[i] = m
	}
	return out
}

// emailTaken reports whether another user (not exceptID) already uses email
func emailTaken(users []models.User, email, exceptID string) bool {
	for _, u := range users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func isActiveAdmin(u models.User) bool {
	return u.IsAdmin && u.IsActive
}

func activeAdminCount(users []models.User) int {
	n := 0
	for _, u := range users {
		if isActiveAdmin(u) {
			n++
		}
	}
	return n
}
