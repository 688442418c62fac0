package state

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"securemarket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func testEnv() Env {
	n := 0
	return Env{
		Now: func() time.Time { return testNow },
		NewID: func(prefix string) string {
			n++
			return fmt.Sprintf("%s-t%d", prefix, n)
		},
	}
}

func seeded(t *testing.T) models.Snapshot {
	t.Helper()
	return Seed(testNow, rand.New(rand.NewSource(1)))
}

func mustApply(t *testing.T, s models.Snapshot, env Env, intents ...Intent) models.Snapshot {
	t.Helper()
	for _, in := range intents {
		var err error
		s, err = Apply(s, in, env)
		require.NoError(t, err, "applying %s", in.Kind())
	}
	return s
}

func product(id string, price float64, ratings ...int) models.Product {
	p := models.Product{ID: id, Title: id, Price: price, Category: models.CategoryDigital, InStock: true}
	p.Reviews = []models.Review{}
	for i, r := range ratings {
		p.Reviews = append(p.Reviews, models.Review{ID: fmt.Sprintf("%s-r%d", id, i), ProductID: id, Rating: r})
	}
	return withDerivedRating(p)
}

func TestAddToCartAccumulates(t *testing.T) {
	env := testEnv()
	p := product("p1", 10)

	s := mustApply(t, models.Snapshot{}, env, AddToCart{Product: p}, AddToCart{Product: p})

	require.Len(t, s.Cart, 1)
	assert.Equal(t, "p1", s.Cart[0].ID)
	assert.Equal(t, 2, s.Cart[0].Quantity)
}

func TestApplyDoesNotModifyInput(t *testing.T) {
	env := testEnv()
	p := product("p1", 10)
	before := mustApply(t, models.Snapshot{}, env, AddToCart{Product: p})

	after := mustApply(t, before, env, AddToCart{Product: p})

	assert.Equal(t, 1, before.Cart[0].Quantity)
	assert.Equal(t, 2, after.Cart[0].Quantity)
}

func TestUpdateQuantityFloor(t *testing.T) {
	for _, qty := range []int{0, -5} {
		t.Run(fmt.Sprintf("qty=%d", qty), func(t *testing.T) {
			env := testEnv()
			s := mustApply(t, models.Snapshot{}, env,
				AddToCart{Product: product("p1", 10)},
				AddToCart{Product: product("p2", 5)},
				UpdateQuantity{ProductID: "p1", Quantity: qty},
			)

			require.Len(t, s.Cart, 1)
			assert.Equal(t, "p2", s.Cart[0].ID)
		})
	}
}

func TestUpdateQuantitySetsValue(t *testing.T) {
	env := testEnv()
	s := mustApply(t, models.Snapshot{}, env,
		AddToCart{Product: product("p1", 10)},
		UpdateQuantity{ProductID: "p1", Quantity: 7},
	)
	assert.Equal(t, 7, s.Cart[0].Quantity)
}

func TestCartRejectionsLeaveStateUnchanged(t *testing.T) {
	env := testEnv()
	s := mustApply(t, models.Snapshot{}, env, AddToCart{Product: product("p1", 10)})

	for _, in := range []Intent{
		RemoveFromCart{ProductID: "missing"},
		UpdateQuantity{ProductID: "missing", Quantity: 3},
		UpdateQuantity{ProductID: "missing", Quantity: 0},
	} {
		next, err := Apply(s, in, env)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, s, next)
	}
}

func TestRemoveAndClearCart(t *testing.T) {
	env := testEnv()
	s := mustApply(t, models.Snapshot{}, env,
		AddToCart{Product: product("p1", 10)},
		AddToCart{Product: product("p2", 10)},
		RemoveFromCart{ProductID: "p1"},
	)
	require.Len(t, s.Cart, 1)

	s = mustApply(t, s, env, ClearCart{})
	assert.NotNil(t, s.Cart)
	assert.Empty(t, s.Cart)
}

func TestAddProductRecomputesDerivedFields(t *testing.T) {
	env := testEnv()
	p := product("p1", 10, 4, 5, 3)
	p.Rating = 1
	p.ReviewCount = 99

	s := mustApply(t, models.Snapshot{}, env, AddProduct{Product: p}, AddProduct{Product: p})

	require.Len(t, s.Products, 2, "duplicate ids are appended")
	assert.Equal(t, 4.0, s.Products[0].Rating)
	assert.Equal(t, 3, s.Products[0].ReviewCount)
}

func TestAddProductValidation(t *testing.T) {
	env := testEnv()
	cases := map[string]models.Product{
		"negative price": {ID: "p", Price: -1, Category: models.CategoryDigital},
		"bad category":   {ID: "p", Price: 1, Category: "food"},
		"missing id":     {Price: 1, Category: models.CategoryDigital},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Apply(models.Snapshot{}, AddProduct{Product: p}, env)
			assert.ErrorIs(t, err, ErrInvalidProduct)
		})
	}
}

func TestUpdateProductKeepsPositionAndReviews(t *testing.T) {
	env := testEnv()
	s := mustApply(t, models.Snapshot{}, env,
		AddProduct{Product: product("a", 1)},
		AddProduct{Product: product("b", 2, 5, 4)},
		AddProduct{Product: product("c", 3)},
	)

	edit := models.Product{ID: "b", Title: "Renamed", Price: 20, Category: models.CategoryService, Rating: 1, ReviewCount: 0}
	s = mustApply(t, s, env, UpdateProduct{Product: edit})

	require.Len(t, s.Products, 3)
	b := s.Products[1]
	assert.Equal(t, "Renamed", b.Title)
	assert.Equal(t, 20.0, b.Price)
	assert.Equal(t, models.CategoryService, b.Category)
	assert.Len(t, b.Reviews, 2)
	assert.Equal(t, 4.5, b.Rating)
	assert.Equal(t, 2, b.ReviewCount)

	_, err := Apply(s, UpdateProduct{Product: product("zzz", 1)}, env)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteProductPrunesCart(t *testing.T) {
	env := testEnv()
	s := mustApply(t, models.Snapshot{}, env,
		AddProduct{Product: product("a", 1)},
		AddProduct{Product: product("b", 2)},
		AddToCart{Product: product("a", 1)},
		AddToCart{Product: product("b", 2)},
		DeleteProduct{ProductID: "a"},
	)

	require.Len(t, s.Products, 1)
	require.Len(t, s.Cart, 1)
	assert.Equal(t, "b", s.Cart[0].ID)

	_, err := Apply(s, DeleteProduct{ProductID: "a"}, env)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterUser(t *testing.T) {
	env := testEnv()
	s := mustApply(t, seeded(t), env, RegisterUser{User: NewUser{Email: "neo@matrix.io", Password: "Red-Pill9"}})

	u := s.Users[len(s.Users)-1]
	assert.Equal(t, "user-t1", u.ID)
	assert.Equal(t, "neo", u.Name)
	assert.True(t, u.IsActive)
	assert.False(t, u.IsAdmin)
	assert.Equal(t, testNow, u.CreatedAt)
	assert.Nil(t, u.LastLogin)
}

func TestRegisterUserRejections(t *testing.T) {
	env := testEnv()
	s := seeded(t)

	cases := []struct {
		name string
		user NewUser
		want error
	}{
		{"missing email", NewUser{Password: "Str0ng!pass"}, ErrInvalidUser},
		{"missing password", NewUser{Email: "a@b.c"}, ErrInvalidUser},
		{"duplicate email", NewUser{Email: "USER", Password: "Str0ng!pass"}, ErrDuplicateEmail},
		{"weak password", NewUser{Email: "a@b.c", Password: "abc"}, ErrWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Apply(s, RegisterUser{User: tc.user}, env)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, s, next)
		})
	}
}

func TestLoginSetsSessionAndLastLogin(t *testing.T) {
	env := testEnv()
	s := mustApply(t, seeded(t), env, Login{Email: "user", Password: "user"})

	require.NotNil(t, s.CurrentUser)
	assert.Equal(t, SeedUserID, s.CurrentUser.ID)
	require.NotNil(t, s.CurrentUser.LastLogin)
	assert.Equal(t, testNow, *s.CurrentUser.LastLogin)

	idx := userIndex(s.Users, SeedUserID)
	assert.Equal(t, *s.CurrentUser, s.Users[idx])
	assert.Equal(t, 3, s.UnreadMessages)
}

func TestLoginFailures(t *testing.T) {
	env := testEnv()
	s := mustApply(t, seeded(t), env, ToggleUserStatus{UserID: SeedUserID})

	next, err := Apply(s, Login{Email: "user", Password: "user"}, env)
	assert.ErrorIs(t, err, ErrAccountInactive)
	assert.Equal(t, s, next)

	next, err = Apply(s, Login{Email: "admin", Password: "wrong"}, env)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, s, next)
}

func TestLogoutClearsSessionAndCart(t *testing.T) {
	env := testEnv()
	s := seeded(t)
	s = mustApply(t, s, env,
		Login{Email: "user", Password: "user"},
		AddToCart{Product: s.Products[0]},
		Logout{},
	)

	assert.Nil(t, s.CurrentUser)
	assert.Equal(t, []models.CartItem{}, s.Cart)
	assert.Equal(t, 0, s.UnreadMessages)
}

func TestUpdateUserRefreshesSession(t *testing.T) {
	env := testEnv()
	s := mustApply(t, seeded(t), env, Login{Email: "user", Password: "user"})

	u := s.Users[userIndex(s.Users, SeedUserID)]
	u.Name = "Renamed"
	u.Password = ""
	s = mustApply(t, s, env, UpdateUser{User: u})

	assert.Equal(t, "Renamed", s.CurrentUser.Name)
	assert.Equal(t, "user", s.CurrentUser.Password, "empty password keeps the old one")
	assert.Equal(t, *s.CurrentUser, s.Users[userIndex(s.Users, SeedUserID)])
}

func TestUpdateUserRejections(t *testing.T) {
	env := testEnv()
	s := seeded(t)

	_, err := Apply(s, UpdateUser{User: models.User{ID: "ghost", Email: "ghost"}}, env)
	assert.ErrorIs(t, err, ErrNotFound)

	u := s.Users[userIndex(s.Users, SeedUserID)]
	u.Email = "admin"
	_, err = Apply(s, UpdateUser{User: u}, env)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	admin := s.Users[userIndex(s.Users, SeedAdminID)]
	admin.IsAdmin = false
	_, err = Apply(s, UpdateUser{User: admin}, env)
	assert.ErrorIs(t, err, ErrLastAdmin)
}

func TestLastAdminProtection(t *testing.T) {
	env := testEnv()
	s := seeded(t)

	_, err := Apply(s, DeleteUser{UserID: SeedAdminID}, env)
	assert.ErrorIs(t, err, ErrLastAdmin)

	_, err = Apply(s, ToggleUserStatus{UserID: SeedAdminID}, env)
	assert.ErrorIs(t, err, ErrLastAdmin)

	s = mustApply(t, s, env, RegisterUser{User: NewUser{Email: "root@x.io", Password: "Sup3r!user", IsAdmin: true}})
	s = mustApply(t, s, env, ToggleUserStatus{UserID: SeedAdminID}, DeleteUser{UserID: SeedAdminID})
	assert.Equal(t, -1, userIndex(s.Users, SeedAdminID))
}

func TestDeleteSessionUserLogsOut(t *testing.T) {
	env := testEnv()
	s := seeded(t)
	s = mustApply(t, s, env,
		Login{Email: "user", Password: "user"},
		AddToCart{Product: s.Products[0]},
		DeleteUser{UserID: SeedUserID},
	)

	assert.Nil(t, s.CurrentUser)
	assert.Empty(t, s.Cart)
	assert.Len(t, s.Users, 1)

	_, err := Apply(s, DeleteUser{UserID: SeedUserID}, env)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleUserStatus(t *testing.T) {
	env := testEnv()
	s := mustApply(t, seeded(t), env, ToggleUserStatus{UserID: SeedUserID})
	assert.False(t, s.Users[userIndex(s.Users, SeedUserID)].IsActive)

	s = mustApply(t, s, env, ToggleUserStatus{UserID: SeedUserID})
	assert.True(t, s.Users[userIndex(s.Users, SeedUserID)].IsActive)
}

func TestReviewRatingRecomputation(t *testing.T) {
	env := testEnv()
	s := models.Snapshot{
		Products: []models.Product{product("p1", 10)},
		Users:    []models.User{{ID: "u1", Email: "u", Password: "u", Name: "Ann", IsActive: true}},
	}
	s = mustApply(t, s, env,
		Login{Email: "u", Password: "u"},
		AddReview{Review: ReviewDraft{ProductID: "p1", Rating: 4, Comment: "ok"}},
		AddReview{Review: ReviewDraft{ProductID: "p1", Rating: 5}},
		AddReview{Review: ReviewDraft{ProductID: "p1", Rating: 3}},
	)

	p := s.Products[0]
	require.Len(t, p.Reviews, 3)
	assert.Equal(t, 4.0, p.Rating)
	assert.Equal(t, 3, p.ReviewCount)

	r := p.Reviews[0]
	assert.Equal(t, "u1", r.UserID)
	assert.Equal(t, "Ann", r.UserName)
	assert.Equal(t, testNow, r.Date)

	threeStar := p.Reviews[2].ID
	s = mustApply(t, s, env, DeleteReview{ReviewID: threeStar, ProductID: "p1"})
	assert.Equal(t, 4.5, s.Products[0].Rating)
	assert.Equal(t, 2, s.Products[0].ReviewCount)
}

func TestReviewRejections(t *testing.T) {
	env := testEnv()
	s := seeded(t)

	_, err := Apply(s, AddReview{Review: ReviewDraft{ProductID: "vpn-service", Rating: 5}}, env)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	s = mustApply(t, s, env, Login{Email: "user", Password: "user"})

	_, err = Apply(s, AddReview{Review: ReviewDraft{ProductID: "vpn-service", Rating: 6}}, env)
	assert.ErrorIs(t, err, ErrInvalidReview)

	_, err = Apply(s, AddReview{Review: ReviewDraft{ProductID: "nope", Rating: 5}}, env)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Apply(s, DeleteReview{ReviewID: "nope", ProductID: "vpn-service"}, env)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Apply(s, DeleteReview{ReviewID: "nope", ProductID: "nope"}, env)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnreadCounter(t *testing.T) {
	env := testEnv()
	s := seeded(t)
	s.Messages = append(s.Messages, models.Message{ID: "msg-4", ReceiverID: SeedUserID, Read: true})

	s = mustApply(t, s, env, Login{Email: "user", Password: "user"})
	assert.Equal(t, 3, s.UnreadMessages)

	s = mustApply(t, s, env, ReadMessage{MessageID: "msg-2"})
	assert.Equal(t, 2, s.UnreadMessages)

	s = mustApply(t, s, env, DeleteMessage{MessageID: "msg-1"})
	assert.Equal(t, 1, s.UnreadMessages)
	assert.Len(t, s.Messages, 3)
}

func TestSendMessage(t *testing.T) {
	env := testEnv()
	s := mustApply(t, seeded(t), env,
		Login{Email: "user", Password: "user"},
		SendMessage{Message: MessageDraft{ReceiverID: SeedAdminID, Subject: "Question", Body: "When does it ship?"}},
	)

	m := s.Messages[len(s.Messages)-1]
	assert.Equal(t, SeedUserID, m.SenderID)
	assert.Equal(t, "Regular User", m.SenderName)
	assert.Equal(t, "Administrator", m.ReceiverName)
	assert.False(t, m.Read)
	assert.False(t, m.Replied)
	assert.Equal(t, 3, s.UnreadMessages, "message to someone else does not count")

	s = mustApply(t, s, env, SendMessage{Message: MessageDraft{ReceiverID: SeedUserID, Subject: "Note", Body: "to self"}})
	assert.Equal(t, 4, s.UnreadMessages)
}

func TestSendMessageRejections(t *testing.T) {
	env := testEnv()
	s := seeded(t)
	draft := MessageDraft{ReceiverID: SeedAdminID, Subject: "s", Body: "b"}

	_, err := Apply(s, SendMessage{Message: draft}, env)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	s = mustApply(t, s, env, Login{Email: "user", Password: "user"})

	_, err = Apply(s, SendMessage{Message: MessageDraft{ReceiverID: "ghost", Subject: "s", Body: "b"}}, env)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Apply(s, SendMessage{Message: MessageDraft{ReceiverID: SeedAdminID, Subject: " ", Body: "b"}}, env)
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestReplyMessage(t *testing.T) {
	env := testEnv()
	s := mustApply(t, seeded(t), env,
		Login{Email: "user", Password: "user"},
		ReplyMessage{MessageID: "msg-1", Body: "Thanks!"},
	)

	assert.True(t, s.Messages[messageIndex(s.Messages, "msg-1")].Replied)
	reply := s.Messages[len(s.Messages)-1]
	assert.Equal(t, "RE: Welcome to SecureMarket", reply.Subject)
	assert.Equal(t, SeedAdminID, reply.ReceiverID)

	// Without a body only the flag changes.
	count := len(s.Messages)
	s = mustApply(t, s, env, ReplyMessage{MessageID: "msg-2"})
	assert.Len(t, s.Messages, count)
	assert.True(t, s.Messages[messageIndex(s.Messages, "msg-2")].Replied)

	_, err := Apply(s, ReplyMessage{MessageID: "missing"}, env)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReplyToSystemMessage(t *testing.T) {
	env := testEnv()
	s := mustApply(t, seeded(t), env, Login{Email: "user", Password: "user"})
	count := len(s.Messages)

	s = mustApply(t, s, env, ReplyMessage{MessageID: "msg-3", Body: "Noted"})

	assert.True(t, s.Messages[messageIndex(s.Messages, "msg-3")].Replied)
	assert.Len(t, s.Messages, count, "no reply is delivered to a non-account sender")
}

func TestReplyWithBodyRequiresSession(t *testing.T) {
	env := testEnv()
	s := seeded(t)

	next, err := Apply(s, ReplyMessage{MessageID: "msg-1", Body: "hi"}, env)

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Equal(t, s, next)
}

func TestLoadSnapshotReplacesState(t *testing.T) {
	env := testEnv()
	replacement := models.Snapshot{Users: []models.User{{ID: "x"}}}

	s := mustApply(t, seeded(t), env, LoadSnapshot{Snapshot: replacement})

	assert.Empty(t, s.Products)
	assert.NotNil(t, s.Products)
	assert.Len(t, s.Users, 1)
}

type bogusIntent struct{}

func (bogusIntent) Kind() Kind { return "BOGUS" }

func TestUnknownIntent(t *testing.T) {
	env := testEnv()
	s := seeded(t)

	next, err := Apply(s, bogusIntent{}, env)
	assert.ErrorIs(t, err, ErrUnknownIntent)
	assert.Equal(t, s, next)

	_, err = Apply(s, nil, env)
	assert.ErrorIs(t, err, ErrUnknownIntent)
}

func TestSeedScenario(t *testing.T) {
	env := testEnv()
	s := seeded(t)

	assert.Len(t, s.Products, 12)
	assert.Len(t, s.Users, 2)
	assert.Len(t, s.Messages, 3)
	assert.Nil(t, s.CurrentUser)

	s = mustApply(t, s, env, Login{Email: "user", Password: "user"})
	assert.Equal(t, SeedUserID, s.CurrentUser.ID)
	assert.Equal(t, 3, s.UnreadMessages)

	s = mustApply(t, s, env, ReadMessage{MessageID: "msg-1"})
	assert.Equal(t, 2, s.UnreadMessages)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "last_admin", Reason(fmt.Errorf("%w: admin-1", ErrLastAdmin)))
	assert.Equal(t, "internal", Reason(fmt.Errorf("boom")))
}
