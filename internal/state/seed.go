package state

import (
	"fmt"
	"math/rand"
	"time"

	"securemarket/internal/models"
)

// Seeded account ids
const (
	SeedAdminID = "admin-1"
	SeedUserID  = "user-1"
)

var seedProducts = []models.Product{
	{ID: "vpn-service", Title: "Premium VPN Service", Description: "Secure, anonymous VPN with no logs policy. Includes 10 server locations.", Price: 99.99, Category: models.CategoryDigital},
	{ID: "cloud-storage", Title: "Secure Cloud Storage", Description: "End-to-end encrypted cloud storage with zero knowledge architecture.", Price: 149.99, Category: models.CategoryService},
	{ID: "security-key", Title: "Hardware Security Key", Description: "Physical security key for two-factor authentication. Tamper-resistant design.", Price: 79.99, Category: models.CategoryPhysical},
	{ID: "encrypted-messenger", Title: "Encrypted Messenger", Description: "End-to-end encrypted messaging app with self-destructing messages.", Price: 49.99, Category: models.CategoryDigital},
	{ID: "privacy-router", Title: "Privacy Router", Description: "Hardware router with built-in VPN and Tor capabilities for complete network privacy.", Price: 199.99, Category: models.CategoryPhysical},
	{ID: "secure-email", Title: "Secure Email Service", Description: "Encrypted email service with zero access to your data. Includes custom domain option.", Price: 59.99, Category: models.CategoryService},
	{ID: "password-manager", Title: "Password Manager Pro", Description: "Advanced password manager with biometric authentication and secure sharing.", Price: 39.99, Category: models.CategoryDigital},
	{ID: "encrypted-phone", Title: "Encrypted Smartphone", Description: "Military-grade encrypted smartphone with secure OS and hardware protection.", Price: 899.99, Category: models.CategoryPhysical},
	{ID: "secure-hosting", Title: "Anonymous Web Hosting", Description: "Offshore web hosting with complete anonymity and DDoS protection.", Price: 29.99, Category: models.CategoryService},
	{ID: "crypto-wallet", Title: "Hardware Crypto Wallet", Description: "Cold storage cryptocurrency wallet with multi-currency support.", Price: 129.99, Category: models.CategoryPhysical},
	{ID: "secure-browser", Title: "Privacy Browser License", Description: "Ultra-secure browser with built-in VPN, ad blocker, and tracker protection.", Price: 19.99, Category: models.CategoryDigital},
	{ID: "penetration-testing", Title: "Penetration Testing Service", Description: "Professional security audit and penetration testing for your infrastructure.", Price: 499.99, Category: models.CategoryService},
}

var seedComments = []string{
	"Excellent product, works perfectly.",
	"Very good quality, I recommend it.",
	"Does what it promises, I am satisfied.",
	"Good product, but the price is a bit high.",
	"Fast delivery and the product is as described.",
	"Works well, but I expected a little more.",
	"Incredible quality, exceeded my expectations.",
	"Safe and reliable, would buy again.",
	"Technical support is excellent.",
	"Easy to use and very effective.",
}

var seedReviewers = []string{
	"CryptoGhost", "SecureNode", "DarkByte", "PhantomUser", "AnonymousWolf",
	"CipherMaster", "ShadowHunter", "PrivacyGuard", "SecretAgent", "NightRaven",
}

// Seed builds the built-in initial snapshot: twelve products with generated
// reviews, an administrator and a regular user, and three unread messages for
// the regular user. No one is logged in.
func Seed(now time.Time, rng *rand.Rand) models.Snapshot {
	products := make([]models.Product, len(seedProducts))
	for i, p := range seedProducts {
		p.InStock = true
		p.Reviews = seedReviews(p.ID, now, rng)
		products[i] = withDerivedRating(p)
	}

	users := []models.User{
		{ID: SeedAdminID, Email: "admin", Password: "admin", Name: "Administrator", IsAdmin: true, IsActive: true, CreatedAt: now},
		{ID: SeedUserID, Email: "user", Password: "user", Name: "Regular User", IsActive: true, CreatedAt: now},
	}

	day := 24 * time.Hour
	messages := []models.Message{
		{
			ID: "msg-1", SenderID: SeedAdminID, SenderName: "Administrator",
			ReceiverID: SeedUserID, ReceiverName: "Regular User",
			Subject: "Welcome to SecureMarket",
			Body:    "Hi, welcome to our platform. We are glad to have you. If you have any questions, just get in touch.",
			Date:    now.Add(-2 * day),
		},
		{
			ID: "msg-2", SenderID: SeedAdminID, SenderName: "Administrator",
			ReceiverID: SeedUserID, ReceiverName: "Regular User",
			Subject: "A special offer for you",
			Body:    "We noticed you are interested in our security products. Use the code SECURE10 for 10% off your next purchase.",
			Date:    now.Add(-day),
		},
		{
			ID: "msg-3", SenderID: "system", SenderName: "System",
			ReceiverID: SeedUserID, ReceiverName: "Regular User",
			Subject: "Security update",
			Body:    "We have updated our security policies. Please review the new documentation at your next login.",
			Date:    now,
		},
	}

	return models.Snapshot{
		Products: products,
		Cart:     []models.CartItem{},
		Users:    users,
		Messages: messages,
	}
}

// seedReviews generates one to five reviews rated three to five within the last thirty days
func seedReviews(productID string, now time.Time, rng *rand.Rand) []models.Review {
	n := rng.Intn(5) + 1
	reviews := make([]models.Review, 0, n)
	for i := 0; i < n; i++ {
		reviews = append(reviews, models.Review{
			ID:        fmt.Sprintf("review-%s-%d", productID, i),
			UserID:    fmt.Sprintf("guest-%d", i),
			UserName:  seedReviewers[rng.Intn(len(seedReviewers))],
			ProductID: productID,
			Rating:    rng.Intn(3) + 3,
			Comment:   seedComments[rng.Intn(len(seedComments))],
			Date:      now.Add(-time.Duration(rng.Intn(30)) * 24 * time.Hour),
			Verified:  rng.Float64() > 0.3,
		})
	}
	return reviews
}
